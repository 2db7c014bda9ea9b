package simulated

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

func testFilter(timeout time.Duration) basestation.Filter {
	return basestation.Filter{Services: []uuid.UUID{power.CharacteristicUUID}, Timeout: timeout}
}

func TestAdapter_Discovery(t *testing.T) {
	a := New(Config{Devices: DefaultDevices()})
	defer a.Close()

	if err := a.StartDiscovery(context.Background(), testFilter(time.Minute)); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	if !a.IsScanning() {
		t.Error("IsScanning() = false after StartDiscovery()")
	}

	ctx, cancel := context.WithCancel(context.Background())
	events := a.Events(ctx)

	seen := make(map[string]bool)
	for i := 0; i < len(DefaultDevices()); i++ {
		select {
		case ev := <-events:
			if ev.Kind != basestation.DiscoveryDiscovered {
				t.Errorf("event kind = %v, want discovered", ev.Kind)
			}
			seen[ev.Peripheral.Address()] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for discovery events")
		}
	}
	for _, spec := range DefaultDevices() {
		if !seen[spec.Address] {
			t.Errorf("device %s not discovered", spec.Address)
		}
	}

	cancel()
	select {
	case _, ok := <-events:
		if ok {
			t.Error("unexpected event after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("event stream not closed after cancel")
	}
}

func TestAdapter_WindowCloses(t *testing.T) {
	a := New(Config{Devices: DefaultDevices()})
	defer a.Close()

	if err := a.StartDiscovery(context.Background(), testFilter(10*time.Millisecond)); err != nil {
		t.Fatalf("StartDiscovery() error = %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for a.IsScanning() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if a.IsScanning() {
		t.Error("IsScanning() = true after the window elapsed")
	}
}

func TestAdapter_FailDiscovery(t *testing.T) {
	a := New(Config{FailDiscovery: true})
	defer a.Close()

	err := a.StartDiscovery(context.Background(), testFilter(time.Second))
	if !errors.Is(err, ErrDiscoveryDisabled) {
		t.Errorf("StartDiscovery() error = %v, want ErrDiscoveryDisabled", err)
	}

	a.SetFailDiscovery(false)
	if err := a.StartDiscovery(context.Background(), testFilter(time.Second)); err != nil {
		t.Errorf("StartDiscovery() error = %v after re-enabling", err)
	}
}

func TestDevice_PowerTransitions(t *testing.T) {
	a := New(Config{
		Devices:      []DeviceSpec{{Address: "AA", State: power.StateSleep}},
		StartupDelay: 20 * time.Millisecond,
	})
	d := a.Devices()[0]
	ctx := context.Background()

	char, err := d.Characteristic(ctx, power.CharacteristicUUID)
	if err != nil {
		t.Fatalf("Characteristic() error = %v", err)
	}

	read := func() power.State {
		t.Helper()
		payload, err := char.Read(ctx)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		return power.Decode(payload)
	}

	if got := read(); got != power.StateSleep {
		t.Fatalf("initial state = %v, want sleep", got)
	}

	if err := char.WriteWithoutResponse(ctx, []byte{power.TargetOn.Byte()}); err != nil {
		t.Fatalf("WriteWithoutResponse() error = %v", err)
	}
	if got := read(); got != power.StateStarting {
		t.Errorf("state after on = %v, want starting", got)
	}

	time.Sleep(30 * time.Millisecond)
	if got := read(); got != power.StateOn {
		t.Errorf("state after delay = %v, want on", got)
	}

	if err := char.WriteWithoutResponse(ctx, []byte{power.TargetStandby.Byte()}); err != nil {
		t.Fatalf("WriteWithoutResponse() error = %v", err)
	}
	if got := read(); got != power.StateStandby {
		t.Errorf("state after standby = %v, want standby", got)
	}

	if err := char.WriteWithoutResponse(ctx, []byte{0x42}); err != nil {
		t.Fatalf("WriteWithoutResponse() error = %v", err)
	}
	if got := read(); got != power.StateStandby {
		t.Errorf("state after garbage write = %v, want standby", got)
	}
}

func TestDevice_UnknownCharacteristic(t *testing.T) {
	d := New(Config{Devices: DefaultDevices()}).Devices()[0]
	_, err := d.Characteristic(context.Background(), uuid.New())
	if !errors.Is(err, basestation.ErrCharacteristicNotFound) {
		t.Errorf("Characteristic() error = %v, want ErrCharacteristicNotFound", err)
	}
}

// The simulated adapter drives the real engine end to end.
func TestAdapter_WithEngine(t *testing.T) {
	a := New(Config{Devices: DefaultDevices(), StartupDelay: 10 * time.Millisecond})
	defer a.Close()

	eng, err := basestation.New(basestation.Options{
		Adapter:      a,
		PollInterval: 5 * time.Millisecond,
		ScanOnStart:  true,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer eng.Stop()

	sleeping := DefaultDevices()[1].Address
	wait := func(what string, cond func(basestation.Snapshot) bool) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if cond(eng.Snapshot()) {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("timed out waiting for %s: %+v", what, eng.Snapshot())
	}

	wait("sleeping station", func(s basestation.Snapshot) bool {
		d, ok := s.Device(sleeping)
		return ok && d.PowerState == power.StateSleep
	})

	eng.Enqueue(basestation.ChangePowerState(sleeping, power.TargetOn))
	wait("station on", func(s basestation.Snapshot) bool {
		d, _ := s.Device(sleeping)
		return d.PowerState == power.StateOn
	})
}
