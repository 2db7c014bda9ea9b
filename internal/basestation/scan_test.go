package basestation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

func newTestScanner(a *fakeAdapter, window time.Duration) (*Scanner, *Store) {
	store := NewStore()
	s := NewScanner(a, store, ScanConfig{
		Service:     power.CharacteristicUUID,
		Window:      window,
		CallTimeout: time.Second,
	})
	return s, store
}

func TestScanner_Restart_FilterAndWindow(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, 10*time.Second)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	if len(a.filters) != 1 {
		t.Fatalf("StartDiscovery() called %d times, want 1", len(a.filters))
	}
	f := a.filters[0]
	if len(f.Services) != 1 || f.Services[0] != power.CharacteristicUUID {
		t.Errorf("filter services = %v, want [%v]", f.Services, power.CharacteristicUUID)
	}
	if f.Timeout != 10*time.Second {
		t.Errorf("filter timeout = %v, want 10s", f.Timeout)
	}
	if !store.IsScanning() {
		t.Error("IsScanning() = false after successful start")
	}
}

func TestScanner_DiscoveredThenUpdated(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, time.Minute)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	p := newFakePeripheral("AA", "Base1")
	a.emit(DiscoveryDiscovered, p)
	waitFor(t, "device discovered", func() bool { return store.Len() == 1 })

	p.setName("Base1-renamed")
	a.emit(DiscoveryUpdated, p)
	waitFor(t, "device renamed", func() bool {
		d, _ := store.Snapshot().Device("AA")
		return d.Name == "Base1-renamed"
	})

	d, _ := store.Snapshot().Device("AA")
	if d.PowerState != power.StateUnknown {
		t.Errorf("PowerState = %v, want %v", d.PowerState, power.StateUnknown)
	}
}

func TestScanner_UpdatedForUnknownDevice(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, time.Minute)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	a.emit(DiscoveryUpdated, newFakePeripheral("ZZ", "ghost"))
	a.emit(DiscoveryOther, newFakePeripheral("YY", "other"))
	a.emit(DiscoveryDiscovered, newFakePeripheral("AA", "Base1"))
	waitFor(t, "device discovered", func() bool { return store.Len() == 1 })

	if _, ok := store.Snapshot().Device("ZZ"); ok {
		t.Error("Updated event created a device")
	}
	if _, ok := store.Snapshot().Device("YY"); ok {
		t.Error("Other event created a device")
	}
}

func TestScanner_StartFailure(t *testing.T) {
	a := &fakeAdapter{startErr: errors.New("adapter powered off")}
	s, store := newTestScanner(a, time.Minute)
	defer s.Stop()

	err := s.Restart(context.Background())
	if !errors.Is(err, ErrScanStart) {
		t.Fatalf("Restart() error = %v, want ErrScanStart", err)
	}

	snap := store.Snapshot()
	if snap.Error != ErrorStartFailed {
		t.Errorf("Snapshot().Error = %q, want %q", snap.Error, ErrorStartFailed)
	}
	if snap.Scanning {
		t.Error("Snapshot().Scanning = true after failed start")
	}
	if a.streams != 0 {
		t.Errorf("Events() called %d times after failed start, want 0", a.streams)
	}

	a.setStartErr(nil)
	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	snap = store.Snapshot()
	if snap.Error != ErrorNone {
		t.Errorf("Snapshot().Error = %q after successful restart, want none", snap.Error)
	}
	if !snap.Scanning {
		t.Error("Snapshot().Scanning = false after successful restart")
	}
}

func TestScanner_RestartClearsDevices(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, time.Minute)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	a.emit(DiscoveryDiscovered, newFakePeripheral("AA", "Base1"))
	waitFor(t, "device discovered", func() bool { return store.Len() == 1 })
	store.UpdatePowerState("AA", power.StateOn)

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("Len() = %d after restart, want 0", store.Len())
	}
}

func TestScanner_StaleDiscoveryIgnored(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, time.Minute)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	stale := store.Generation()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}

	s.handleEvent(context.Background(), stale, DiscoveryEvent{
		Kind:       DiscoveryDiscovered,
		Peripheral: newFakePeripheral("AA", "late"),
	})
	if store.Len() != 0 {
		t.Errorf("Len() = %d after stale discovery, want 0", store.Len())
	}
}

func TestScanner_WindowCloses(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, 30*time.Millisecond)
	defer s.Stop()

	rec := &recorder{}
	s.notify = rec.Notify

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	waitFor(t, "scan window to close", func() bool { return !store.IsScanning() })

	if got := len(rec.ofType(EventScanFinished)); got != 1 {
		t.Errorf("scan_finished notifications = %d, want 1", got)
	}
}

func TestScanner_EventsAfterWindowStillApplied(t *testing.T) {
	a := &fakeAdapter{}
	s, store := newTestScanner(a, 10*time.Millisecond)
	defer s.Stop()

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	waitFor(t, "scan window to close", func() bool { return !store.IsScanning() })

	a.emit(DiscoveryDiscovered, newFakePeripheral("AA", "Base1"))
	waitFor(t, "late device", func() bool { return store.Len() == 1 })
}

func TestScanner_StopIsIdempotent(t *testing.T) {
	a := &fakeAdapter{}
	s, _ := newTestScanner(a, time.Minute)

	if err := s.Restart(context.Background()); err != nil {
		t.Fatalf("Restart() error = %v", err)
	}
	s.Stop()
	s.Stop()
}
