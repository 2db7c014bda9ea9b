package simulated

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// ErrDiscoveryDisabled is returned by StartDiscovery when the adapter is
// configured to fail, mimicking a powered-off controller.
var ErrDiscoveryDisabled = errors.New("simulated: bluetooth adapter is powered off")

// DefaultStartupDelay is how long a simulated station reports starting.
const DefaultStartupDelay = 2 * time.Second

// DeviceSpec describes one simulated base station.
type DeviceSpec struct {
	Address string
	Name    string
	State   power.State
}

// Config configures the simulated adapter.
type Config struct {
	Devices      []DeviceSpec
	StartupDelay time.Duration

	// FailDiscovery makes every StartDiscovery call fail.
	FailDiscovery bool
}

// DefaultDevices returns two stations, one on and one asleep.
func DefaultDevices() []DeviceSpec {
	return []DeviceSpec{
		{Address: "C4:2B:0A:11:22:01", Name: "LHB-5A0E3D21", State: power.StateOn},
		{Address: "C4:2B:0A:11:22:02", Name: "LHB-7F19C0B4", State: power.StateSleep},
	}
}

// Adapter is a simulated basestation.Adapter.
type Adapter struct {
	cfg     Config
	devices []*Device

	mu       sync.Mutex
	scanning bool
	window   *time.Timer
	cancel   context.CancelFunc
	failing  bool
}

// New creates a simulated adapter.
func New(cfg Config) *Adapter {
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = DefaultStartupDelay
	}
	a := &Adapter{cfg: cfg, failing: cfg.FailDiscovery}
	for _, spec := range cfg.Devices {
		state := spec.State
		if !state.Known() {
			state = power.StateSleep
		}
		a.devices = append(a.devices, &Device{
			address: spec.Address,
			name:    spec.Name,
			state:   state,
			delay:   cfg.StartupDelay,
		})
	}
	return a
}

// SetFailDiscovery toggles discovery failures at runtime.
func (a *Adapter) SetFailDiscovery(fail bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failing = fail
}

// Devices returns the simulated devices.
func (a *Adapter) Devices() []*Device {
	return append([]*Device(nil), a.devices...)
}

// StartDiscovery implements basestation.Adapter.
func (a *Adapter) StartDiscovery(ctx context.Context, filter basestation.Filter) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.failing {
		return ErrDiscoveryDisabled
	}
	if !matchesFilter(filter) {
		a.scanning = false
		return nil
	}

	a.scanning = true
	if a.window != nil {
		a.window.Stop()
	}
	if filter.Timeout > 0 {
		a.window = time.AfterFunc(filter.Timeout, func() {
			a.mu.Lock()
			a.scanning = false
			a.mu.Unlock()
		})
	}
	return nil
}

func matchesFilter(filter basestation.Filter) bool {
	if len(filter.Services) == 0 {
		return true
	}
	for _, id := range filter.Services {
		if id == power.CharacteristicUUID {
			return true
		}
	}
	return false
}

// Events implements basestation.Adapter. Every simulated device is reported
// as discovered once per stream.
func (a *Adapter) Events(ctx context.Context) <-chan basestation.DiscoveryEvent {
	streamCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
	}
	a.cancel = cancel
	a.mu.Unlock()

	ch := make(chan basestation.DiscoveryEvent)
	go func() {
		defer close(ch)
		for _, d := range a.devices {
			select {
			case ch <- basestation.DiscoveryEvent{Kind: basestation.DiscoveryDiscovered, Peripheral: d}:
			case <-streamCtx.Done():
				return
			}
		}
		<-streamCtx.Done()
	}()
	return ch
}

// IsScanning implements basestation.Adapter.
func (a *Adapter) IsScanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// Close stops timers and event streams.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.window != nil {
		a.window.Stop()
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.scanning = false
	return nil
}

// Device is a simulated base station. It is both the peripheral and its
// power characteristic.
type Device struct {
	address string
	delay   time.Duration

	mu       sync.Mutex
	name     string
	state    power.State
	settleAt time.Time
}

// Address implements basestation.Peripheral.
func (d *Device) Address() string {
	return d.address
}

// LocalName implements basestation.Peripheral.
func (d *Device) LocalName(_ context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name, d.name != ""
}

// Characteristic implements basestation.Peripheral.
func (d *Device) Characteristic(_ context.Context, id uuid.UUID) (basestation.Characteristic, error) {
	if id != power.CharacteristicUUID {
		return nil, basestation.ErrCharacteristicNotFound
	}
	return d, nil
}

// Read implements basestation.Characteristic.
func (d *Device) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []byte{encodeObserved(d.State())}, nil
}

// WriteWithoutResponse implements basestation.Characteristic.
func (d *Device) WriteWithoutResponse(ctx context.Context, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	switch state := power.Decode(value); state {
	case power.StateOn:
		if d.state != power.StateOn {
			d.state = power.StateStarting
			d.settleAt = time.Now().Add(d.delay)
		}
	case power.StateSleep, power.StateStandby:
		d.state = state
		d.settleAt = time.Time{}
	default:
		// Real stations ignore bytes they do not understand.
	}
	return nil
}

// State returns the current simulated state, settling a pending start-up.
func (d *Device) State() power.State {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state == power.StateStarting && !d.settleAt.IsZero() && !time.Now().Before(d.settleAt) {
		d.state = power.StateOn
		d.settleAt = time.Time{}
	}
	return d.state
}

// SetName renames the station.
func (d *Device) SetName(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.name = name
}

// encodeObserved is the telemetry byte a station reports for state.
func encodeObserved(state power.State) byte {
	switch state {
	case power.StateOn:
		return power.TargetOn.Byte()
	case power.StateStandby:
		return power.TargetStandby.Byte()
	case power.StateStarting:
		return 0x09
	default:
		return power.TargetSleep.Byte()
	}
}
