package bluez

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
)

// Logger defines the logging interface used by the adapter.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DefaultAdapter is the controller used when none is configured.
const DefaultAdapter = "hci0"

// stopTimeout bounds the StopDiscovery call issued when a window closes.
const stopTimeout = 5 * time.Second

// Config configures the BlueZ adapter.
type Config struct {
	// Adapter is the controller name, e.g. "hci0".
	Adapter string
}

// Adapter implements basestation.Adapter over BlueZ.
type Adapter struct {
	bus    *bus
	path   dbus.ObjectPath
	logger Logger

	mu           sync.Mutex
	scanning     bool
	filter       []uuid.UUID
	window       *time.Timer
	streamCancel context.CancelFunc
	peripherals  map[dbus.ObjectPath]*Peripheral
}

// Connect opens a private system bus connection and verifies that BlueZ and
// the configured controller are present.
//
// A controller that is present but powered off is accepted; discovery then
// fails and the engine surfaces it as a scan start failure.
func Connect(ctx context.Context, cfg Config) (*Adapter, error) {
	name := cfg.Adapter
	if name == "" {
		name = DefaultAdapter
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	b := &bus{conn: conn}

	found, err := b.hasBlueZ(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if !found {
		conn.Close()
		return nil, ErrBlueZUnavailable
	}

	path := adapterObjectPath(name)
	if _, err := b.getBool(ctx, path, adapterIface, "Powered"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrAdapterNotFound, name, err)
	}

	return &Adapter{
		bus:         b,
		path:        path,
		logger:      noopLogger{},
		peripherals: make(map[dbus.ObjectPath]*Peripheral),
	}, nil
}

// SetLogger sets the logger for the adapter.
func (a *Adapter) SetLogger(logger Logger) {
	a.logger = logger
}

// Powered reports whether the controller is powered on.
func (a *Adapter) Powered(ctx context.Context) (bool, error) {
	return a.bus.getBool(ctx, a.path, adapterIface, "Powered")
}

// StartDiscovery implements basestation.Adapter.
//
// BlueZ is asked for LE discovery only; the service filter is applied to the
// UUIDs each device advertises, so characteristic ids from the same vendor
// base also match.
func (a *Adapter) StartDiscovery(ctx context.Context, filter basestation.Filter) error {
	filterArgs := map[string]dbus.Variant{
		"Transport":     dbus.MakeVariant("le"),
		"DuplicateData": dbus.MakeVariant(false),
	}
	if err := a.bus.call(ctx, a.path, adapterIface+".SetDiscoveryFilter", filterArgs).Err; err != nil {
		return fmt.Errorf("set discovery filter: %w", err)
	}

	err := a.bus.call(ctx, a.path, adapterIface+".StartDiscovery").Err
	if err != nil && !isDBusError(err, "org.bluez.Error.InProgress") {
		return fmt.Errorf("start discovery: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.filter = append([]uuid.UUID(nil), filter.Services...)
	a.scanning = true
	if a.window != nil {
		a.window.Stop()
	}
	if filter.Timeout > 0 {
		a.window = time.AfterFunc(filter.Timeout, a.stopDiscovery)
	}

	a.logger.Debug("bluez discovery started", "adapter", a.path, "timeout", filter.Timeout)
	return nil
}

func (a *Adapter) stopDiscovery() {
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if err := a.bus.call(ctx, a.path, adapterIface+".StopDiscovery").Err; err != nil {
		a.logger.Debug("stop discovery failed", "error", err)
	}

	a.mu.Lock()
	a.scanning = false
	a.mu.Unlock()
}

// IsScanning implements basestation.Adapter.
func (a *Adapter) IsScanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

// Events implements basestation.Adapter. Devices already known to BlueZ are
// reported as discovered first.
func (a *Adapter) Events(ctx context.Context) <-chan basestation.DiscoveryEvent {
	streamCtx, cancel := context.WithCancel(ctx)

	a.mu.Lock()
	if a.streamCancel != nil {
		a.streamCancel()
	}
	a.streamCancel = cancel
	a.mu.Unlock()

	out := make(chan basestation.DiscoveryEvent, 16)
	go a.stream(streamCtx, out)
	return out
}

func (a *Adapter) stream(ctx context.Context, out chan<- basestation.DiscoveryEvent) {
	defer close(out)

	signals := make(chan *dbus.Signal, 64)
	a.bus.conn.Signal(signals)
	defer a.bus.conn.RemoveSignal(signals)

	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchInterface(objectManagerIface),
			dbus.WithMatchMember("InterfacesAdded"),
		},
		{
			dbus.WithMatchInterface(propsIface),
			dbus.WithMatchMember("PropertiesChanged"),
			dbus.WithMatchPathNamespace(a.path),
		},
	}
	for _, m := range matches {
		if err := a.bus.conn.AddMatchSignalContext(ctx, m...); err != nil {
			a.logger.Warn("bluez signal subscription failed", "error", err)
			continue
		}
		defer func(m []dbus.MatchOption) {
			_ = a.bus.conn.RemoveMatchSignal(m...)
		}(m)
	}

	objects, err := a.bus.managedObjects(ctx)
	if err != nil {
		a.logger.Warn("listing known devices failed", "error", err)
	}
	for path, ifaces := range objects {
		props, ok := ifaces[deviceIface]
		if !ok {
			continue
		}
		if ev, ok := a.deviceEvent(basestation.DiscoveryDiscovered, path, props); ok {
			if !send(ctx, out, ev) {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signals:
			if !ok {
				return
			}
			ev, ok := a.handleSignal(sig)
			if !ok {
				continue
			}
			if !send(ctx, out, ev) {
				return
			}
		}
	}
}

func send(ctx context.Context, out chan<- basestation.DiscoveryEvent, ev basestation.DiscoveryEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (a *Adapter) handleSignal(sig *dbus.Signal) (basestation.DiscoveryEvent, bool) {
	info, ok := classifySignal(a.path, sig)
	if !ok {
		return basestation.DiscoveryEvent{}, false
	}

	if info.discovering != nil {
		a.mu.Lock()
		a.scanning = *info.discovering
		a.mu.Unlock()
		return basestation.DiscoveryEvent{}, false
	}
	return a.deviceEvent(info.kind, info.path, info.props)
}

// deviceEvent builds an event for a device object, applying the service
// filter to newly discovered devices.
func (a *Adapter) deviceEvent(kind basestation.DiscoveryKind, path dbus.ObjectPath, props map[string]dbus.Variant) (basestation.DiscoveryEvent, bool) {
	address := addressFromPath(a.path, path)
	if address == "" {
		return basestation.DiscoveryEvent{}, false
	}

	if kind == basestation.DiscoveryDiscovered {
		a.mu.Lock()
		filter := a.filter
		a.mu.Unlock()
		if !advertises(stringsProp(props, "UUIDs"), filter) {
			return basestation.DiscoveryEvent{}, false
		}
	}

	return basestation.DiscoveryEvent{Kind: kind, Peripheral: a.peripheral(path, address)}, true
}

// peripheral returns the cached handle for path, creating it on first use.
func (a *Adapter) peripheral(path dbus.ObjectPath, address string) *Peripheral {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.peripherals[path]; ok {
		return p
	}
	p := &Peripheral{
		bus:     a.bus,
		path:    path,
		address: address,
		chars:   make(map[uuid.UUID]dbus.ObjectPath),
	}
	a.peripherals[path] = p
	return p
}

// Close stops discovery timers and event streams and closes the bus
// connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.window != nil {
		a.window.Stop()
	}
	if a.streamCancel != nil {
		a.streamCancel()
	}
	a.mu.Unlock()

	return a.bus.conn.Close()
}

// signalInfo is the part of a BlueZ signal the adapter acts on.
type signalInfo struct {
	kind        basestation.DiscoveryKind
	path        dbus.ObjectPath
	props       map[string]dbus.Variant
	discovering *bool
}

// classifySignal extracts device and adapter changes from InterfacesAdded
// and PropertiesChanged signals.
func classifySignal(adapter dbus.ObjectPath, sig *dbus.Signal) (signalInfo, bool) {
	if sig == nil {
		return signalInfo{}, false
	}

	switch sig.Name {
	case signalInterfacesAdded:
		if len(sig.Body) < 2 {
			return signalInfo{}, false
		}
		path, ok := sig.Body[0].(dbus.ObjectPath)
		if !ok {
			return signalInfo{}, false
		}
		ifaces, ok := sig.Body[1].(map[string]map[string]dbus.Variant)
		if !ok {
			return signalInfo{}, false
		}
		props, ok := ifaces[deviceIface]
		if !ok || addressFromPath(adapter, path) == "" {
			return signalInfo{}, false
		}
		return signalInfo{kind: basestation.DiscoveryDiscovered, path: path, props: props}, true

	case signalPropertiesChanged:
		if len(sig.Body) < 2 {
			return signalInfo{}, false
		}
		iface, ok := sig.Body[0].(string)
		if !ok {
			return signalInfo{}, false
		}
		changed, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return signalInfo{}, false
		}

		switch {
		case iface == adapterIface && sig.Path == adapter:
			discovering, ok := boolProp(changed, "Discovering")
			if !ok {
				return signalInfo{}, false
			}
			return signalInfo{discovering: &discovering}, true
		case iface == deviceIface && addressFromPath(adapter, sig.Path) != "":
			return signalInfo{kind: basestation.DiscoveryUpdated, path: sig.Path, props: changed}, true
		}
	}
	return signalInfo{}, false
}
