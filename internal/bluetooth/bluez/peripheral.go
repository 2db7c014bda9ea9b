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

// servicesPollInterval is how often ServicesResolved is checked after a
// connect.
const servicesPollInterval = 100 * time.Millisecond

// Peripheral is a BlueZ device object.
type Peripheral struct {
	bus     *bus
	path    dbus.ObjectPath
	address string

	mu    sync.Mutex
	chars map[uuid.UUID]dbus.ObjectPath
}

// Address implements basestation.Peripheral.
func (p *Peripheral) Address() string {
	return p.address
}

// LocalName implements basestation.Peripheral.
func (p *Peripheral) LocalName(ctx context.Context) (string, bool) {
	v, err := p.bus.getProp(ctx, p.path, deviceIface, "Name")
	if err != nil {
		return "", false
	}
	name, ok := v.Value().(string)
	return name, ok && name != ""
}

// Characteristic implements basestation.Peripheral. The device is connected
// and its services resolved if necessary.
func (p *Peripheral) Characteristic(ctx context.Context, id uuid.UUID) (basestation.Characteristic, error) {
	p.mu.Lock()
	path, ok := p.chars[id]
	p.mu.Unlock()
	if ok {
		return &characteristic{owner: p, id: id, path: path}, nil
	}

	if err := p.ensureConnected(ctx); err != nil {
		return nil, err
	}

	objects, err := p.bus.managedObjects(ctx)
	if err != nil {
		return nil, err
	}
	path, ok = findCharacteristic(objects, p.path, id)
	if !ok {
		return nil, basestation.ErrCharacteristicNotFound
	}

	p.mu.Lock()
	p.chars[id] = path
	p.mu.Unlock()

	return &characteristic{owner: p, id: id, path: path}, nil
}

func (p *Peripheral) ensureConnected(ctx context.Context) error {
	connected, err := p.bus.getBool(ctx, p.path, deviceIface, "Connected")
	if err != nil {
		return fmt.Errorf("reading connection state: %w", err)
	}
	if !connected {
		err := p.bus.call(ctx, p.path, deviceIface+".Connect").Err
		if err != nil && !isDBusError(err, "org.bluez.Error.AlreadyConnected") {
			return fmt.Errorf("connect %s: %w", p.address, err)
		}
	}

	ticker := time.NewTicker(servicesPollInterval)
	defer ticker.Stop()
	for {
		resolved, err := p.bus.getBool(ctx, p.path, deviceIface, "ServicesResolved")
		if err != nil {
			return fmt.Errorf("reading services state: %w", err)
		}
		if resolved {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for services on %s: %w", p.address, ctx.Err())
		case <-ticker.C:
		}
	}
}

// forget drops a cached characteristic path, e.g. after a disconnect.
func (p *Peripheral) forget(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.chars, id)
}

// characteristic is a GattCharacteristic1 object.
type characteristic struct {
	owner *Peripheral
	id    uuid.UUID
	path  dbus.ObjectPath
}

// Read implements basestation.Characteristic.
func (c *characteristic) Read(ctx context.Context) ([]byte, error) {
	var value []byte
	err := c.owner.bus.call(ctx, c.path, gattCharIface+".ReadValue", map[string]dbus.Variant{}).Store(&value)
	if err != nil {
		c.owner.forget(c.id)
		return nil, fmt.Errorf("read %s: %w", c.id, err)
	}
	return value, nil
}

// WriteWithoutResponse implements basestation.Characteristic.
func (c *characteristic) WriteWithoutResponse(ctx context.Context, value []byte) error {
	opts := map[string]dbus.Variant{
		"type": dbus.MakeVariant("command"),
	}
	if err := c.owner.bus.call(ctx, c.path, gattCharIface+".WriteValue", value, opts).Err; err != nil {
		c.owner.forget(c.id)
		return fmt.Errorf("write %s: %w", c.id, err)
	}
	return nil
}
