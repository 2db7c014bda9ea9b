package basestation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// fakeAdapter is an in-memory Adapter. Tests push events with emit.
type fakeAdapter struct {
	mu       sync.Mutex
	startErr error
	starts   int
	filters  []Filter
	current  chan DiscoveryEvent
	streams  int
	scanning bool
}

func (a *fakeAdapter) StartDiscovery(_ context.Context, filter Filter) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.starts++
	a.filters = append(a.filters, filter)
	if a.startErr != nil {
		return a.startErr
	}
	a.scanning = true
	return nil
}

func (a *fakeAdapter) Events(_ context.Context) <-chan DiscoveryEvent {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.current = make(chan DiscoveryEvent, 64)
	a.streams++
	return a.current
}

func (a *fakeAdapter) IsScanning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.scanning
}

func (a *fakeAdapter) setStartErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.startErr = err
}

func (a *fakeAdapter) startCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.starts
}

func (a *fakeAdapter) emit(kind DiscoveryKind, p Peripheral) {
	a.mu.Lock()
	ch := a.current
	a.mu.Unlock()
	ch <- DiscoveryEvent{Kind: kind, Peripheral: p}
}

// fakePeripheral is a device with an optional power characteristic.
type fakePeripheral struct {
	address string

	mu      sync.Mutex
	name    string
	char    *fakeCharacteristic
	charErr error
}

func newFakePeripheral(address, name string, value ...byte) *fakePeripheral {
	return &fakePeripheral{
		address: address,
		name:    name,
		char:    &fakeCharacteristic{value: value},
	}
}

func (p *fakePeripheral) Address() string { return p.address }

func (p *fakePeripheral) LocalName(_ context.Context) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.name, p.name != ""
}

func (p *fakePeripheral) setName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.name = name
}

func (p *fakePeripheral) Characteristic(_ context.Context, id uuid.UUID) (Characteristic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.charErr != nil {
		return nil, p.charErr
	}
	if p.char == nil || id != power.CharacteristicUUID {
		return nil, ErrCharacteristicNotFound
	}
	return p.char, nil
}

// fakeCharacteristic records reads and writes.
type fakeCharacteristic struct {
	mu       sync.Mutex
	value    []byte
	readErr  error
	writeErr error
	block    bool
	reads    int
	writes   [][]byte
	onWrite  func([]byte)
}

func (c *fakeCharacteristic) Read(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	c.reads++
	block := c.block
	value := append([]byte(nil), c.value...)
	err := c.readErr
	c.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return value, err
}

func (c *fakeCharacteristic) WriteWithoutResponse(_ context.Context, value []byte) error {
	c.mu.Lock()
	err := c.writeErr
	if err == nil {
		c.writes = append(c.writes, append([]byte(nil), value...))
	}
	onWrite := c.onWrite
	c.mu.Unlock()

	if err == nil && onWrite != nil {
		onWrite(value)
	}
	return err
}

func (c *fakeCharacteristic) set(value ...byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = value
}

func (c *fakeCharacteristic) setReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *fakeCharacteristic) readCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reads
}

func (c *fakeCharacteristic) written() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.writes...)
}

// recorder collects notifications.
type recorder struct {
	mu    sync.Mutex
	notes []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) ofType(t EventType) []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Notification
	for _, n := range r.notes {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
