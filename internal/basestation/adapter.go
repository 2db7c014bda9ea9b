package basestation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Adapter is the wireless transport the engine drives. Implementations live
// in internal/bluetooth.
type Adapter interface {
	// StartDiscovery begins a discovery window limited to devices that
	// advertise one of filter.Services. The adapter stops discovering on
	// its own once filter.Timeout has elapsed.
	StartDiscovery(ctx context.Context, filter Filter) error

	// Events returns the live discovery event stream. The channel is closed
	// when ctx is cancelled. A new call supersedes earlier streams.
	Events(ctx context.Context) <-chan DiscoveryEvent

	// IsScanning reports whether a discovery window is currently open.
	IsScanning() bool
}

// Peripheral is a handle to a discovered device. The adapter owns the
// underlying transport object; the store only keeps the handle for lookups.
type Peripheral interface {
	// Address returns the stable device address used as the store key.
	Address() string

	// LocalName returns the advertised name, if any.
	LocalName(ctx context.Context) (string, bool)

	// Characteristic locates a GATT characteristic by UUID. It returns
	// ErrCharacteristicNotFound when the device does not expose it.
	Characteristic(ctx context.Context, id uuid.UUID) (Characteristic, error)
}

// Characteristic is a readable and writable data point on a peripheral.
type Characteristic interface {
	Read(ctx context.Context) ([]byte, error)

	// WriteWithoutResponse issues a fire-and-forget write. A nil error only
	// means the write was handed to the radio.
	WriteWithoutResponse(ctx context.Context, value []byte) error
}

// Filter restricts a discovery window.
type Filter struct {
	Services []uuid.UUID
	Timeout  time.Duration
}

// DiscoveryKind classifies a discovery event.
type DiscoveryKind int

// Discovery event kinds.
const (
	DiscoveryOther DiscoveryKind = iota
	DiscoveryDiscovered
	DiscoveryUpdated
)

// String returns the event kind name.
func (k DiscoveryKind) String() string {
	switch k {
	case DiscoveryDiscovered:
		return "discovered"
	case DiscoveryUpdated:
		return "updated"
	default:
		return "other"
	}
}

// DiscoveryEvent is one item of an adapter's event stream.
type DiscoveryEvent struct {
	Kind       DiscoveryKind
	Peripheral Peripheral
}
