package basestation

import (
	"sort"
	"sync"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Store is the single source of truth for discovered devices.
//
// Device entries and peripheral handles are kept in two maps that are always
// inserted and cleared together, so every address in one has a counterpart
// in the other. Each method takes the lock for one logical read or write and
// never calls into the adapter.
//
// Every Clear advances the scan generation. Discovery results are only
// accepted for the current generation, so events from a superseded scan
// cannot repopulate a freshly cleared store.
//
// All public methods are thread-safe.
type Store struct {
	mu         sync.Mutex
	devices    map[string]Device
	handles    map[string]Peripheral
	scanning   bool
	errKind    ErrorKind
	generation uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		devices: make(map[string]Device),
		handles: make(map[string]Peripheral),
	}
}

// Clear removes every device and handle, resets the scanning flag and the
// error slot, and returns the new scan generation.
func (s *Store) Clear() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.devices = make(map[string]Device)
	s.handles = make(map[string]Peripheral)
	s.scanning = false
	s.errKind = ErrorNone
	s.generation++
	return s.generation
}

// Generation returns the current scan generation.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// UpsertDevice records a discovered device. A new device starts with an
// unknown power state. For a known device only the handle and, when name is
// not empty, the name are refreshed; the power state is left untouched.
// It reports whether the device was newly created.
func (s *Store) UpsertDevice(address, name string, handle Peripheral) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(address, name, handle)
}

// upsertIfCurrent is UpsertDevice restricted to scan generation gen. The
// second result is false when gen has been superseded and nothing was
// written.
func (s *Store) upsertIfCurrent(gen uint64, address, name string, handle Peripheral) (created, current bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false, false
	}
	return s.upsertLocked(address, name, handle), true
}

func (s *Store) upsertLocked(address, name string, handle Peripheral) bool {
	d, exists := s.devices[address]
	if !exists {
		d = Device{Address: address, PowerState: power.StateUnknown}
	}
	if name != "" {
		d.Name = name
	}
	s.devices[address] = d
	s.handles[address] = handle
	return !exists
}

// UpdateName sets the name of a known device. It is a no-op for an unknown
// address and reports whether the stored name changed.
func (s *Store) UpdateName(address, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[address]
	if !ok || d.Name == name {
		return false
	}
	d.Name = name
	s.devices[address] = d
	return true
}

// UpdatePowerState sets the power state of a known device and returns the
// previous state. It is a no-op for an unknown address, reported by ok.
func (s *Store) UpdatePowerState(address string, state power.State) (previous power.State, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[address]
	if !ok {
		return power.StateUnknown, false
	}
	previous = d.PowerState
	d.PowerState = state
	s.devices[address] = d
	return previous, true
}

// Snapshot returns a copy of all devices sorted by address together with the
// scanning flag and error slot.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	devices := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		devices = append(devices, d)
	}
	snap := Snapshot{Scanning: s.scanning, Error: s.errKind}
	s.mu.Unlock()

	sort.Slice(devices, func(i, j int) bool {
		return devices[i].Address < devices[j].Address
	})
	snap.Devices = devices
	return snap
}

// Handles returns a copy of the address to handle map.
func (s *Store) Handles() map[string]Peripheral {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := make(map[string]Peripheral, len(s.handles))
	for addr, h := range s.handles {
		handles[addr] = h
	}
	return handles
}

// Handle returns the peripheral handle for address.
func (s *Store) Handle(address string) (Peripheral, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[address]
	return h, ok
}

// Len returns the number of known devices.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.devices)
}

// SetError overwrites the error slot. ErrorNone clears it.
func (s *Store) SetError(kind ErrorKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errKind = kind
}

// Error returns the current error slot value.
func (s *Store) Error() ErrorKind {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errKind
}

// IsScanning reports whether a discovery window is open.
func (s *Store) IsScanning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanning
}

// SetScanning sets the scanning flag.
func (s *Store) SetScanning(scanning bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanning = scanning
}

// beginScan marks generation gen as successfully started: the error slot is
// cleared and scanning is set. It reports false if gen is stale.
func (s *Store) beginScan(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.errKind = ErrorNone
	s.scanning = true
	return true
}

// failScan records a failed start for generation gen.
func (s *Store) failScan(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.errKind = ErrorStartFailed
	s.scanning = false
	return true
}

// endScan clears the scanning flag if gen is still current.
func (s *Store) endScan(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.scanning = false
	return true
}
