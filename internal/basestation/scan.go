package basestation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ScanConfig configures a Scanner.
type ScanConfig struct {
	// Service is the characteristic UUID devices must advertise.
	Service uuid.UUID

	// Window is the discovery window passed to the adapter.
	Window time.Duration

	// CallTimeout bounds the StartDiscovery and LocalName adapter calls.
	CallTimeout time.Duration
}

// Scanner restarts discovery and keeps the store current with what the
// adapter reports.
type Scanner struct {
	adapter Adapter
	store   *Store
	cfg     ScanConfig
	logger  Logger
	notify  func(Notification)

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScanner creates a scanner writing into store.
func NewScanner(adapter Adapter, store *Store, cfg ScanConfig) *Scanner {
	return &Scanner{
		adapter: adapter,
		store:   store,
		cfg:     cfg,
		logger:  noopLogger{},
		notify:  func(Notification) {},
	}
}

// SetLogger sets the logger for the scanner.
func (s *Scanner) SetLogger(logger Logger) {
	s.logger = logger
}

// Restart clears the store and starts a new discovery window.
//
// The event consumer of any previous scan is cancelled first. If the adapter
// cannot start discovery the store's error slot is set to ErrorStartFailed
// and the error is returned; no events are consumed in that case. On success
// the error slot is cleared and events are consumed in the background until
// ctx is cancelled or the next Restart.
func (s *Scanner) Restart(ctx context.Context) error {
	s.supersede()
	gen := s.store.Clear()

	callCtx, cancel := s.callContext(ctx)
	err := s.adapter.StartDiscovery(callCtx, Filter{
		Services: []uuid.UUID{s.cfg.Service},
		Timeout:  s.cfg.Window,
	})
	cancel()

	if err != nil {
		s.store.failScan(gen)
		s.logger.Error("failed to start discovery", "error", err)
		s.notify(Notification{Type: EventScanFailed, Error: err.Error(), Timestamp: time.Now()})
		return fmt.Errorf("%w: %w", ErrScanStart, err)
	}

	if !s.store.beginScan(gen) {
		return nil
	}
	s.logger.Info("discovery started", "window", s.cfg.Window, "generation", gen)
	s.notify(Notification{Type: EventScanStarted, Timestamp: time.Now()})

	consumeCtx, stop := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = stop
	s.mu.Unlock()

	events := s.adapter.Events(consumeCtx)
	s.wg.Add(1)
	go s.consume(consumeCtx, gen, events)

	return nil
}

// Stop cancels the active event consumer and waits for it to exit.
func (s *Scanner) Stop() {
	s.supersede()
	s.wg.Wait()
}

func (s *Scanner) supersede() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scanner) consume(ctx context.Context, gen uint64, events <-chan DiscoveryEvent) {
	defer s.wg.Done()

	var windowC <-chan time.Time
	if s.cfg.Window > 0 {
		timer := time.NewTimer(s.cfg.Window)
		defer timer.Stop()
		windowC = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-windowC:
			windowC = nil
			if s.store.endScan(gen) {
				s.logger.Info("discovery window closed", "devices", s.store.Len())
				s.notify(Notification{Type: EventScanFinished, Timestamp: time.Now()})
			}
			if events == nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				events = nil
				if windowC == nil {
					return
				}
				continue
			}
			s.handleEvent(ctx, gen, ev)
		}
	}
}

func (s *Scanner) handleEvent(ctx context.Context, gen uint64, ev DiscoveryEvent) {
	if ev.Peripheral == nil {
		return
	}

	switch ev.Kind {
	case DiscoveryDiscovered:
		address := ev.Peripheral.Address()
		name := s.lookupName(ctx, ev.Peripheral)

		created, current := s.store.upsertIfCurrent(gen, address, name, ev.Peripheral)
		if !current {
			s.logger.Debug("ignoring event from superseded scan", "address", address)
			return
		}
		if created {
			s.logger.Info("base station discovered", "address", address, "name", name)
			s.notify(Notification{
				Type:      EventDeviceDiscovered,
				Address:   address,
				Name:      name,
				Timestamp: time.Now(),
			})
		}

	case DiscoveryUpdated:
		address := ev.Peripheral.Address()
		name := s.lookupName(ctx, ev.Peripheral)
		if name == "" {
			return
		}
		if s.store.UpdateName(address, name) {
			s.logger.Debug("base station renamed", "address", address, "name", name)
			s.notify(Notification{
				Type:      EventDeviceRenamed,
				Address:   address,
				Name:      name,
				Timestamp: time.Now(),
			})
		}

	default:
		// Other event kinds carry nothing the store tracks.
	}
}

func (s *Scanner) lookupName(ctx context.Context, p Peripheral) string {
	callCtx, cancel := s.callContext(ctx)
	defer cancel()

	name, ok := p.LocalName(callCtx)
	if !ok {
		return ""
	}
	return name
}

func (s *Scanner) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.CallTimeout)
}
