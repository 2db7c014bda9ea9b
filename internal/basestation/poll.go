package basestation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// PollConfig configures a Poller.
type PollConfig struct {
	// Service is the power characteristic UUID.
	Service uuid.UUID

	// Interval between poll rounds.
	Interval time.Duration

	// ReadTimeout bounds the characteristic lookup and read of one device.
	ReadTimeout time.Duration

	// Concurrency limits how many devices are read in parallel. Values
	// below 1 read sequentially.
	Concurrency int

	// Breaker isolates devices that keep failing. A zero MaxFailures
	// disables it.
	Breaker BreakerConfig
}

// BreakerConfig configures the per-device read breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failed reads that opens the
	// breaker for a device.
	MaxFailures uint32

	// OpenTimeout is how long reads are skipped before a probe is allowed.
	OpenTimeout time.Duration
}

// Poller keeps the power state of every known device fresh. It is the only
// writer of Device.PowerState.
type Poller struct {
	store    *Store
	cfg      PollConfig
	logger   Logger
	notify   func(Notification)
	breakers *breakerSet
}

// NewPoller creates a poller reading devices from store.
func NewPoller(store *Store, cfg PollConfig) *Poller {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	p := &Poller{
		store:  store,
		cfg:    cfg,
		logger: noopLogger{},
		notify: func(Notification) {},
	}
	p.breakers = newBreakerSet(cfg.Breaker, p.logf)
	return p
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

func (p *Poller) logf(msg string, args ...any) {
	p.logger.Warn(msg, args...)
}

// Run polls on every interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce reads every device currently in the store once. Failures are
// logged and skipped per device.
func (p *Poller) PollOnce(ctx context.Context) {
	handles := p.store.Handles()
	if len(handles) == 0 {
		return
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for address, handle := range handles {
		g.Go(func() error {
			p.pollDevice(ctx, address, handle)
			return nil
		})
	}
	_ = g.Wait()

	p.breakers.retain(handles)
}

func (p *Poller) pollDevice(ctx context.Context, address string, handle Peripheral) {
	state, err := p.breakers.execute(address, func() (power.State, error) {
		return p.read(ctx, handle)
	})
	if err != nil {
		p.logger.Debug("power state read failed", "address", address, "error", err)
		return
	}

	if !state.Known() {
		p.logger.Debug("ignoring unrecognised power payload", "address", address)
		return
	}

	previous, ok := p.store.UpdatePowerState(address, state)
	if !ok || previous == state {
		return
	}
	p.logger.Info("power state changed", "address", address, "from", previous, "to", state)
	p.notify(Notification{
		Type:      EventPowerStateChanged,
		Address:   address,
		State:     state,
		Previous:  previous,
		Timestamp: time.Now(),
	})
}

func (p *Poller) read(ctx context.Context, handle Peripheral) (power.State, error) {
	if p.cfg.ReadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.ReadTimeout)
		defer cancel()
	}

	char, err := handle.Characteristic(ctx, p.cfg.Service)
	if err != nil {
		return power.StateUnknown, err
	}
	payload, err := char.Read(ctx)
	if err != nil {
		return power.StateUnknown, err
	}
	return power.Decode(payload), nil
}

// breakerSet holds one circuit breaker per device address.
type breakerSet struct {
	cfg  BreakerConfig
	warn func(msg string, args ...any)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[power.State]
}

func newBreakerSet(cfg BreakerConfig, warn func(string, ...any)) *breakerSet {
	return &breakerSet{
		cfg:      cfg,
		warn:     warn,
		breakers: make(map[string]*gobreaker.CircuitBreaker[power.State]),
	}
}

func (b *breakerSet) execute(address string, read func() (power.State, error)) (power.State, error) {
	if b.cfg.MaxFailures == 0 {
		return read()
	}
	return b.get(address).Execute(read)
}

func (b *breakerSet) get(address string) *gobreaker.CircuitBreaker[power.State] {
	b.mu.Lock()
	defer b.mu.Unlock()

	if cb, ok := b.breakers[address]; ok {
		return cb
	}

	maxFailures := b.cfg.MaxFailures
	cb := gobreaker.NewCircuitBreaker[power.State](gobreaker.Settings{
		Name:        "poll:" + address,
		MaxRequests: 1,
		Timeout:     b.cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.warn("read breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	b.breakers[address] = cb
	return cb
}

// retain drops breakers for devices that are no longer known.
func (b *breakerSet) retain(handles map[string]Peripheral) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for address := range b.breakers {
		if _, ok := handles[address]; !ok {
			delete(b.breakers, address)
		}
	}
}
