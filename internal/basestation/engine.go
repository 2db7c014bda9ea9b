package basestation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Logger defines the logging interface used by the engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Defaults used when Options leaves a field zero.
const (
	DefaultScanWindow   = 10 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
	DefaultCallTimeout  = 5 * time.Second
)

// Options configures an Engine.
type Options struct {
	// Adapter is the wireless transport. Required.
	Adapter Adapter

	// Service is the power characteristic UUID. Defaults to
	// power.CharacteristicUUID.
	Service uuid.UUID

	ScanWindow      time.Duration
	ScanCallTimeout time.Duration
	ScanOnStart     bool

	PollInterval    time.Duration
	ReadTimeout     time.Duration
	PollConcurrency int
	Breaker         BreakerConfig

	QueueSize    int
	WriteTimeout time.Duration

	// NotifyBuffer is the capacity of the notification queue feeding
	// observers.
	NotifyBuffer int

	Observers []Observer
	Logger    Logger
}

// Engine ties the store and its three activities together and is the only
// surface front ends use.
type Engine struct {
	store      *Store
	scanner    *Scanner
	poller     *Poller
	dispatcher *Dispatcher
	notifier   *notifier
	adapter    Adapter
	logger     Logger
	scanOnBoot bool

	mu       sync.Mutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates an engine. It does not touch the adapter until Start.
func New(opts Options) (*Engine, error) {
	if opts.Adapter == nil {
		return nil, ErrNoAdapter
	}
	if opts.Service == uuid.Nil {
		opts.Service = power.CharacteristicUUID
	}
	if opts.ScanWindow <= 0 {
		opts.ScanWindow = DefaultScanWindow
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.ScanCallTimeout <= 0 {
		opts.ScanCallTimeout = DefaultCallTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultCallTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultCallTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	store := NewStore()
	n := newNotifier(opts.NotifyBuffer, logger)
	for _, o := range opts.Observers {
		n.add(o)
	}

	scanner := NewScanner(opts.Adapter, store, ScanConfig{
		Service:     opts.Service,
		Window:      opts.ScanWindow,
		CallTimeout: opts.ScanCallTimeout,
	})
	scanner.SetLogger(logger)
	scanner.notify = n.publish

	poller := NewPoller(store, PollConfig{
		Service:     opts.Service,
		Interval:    opts.PollInterval,
		ReadTimeout: opts.ReadTimeout,
		Concurrency: opts.PollConcurrency,
		Breaker:     opts.Breaker,
	})
	poller.SetLogger(logger)
	poller.notify = n.publish

	dispatcher := NewDispatcher(store, scanner, DispatchConfig{
		Service:      opts.Service,
		QueueSize:    opts.QueueSize,
		WriteTimeout: opts.WriteTimeout,
	})
	dispatcher.SetLogger(logger)
	dispatcher.notify = n.publish

	return &Engine{
		store:      store,
		scanner:    scanner,
		poller:     poller,
		dispatcher: dispatcher,
		notifier:   n,
		adapter:    opts.Adapter,
		logger:     logger,
		scanOnBoot: opts.ScanOnStart,
	}, nil
}

// AddObserver registers an observer for engine notifications.
func (e *Engine) AddObserver(o Observer) {
	e.notifier.add(o)
}

// Start launches the poll loop, the dispatcher and notification delivery.
// When ScanOnStart is set a RestartScan command is queued immediately.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.started = true

	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		e.notifier.run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.poller.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.dispatcher.Run(runCtx)
	}()

	e.logger.Info("engine started")

	if e.scanOnBoot {
		e.Enqueue(RestartScan().WithSource("startup"))
	}
	return nil
}

// Stop closes the command queue, cancels all activities and waits for them
// to exit. It is safe to call more than once.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.dispatcher.Close()

		e.mu.Lock()
		cancel := e.cancel
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}

		e.wg.Wait()
		e.scanner.Stop()
		e.logger.Info("engine stopped")
	})
}

// Snapshot returns a copy of the current state. It never blocks on the
// adapter.
func (e *Engine) Snapshot() Snapshot {
	return e.store.Snapshot()
}

// Enqueue submits a command without blocking. Commands without an ID get one.
// It returns false if the queue is full or the engine is stopped; front ends
// may ignore the result.
func (e *Engine) Enqueue(cmd Command) bool {
	if cmd.ID == "" {
		cmd.ID = NewCommandID()
	}
	if cmd.IssuedAt.IsZero() {
		cmd.IssuedAt = time.Now()
	}
	return e.dispatcher.Enqueue(cmd)
}

// HealthCheck reports whether the engine is running.
func (e *Engine) HealthCheck(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}
	return nil
}

// AdapterScanning reports the adapter's own view of the discovery window.
func (e *Engine) AdapterScanning() bool {
	return e.adapter.IsScanning()
}

// notifier delivers notifications to observers from one goroutine. Publishing
// never blocks; when the buffer is full the notification is dropped.
type notifier struct {
	ch     chan Notification
	logger Logger

	mu        sync.RWMutex
	observers []Observer
}

const defaultNotifyBuffer = 256

func newNotifier(size int, logger Logger) *notifier {
	if size < 1 {
		size = defaultNotifyBuffer
	}
	return &notifier{
		ch:     make(chan Notification, size),
		logger: logger,
	}
}

func (n *notifier) add(o Observer) {
	if o == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, o)
}

func (n *notifier) publish(note Notification) {
	select {
	case n.ch <- note:
	default:
		n.logger.Debug("notification buffer full, dropping", "type", note.Type)
	}
}

func (n *notifier) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case note := <-n.ch:
			n.deliver(note)
		}
	}
}

func (n *notifier) deliver(note Notification) {
	n.mu.RLock()
	observers := make([]Observer, len(n.observers))
	copy(observers, n.observers)
	n.mu.RUnlock()

	for _, o := range observers {
		n.safeNotify(o, note)
	}
}

func (n *notifier) safeNotify(o Observer, note Notification) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("observer panicked", "type", note.Type, "panic", r)
		}
	}()
	o.Notify(note)
}
