package basestation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueSize is the command queue capacity used when none is set.
const DefaultQueueSize = 16

// DispatchConfig configures a Dispatcher.
type DispatchConfig struct {
	// Service is the power characteristic UUID.
	Service uuid.UUID

	// QueueSize is the bounded queue capacity.
	QueueSize int

	// WriteTimeout bounds the characteristic lookup and write of a power
	// command.
	WriteTimeout time.Duration
}

// scanRestarter is the part of Scanner the dispatcher depends on.
type scanRestarter interface {
	Restart(ctx context.Context) error
}

// Dispatcher executes operator commands strictly in the order they were
// enqueued, one at a time.
type Dispatcher struct {
	store   *Store
	scanner scanRestarter
	cfg     DispatchConfig
	logger  Logger
	notify  func(Notification)

	queue  chan Command
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher creates a dispatcher with a bounded queue.
func NewDispatcher(store *Store, scanner scanRestarter, cfg DispatchConfig) *Dispatcher {
	if cfg.QueueSize < 1 {
		cfg.QueueSize = DefaultQueueSize
	}
	return &Dispatcher{
		store:   store,
		scanner: scanner,
		cfg:     cfg,
		logger:  noopLogger{},
		notify:  func(Notification) {},
		queue:   make(chan Command, cfg.QueueSize),
	}
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// Enqueue adds cmd to the queue without blocking. It returns false if the
// queue is full or the dispatcher has been closed.
func (d *Dispatcher) Enqueue(cmd Command) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return false
	}
	select {
	case d.queue <- cmd:
		return true
	default:
		d.logger.Warn("command queue full, dropping command", "id", cmd.ID, "kind", cmd.Kind)
		return false
	}
}

// Pending returns the number of queued commands.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

// Close stops accepting new commands. Commands already queued are discarded
// once Run returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
}

// Run executes queued commands until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-d.queue:
			d.Execute(ctx, cmd)
		}
	}
}

// Execute runs a single command and reports its outcome.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) error {
	var err error
	switch cmd.Kind {
	case CommandRestartScan:
		err = d.scanner.Restart(ctx)
	case CommandChangePowerState:
		err = d.changePowerState(ctx, cmd)
	default:
		err = fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Kind)
	}

	n := Notification{
		Type:      EventCommandExecuted,
		Address:   cmd.Address,
		Command:   &cmd,
		Outcome:   OutcomeOK,
		Timestamp: time.Now(),
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrDeviceNotFound):
		n.Outcome = OutcomeDropped
		n.Error = err.Error()
	default:
		n.Outcome = OutcomeFailed
		n.Error = err.Error()
	}
	d.notify(n)

	return err
}

// changePowerState writes the encoded target to the device. The store is
// never modified here; the poller observes the result.
func (d *Dispatcher) changePowerState(ctx context.Context, cmd Command) error {
	if !cmd.Target.Valid() {
		d.logger.Warn("rejecting power command", "address", cmd.Address, "target", cmd.Target)
		return fmt.Errorf("%w: %q", ErrInvalidTarget, cmd.Target)
	}

	handle, ok := d.store.Handle(cmd.Address)
	if !ok {
		d.logger.Debug("dropping power command for unknown device", "address", cmd.Address)
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, cmd.Address)
	}

	if d.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.WriteTimeout)
		defer cancel()
	}

	char, err := handle.Characteristic(ctx, d.cfg.Service)
	if err != nil {
		d.logger.Warn("power characteristic lookup failed", "address", cmd.Address, "error", err)
		return fmt.Errorf("locating power characteristic: %w", err)
	}

	if err := char.WriteWithoutResponse(ctx, []byte{cmd.Target.Byte()}); err != nil {
		d.logger.Warn("power state write failed", "address", cmd.Address, "target", cmd.Target, "error", err)
		return fmt.Errorf("writing power state: %w", err)
	}

	d.logger.Info("power state command sent", "address", cmd.Address, "target", cmd.Target)
	return nil
}
