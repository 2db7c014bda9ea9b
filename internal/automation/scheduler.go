package automation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
)

// Engine is the subset of *basestation.Engine the scheduler needs.
type Engine interface {
	Snapshot() basestation.Snapshot
	Enqueue(cmd basestation.Command) bool
}

// Logger is the logging interface used by the scheduler.
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

// Scheduler fires power schedules on their cron expressions.
//
// Thread Safety: all methods are safe for concurrent use.
type Scheduler struct {
	engine Engine
	logger Logger
	cron   *cron.Cron
	now    func() time.Time

	mu        sync.Mutex
	schedules map[string]Schedule
	entries   map[string]cron.EntryID
	last      map[string]*Execution
	started   bool
}

// NewScheduler creates a scheduler for the given schedules. Schedules are
// validated and registered immediately; nothing fires until Start.
//
// Parameters:
//   - engine: receives the enqueued power commands
//   - schedules: validated schedules, typically from FromConfig
//   - logger: may be nil
//
// Returns:
//   - *Scheduler: ready to start
//   - error: if a schedule is invalid or names collide
func NewScheduler(engine Engine, schedules []Schedule, logger Logger) (*Scheduler, error) {
	if engine == nil {
		return nil, fmt.Errorf("automation: engine is required")
	}
	if logger == nil {
		logger = noopLogger{}
	}

	s := &Scheduler{
		engine:    engine,
		logger:    logger,
		cron:      cron.New(cron.WithParser(cronParser)),
		now:       time.Now,
		schedules: make(map[string]Schedule, len(schedules)),
		entries:   make(map[string]cron.EntryID, len(schedules)),
		last:      make(map[string]*Execution, len(schedules)),
	}

	for i := range schedules {
		if err := s.add(schedules[i]); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) add(sched Schedule) error {
	if err := ValidateSchedule(&sched); err != nil {
		return err
	}
	if _, exists := s.schedules[sched.Name]; exists {
		return fmt.Errorf("%w: %q", ErrScheduleExists, sched.Name)
	}

	name := sched.Name
	id, err := s.cron.AddFunc(sched.Cron, func() {
		exec, err := s.Trigger(name, TriggerCron)
		if err != nil {
			s.logger.Warn("scheduled power command failed", "schedule", name, "error", err)
			return
		}
		s.logger.Info("schedule fired",
			"schedule", name,
			"commands", len(exec.Commands),
			"skipped", len(exec.Skipped),
		)
	})
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidCron, sched.Cron, err) //nolint:errorlint // cron error is context only
	}

	s.schedules[name] = sched
	s.entries[name] = id
	return nil
}

// Start begins firing schedules. It is a no-op when already started. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.cron.Start()
	s.started = true
	s.logger.Info("scheduler started", "schedules", len(s.schedules))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop halts the cron loop and waits for running triggers to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Trigger fires the named schedule once.
//
// Every targeted device present in the snapshot whose state allows the
// target gets one ChangePowerState command. The rest are reported in
// Execution.Skipped.
//
// Returns:
//   - *Execution: what was enqueued and skipped
//   - error: ErrScheduleNotFound when no schedule has that name
func (s *Scheduler) Trigger(name, trigger string) (*Execution, error) {
	s.mu.Lock()
	sched, ok := s.schedules[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScheduleNotFound, name)
	}

	exec := &Execution{
		Schedule: name,
		Trigger:  trigger,
		FiredAt:  s.now().UTC(),
		Commands: []string{},
	}

	snap := s.engine.Snapshot()
	for _, addr := range resolveAddresses(sched, snap) {
		dev, found := snap.Device(addr)
		switch {
		case !found:
			exec.Skipped = append(exec.Skipped, Skip{Address: addr, Reason: SkipNotFound})
			continue
		case !dev.PowerState.Allows(sched.Target):
			exec.Skipped = append(exec.Skipped, Skip{Address: addr, State: dev.PowerState, Reason: SkipNotAllowed})
			continue
		}

		cmd := basestation.ChangePowerState(addr, sched.Target).WithSource(sched.Source())
		cmd.ID = basestation.NewCommandID()
		cmd.IssuedAt = exec.FiredAt
		if !s.engine.Enqueue(cmd) {
			exec.Skipped = append(exec.Skipped, Skip{Address: addr, State: dev.PowerState, Reason: SkipQueueFull})
			continue
		}
		exec.Commands = append(exec.Commands, cmd.ID)
		s.logger.Debug("scheduled command enqueued",
			"schedule", name,
			"id", cmd.ID,
			"address", addr,
			"target", sched.Target,
		)
	}

	s.mu.Lock()
	s.last[name] = exec
	s.mu.Unlock()

	return exec, nil
}

// resolveAddresses returns the schedule's addresses, or every device in the
// snapshot when the schedule names none.
func resolveAddresses(sched Schedule, snap basestation.Snapshot) []string {
	if len(sched.Addresses) > 0 {
		return sched.Addresses
	}
	addrs := make([]string, 0, len(snap.Devices))
	for _, d := range snap.Devices {
		addrs = append(addrs, d.Address)
	}
	return addrs
}

// List returns every schedule sorted by name with its next fire time and
// last execution. Next is zero while the scheduler is stopped.
func (s *Scheduler) List() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.schedules))
	for name, sched := range s.schedules {
		st := Status{Schedule: sched}
		if s.started {
			st.Next = s.cron.Entry(s.entries[name]).Next
		}
		if last := s.last[name]; last != nil {
			copied := *last
			st.Last = &copied
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
