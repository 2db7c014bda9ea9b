package audit

import (
	"context"
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
)

// writeTimeout bounds each database write made from Notify.
const writeTimeout = 2 * time.Second

// pruneInterval is how often Run applies the retention policy.
const pruneInterval = time.Hour

// Logger is the logging interface used by the recorder.
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

// Recorder writes engine notifications to a Repository. It implements
// basestation.Observer.
type Recorder struct {
	repo      Repository
	retention time.Duration
	logger    Logger
	now       func() time.Time
}

// NewRecorder creates a recorder. A retention of zero keeps every entry.
func NewRecorder(repo Repository, retention time.Duration, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, retention: retention, logger: logger, now: time.Now}
}

// Notify implements basestation.Observer.
func (r *Recorder) Notify(n basestation.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	ts := n.Timestamp
	if ts.IsZero() {
		ts = r.now()
	}

	var err error
	switch n.Type {
	case basestation.EventCommandExecuted:
		if n.Command == nil {
			return
		}
		err = r.repo.Record(ctx, &Entry{
			ID:         n.Command.ID,
			Kind:       string(n.Command.Kind),
			Address:    n.Command.Address,
			Target:     string(n.Command.Target),
			Source:     n.Command.Source,
			Outcome:    string(n.Outcome),
			Error:      n.Error,
			IssuedAt:   n.Command.IssuedAt,
			ExecutedAt: ts,
		})
	case basestation.EventDeviceDiscovered, basestation.EventDeviceRenamed:
		err = r.repo.TouchSighting(ctx, Sighting{Address: n.Address, Name: n.Name, LastSeen: ts})
	case basestation.EventPowerStateChanged:
		err = r.repo.TouchSighting(ctx, Sighting{Address: n.Address, LastState: string(n.State), LastSeen: ts})
	default:
		return
	}
	if err != nil {
		r.logger.Warn("audit write failed", "type", n.Type, "error", err)
	}
}

// Run prunes expired command log entries once at start and then hourly
// until ctx is cancelled. It returns immediately when retention is zero.
func (r *Recorder) Run(ctx context.Context) {
	if r.retention <= 0 {
		return
	}

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		r.prune(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (r *Recorder) prune(ctx context.Context) {
	n, err := r.repo.Prune(ctx, r.now().Add(-r.retention))
	if err != nil {
		r.logger.Warn("command log prune failed", "error", err)
		return
	}
	if n > 0 {
		r.logger.Info("command log pruned", "removed", n)
	}
}
