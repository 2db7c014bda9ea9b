package automation

import (
	"time"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

// Schedule is a recurring power command.
type Schedule struct {
	Name string `json:"name"`

	// Cron is a five-field cron expression or a descriptor such as "@daily".
	Cron string `json:"cron"`

	Target power.Target `json:"target"`

	// Addresses limits the schedule to these devices. Empty targets every
	// device in the snapshot at fire time.
	Addresses []string `json:"addresses,omitempty"`
}

// Source returns the command source recorded for this schedule.
func (s Schedule) Source() string {
	return SourcePrefix + s.Name
}

// SourcePrefix prefixes the command source of scheduled commands.
const SourcePrefix = "schedule:"

// SkipReason explains why a targeted device got no command.
type SkipReason string

const (
	SkipNotFound   SkipReason = "not_found"   // address not in the snapshot
	SkipNotAllowed SkipReason = "not_allowed" // current state does not allow the target
	SkipQueueFull  SkipReason = "queue_full"  // engine rejected the command
)

// Skip records one device a schedule left alone.
type Skip struct {
	Address string      `json:"address"`
	State   power.State `json:"state,omitempty"`
	Reason  SkipReason  `json:"reason"`
}

// Execution is the result of firing a schedule once.
type Execution struct {
	Schedule string    `json:"schedule"`
	Trigger  string    `json:"trigger"` // cron or manual
	FiredAt  time.Time `json:"fired_at"`
	Commands []string  `json:"commands"` // enqueued command ids
	Skipped  []Skip    `json:"skipped,omitempty"`
}

// Trigger types.
const (
	TriggerCron   = "cron"
	TriggerManual = "manual"
)

// Status describes a schedule and its next and last runs.
type Status struct {
	Schedule
	Next time.Time  `json:"next"`
	Last *Execution `json:"last,omitempty"`
}
