// Package automation runs cron-driven power schedules against the engine.
//
// A Schedule names a cron expression, a power target and an optional list of
// addresses. When it fires, the Scheduler resolves the targeted devices from
// the engine snapshot and enqueues one ChangePowerState command per device
// that can make the transition.
//
// Architecture:
//
//	┌─────────────────────────────────────────────────────┐
//	│              Scheduler (scheduler.go)               │
//	│  robfig/cron entries, one per Schedule              │
//	│        │                                            │
//	│        ▼                                            │
//	│  ┌──────────────────────────────────────────────┐   │
//	│  │  Execution Pipeline (Trigger)                │   │
//	│  │  1. Snapshot the engine                      │   │
//	│  │  2. Resolve addresses (empty = all known)    │   │
//	│  │  3. Skip absent devices and disallowed moves │   │
//	│  │  4. Enqueue ChangePowerState per device      │   │
//	│  │  5. Keep the last Execution per schedule     │   │
//	│  └──────────────────────────────────────────────┘   │
//	└─────────────────────────────────────────────────────┘
//
// # Thread Safety
//
// Scheduler is safe for concurrent use from multiple goroutines.
//
// # Usage
//
//	schedules, err := automation.FromConfig(cfg.Schedules)
//	sched, err := automation.NewScheduler(engine, schedules, log)
//	sched.Start(ctx)
//	defer sched.Stop()
package automation
