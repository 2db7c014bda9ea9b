// Package basestation implements the device-state synchronisation engine for
// lighthouse base stations.
//
// The engine owns a single Store and runs three activities against it:
//   - the Scanner, which restarts discovery and ingests discovery events
//   - the Poller, which periodically reads every known device's power
//     characteristic
//   - the Dispatcher, which executes operator commands one at a time in
//     arrival order
//
// The Store is guarded by one mutex that is held only for a single logical
// read or write, never across adapter I/O. Front ends use Engine.Snapshot
// for a copy of the current state and Engine.Enqueue to submit commands;
// neither call blocks on the radio.
//
// Power state has exactly one writer, the Poller. Discovery never claims to
// know a device's power state, and a command's success is only ever observed
// through a later poll.
//
// Failure handling:
//   - A failed discovery start is stored in the single error slot and is the
//     only failure a front end can see.
//   - Per-device read and write failures are logged and skipped.
//   - Events for devices cleared by a scan restart are no-ops.
//
// Usage:
//
//	eng, err := basestation.New(basestation.Options{Adapter: adapter})
//	if err != nil {
//	    return err
//	}
//	if err := eng.Start(ctx); err != nil {
//	    return err
//	}
//	defer eng.Stop()
//
//	eng.Enqueue(basestation.ChangePowerState("AA:BB:CC:DD:EE:FF", power.TargetSleep))
package basestation
