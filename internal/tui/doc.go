// Package tui is the terminal front end: a header line, the device list and
// per-device power actions, built on Bubble Tea.
//
// The model never talks to the radio. It renders engine snapshots and
// enqueues commands. After a power command it shows the pending state
// (Standby, Sleep or Starting) until the device reports a different state
// than the one it had when the command was issued.
package tui
