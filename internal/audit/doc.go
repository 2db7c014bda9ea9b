// Package audit persists the command log and base station sightings in
// SQLite.
//
// A Recorder observes the engine: every command_executed notification
// becomes a command_log row, and discovery, rename and power state events
// keep device_sightings current. The HTTP API reads both back for
// operators who want to know who put the play space to sleep and which
// stations have not been seen for a while.
package audit
