// Package api implements the HTTP REST API and WebSocket server for the
// lighthouse service.
//
// This package provides:
//   - REST endpoints for the device snapshot, scan and power commands
//   - Read access to the command audit log and device sightings
//   - WebSocket hub relaying engine notifications and snapshots
//   - Middleware stack (request ID, logging, recovery, CORS, rate limit)
//
// # Architecture
//
// The API server is one more front end of the engine. Reads come from the
// engine snapshot and never touch the radio. Commands are enqueued and the
// handler answers 202 with the command id; the outcome arrives later as a
// command_executed event on the WebSocket and in the audit log.
//
// # Graceful Degradation
//
// The server operates without the audit database. Snapshot, command and
// WebSocket endpoints keep working; only /commands and /sightings answer 503.
package api
