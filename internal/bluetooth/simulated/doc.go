// Package simulated provides an in-memory base station adapter for
// development and demos without Bluetooth hardware.
//
// Simulated base stations answer power reads with the same single-byte
// encoding as real hardware and react to power writes. Switching a station
// on passes through the starting state for StartupDelay before it reports on.
package simulated
