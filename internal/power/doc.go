// Package power defines the lighthouse base station power states and the
// single-byte wire encoding used on the power characteristic.
//
// Observed states are decoded from telemetry with Decode, which never fails:
// any payload it does not recognise maps to Unknown. Commands are expressed
// as a Target, the subset of states a base station can be told to enter, and
// each Target has exactly one wire byte.
//
// Usage:
//
//	state := power.Decode(payload)
//	if state.Allows(power.TargetSleep) {
//	    write([]byte{power.TargetSleep.Byte()})
//	}
package power
