// Package mdns advertises the HTTP API on the local network so panels and
// scripts can find the service without a configured address.
//
// The service is registered as an instance of _lighthouse._tcp by default
// with TXT records carrying the version and API base path.
package mdns
