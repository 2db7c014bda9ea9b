// Package bluez implements the base station adapter on top of the BlueZ
// D-Bus API (org.bluez) on the system bus.
//
// Discovery uses Adapter1.SetDiscoveryFilter and StartDiscovery, and stops
// itself once the requested window has elapsed. New devices are reported
// from ObjectManager.InterfacesAdded signals; changes on an existing device
// are reported from PropertiesChanged. Devices BlueZ already knows about are
// reported when an event stream is opened.
//
// Power reads and writes go through GattCharacteristic1.ReadValue and
// WriteValue. Writes use the "command" type, BlueZ's write without response.
// A device is connected on demand the first time one of its characteristics
// is requested.
package bluez
