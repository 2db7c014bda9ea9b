package bluez

import (
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/basestation"
	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/power"
)

const testAdapter = dbus.ObjectPath("/org/bluez/hci0")

func TestAddressFromPath(t *testing.T) {
	tests := []struct {
		path dbus.ObjectPath
		want string
	}{
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF", "AA:BB:CC:DD:EE:FF"},
		{"/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF/service000c", ""},
		{"/org/bluez/hci1/dev_AA_BB_CC_DD_EE_FF", ""},
		{"/org/bluez/hci0", ""},
	}

	for _, tt := range tests {
		if got := addressFromPath(testAdapter, tt.path); got != tt.want {
			t.Errorf("addressFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestAdvertises(t *testing.T) {
	service := "00001523-1212-efde-1523-785feabcd124"

	tests := []struct {
		name   string
		uuids  []string
		wanted []uuid.UUID
		want   bool
	}{
		{"no filter", []string{"0000180f-0000-1000-8000-00805f9b34fb"}, nil, true},
		{"exact", []string{power.CharacteristicUUID.String()}, []uuid.UUID{power.CharacteristicUUID}, true},
		{"vendor service", []string{service}, []uuid.UUID{power.CharacteristicUUID}, true},
		{"other vendor", []string{"0000180f-0000-1000-8000-00805f9b34fb"}, []uuid.UUID{power.CharacteristicUUID}, false},
		{"nothing advertised", nil, []uuid.UUID{power.CharacteristicUUID}, false},
		{"garbage uuid", []string{"not-a-uuid"}, []uuid.UUID{power.CharacteristicUUID}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := advertises(tt.uuids, tt.wanted); got != tt.want {
				t.Errorf("advertises() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFindCharacteristic(t *testing.T) {
	device := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")
	charPath := dbus.ObjectPath(string(device) + "/service000c/char000d")
	otherDevice := dbus.ObjectPath("/org/bluez/hci0/dev_11_22_33_44_55_66")

	objects := managedObjects{
		device: {deviceIface: {}},
		charPath: {gattCharIface: {
			"UUID": dbus.MakeVariant("00001525-1212-EFDE-1523-785FEABCD124"),
		}},
		dbus.ObjectPath(string(device) + "/service000c/char000f"): {gattCharIface: {
			"UUID": dbus.MakeVariant("00001526-1212-efde-1523-785feabcd124"),
		}},
		dbus.ObjectPath(string(otherDevice) + "/service000c/char000d"): {gattCharIface: {
			"UUID": dbus.MakeVariant(power.CharacteristicUUID.String()),
		}},
	}

	got, ok := findCharacteristic(objects, device, power.CharacteristicUUID)
	if !ok || got != charPath {
		t.Errorf("findCharacteristic() = (%q, %v), want (%q, true)", got, ok, charPath)
	}

	if _, ok := findCharacteristic(objects, device, uuid.New()); ok {
		t.Error("findCharacteristic() found an unknown uuid")
	}
}

func TestClassifySignal(t *testing.T) {
	device := dbus.ObjectPath("/org/bluez/hci0/dev_AA_BB_CC_DD_EE_FF")

	t.Run("interfaces added", func(t *testing.T) {
		sig := &dbus.Signal{
			Name: signalInterfacesAdded,
			Path: "/",
			Body: []any{device, map[string]map[string]dbus.Variant{
				deviceIface: {"Name": dbus.MakeVariant("LHB-1234")},
			}},
		}
		info, ok := classifySignal(testAdapter, sig)
		if !ok || info.kind != basestation.DiscoveryDiscovered || info.path != device {
			t.Errorf("classifySignal() = %+v, %v", info, ok)
		}
	})

	t.Run("non device interface", func(t *testing.T) {
		sig := &dbus.Signal{
			Name: signalInterfacesAdded,
			Body: []any{dbus.ObjectPath(string(device) + "/service000c"), map[string]map[string]dbus.Variant{
				"org.bluez.GattService1": {},
			}},
		}
		if _, ok := classifySignal(testAdapter, sig); ok {
			t.Error("classifySignal() accepted a service object")
		}
	})

	t.Run("device properties changed", func(t *testing.T) {
		sig := &dbus.Signal{
			Name: signalPropertiesChanged,
			Path: device,
			Body: []any{deviceIface, map[string]dbus.Variant{"Name": dbus.MakeVariant("renamed")}, []string{}},
		}
		info, ok := classifySignal(testAdapter, sig)
		if !ok || info.kind != basestation.DiscoveryUpdated {
			t.Errorf("classifySignal() = %+v, %v", info, ok)
		}
	})

	t.Run("adapter discovering", func(t *testing.T) {
		sig := &dbus.Signal{
			Name: signalPropertiesChanged,
			Path: testAdapter,
			Body: []any{adapterIface, map[string]dbus.Variant{"Discovering": dbus.MakeVariant(false)}, []string{}},
		}
		info, ok := classifySignal(testAdapter, sig)
		if !ok || info.discovering == nil || *info.discovering {
			t.Errorf("classifySignal() = %+v, %v", info, ok)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		sig := &dbus.Signal{Name: signalPropertiesChanged, Path: device, Body: []any{42}}
		if _, ok := classifySignal(testAdapter, sig); ok {
			t.Error("classifySignal() accepted a malformed body")
		}
		if _, ok := classifySignal(testAdapter, nil); ok {
			t.Error("classifySignal() accepted nil")
		}
	})
}

func TestIsDBusError(t *testing.T) {
	err := dbus.Error{Name: "org.bluez.Error.InProgress"}
	if !isDBusError(err, "org.bluez.Error.InProgress") {
		t.Error("isDBusError() = false for matching name")
	}
	if isDBusError(err, "org.bluez.Error.Failed") {
		t.Error("isDBusError() = true for other name")
	}
	if isDBusError(errors.New("plain"), "org.bluez.Error.InProgress") {
		t.Error("isDBusError() = true for non D-Bus error")
	}
}
