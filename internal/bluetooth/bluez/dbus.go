package bluez

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

const (
	busName            = "org.bluez"
	adapterIface       = "org.bluez.Adapter1"
	deviceIface        = "org.bluez.Device1"
	gattCharIface      = "org.bluez.GattCharacteristic1"
	propsIface         = "org.freedesktop.DBus.Properties"
	objectManagerIface = "org.freedesktop.DBus.ObjectManager"

	signalInterfacesAdded   = objectManagerIface + ".InterfacesAdded"
	signalPropertiesChanged = propsIface + ".PropertiesChanged"
)

// managedObjects is the reply of ObjectManager.GetManagedObjects.
type managedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// adapterObjectPath returns the object path of an adapter such as "hci0".
func adapterObjectPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// addressFromPath extracts the MAC address from a device object path. It
// returns "" for paths that are not direct children of adapter.
func addressFromPath(adapter, path dbus.ObjectPath) string {
	prefix := string(adapter) + "/dev_"
	s := string(path)
	if !strings.HasPrefix(s, prefix) {
		return ""
	}
	rest := s[len(prefix):]
	if strings.Contains(rest, "/") {
		return ""
	}
	return strings.ReplaceAll(rest, "_", ":")
}

// sameVendorBase reports whether two 128-bit UUIDs share everything but the
// 16-bit short id, which is how vendor services and their characteristics
// are usually numbered.
func sameVendorBase(a, b uuid.UUID) bool {
	return a[0] == b[0] && a[1] == b[1] && string(a[4:]) == string(b[4:])
}

// advertises reports whether a device advertising uuids matches any of the
// wanted ids. An empty wanted list matches every device.
func advertises(uuids []string, wanted []uuid.UUID) bool {
	if len(wanted) == 0 {
		return true
	}
	for _, raw := range uuids {
		id, err := uuid.Parse(raw)
		if err != nil {
			continue
		}
		for _, w := range wanted {
			if id == w || sameVendorBase(id, w) {
				return true
			}
		}
	}
	return false
}

// findCharacteristic returns the object path of characteristic id below
// device.
func findCharacteristic(objects managedObjects, device dbus.ObjectPath, id uuid.UUID) (dbus.ObjectPath, bool) {
	prefix := string(device) + "/"
	want := strings.ToLower(id.String())

	for path, ifaces := range objects {
		if !strings.HasPrefix(string(path), prefix) {
			continue
		}
		props, ok := ifaces[gattCharIface]
		if !ok {
			continue
		}
		if got, ok := stringProp(props, "UUID"); ok && strings.ToLower(got) == want {
			return path, true
		}
	}
	return "", false
}

func stringProp(props map[string]dbus.Variant, name string) (string, bool) {
	v, ok := props[name]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

func boolProp(props map[string]dbus.Variant, name string) (bool, bool) {
	v, ok := props[name]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

func stringsProp(props map[string]dbus.Variant, name string) []string {
	v, ok := props[name]
	if !ok {
		return nil
	}
	s, _ := v.Value().([]string)
	return s
}

// --- bus helpers ---

type bus struct {
	conn *dbus.Conn
}

func (b *bus) call(ctx context.Context, path dbus.ObjectPath, method string, args ...any) *dbus.Call {
	return b.conn.Object(busName, path).CallWithContext(ctx, method, 0, args...)
}

func (b *bus) getProp(ctx context.Context, path dbus.ObjectPath, iface, prop string) (dbus.Variant, error) {
	var v dbus.Variant
	err := b.call(ctx, path, propsIface+".Get", iface, prop).Store(&v)
	return v, err
}

func (b *bus) getBool(ctx context.Context, path dbus.ObjectPath, iface, prop string) (bool, error) {
	v, err := b.getProp(ctx, path, iface, prop)
	if err != nil {
		return false, err
	}
	val, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("property %s is not bool", prop)
	}
	return val, nil
}

func (b *bus) managedObjects(ctx context.Context) (managedObjects, error) {
	var objects managedObjects
	if err := b.call(ctx, "/", objectManagerIface+".GetManagedObjects").Store(&objects); err != nil {
		return nil, fmt.Errorf("get managed objects: %w", err)
	}
	return objects, nil
}

// hasBlueZ reports whether org.bluez is on the bus.
func (b *bus) hasBlueZ(ctx context.Context) (bool, error) {
	var names []string
	if err := b.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return false, fmt.Errorf("list bus names: %w", err)
	}
	for _, n := range names {
		if n == busName {
			return true, nil
		}
	}
	return false, nil
}

// isDBusError reports whether err is a D-Bus error reply with the given name.
func isDBusError(err error, name string) bool {
	var dbusErr dbus.Error
	return errors.As(err, &dbusErr) && dbusErr.Name == name
}
