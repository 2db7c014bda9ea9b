package mdns

import (
	"errors"
	"net"
	"testing"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
)

type fakeServer struct{ shutdowns int }

func (f *fakeServer) Shutdown() { f.shutdowns++ }

func testConfig() config.MDNSConfig {
	return config.MDNSConfig{Enabled: true, Instance: "lighthouse", Service: "_lighthouse._tcp", Domain: "local."}
}

func TestAdvertiser_StartClose(t *testing.T) {
	a := New(testConfig(), 8420, "1.2.3", nil)

	var calls int
	var gotInstance, gotService, gotDomain string
	var gotPort int
	srv := &fakeServer{}
	a.register = func(instance, service, domain string, port int, _ []string, _ []net.Interface) (server, error) {
		calls++
		gotInstance, gotService, gotDomain, gotPort = instance, service, domain, port
		return srv, nil
	}

	if err := a.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := a.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("register called %d times, want 1", calls)
	}
	if gotInstance != "lighthouse" || gotService != "_lighthouse._tcp" || gotDomain != "local." || gotPort != 8420 {
		t.Errorf("register(%q, %q, %q, %d)", gotInstance, gotService, gotDomain, gotPort)
	}

	a.Close()
	a.Close()
	if srv.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdowns)
	}
}

func TestAdvertiser_TXT(t *testing.T) {
	a := New(testConfig(), 8420, "1.2.3", nil)
	txt := a.TXT()
	want := []string{"version=1.2.3", "path=/api/v1"}
	if len(txt) != len(want) {
		t.Fatalf("TXT() = %v, want %v", txt, want)
	}
	for i := range want {
		if txt[i] != want[i] {
			t.Errorf("TXT()[%d] = %q, want %q", i, txt[i], want[i])
		}
	}
}

func TestAdvertiser_Errors(t *testing.T) {
	a := New(testConfig(), 0, "dev", nil)
	if err := a.Start(); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("Start() error = %v, want ErrInvalidPort", err)
	}

	a = New(testConfig(), 8420, "dev", nil)
	a.register = func(string, string, string, int, []string, []net.Interface) (server, error) {
		return nil, errors.New("no multicast interface")
	}
	if err := a.Start(); err == nil {
		t.Error("Start() should fail when registration fails")
	}
	a.Close() // nothing registered
}
