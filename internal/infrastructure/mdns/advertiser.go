package mdns

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/urholaukkarinen/steamvr-lighthouse-control/internal/infrastructure/config"
)

// APIBasePath is advertised in the path TXT record.
const APIBasePath = "/api/v1"

// ErrInvalidPort is returned when the advertised port is out of range.
var ErrInvalidPort = errors.New("mdns: invalid port")

// Logger is the logging interface used by the advertiser.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}
func (noopLogger) Warn(string, ...any) {}

// server is the part of *zeroconf.Server the advertiser uses.
type server interface {
	Shutdown()
}

// registerFunc matches zeroconf.Register.
type registerFunc func(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error)

func zeroconfRegister(instance, service, domain string, port int, text []string, ifaces []net.Interface) (server, error) {
	return zeroconf.Register(instance, service, domain, port, text, ifaces)
}

// Advertiser owns one mDNS registration.
type Advertiser struct {
	cfg      config.MDNSConfig
	port     int
	txt      []string
	logger   Logger
	register registerFunc

	mu     sync.Mutex
	server server
}

// New creates an advertiser for the API listening on port.
//
// Parameters:
//   - cfg: instance, service and domain names
//   - port: the HTTP API port
//   - version: advertised in the version TXT record
//   - logger: may be nil
func New(cfg config.MDNSConfig, port int, version string, logger Logger) *Advertiser {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Advertiser{
		cfg:      cfg,
		port:     port,
		txt:      []string{"version=" + version, "path=" + APIBasePath},
		logger:   logger,
		register: zeroconfRegister,
	}
}

// Start registers the service. Calling Start again is a no-op while the
// registration is live.
func (a *Advertiser) Start() error {
	if a.port < 1 || a.port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, a.port)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server != nil {
		return nil
	}

	srv, err := a.register(a.cfg.Instance, a.cfg.Service, a.cfg.Domain, a.port, a.txt, nil)
	if err != nil {
		return fmt.Errorf("mdns register: %w", err)
	}
	a.server = srv
	a.logger.Info("mdns advertising",
		"instance", a.cfg.Instance,
		"service", a.cfg.Service,
		"port", a.port,
	)
	return nil
}

// Close withdraws the registration.
func (a *Advertiser) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("mdns advertisement withdrawn", "instance", a.cfg.Instance)
}

// TXT returns the advertised TXT records.
func (a *Advertiser) TXT() []string {
	return append([]string(nil), a.txt...)
}
