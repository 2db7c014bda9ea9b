package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"
)

// DBStatsProvider exposes connection pool statistics.
type DBStatsProvider interface {
	Stats() sql.DBStats
}

// ConnectionReporter reports whether a broker connection is up.
type ConnectionReporter interface {
	IsConnected() bool
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          *MQTTMetrics     `json:"mqtt,omitempty"`
	Devices       DeviceMetrics    `json:"devices"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
	RateLimit     *RateLimitStats  `json:"rate_limit,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics counts base stations in the snapshot.
type DeviceMetrics struct {
	Total    int            `json:"total"`
	ByState  map[string]int `json:"by_state"`
	Scanning bool           `json:"scanning"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// RateLimitStats describes the per-client limiter.
type RateLimitStats struct {
	TrackedClients int `json:"tracked_clients"`
}

// handleMetrics returns runtime, hub, device and pool statistics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	snap := s.engine.Snapshot()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Devices: DeviceMetrics{
			Total:    len(snap.Devices),
			ByState:  make(map[string]int),
			Scanning: snap.Scanning,
		},
	}
	for _, d := range snap.Devices {
		metrics.Devices.ByState[d.PowerState.String()]++
	}

	if s.mqtt != nil {
		metrics.MQTT = &MQTTMetrics{Connected: s.mqtt.IsConnected()}
	}

	if s.db != nil {
		dbStats := s.db.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	if s.limiter != nil {
		metrics.RateLimit = &RateLimitStats{TrackedClients: s.limiter.size()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
