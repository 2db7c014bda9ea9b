// Package logging provides structured logging for the lighthouse service.
//
// It wraps log/slog so every component logs with the same default fields
// (service, version) and the same level filtering.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("scan started", "window", cfg.Scan.Timeout)
//	engine, err := basestation.New(basestation.Options{Logger: logger.With("component", "engine")})
//
// Never log MQTT or InfluxDB credentials.
package logging
