// Package config handles loading and validating lighthouse service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (LIGHTHOUSE_*)
//   - Validation of required fields, timings and cron schedules
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Bluetooth.Backend)
package config
