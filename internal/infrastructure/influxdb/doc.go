// Package influxdb records base station telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. A Recorder observes
// the engine and writes three measurements:
//
//   - base_station_power: one point per power state change, tagged by address
//   - base_station_scan: scan started, failed and finished events
//   - base_station_command: executed commands by kind, source and outcome
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	engine.AddObserver(influxdb.NewRecorder(client))
//
// Writes are non-blocking and batched according to batch_size and
// flush_interval. Asynchronous write errors are reported through
// SetOnError.
package influxdb
