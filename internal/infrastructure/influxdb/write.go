package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementPowerState = "base_station_power"
	MeasurementScan       = "base_station_scan"
	MeasurementCommand    = "base_station_command"
)

// WritePoint writes a point stamped with the current time.
//
// Example:
//
//	client.WritePoint("base_station_power",
//	    map[string]string{"address": "AA:BB:CC:DD:EE:01"},
//	    map[string]any{"level": 3})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a point with an explicit timestamp. Points are
// dropped silently while the client is disconnected.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}
