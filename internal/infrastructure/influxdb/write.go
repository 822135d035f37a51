package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteMessageField records one numeric decoded payload field
// (temperature, setpoint, demand, CO2 level) under the message_fields
// measurement, tagged by source address, protocol code and field name.
// The message timestamp becomes the point time, so replayed packet
// logs land at their recorded positions. Non-blocking.
func (c *Client) WriteMessageField(src, code, field string, value float64, at time.Time) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"message_fields",
		map[string]string{"src": src, "code": code, "field": field},
		map[string]interface{}{"value": value},
		at,
	))
}

// WriteTrafficMetric records an engine throughput counter
// (frames_total, parse_errors) under the traffic measurement.
// Non-blocking.
func (c *Client) WriteTrafficMetric(metricName string, value float64) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		"traffic",
		map[string]string{"metric": metricName},
		map[string]interface{}{"value": value},
		time.Now(),
	))
}
