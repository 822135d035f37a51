// Package influxdb is the optional telemetry sink: numeric decoded
// message fields and engine traffic counters, written through the
// influxdb-client-go v2 non-blocking batched API.
//
// Writes never block the message pipeline; batch failures surface
// asynchronously through the SetOnError callback. Batch size and flush
// interval come from the influxdb section of config.yaml.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteMessageField("04:056057", "30C9", "temperature_c", 21.5, msg.Dtm())
package influxdb
