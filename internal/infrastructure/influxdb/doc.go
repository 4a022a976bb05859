// Package influxdb provides InfluxDB connectivity for the PowerSwitch daemon.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, health checks and point writers for what the store reports.
//
// # Measurements
//
//	entity_change  tags entity, op; field id
//	history        fields description, long_description
//	store_rows     one integer field per table
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // run without time-series
//	}
//	defer client.Close()
//
//	client.WriteChange("scene", "add", 7, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes; their errors
// are delivered to the SetOnError callback.
package influxdb
