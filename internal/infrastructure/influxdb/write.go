package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementChange  = "entity_change"
	measurementHistory = "history"
	measurementRows    = "store_rows"
)

// WriteChange records one committed change to a stored entity.
// The write is non-blocking; points are batched and sent asynchronously.
//
//	client.WriteChange("receiver", "update", 12, time.Now())
func (c *Client) WriteChange(entity, op string, id int64, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(changePoint(entity, op, id, at))
}

// WriteHistoryItem records a history entry at the time it happened.
func (c *Client) WriteHistoryItem(description, longDescription string, at time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(historyPoint(description, longDescription, at))
}

// WriteRowCounts records the number of stored rows per table.
func (c *Client) WriteRowCounts(counts map[string]int, at time.Time) {
	if !c.IsConnected() || len(counts) == 0 {
		return
	}
	c.writeAPI.WritePoint(rowCountPoint(counts, at))
}

// WritePoint writes a custom point stamped with the current time.
//
//	client.WritePoint("daemon",
//	    map[string]string{"host": "pi-01"},
//	    map[string]interface{}{"uptime_s": 3600})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func changePoint(entity, op string, id int64, at time.Time) *write.Point {
	return write.NewPoint(
		measurementChange,
		map[string]string{
			"entity": entity,
			"op":     op,
		},
		map[string]interface{}{
			"id": id,
		},
		at,
	)
}

func historyPoint(description, longDescription string, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"description": description,
	}
	if longDescription != "" {
		fields["long_description"] = longDescription
	}
	return write.NewPoint(measurementHistory, nil, fields, at)
}

func rowCountPoint(counts map[string]int, at time.Time) *write.Point {
	fields := make(map[string]interface{}, len(counts))
	for table, n := range counts {
		fields[table] = n
	}
	return write.NewPoint(measurementRows, nil, fields, at)
}
