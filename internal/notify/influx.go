package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
)

// PointWriter records points. *influxdb.Client implements it.
type PointWriter interface {
	WriteChange(entity, op string, id int64, at time.Time)
	WriteHistoryItem(description, longDescription string, at time.Time)
	WriteRowCounts(counts map[string]int, at time.Time)
}

// InfluxObserver writes store changes as time-series points.
type InfluxObserver struct {
	w   PointWriter
	now func() time.Time
}

// NewInfluxObserver creates an observer writing through w.
func NewInfluxObserver(w PointWriter) *InfluxObserver {
	return &InfluxObserver{w: w, now: time.Now}
}

// EntityChanged implements persistence.Observer.
func (o *InfluxObserver) EntityChanged(_ context.Context, c persistence.Change) {
	o.w.WriteChange(string(c.Entity), string(c.Op), c.ID, o.now())
}

// HistoryAdded implements persistence.Observer.
func (o *InfluxObserver) HistoryAdded(_ context.Context, h persistence.HistoryItem) {
	o.w.WriteHistoryItem(h.Description, h.LongDescription, h.Time)
}

// CountSource reports stored row counts. *persistence.Store implements it.
type CountSource interface {
	Counts(ctx context.Context) (persistence.Counts, error)
}

// WriteCounts reads the current row counts from src and writes them as one point.
func WriteCounts(ctx context.Context, src CountSource, w PointWriter, at time.Time) error {
	c, err := src.Counts(ctx)
	if err != nil {
		return fmt.Errorf("reading counts: %w", err)
	}
	w.WriteRowCounts(map[string]int{
		"apartments":  c.Apartments,
		"rooms":       c.Rooms,
		"receivers":   c.Receivers,
		"scenes":      c.Scenes,
		"gateways":    c.Gateways,
		"actions":     c.Actions,
		"geofences":   c.Geofences,
		"timers":      c.Timers,
		"call_events": c.CallEvents,
		"history":     c.History,
		"widgets":     c.Widgets,
	}, at)
	return nil
}
