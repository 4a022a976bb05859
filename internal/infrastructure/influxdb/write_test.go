package influxdb

import (
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

var pointTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

func TestPointLineProtocol(t *testing.T) {
	tests := []struct {
		name  string
		point *write.Point
		want  string
	}{
		{
			name:  "change",
			point: changePoint("receiver", "update", 12, pointTime),
			want:  "entity_change,entity=receiver,op=update id=12i 1792065600\n",
		},
		{
			name:  "history",
			point: historyPoint("Lamp on", "", pointTime),
			want:  "history description=\"Lamp on\" 1792065600\n",
		},
		{
			name:  "history with details",
			point: historyPoint("Lamp on", "Living", pointTime),
			want:  "history description=\"Lamp on\",long_description=\"Living\" 1792065600\n",
		},
		{
			name:  "row counts",
			point: rowCountPoint(map[string]int{"rooms": 3, "apartments": 1}, pointTime),
			want:  "store_rows apartments=1i,rooms=3i 1792065600\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := write.PointToLineProtocol(tt.point, time.Second)
			if got != tt.want {
				t.Errorf("line protocol = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWritesOnDisconnectedClientAreDropped(t *testing.T) {
	c := &Client{}

	// writeAPI is nil; any write reaching it would panic.
	c.WriteChange("room", "add", 1, pointTime)
	c.WriteHistoryItem("x", "", pointTime)
	c.WriteRowCounts(map[string]int{"rooms": 1}, pointTime)
	c.WritePoint("m", nil, map[string]interface{}{"v": 1})
	c.Flush()
}
