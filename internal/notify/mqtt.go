package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/mqtt"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
)

// Logger is the logging surface observers need.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Publisher sends JSON messages to the broker. *mqtt.Client implements it.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
	Topics() mqtt.Topics
}

// ChangeEvent is the payload published for an entity change.
type ChangeEvent struct {
	EventID   string    `json:"event_id"`
	Entity    string    `json:"entity"`
	Op        string    `json:"op"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryEvent is the payload published for a new history entry.
type HistoryEvent struct {
	EventID         string    `json:"event_id"`
	ID              int64     `json:"id"`
	Time            time.Time `json:"time"`
	Description     string    `json:"description"`
	LongDescription string    `json:"long_description,omitempty"`
}

// MQTTObserver publishes store changes over MQTT.
type MQTTObserver struct {
	pub    Publisher
	logger Logger
	newID  func() string
	now    func() time.Time
}

// NewMQTTObserver creates an observer publishing through pub.
func NewMQTTObserver(pub Publisher) *MQTTObserver {
	return &MQTTObserver{
		pub:    pub,
		logger: noopLogger{},
		newID:  uuid.NewString,
		now:    time.Now,
	}
}

// SetLogger sets the logger for publish failures.
func (o *MQTTObserver) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	o.logger = logger
}

// EntityChanged implements persistence.Observer.
func (o *MQTTObserver) EntityChanged(_ context.Context, c persistence.Change) {
	topic := o.pub.Topics().EntityEvent(string(c.Entity), string(c.Op))
	event := ChangeEvent{
		EventID:   o.newID(),
		Entity:    string(c.Entity),
		Op:        string(c.Op),
		ID:        c.ID,
		Timestamp: o.now().UTC(),
	}
	if err := o.pub.PublishJSON(topic, event, false); err != nil {
		o.logger.Warn("publishing change event failed", "topic", topic, "error", err)
	}
}

// HistoryAdded implements persistence.Observer.
func (o *MQTTObserver) HistoryAdded(_ context.Context, h persistence.HistoryItem) {
	topic := o.pub.Topics().History()
	event := HistoryEvent{
		EventID:         o.newID(),
		ID:              h.ID,
		Time:            h.Time.UTC(),
		Description:     h.Description,
		LongDescription: h.LongDescription,
	}
	if err := o.pub.PublishJSON(topic, event, false); err != nil {
		o.logger.Warn("publishing history event failed", "topic", topic, "error", err)
	}
}
