// Package command applies store commands received over MQTT.
//
// Commands arrive as JSON on {prefix}/command/{name}:
//
//	history          {"description": "...", "long_description": "...", "time": "..."}
//	timer_executed   {"timer_id": 3, "time": "..."}
//	geofence_state   {"geofence_id": 2, "state": "inside"}
//	button_pressed   {"receiver_id": 5, "button_id": 9}
//	backup           {}
//
// A zero or missing time means now. Failures are returned to the MQTT
// client, which logs them; nothing is published back.
package command

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/mqtt"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
)

// Command names, the last topic level.
const (
	History       = "history"
	TimerExecuted = "timer_executed"
	GeofenceState = "geofence_state"
	ButtonPressed = "button_pressed"
	Backup        = "backup"
)

// commandTimeout bounds one command, backup included.
const commandTimeout = 30 * time.Second

var (
	// ErrUnknownCommand is returned for a topic naming no command.
	ErrUnknownCommand = errors.New("command: unknown command")

	// ErrInvalidPayload is returned when the JSON body cannot be decoded.
	ErrInvalidPayload = errors.New("command: invalid payload")

	// ErrBackupDisabled is returned for backup commands when no scheduler is set.
	ErrBackupDisabled = errors.New("command: backups not configured")
)

// Subscriber is the part of *mqtt.Client the handler uses.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Topics() mqtt.Topics
	QoS() byte
}

// Store is the part of *persistence.Store commands write to.
type Store interface {
	AddHistoryItem(ctx context.Context, h *persistence.HistoryItem) error
	MarkTimerExecuted(ctx context.Context, id int64, at time.Time) error
	SetGeofenceState(ctx context.Context, id int64, state persistence.GeofenceState) error
	SetLastActivatedButton(ctx context.Context, receiverID, buttonID int64) error
}

// Snapshotter takes a database snapshot. *backup.Scheduler implements it.
type Snapshotter interface {
	Snapshot(ctx context.Context) (string, error)
}

// Logger is the logging surface the handler needs.
type Logger interface {
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any) {}

type historyCommand struct {
	Description     string    `json:"description"`
	LongDescription string    `json:"long_description"`
	Time            time.Time `json:"time"`
}

type timerExecutedCommand struct {
	TimerID int64     `json:"timer_id"`
	Time    time.Time `json:"time"`
}

type geofenceStateCommand struct {
	GeofenceID int64  `json:"geofence_id"`
	State      string `json:"state"`
}

type buttonPressedCommand struct {
	ReceiverID int64 `json:"receiver_id"`
	ButtonID   int64 `json:"button_id"`
}

// Handler dispatches command messages to the store.
type Handler struct {
	store   Store
	backups Snapshotter
	logger  Logger
	now     func() time.Time
}

// NewHandler creates a handler writing to store. backups may be nil, in
// which case backup commands fail with ErrBackupDisabled.
func NewHandler(store Store, backups Snapshotter) *Handler {
	return &Handler{
		store:   store,
		backups: backups,
		logger:  noopLogger{},
		now:     time.Now,
	}
}

// SetLogger sets the logger for applied commands.
func (h *Handler) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// Start subscribes to every command topic. Commands run under ctx, so
// cancelling it aborts the ones in flight.
func (h *Handler) Start(ctx context.Context, sub Subscriber) error {
	topic := sub.Topics().AllCommands()
	if err := sub.Subscribe(topic, sub.QoS(), func(t string, payload []byte) error {
		return h.handle(ctx, t, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	h.logger.Info("subscribed to commands", "topic", topic)
	return nil
}

func (h *Handler) handle(ctx context.Context, topic string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	name := topic[strings.LastIndex(topic, "/")+1:]
	var err error
	switch name {
	case History:
		var cmd historyCommand
		if err = decode(payload, &cmd); err == nil {
			err = h.store.AddHistoryItem(ctx, &persistence.HistoryItem{
				Time:            cmd.Time,
				Description:     cmd.Description,
				LongDescription: cmd.LongDescription,
			})
		}
	case TimerExecuted:
		var cmd timerExecutedCommand
		if err = decode(payload, &cmd); err == nil {
			at := cmd.Time
			if at.IsZero() {
				at = h.now()
			}
			err = h.store.MarkTimerExecuted(ctx, cmd.TimerID, at)
		}
	case GeofenceState:
		var cmd geofenceStateCommand
		if err = decode(payload, &cmd); err == nil {
			err = h.store.SetGeofenceState(ctx, cmd.GeofenceID, persistence.GeofenceState(cmd.State))
		}
	case ButtonPressed:
		var cmd buttonPressedCommand
		if err = decode(payload, &cmd); err == nil {
			err = h.store.SetLastActivatedButton(ctx, cmd.ReceiverID, cmd.ButtonID)
		}
	case Backup:
		if h.backups == nil {
			return ErrBackupDisabled
		}
		var path string
		if path, err = h.backups.Snapshot(ctx); err == nil {
			h.logger.Info("snapshot requested over MQTT", "path", path)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, topic)
	}
	if err != nil {
		return fmt.Errorf("%s command: %w", name, err)
	}
	h.logger.Info("command applied", "command", name)
	return nil
}

// decode accepts an empty body as an empty object.
func decode(payload []byte, v any) error {
	if len(payload) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}
