package command

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/database"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/mqtt"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/persistence"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/migrations"
)

var fixedTime = time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)

// fakeSubscriber records the subscription and lets tests deliver messages.
type fakeSubscriber struct {
	topic   string
	qos     byte
	handler mqtt.MessageHandler
	err     error
}

func (f *fakeSubscriber) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.topic, f.qos, f.handler = topic, qos, handler
	return nil
}

func (f *fakeSubscriber) Topics() mqtt.Topics { return mqtt.Topics{Prefix: "ps"} }
func (f *fakeSubscriber) QoS() byte           { return 1 }

func (f *fakeSubscriber) deliver(name, payload string) error {
	return f.handler("ps/command/"+name, []byte(payload))
}

type fakeSnapshotter struct {
	calls int
}

func (s *fakeSnapshotter) Snapshot(context.Context) (string, error) {
	s.calls++
	return "/var/backups/powerswitch-1.db", nil
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

func newTestStore(t *testing.T) *persistence.Store {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "powerswitch.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	require.NoError(t, db.Migrate(ctx, migrations.Source()))
	return persistence.NewStore(db.DB)
}

// startHandler subscribes a handler on store and returns the subscriber.
func startHandler(t *testing.T, store Store, backups Snapshotter) *fakeSubscriber {
	t.Helper()
	h := NewHandler(store, backups)
	h.now = func() time.Time { return fixedTime }
	sub := &fakeSubscriber{}
	require.NoError(t, h.Start(context.Background(), sub))
	return sub
}

func TestStartSubscribesToAllCommands(t *testing.T) {
	sub := startHandler(t, newTestStore(t), nil)
	assert.Equal(t, "ps/command/+", sub.topic)
	assert.Equal(t, byte(1), sub.qos)

	failing := &fakeSubscriber{err: mqtt.ErrNotConnected}
	err := NewHandler(newTestStore(t), nil).Start(context.Background(), failing)
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sub := startHandler(t, store, nil)

	require.NoError(t, sub.deliver(History,
		`{"description":"Lamp on","long_description":"Living room","time":"2026-10-15T08:30:00Z"}`))

	items, err := store.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Lamp on", items[0].Description)
	assert.Equal(t, "Living room", items[0].LongDescription)
	assert.Equal(t, time.Date(2026, 10, 15, 8, 30, 0, 0, time.UTC), items[0].Time)

	assert.ErrorIs(t, sub.deliver(History, `{}`), persistence.ErrInvalid)
}

func TestTimerExecutedCommand(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sub := startHandler(t, store, nil)

	timer := &persistence.Timer{Name: "Morning", ExecutionTime: fixedTime,
		Type: persistence.TimerInterval, Interval: time.Hour}
	require.NoError(t, store.AddTimer(ctx, timer))

	require.NoError(t, sub.deliver(TimerExecuted, `{"timer_id":`+itoa(timer.ID)+`}`))

	got, err := store.GetTimer(ctx, timer.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastExecution)
	assert.Equal(t, fixedTime, *got.LastExecution)

	assert.ErrorIs(t, sub.deliver(TimerExecuted, `{"timer_id":999}`), persistence.ErrTimerNotFound)
}

func TestGeofenceStateCommand(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sub := startHandler(t, store, nil)

	g := &persistence.Geofence{Name: "Gym", Latitude: 2, Longitude: 2, Radius: 30}
	require.NoError(t, store.AddGeofence(ctx, g))

	require.NoError(t, sub.deliver(GeofenceState, `{"geofence_id":`+itoa(g.ID)+`,"state":"inside"}`))

	got, err := store.GetGeofence(ctx, g.ID)
	require.NoError(t, err)
	assert.Equal(t, persistence.GeofenceInside, got.State)

	assert.ErrorIs(t, sub.deliver(GeofenceState, `{"geofence_id":`+itoa(g.ID)+`,"state":"nearby"}`),
		persistence.ErrInvalid)
}

func TestButtonPressedCommand(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	sub := startHandler(t, store, nil)

	apt := &persistence.Apartment{Name: "Home"}
	require.NoError(t, store.AddApartment(ctx, apt))
	room := &persistence.Room{ApartmentID: apt.ID, Name: "Living", Receivers: []persistence.Receiver{{
		Name: "Lamp", Type: persistence.ReceiverUniversal,
		Buttons: []persistence.Button{{Name: "On", Signal: "1,0"}, {Name: "Off", Signal: "0,1"}},
	}}}
	require.NoError(t, store.AddRoom(ctx, room))
	lamp := room.Receivers[0]

	require.NoError(t, sub.deliver(ButtonPressed,
		`{"receiver_id":`+itoa(lamp.ID)+`,"button_id":`+itoa(lamp.Buttons[1].ID)+`}`))

	got, err := store.GetReceiver(ctx, lamp.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastActivatedButtonID)
	assert.Equal(t, lamp.Buttons[1].ID, *got.LastActivatedButtonID)
}

func TestBackupCommand(t *testing.T) {
	backups := &fakeSnapshotter{}
	sub := startHandler(t, newTestStore(t), backups)

	require.NoError(t, sub.deliver(Backup, ""))
	assert.Equal(t, 1, backups.calls)

	disabled := startHandler(t, newTestStore(t), nil)
	assert.ErrorIs(t, disabled.deliver(Backup, ""), ErrBackupDisabled)
}

func TestRejectedMessages(t *testing.T) {
	sub := startHandler(t, newTestStore(t), nil)

	tests := []struct {
		name    string
		command string
		payload string
		want    error
	}{
		{"unknown command", "reboot", `{}`, ErrUnknownCommand},
		{"malformed json", TimerExecuted, `{"timer_id":`, ErrInvalidPayload},
		{"wrong field type", ButtonPressed, `{"receiver_id":"lamp"}`, ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sub.deliver(tt.command, tt.payload)
			assert.True(t, errors.Is(err, tt.want), "error = %v, want %v", err, tt.want)
		})
	}
}
