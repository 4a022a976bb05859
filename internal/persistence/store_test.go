package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Power-Switch/PowerSwitch-Android-sub002/internal/infrastructure/database"
	"github.com/Power-Switch/PowerSwitch-Android-sub002/migrations"
)

// newTestStore opens a migrated database in a temp dir.
// A file is used because the pool holds one connection and :memory:
// databases vanish when it is recycled.
func newTestStore(t *testing.T) *Store {
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
	return NewStore(db.DB)
}

// recordingObserver collects notifications.
type recordingObserver struct {
	mu      sync.Mutex
	changes []Change
	history []HistoryItem
}

func (r *recordingObserver) EntityChanged(_ context.Context, c Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recordingObserver) HistoryAdded(_ context.Context, h HistoryItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, h)
}

// recordingLogger counts error logs.
type recordingLogger struct {
	noopLogger
	mu     sync.Mutex
	errors int
}

func (l *recordingLogger) Error(string, ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors++
}

func TestFailedWriteLeavesDatabaseUnchanged(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	apt := &Apartment{Name: "Home"}
	require.NoError(t, s.AddApartment(ctx, apt))
	before, err := s.Counts(ctx)
	require.NoError(t, err)

	// The room row is written first; the second receiver then violates
	// the per-room name index.
	room := &Room{
		ApartmentID: apt.ID,
		Name:        "Living",
		Receivers: []Receiver{
			{Name: "Lamp", Type: ReceiverUniversal},
			{Name: "Lamp", Type: ReceiverUniversal},
		},
	}
	err = s.AddRoom(ctx, room)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNameConflict)

	after, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	_, err = s.GetRoomByName(ctx, apt.ID, "Living")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestFailedWriteRestoresCallerValues(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	f := seedFixture(t, s)

	newRoom := func() *Room {
		return &Room{
			ApartmentID: f.apartment.ID,
			Name:        "Kitchen",
			Receivers: []Receiver{
				{Name: "Kettle", Type: ReceiverUniversal, Buttons: []Button{{Name: "On", Signal: "1,2"}}},
				{Name: "Kettle", Type: ReceiverUniversal},
			},
		}
	}
	room := newRoom()
	require.ErrorIs(t, s.AddRoom(ctx, room), ErrNameConflict)
	assert.Equal(t, newRoom(), room)

	// The pause is stored before the scene action fails its lookup.
	newTimer := func() *Timer {
		return &Timer{Name: "Morning", ExecutionTime: time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC),
			Type: TimerInterval, Interval: time.Hour,
			Actions: []Action{NewPauseAction(time.Second), NewSceneAction(f.apartment.ID, 999)}}
	}
	timer := newTimer()
	require.ErrorIs(t, s.AddTimer(ctx, timer), ErrSceneNotFound)
	assert.Equal(t, newTimer(), timer)

	// "Dim" is inserted before the unknown button id is noticed.
	lamp := *f.lamp
	lamp.Buttons = []Button{{Name: "Dim"}, {ID: 9999, Name: "Off"}}
	require.ErrorIs(t, s.UpdateReceiver(ctx, &lamp), ErrButtonNotFound)
	assert.Equal(t, []Button{{Name: "Dim"}, {ID: 9999, Name: "Off"}}, lamp.Buttons)
}

func TestCommitFailureRestoresCallerValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO history")).
		WillReturnResult(sqlmock.NewResult(5, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	h := &HistoryItem{Description: "Lamp on"}
	err = NewStore(db).AddHistoryItem(context.Background(), h)
	require.Error(t, err)
	assert.Zero(t, h.ID)
	assert.True(t, h.Time.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWriteRollsBackOnStatementError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO apartments")).
		WithArgs("Home", 0, 0).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM gateways WHERE id = ?")).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT OR IGNORE INTO apartment_gateways")).
		WithArgs(1, 7).
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	s := NewStore(db)
	logger := &recordingLogger{}
	s.SetLogger(logger)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	err = s.AddApartment(context.Background(), &Apartment{Name: "Home", GatewayIDs: []int64{7}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adding apartment")
	assert.Contains(t, err.Error(), "disk I/O error")

	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, logger.errors)
	assert.Empty(t, obs.changes)
}

func TestWriteCommitFailureSkipsObserver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE rooms SET collapsed")).
		WithArgs(1, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit().WillReturnError(errors.New("database is locked"))

	s := NewStore(db)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	err = s.SetRoomCollapsed(context.Background(), 3, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "committing")
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, obs.changes)
}

func TestValidationRunsBeforeSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := NewStore(db)
	err = s.AddRoom(context.Background(), &Room{ApartmentID: 1, Name: "  "})
	assert.ErrorIs(t, err, ErrInvalid)

	// No Begin was expected, so any statement would have failed this.
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestObserverNotifiedAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	obs := &recordingObserver{}
	s.SetObserver(obs)

	apt := &Apartment{Name: "Home"}
	require.NoError(t, s.AddApartment(ctx, apt))
	require.NoError(t, s.SetActiveApartment(ctx, apt.ID))
	require.NoError(t, s.AddHistoryItem(ctx, &HistoryItem{Description: "Lamp on"}))
	require.NoError(t, s.DeleteApartment(ctx, apt.ID))

	// A failed write reports nothing.
	require.Error(t, s.DeleteApartment(ctx, apt.ID))

	assert.Equal(t, []Change{
		{Entity: EntityApartment, Op: OpAdd, ID: apt.ID},
		{Entity: EntityApartment, Op: OpUpdate, ID: apt.ID},
		{Entity: EntityApartment, Op: OpDelete, ID: apt.ID},
	}, obs.changes)
	require.Len(t, obs.history, 1)
	assert.Equal(t, "Lamp on", obs.history[0].Description)
}

func TestNotFoundErrorsShareSentinel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"apartment", func() error { _, err := s.GetApartment(ctx, 99); return err }, ErrApartmentNotFound},
		{"room", func() error { _, err := s.GetRoom(ctx, 99); return err }, ErrRoomNotFound},
		{"receiver", func() error { _, err := s.GetReceiver(ctx, 99); return err }, ErrReceiverNotFound},
		{"scene", func() error { _, err := s.GetScene(ctx, 99); return err }, ErrSceneNotFound},
		{"gateway", func() error { _, err := s.GetGateway(ctx, 99); return err }, ErrGatewayNotFound},
		{"geofence", func() error { _, err := s.GetGeofence(ctx, 99); return err }, ErrGeofenceNotFound},
		{"timer", func() error { _, err := s.GetTimer(ctx, 99); return err }, ErrTimerNotFound},
		{"call event", func() error { _, err := s.GetCallEvent(ctx, 99); return err }, ErrCallEventNotFound},
		{"widget", func() error { _, err := s.GetWidget(ctx, 99); return err }, ErrWidgetNotFound},
		{"update room", func() error { return s.SetRoomCollapsed(ctx, 99, true) }, ErrRoomNotFound},
		{"enable gateway", func() error { return s.EnableGateway(ctx, 99, true) }, ErrGatewayNotFound},
		{"delete timer", func() error { return s.DeleteTimer(ctx, 99) }, ErrTimerNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestBackup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.AddApartment(ctx, &Apartment{Name: "Home"}))

	path := filepath.Join(t.TempDir(), "backup.db")
	require.NoError(t, s.Backup(ctx, path))

	db, err := database.Open(ctx, database.Config{Path: path, BusyTimeout: 1})
	require.NoError(t, err)
	defer db.Close() //nolint:errcheck // Test cleanup

	copied := NewStore(db.DB)
	apartments, err := copied.ListApartments(ctx)
	require.NoError(t, err)
	require.Len(t, apartments, 1)
	assert.Equal(t, "Home", apartments[0].Name)

	// VACUUM INTO refuses to overwrite.
	assert.Error(t, s.Backup(ctx, path))
}
