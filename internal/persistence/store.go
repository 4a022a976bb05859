package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
)

// Logger is the logging surface the store needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Store is the single entry point to PowerSwitch persistence.
//
// Every method takes the store lock, runs its statements in one
// transaction and releases the lock before returning. Reads use a
// read-only transaction. Writes commit only when every statement
// succeeded; otherwise the transaction is rolled back and the database is
// left as it was.
type Store struct {
	mu       sync.Mutex
	db       *sql.DB
	logger   Logger
	observer Observer
}

// NewStore creates a store on db. The schema must already be migrated.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:       db,
		logger:   noopLogger{},
		observer: noopObserver{},
	}
}

// SetLogger sets the logger for the store.
func (s *Store) SetLogger(logger Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if logger == nil {
		logger = noopLogger{}
	}
	s.logger = logger
}

// SetObserver sets the observer notified after each committed write.
// Passing nil removes it.
func (s *Store) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

// writeTx is the transaction of one write call. It collects the changes
// reported to the observer after commit, and the writes into the caller's
// structs that are reverted if the transaction does not commit.
type writeTx struct {
	dbtx
	changes []Change
	history []HistoryItem
	undo    []func()
}

func (w *writeTx) changed(entity Entity, op Op, id int64) {
	w.changes = append(w.changes, Change{Entity: entity, Op: op, ID: id})
}

// set stores v in *dst, remembering the previous value.
func set[T any](w *writeTx, dst *T, v T) {
	old := *dst
	w.undo = append(w.undo, func() { *dst = old })
	*dst = v
}

// revert restores every value written by set, newest first.
func (w *writeTx) revert() {
	for i := len(w.undo) - 1; i >= 0; i-- {
		w.undo[i]()
	}
	w.undo = nil
}

// read runs fn in a read-only transaction under the store lock.
func (s *Store) read(ctx context.Context, op string, fn func(q dbtx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return s.fail(op, fmt.Errorf("starting transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	if err := fn(tx); err != nil {
		return s.fail(op, err)
	}
	if err := tx.Commit(); err != nil {
		return s.fail(op, fmt.Errorf("committing: %w", err))
	}
	return nil
}

// write runs fn in a read-write transaction under the store lock and
// notifies the observer once the lock is released.
func (s *Store) write(ctx context.Context, op string, fn func(w *writeTx) error) error {
	w, observer, err := s.commit(ctx, op, fn)
	if err != nil {
		return err
	}
	for _, c := range w.changes {
		observer.EntityChanged(ctx, c)
	}
	for _, h := range w.history {
		observer.HistoryAdded(ctx, h)
	}
	return nil
}

func (s *Store) commit(ctx context.Context, op string, fn func(w *writeTx) error) (*writeTx, Observer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, s.fail(op, fmt.Errorf("starting transaction: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	w := &writeTx{dbtx: tx}
	if err := fn(w); err != nil {
		w.revert()
		return nil, nil, s.fail(op, classifyConstraint(err))
	}
	if err := tx.Commit(); err != nil {
		w.revert()
		return nil, nil, s.fail(op, fmt.Errorf("committing: %w", err))
	}
	return w, s.observer, nil
}

// fail logs a failed operation and wraps err with it. Must hold s.mu.
func (s *Store) fail(op string, err error) error {
	var exists *GatewayExistsError
	switch {
	case errors.Is(err, ErrNotFound), errors.As(err, &exists), errors.Is(err, ErrInvalid):
		s.logger.Debug("persistence operation rejected", "op", op, "error", err)
	default:
		s.logger.Error("persistence operation failed", "op", op, "error", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
