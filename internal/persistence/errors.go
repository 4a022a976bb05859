package persistence

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Sentinel errors for persistence operations.
//
// Every per-entity not-found error wraps ErrNotFound, so callers that only
// care about existence can check:
//
//	if errors.Is(err, persistence.ErrNotFound) {
//	    // fall back
//	}
var (
	// ErrNotFound is the common cause of every not-found error below.
	ErrNotFound = errors.New("not found")

	ErrApartmentNotFound = fmt.Errorf("apartment %w", ErrNotFound)
	ErrRoomNotFound      = fmt.Errorf("room %w", ErrNotFound)
	ErrReceiverNotFound  = fmt.Errorf("receiver %w", ErrNotFound)
	ErrButtonNotFound    = fmt.Errorf("button %w", ErrNotFound)
	ErrSceneNotFound     = fmt.Errorf("scene %w", ErrNotFound)
	ErrGatewayNotFound   = fmt.Errorf("gateway %w", ErrNotFound)
	ErrActionNotFound    = fmt.Errorf("action %w", ErrNotFound)
	ErrGeofenceNotFound  = fmt.Errorf("geofence %w", ErrNotFound)
	ErrTimerNotFound     = fmt.Errorf("timer %w", ErrNotFound)
	ErrCallEventNotFound = fmt.Errorf("call event %w", ErrNotFound)
	ErrWidgetNotFound    = fmt.Errorf("widget %w", ErrNotFound)

	// ErrGatewayExists is matched by *GatewayExistsError.
	ErrGatewayExists = errors.New("gateway already exists")

	// ErrNameConflict is returned when a write violates a uniqueness rule,
	// e.g. two rooms with the same name in one apartment.
	ErrNameConflict = errors.New("name already in use")

	// ErrInvalid is returned when input is rejected before any SQL runs.
	ErrInvalid = errors.New("invalid input")
)

// GatewayExistsError reports a gateway whose address is already stored.
// Callers can re-enable the existing row instead of inserting a duplicate.
type GatewayExistsError struct {
	ID     int64
	Active bool
}

func (e *GatewayExistsError) Error() string {
	return fmt.Sprintf("gateway already exists: id %d (active=%t)", e.ID, e.Active)
}

// Is makes errors.Is(err, ErrGatewayExists) match.
func (e *GatewayExistsError) Is(target error) bool {
	return target == ErrGatewayExists
}

// classifyConstraint maps SQLite uniqueness violations to ErrNameConflict.
// Other errors are returned unchanged.
func classifyConstraint(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}
	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", ErrNameConflict, err)
	default:
		return err
	}
}
