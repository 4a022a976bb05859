package persistence

import "context"

// Entity names the kind of record a Change refers to.
type Entity string

const (
	EntityApartment Entity = "apartment"
	EntityRoom      Entity = "room"
	EntityReceiver  Entity = "receiver"
	EntityScene     Entity = "scene"
	EntityGateway   Entity = "gateway"
	EntityGeofence  Entity = "geofence"
	EntityTimer     Entity = "timer"
	EntityCallEvent Entity = "call_event"
	EntityAlarm     Entity = "alarm"
	EntityHistory   Entity = "history"
	EntityWidget    Entity = "widget"
)

// Op is the kind of write that produced a Change.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change describes one committed write.
type Change struct {
	Entity Entity
	Op     Op
	ID     int64
}

// Observer is notified after a write commits.
//
// Calls happen outside the store lock, on the caller's goroutine, in commit
// order. Implementations must not block for long and must not call back
// into the store synchronously.
type Observer interface {
	EntityChanged(ctx context.Context, c Change)
	HistoryAdded(ctx context.Context, item HistoryItem)
}

type noopObserver struct{}

func (noopObserver) EntityChanged(context.Context, Change)     {}
func (noopObserver) HistoryAdded(context.Context, HistoryItem) {}
