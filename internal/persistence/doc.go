// Package persistence stores the PowerSwitch model in SQLite.
//
// The model covers apartments, rooms, receivers (with their buttons and
// type-specific settings), scenes, gateways, actions, geofences, timers,
// call events, alarm-clock actions, widgets and history.
//
// All access goes through Store. Each entity has a small set of handler
// functions that run raw SQL against one table group and map rows to
// values; Store composes them inside a transaction.
//
// # Relations
//
// The schema has no foreign keys. Deleting a base row removes every
// dependent row in the same transaction: an apartment takes its rooms,
// scenes, geofence and gateway links with it, a receiver takes its buttons,
// scene items, actions and widgets, and so on.
//
// # Actions
//
// Action is a tagged variant. The base table holds the kind; one satellite
// table per kind holds the payload. Actions are owned by exactly one
// timer, geofence, call event or alarm event and are replaced as a list
// when the owner is updated.
//
// # Thread Safety
//
// Store is safe for concurrent use. All calls serialize on one mutex and
// the underlying pool holds a single connection, so handlers never run
// outside the transaction of the current call.
package persistence
