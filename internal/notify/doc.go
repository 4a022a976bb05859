// Package notify forwards committed store changes to the outside world.
//
// Each type here implements persistence.Observer:
//
//	MQTTObserver    publishes JSON events on powerswitch/event/{entity}/{op}
//	                and powerswitch/history
//	InfluxObserver  writes change and history points to InfluxDB
//	Multi           fans out to several observers
//
// Observers run after the store lock is released. Delivery failures are
// logged and never reach the store caller.
package notify
