// Package mqtt provides the MQTT client the PowerSwitch daemon uses to
// announce committed changes and receive store commands.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Topics
//
// All topics live under a configurable prefix (default "powerswitch"):
//
//	powerswitch/event/{entity}/{op}   entity changes, e.g. event/room/delete
//	powerswitch/history               new history entries
//	powerswitch/system/status         retained online/offline status
//	powerswitch/command/{name}        store commands, e.g. command/history
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().EntityEvent("receiver", "update")
//	err = client.PublishJSON(topic, event, false)
package mqtt
