package mqtt

import "fmt"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "powerswitch"

// Topics builds PowerSwitch MQTT topics under a common prefix.
//
//	topics := mqtt.Topics{Prefix: "powerswitch"}
//	topics.EntityEvent("room", "delete")
//	// Returns: "powerswitch/event/room/delete"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// EntityEvent returns the topic for a change to a stored entity.
//
// Example: powerswitch/event/receiver/update
func (t Topics) EntityEvent(entity, op string) string {
	return fmt.Sprintf("%s/event/%s/%s", t.prefix(), entity, op)
}

// History returns the topic new history entries are published on.
//
// Example: powerswitch/history
func (t Topics) History() string {
	return t.prefix() + "/history"
}

// SystemStatus returns the retained online/offline status topic.
//
// Example: powerswitch/system/status
func (t Topics) SystemStatus() string {
	return t.prefix() + "/system/status"
}

// AllEntityEvents matches every entity change.
//
// Pattern: powerswitch/event/+/+
func (t Topics) AllEntityEvents() string {
	return t.prefix() + "/event/+/+"
}

// EntityEvents matches every change to one entity type.
//
// Pattern: powerswitch/event/gateway/+
func (t Topics) EntityEvents(entity string) string {
	return fmt.Sprintf("%s/event/%s/+", t.prefix(), entity)
}

// Command returns the topic a store command is received on.
//
// Example: powerswitch/command/history
func (t Topics) Command(name string) string {
	return fmt.Sprintf("%s/command/%s", t.prefix(), name)
}

// AllCommands matches every store command.
//
// Pattern: powerswitch/command/+
func (t Topics) AllCommands() string {
	return t.prefix() + "/command/+"
}

// AllTopics matches everything under the prefix.
//
// Pattern: powerswitch/#
func (t Topics) AllTopics() string {
	return t.prefix() + "/#"
}
