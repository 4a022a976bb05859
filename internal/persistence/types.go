package persistence

import "time"

// Apartment is the top-level container for rooms, scenes and gateways.
// At most one apartment is active at a time.
type Apartment struct {
	ID       int64
	Name     string
	Active   bool
	Position int

	// GatewayIDs lists the gateways this apartment is reachable through,
	// ascending.
	GatewayIDs []int64

	// Geofence is the apartment's own geofence, if any.
	Geofence *Geofence
}

// Room groups receivers inside an apartment.
type Room struct {
	ID          int64
	ApartmentID int64
	Name        string
	Position    int
	Collapsed   bool
	GatewayIDs  []int64
	Receivers   []Receiver
}

// ReceiverType selects how a receiver is addressed over the air.
type ReceiverType string

const (
	ReceiverDips        ReceiverType = "dips"
	ReceiverMasterSlave ReceiverType = "master_slave"
	ReceiverAutoPair    ReceiverType = "autopair"
	ReceiverUniversal   ReceiverType = "universal"
)

// Receiver is a switchable RF device inside a room.
//
// Exactly one of the type-specific fields is meaningful: Dips for
// ReceiverDips, MasterSlave for ReceiverMasterSlave, AutoPairSeed for
// ReceiverAutoPair. Universal receivers carry their codes on the buttons.
type Receiver struct {
	ID               int64
	RoomID           int64
	Name             string
	Model            string
	Type             ReceiverType
	Position         int
	RepetitionAmount int

	// LastActivatedButtonID is nil until a button was used.
	LastActivatedButtonID *int64

	Buttons []Button

	Dips         []bool
	MasterSlave  *MasterSlave
	AutoPairSeed *int64
}

// MasterSlave is the channel setting of a master/slave receiver.
type MasterSlave struct {
	Master string
	Slave  int
}

// Button is one command of a receiver.
type Button struct {
	ID         int64
	ReceiverID int64
	Name       string
	Position   int

	// Signal is the raw code of a universal button, empty otherwise.
	Signal string
}

// Scene switches several receivers at once.
type Scene struct {
	ID          int64
	ApartmentID int64
	Name        string
	Position    int
	Items       []SceneItem
}

// SceneItem selects one button of one receiver. Items keep their order.
type SceneItem struct {
	ReceiverID int64
	ButtonID   int64
}

// Gateway is a network bridge that transmits RF signals.
type Gateway struct {
	ID       int64
	Model    string
	Name     string
	Firmware string
	Active   bool

	LocalHost string
	LocalPort int
	WANHost   string
	WANPort   int

	// SSIDs are the wireless networks the gateway is reachable from, sorted.
	SSIDs []string

	// ApartmentIDs lists the apartments using this gateway, ascending.
	ApartmentIDs []int64
}

// GeofenceState is the last known position relative to a geofence.
type GeofenceState string

const (
	GeofenceUnknown GeofenceState = "unknown"
	GeofenceInside  GeofenceState = "inside"
	GeofenceOutside GeofenceState = "outside"
)

// Geofence is a circular region with actions run on enter and exit.
type Geofence struct {
	ID        int64
	Name      string
	Active    bool
	Latitude  float64
	Longitude float64

	// Radius in meters.
	Radius float64

	// Snapshot is an opaque map image.
	Snapshot []byte

	State        GeofenceState
	EnterActions []Action
	ExitActions  []Action
}

// TimerType selects how a timer repeats.
type TimerType string

const (
	TimerWeekday  TimerType = "weekday"
	TimerInterval TimerType = "interval"
)

// Timer runs its actions on selected weekdays or at a fixed interval.
type Timer struct {
	ID            int64
	Name          string
	Active        bool
	ExecutionTime time.Time
	Type          TimerType

	// Weekdays is used by TimerWeekday, sorted Sunday first.
	Weekdays []time.Weekday

	// Interval is used by TimerInterval. It is stored in whole milliseconds.
	Interval time.Duration

	LastExecution *time.Time
	Actions       []Action
}

// HistoryItem records something that happened, e.g. an executed action.
type HistoryItem struct {
	ID              int64
	Time            time.Time
	Description     string
	LongDescription string
}

// CallEvent runs actions when a call from one of its numbers comes in.
type CallEvent struct {
	ID           int64
	Name         string
	Active       bool
	PhoneNumbers []string
	Actions      []Action
}

// AlarmEvent is an alarm-clock event that can trigger actions.
type AlarmEvent string

const (
	AlarmTriggered AlarmEvent = "alarm_triggered"
	AlarmSnoozed   AlarmEvent = "alarm_snoozed"
	AlarmDismissed AlarmEvent = "alarm_dismissed"
)

// WidgetKind names what a home-screen widget controls.
type WidgetKind string

const (
	WidgetReceiver WidgetKind = "receiver"
	WidgetRoom     WidgetKind = "room"
	WidgetScene    WidgetKind = "scene"
)

// Widget binds a host widget id to a receiver, room or scene.
type Widget struct {
	// ID is assigned by the widget host, not by the store.
	ID       int64
	Kind     WidgetKind
	TargetID int64
}

// Counts reports the number of stored rows per entity.
type Counts struct {
	Apartments int
	Rooms      int
	Receivers  int
	Scenes     int
	Gateways   int
	Actions    int
	Geofences  int
	Timers     int
	CallEvents int
	History    int
	Widgets    int
}
