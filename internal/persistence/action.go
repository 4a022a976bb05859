package persistence

import (
	"fmt"
	"time"
)

// ActionKind discriminates the Action variant.
type ActionKind string

const (
	ActionReceiver ActionKind = "receiver"
	ActionRoom     ActionKind = "room"
	ActionScene    ActionKind = "scene"
	ActionPause    ActionKind = "pause"
)

// Action is something a timer, geofence, call event or alarm can run.
//
// It is a tagged variant: Kind selects which one payload pointer is set.
// Use the New*Action constructors to build valid values.
type Action struct {
	ID   int64
	Kind ActionKind

	Receiver *ReceiverAction
	Room     *RoomAction
	Scene    *SceneAction
	Pause    *PauseAction
}

// ReceiverAction presses one button of one receiver.
type ReceiverAction struct {
	ApartmentID int64
	RoomID      int64
	ReceiverID  int64
	ButtonID    int64
}

// RoomAction presses the button with the given name on every receiver of a room.
type RoomAction struct {
	ApartmentID int64
	RoomID      int64
	ButtonName  string
}

// SceneAction activates a scene.
type SceneAction struct {
	ApartmentID int64
	SceneID     int64
}

// PauseAction waits before the next action runs.
type PauseAction struct {
	Duration time.Duration
}

// NewReceiverAction returns an action pressing buttonID on receiverID.
// The room and apartment ids must be the ones the receiver sits in.
func NewReceiverAction(apartmentID, roomID, receiverID, buttonID int64) Action {
	return Action{Kind: ActionReceiver, Receiver: &ReceiverAction{
		ApartmentID: apartmentID,
		RoomID:      roomID,
		ReceiverID:  receiverID,
		ButtonID:    buttonID,
	}}
}

// NewRoomAction returns an action pressing the button named buttonName on
// every receiver of roomID.
func NewRoomAction(apartmentID, roomID int64, buttonName string) Action {
	return Action{Kind: ActionRoom, Room: &RoomAction{
		ApartmentID: apartmentID,
		RoomID:      roomID,
		ButtonName:  buttonName,
	}}
}

// NewSceneAction returns an action activating sceneID.
func NewSceneAction(apartmentID, sceneID int64) Action {
	return Action{Kind: ActionScene, Scene: &SceneAction{ApartmentID: apartmentID, SceneID: sceneID}}
}

// NewPauseAction returns an action waiting d. Stored pauses have
// millisecond resolution.
func NewPauseAction(d time.Duration) Action {
	return Action{Kind: ActionPause, Pause: &PauseAction{Duration: d}}
}

// Validate checks that exactly the payload named by Kind is set.
func (a Action) Validate() error {
	payloads := 0
	for _, p := range []bool{a.Receiver != nil, a.Room != nil, a.Scene != nil, a.Pause != nil} {
		if p {
			payloads++
		}
	}
	if payloads != 1 {
		return fmt.Errorf("%w: action must carry exactly one payload, has %d", ErrInvalid, payloads)
	}

	switch a.Kind {
	case ActionReceiver:
		if a.Receiver == nil {
			return fmt.Errorf("%w: receiver action without receiver payload", ErrInvalid)
		}
	case ActionRoom:
		if a.Room == nil {
			return fmt.Errorf("%w: room action without room payload", ErrInvalid)
		}
		if a.Room.ButtonName == "" {
			return fmt.Errorf("%w: room action needs a button name", ErrInvalid)
		}
	case ActionScene:
		if a.Scene == nil {
			return fmt.Errorf("%w: scene action without scene payload", ErrInvalid)
		}
	case ActionPause:
		if a.Pause == nil {
			return fmt.Errorf("%w: pause action without pause payload", ErrInvalid)
		}
		if a.Pause.Duration < 0 {
			return fmt.Errorf("%w: negative pause", ErrInvalid)
		}
		if a.Pause.Duration%time.Millisecond != 0 {
			return fmt.Errorf("%w: pause %s is not a whole number of milliseconds", ErrInvalid, a.Pause.Duration)
		}
	default:
		return fmt.Errorf("%w: unknown action kind %q", ErrInvalid, a.Kind)
	}
	return nil
}

// String describes the action for history entries and logs.
func (a Action) String() string {
	switch {
	case a.Kind == ActionReceiver && a.Receiver != nil:
		return fmt.Sprintf("receiver %d button %d", a.Receiver.ReceiverID, a.Receiver.ButtonID)
	case a.Kind == ActionRoom && a.Room != nil:
		return fmt.Sprintf("room %d button %q", a.Room.RoomID, a.Room.ButtonName)
	case a.Kind == ActionScene && a.Scene != nil:
		return fmt.Sprintf("scene %d", a.Scene.SceneID)
	case a.Kind == ActionPause && a.Pause != nil:
		return fmt.Sprintf("pause %s", a.Pause.Duration)
	default:
		return fmt.Sprintf("action(%s)", a.Kind)
	}
}

func validateActions(actions []Action) error {
	for i := range actions {
		if err := actions[i].Validate(); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}
