package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestActionValidate(t *testing.T) {
	tests := []struct {
		name    string
		action  Action
		wantErr bool
	}{
		{"receiver", NewReceiverAction(1, 2, 3, 4), false},
		{"room", NewRoomAction(1, 2, "On"), false},
		{"scene", NewSceneAction(1, 5), false},
		{"pause", NewPauseAction(time.Second), false},
		{"zero pause", NewPauseAction(0), false},
		{"negative pause", NewPauseAction(-time.Second), true},
		{"sub-millisecond pause", NewPauseAction(1500 * time.Microsecond), true},
		{"room without button name", NewRoomAction(1, 2, ""), true},
		{"no payload", Action{Kind: ActionScene}, true},
		{"kind mismatch", Action{Kind: ActionScene, Pause: &PauseAction{}}, true},
		{"two payloads", Action{Kind: ActionPause, Pause: &PauseAction{}, Scene: &SceneAction{}}, true},
		{"unknown kind", Action{Kind: "macro", Pause: &PauseAction{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.action.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalid)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "receiver 3 button 4", NewReceiverAction(1, 2, 3, 4).String())
	assert.Equal(t, `room 2 button "Off"`, NewRoomAction(1, 2, "Off").String())
	assert.Equal(t, "scene 5", NewSceneAction(1, 5).String())
	assert.Equal(t, "pause 1.5s", NewPauseAction(1500*time.Millisecond).String())
	assert.Equal(t, "action(scene)", Action{Kind: ActionScene}.String())
}

func TestValidateActionsReportsIndex(t *testing.T) {
	err := validateActions([]Action{NewPauseAction(0), {Kind: ActionRoom}})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorContains(t, err, "action 1")
}
