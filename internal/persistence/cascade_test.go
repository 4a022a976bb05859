package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeleteApartmentCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	f := seedFixture(t, s)

	gw := &Gateway{Model: "ITGW-433", LocalHost: "192.168.1.20", LocalPort: 49880, ApartmentIDs: []int64{f.apartment.ID}}
	require.NoError(t, s.AddGateway(ctx, gw))

	f.apartment.GatewayIDs = []int64{gw.ID}
	f.apartment.Geofence = &Geofence{Name: "Home", Latitude: 1, Longitude: 1, Radius: 50,
		EnterActions: []Action{NewRoomAction(f.apartment.ID, f.room.ID, "On")}}
	require.NoError(t, s.UpdateApartment(ctx, f.apartment))

	custom := &Geofence{Name: "Gym", Latitude: 2, Longitude: 2, Radius: 30,
		EnterActions: []Action{NewReceiverAction(f.apartment.ID, f.room.ID, f.lamp.ID, f.lamp.Buttons[0].ID)}}
	require.NoError(t, s.AddGeofence(ctx, custom))

	timer := &Timer{Name: "Evening", Active: true, ExecutionTime: time.Date(2026, 10, 15, 19, 0, 0, 0, time.UTC),
		Type: TimerInterval, Interval: 24 * time.Hour,
		Actions: []Action{NewSceneAction(f.apartment.ID, f.scene.ID), NewPauseAction(time.Second)}}
	require.NoError(t, s.AddTimer(ctx, timer))

	call := &CallEvent{Name: "Doorbell", Active: true, PhoneNumbers: []string{"+491"},
		Actions: []Action{NewRoomAction(f.apartment.ID, f.room.ID, "Off")}}
	require.NoError(t, s.AddCallEvent(ctx, call))

	require.NoError(t, s.SetAlarmActions(ctx, AlarmDismissed,
		[]Action{NewReceiverAction(f.apartment.ID, f.room.ID, f.heater.ID, f.heater.Buttons[1].ID)}))

	require.NoError(t, s.AddWidget(ctx, Widget{ID: 1, Kind: WidgetReceiver, TargetID: f.lamp.ID}))
	require.NoError(t, s.AddWidget(ctx, Widget{ID: 2, Kind: WidgetRoom, TargetID: f.room.ID}))
	require.NoError(t, s.AddWidget(ctx, Widget{ID: 3, Kind: WidgetScene, TargetID: f.scene.ID}))

	require.NoError(t, s.DeleteApartment(ctx, f.apartment.ID))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, Counts{
		Gateways:   1,
		Actions:    1, // the timer's pause
		Geofences:  1, // the custom one
		Timers:     1,
		CallEvents: 1,
	}, counts)

	gotGW, err := s.GetGateway(ctx, gw.ID)
	require.NoError(t, err)
	assert.Empty(t, gotGW.ApartmentIDs)

	gotTimer, err := s.GetTimer(ctx, timer.ID)
	require.NoError(t, err)
	require.Len(t, gotTimer.Actions, 1)
	assert.Equal(t, ActionPause, gotTimer.Actions[0].Kind)

	gotGeofence, err := s.GetGeofence(ctx, custom.ID)
	require.NoError(t, err)
	assert.Empty(t, gotGeofence.EnterActions)

	gotCall, err := s.GetCallEvent(ctx, call.ID)
	require.NoError(t, err)
	assert.Empty(t, gotCall.Actions)

	alarm, err := s.AlarmActions(ctx, AlarmDismissed)
	require.NoError(t, err)
	assert.Empty(t, alarm)

	_, err = s.GetRoom(ctx, f.room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
	_, err = s.GetScene(ctx, f.scene.ID)
	assert.ErrorIs(t, err, ErrSceneNotFound)
}

func TestDeleteRoomCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	f := seedFixture(t, s)

	other := &Room{ApartmentID: f.apartment.ID, Name: "Kitchen", Position: 1,
		Receivers: []Receiver{{Name: "Kettle", Type: ReceiverUniversal, Buttons: []Button{{Name: "On", Signal: "1,2"}}}}}
	require.NoError(t, s.AddRoom(ctx, other))

	timer := &Timer{Name: "Morning", ExecutionTime: time.Date(2026, 10, 15, 7, 0, 0, 0, time.UTC),
		Type: TimerWeekday, Weekdays: []time.Weekday{time.Monday},
		Actions: []Action{
			NewRoomAction(f.apartment.ID, f.room.ID, "On"),
			NewReceiverAction(f.apartment.ID, other.ID, other.Receivers[0].ID, other.Receivers[0].Buttons[0].ID),
		}}
	require.NoError(t, s.AddTimer(ctx, timer))

	require.NoError(t, s.DeleteRoom(ctx, f.room.ID))

	// The scene pointed only at the deleted receivers.
	scene, err := s.GetScene(ctx, f.scene.ID)
	require.NoError(t, err)
	assert.Empty(t, scene.Items)

	got, err := s.GetTimer(ctx, timer.ID)
	require.NoError(t, err)
	require.Len(t, got.Actions, 1)
	assert.Equal(t, other.Receivers[0].ID, got.Actions[0].Receiver.ReceiverID)

	rooms, err := s.ListRooms(ctx, f.apartment.ID)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, "Kitchen", rooms[0].Name)

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Receivers)
	assert.Equal(t, 1, counts.Actions)
}

func TestDeleteReceiverRemovesReferences(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	f := seedFixture(t, s)

	call := &CallEvent{Name: "Boss", Active: true, PhoneNumbers: []string{"+1555"},
		Actions: []Action{
			NewReceiverAction(f.apartment.ID, f.room.ID, f.lamp.ID, f.lamp.Buttons[1].ID),
			NewPauseAction(time.Second),
			NewReceiverAction(f.apartment.ID, f.room.ID, f.heater.ID, f.heater.Buttons[0].ID),
		}}
	require.NoError(t, s.AddCallEvent(ctx, call))
	require.NoError(t, s.AddWidget(ctx, Widget{ID: 5, Kind: WidgetReceiver, TargetID: f.lamp.ID}))

	require.NoError(t, s.DeleteReceiver(ctx, f.lamp.ID))

	got, err := s.GetCallEvent(ctx, call.ID)
	require.NoError(t, err)
	require.Len(t, got.Actions, 2)
	assert.Equal(t, ActionPause, got.Actions[0].Kind)
	assert.Equal(t, f.heater.ID, got.Actions[1].Receiver.ReceiverID)

	scene, err := s.GetScene(ctx, f.scene.ID)
	require.NoError(t, err)
	assert.Equal(t, []SceneItem{f.scene.Items[1]}, scene.Items)

	_, err = s.GetWidget(ctx, 5)
	assert.ErrorIs(t, err, ErrWidgetNotFound)
}

func TestDeleteSceneRemovesSceneActions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	f := seedFixture(t, s)

	require.NoError(t, s.SetAlarmActions(ctx, AlarmTriggered, []Action{
		NewSceneAction(f.apartment.ID, f.scene.ID),
		NewRoomAction(f.apartment.ID, f.room.ID, "On"),
	}))

	require.NoError(t, s.DeleteScene(ctx, f.scene.ID))

	got, err := s.AlarmActions(ctx, AlarmTriggered)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, ActionRoom, got[0].Kind)
}

func TestDeleteGatewayUnlinks(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	gw := &Gateway{Model: "ITGW-433", WANHost: "home.example.org", WANPort: 49880, SSIDs: []string{"home"}}
	require.NoError(t, s.AddGateway(ctx, gw))

	apt := &Apartment{Name: "Home", GatewayIDs: []int64{gw.ID}}
	require.NoError(t, s.AddApartment(ctx, apt))
	room := &Room{ApartmentID: apt.ID, Name: "Living", GatewayIDs: []int64{gw.ID}}
	require.NoError(t, s.AddRoom(ctx, room))

	require.NoError(t, s.DeleteGateway(ctx, gw.ID))

	gotApt, err := s.GetApartment(ctx, apt.ID)
	require.NoError(t, err)
	assert.Empty(t, gotApt.GatewayIDs)

	gotRoom, err := s.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, gotRoom.GatewayIDs)

	assert.ErrorIs(t, s.DeleteGateway(ctx, gw.ID), ErrGatewayNotFound)
}
