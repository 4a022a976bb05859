package persistence

import (
	"context"
	"fmt"
)

func alarmActions(event AlarmEvent) actionList {
	return actionList{table: "alarm_actions", keys: []string{"event"}, args: []any{string(event)}}
}

// AlarmActions returns the actions run for an alarm-clock event, in order.
func (s *Store) AlarmActions(ctx context.Context, event AlarmEvent) ([]Action, error) {
	if err := validateAlarmEvent(event); err != nil {
		return nil, err
	}
	var out []Action
	err := s.read(ctx, "getting alarm actions", func(q dbtx) error {
		var err error
		out, err = alarmActions(event).load(ctx, q)
		return err
	})
	return out, err
}

// SetAlarmActions replaces the actions of an alarm-clock event.
// IDs are written back into actions.
func (s *Store) SetAlarmActions(ctx context.Context, event AlarmEvent, actions []Action) error {
	if err := validateAlarmEvent(event); err != nil {
		return err
	}
	if err := validateActions(actions); err != nil {
		return err
	}
	return s.write(ctx, "setting alarm actions", func(w *writeTx) error {
		if err := alarmActions(event).replace(ctx, w, actions); err != nil {
			return fmt.Errorf("replacing %s actions: %w", event, err)
		}
		w.changed(EntityAlarm, OpUpdate, 0)
		return nil
	})
}
