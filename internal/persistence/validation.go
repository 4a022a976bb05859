package persistence

import (
	"fmt"
	"strings"
	"time"
)

const (
	maxNameLength = 100
	maxPort       = 65535
	maxLatitude   = 90
	maxLongitude  = 180
)

func validateName(what, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: %s name cannot be empty", ErrInvalid, what)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: %s name exceeds %d characters", ErrInvalid, what, maxNameLength)
	}
	return nil
}

func validateApartment(a *Apartment) error {
	if err := validateName("apartment", a.Name); err != nil {
		return err
	}
	if a.Geofence != nil {
		return validateGeofence(a.Geofence)
	}
	return nil
}

func validateRoom(r *Room) error {
	if err := validateName("room", r.Name); err != nil {
		return err
	}
	for i := range r.Receivers {
		if err := validateReceiver(&r.Receivers[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateReceiver(r *Receiver) error {
	if err := validateName("receiver", r.Name); err != nil {
		return err
	}
	if r.RepetitionAmount < 0 {
		return fmt.Errorf("%w: negative repetition amount", ErrInvalid)
	}
	for _, b := range r.Buttons {
		if err := validateName("button", b.Name); err != nil {
			return err
		}
		if b.Signal != "" && r.Type != ReceiverUniversal {
			return fmt.Errorf("%w: button %q has a signal but receiver is %s", ErrInvalid, b.Name, r.Type)
		}
	}

	dips := len(r.Dips) > 0
	masterSlave := r.MasterSlave != nil
	autoPair := r.AutoPairSeed != nil
	var ok bool
	switch r.Type {
	case ReceiverDips:
		ok = !masterSlave && !autoPair
	case ReceiverMasterSlave:
		ok = masterSlave && !dips && !autoPair
	case ReceiverAutoPair:
		ok = autoPair && !dips && !masterSlave
	case ReceiverUniversal:
		ok = !dips && !masterSlave && !autoPair
	default:
		return fmt.Errorf("%w: unknown receiver type %q", ErrInvalid, r.Type)
	}
	if !ok {
		return fmt.Errorf("%w: settings do not match receiver type %s", ErrInvalid, r.Type)
	}
	return nil
}

func validateScene(sc *Scene) error {
	return validateName("scene", sc.Name)
}

func validateGateway(g *Gateway) error {
	if strings.TrimSpace(g.Model) == "" {
		return fmt.Errorf("%w: gateway model cannot be empty", ErrInvalid)
	}
	for _, port := range []int{g.LocalPort, g.WANPort} {
		if port < 0 || port > maxPort {
			return fmt.Errorf("%w: port %d out of range", ErrInvalid, port)
		}
	}
	if g.LocalHost == "" && g.WANHost == "" {
		return fmt.Errorf("%w: gateway needs a local or WAN host", ErrInvalid)
	}
	return nil
}

func validateGeofence(g *Geofence) error {
	if err := validateName("geofence", g.Name); err != nil {
		return err
	}
	if g.Latitude < -maxLatitude || g.Latitude > maxLatitude {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalid, g.Latitude)
	}
	if g.Longitude < -maxLongitude || g.Longitude > maxLongitude {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalid, g.Longitude)
	}
	if g.Radius <= 0 {
		return fmt.Errorf("%w: radius must be positive", ErrInvalid)
	}
	if g.State != "" {
		if err := validateGeofenceState(g.State); err != nil {
			return err
		}
	}
	if err := validateActions(g.EnterActions); err != nil {
		return fmt.Errorf("enter actions: %w", err)
	}
	if err := validateActions(g.ExitActions); err != nil {
		return fmt.Errorf("exit actions: %w", err)
	}
	return nil
}

func validateGeofenceState(s GeofenceState) error {
	switch s {
	case GeofenceUnknown, GeofenceInside, GeofenceOutside:
		return nil
	default:
		return fmt.Errorf("%w: unknown geofence state %q", ErrInvalid, s)
	}
}

func validateTimer(t *Timer) error {
	if err := validateName("timer", t.Name); err != nil {
		return err
	}
	if t.ExecutionTime.IsZero() {
		return fmt.Errorf("%w: timer needs an execution time", ErrInvalid)
	}
	switch t.Type {
	case TimerWeekday:
		if len(t.Weekdays) == 0 {
			return fmt.Errorf("%w: weekday timer without weekdays", ErrInvalid)
		}
		for _, d := range t.Weekdays {
			if d < time.Sunday || d > time.Saturday {
				return fmt.Errorf("%w: invalid weekday %d", ErrInvalid, d)
			}
		}
	case TimerInterval:
		if t.Interval <= 0 {
			return fmt.Errorf("%w: interval timer needs a positive interval", ErrInvalid)
		}
		if t.Interval%time.Millisecond != 0 {
			return fmt.Errorf("%w: interval %s is not a whole number of milliseconds", ErrInvalid, t.Interval)
		}
	default:
		return fmt.Errorf("%w: unknown timer type %q", ErrInvalid, t.Type)
	}
	return validateActions(t.Actions)
}

func validateCallEvent(e *CallEvent) error {
	if err := validateName("call event", e.Name); err != nil {
		return err
	}
	for _, n := range e.PhoneNumbers {
		if strings.TrimSpace(n) == "" {
			return fmt.Errorf("%w: empty phone number", ErrInvalid)
		}
	}
	return validateActions(e.Actions)
}

func validateAlarmEvent(e AlarmEvent) error {
	switch e {
	case AlarmTriggered, AlarmSnoozed, AlarmDismissed:
		return nil
	default:
		return fmt.Errorf("%w: unknown alarm event %q", ErrInvalid, e)
	}
}

func validateWidget(w Widget) error {
	switch w.Kind {
	case WidgetReceiver, WidgetRoom, WidgetScene:
		return nil
	default:
		return fmt.Errorf("%w: unknown widget kind %q", ErrInvalid, w.Kind)
	}
}
