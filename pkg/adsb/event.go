package adsb

import (
	"errors"
	"fmt"
)

// Event names on the push channel. The decoder publishes the camelCase names,
// the dashed aliases are accepted on input.
const (
	EventNameUpdate = "updatePlane"
	EventNameRemove = "removePlane"

	eventAliasUpdate = "plane-updated"
	eventAliasRemove = "plane-removed"
)

// ErrUnknownEvent is returned when an envelope names an event we do not handle.
var ErrUnknownEvent = errors.New("unknown event")

// EventKind tags the variant carried by an Event.
type EventKind int

const (
	EventUpdated EventKind = iota + 1
	EventRemoved
	EventConnected
	EventDisconnected
)

func (k EventKind) String() string {
	switch k {
	case EventUpdated:
		return "updated"
	case EventRemoved:
		return "removed"
	case EventConnected:
		return "connected"
	case EventDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one inbound notification from the push channel.
// Aircraft is set for EventUpdated, ICAO for EventUpdated and EventRemoved,
// Err optionally for EventDisconnected.
type Event struct {
	Kind     EventKind
	ICAO     string
	Aircraft Aircraft
	Err      error
}

// Updated builds an EventUpdated for ac.
func Updated(ac Aircraft) Event {
	return Event{Kind: EventUpdated, ICAO: ac.ICAO, Aircraft: ac}
}

// Removed builds an EventRemoved for icao.
func Removed(icao string) Event {
	return Event{Kind: EventRemoved, ICAO: icao}
}

// Envelope is the framing of every message on the push channel.
type Envelope struct {
	Event string `json:"event" msgpack:"event"`
	Data  Plane  `json:"data" msgpack:"data"`
}

// EnvelopeFor frames an Updated or Removed event for the wire.
func EnvelopeFor(ev Event) (Envelope, error) {
	switch ev.Kind {
	case EventUpdated:
		return Envelope{Event: EventNameUpdate, Data: PlaneFromAircraft(ev.Aircraft)}, nil
	case EventRemoved:
		return Envelope{Event: EventNameRemove, Data: Plane{ICAO: ev.ICAO}}, nil
	default:
		return Envelope{}, fmt.Errorf("%w: %s is not a wire event", ErrUnknownEvent, ev.Kind)
	}
}

// ToEvent validates an envelope received from the channel.
func (e Envelope) ToEvent() (Event, error) {
	switch e.Event {
	case EventNameUpdate, eventAliasUpdate:
		ac, err := e.Data.Sanitize()
		if err != nil {
			return Event{}, err
		}
		return Updated(ac), nil
	case EventNameRemove, eventAliasRemove:
		icao := e.Data.Key()
		if icao == "" {
			return Event{}, fmt.Errorf("%w: missing icao", ErrInvalidPlane)
		}
		return Removed(icao), nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEvent, e.Event)
	}
}
