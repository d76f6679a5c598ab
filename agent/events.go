package agent

import (
	"fmt"
	"sort"

	"github.com/jasoft/miniwowbot/model"
)

// EventKind is the direction of a signal edge.
type EventKind string

const (
	EventRising  EventKind = "rising"
	EventFalling EventKind = "falling"
)

// Event is a signal that turned on or off between two ticks.
type Event struct {
	Kind   EventKind
	Signal string
	Value  any // the new value; nil for falling edges
}

func (e Event) String() string {
	if e.Kind == EventFalling {
		return fmt.Sprintf("%s off", e.Signal)
	}
	return fmt.Sprintf("%s on (%v)", e.Signal, e.Value)
}

// DetectEvents compares two WorldState snapshots and returns the signals
// whose truthiness changed, sorted by signal name. Returns nil if prev is
// nil (first tick).
func DetectEvents(prev, cur map[string]any) []Event {
	if prev == nil {
		return nil
	}

	names := make(map[string]struct{}, len(prev)+len(cur))
	for k := range prev {
		names[k] = struct{}{}
	}
	for k := range cur {
		names[k] = struct{}{}
	}

	var events []Event
	for name := range names {
		was, is := model.Truthy(prev[name]), model.Truthy(cur[name])
		switch {
		case !was && is:
			events = append(events, Event{Kind: EventRising, Signal: name, Value: cur[name]})
		case was && !is:
			events = append(events, Event{Kind: EventFalling, Signal: name})
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Signal < events[j].Signal })
	return events
}
