package core

import "fmt"

type RouterEvent int

// trace events

const (
	NodeUpdated RouterEvent = iota
	NodeExpired
	LinkWithdrawn
	DuplicateDao
)

// warn events

const (
	DaoDropped RouterEvent = iota + 1000
	NoPathIgnored
)

func (e RouterEvent) String() string {
	switch e {
	case NodeUpdated:
		return "NodeUpdated"
	case NodeExpired:
		return "NodeExpired"
	case LinkWithdrawn:
		return "LinkWithdrawn"
	case DuplicateDao:
		return "DuplicateDao"
	case DaoDropped:
		return "DaoDropped"
	case NoPathIgnored:
		return "NoPathIgnored"
	}
	return fmt.Sprintf("RouterEvent(%d)", int(e))
}

func (e RouterEvent) IsWarning() bool {
	return e >= 1000
}

// EventSink receives the events raised while maintaining the topology
type EventSink interface {
	Log(event RouterEvent, desc string, args ...any)
}

// TraceEvent is what gets published to trace subscribers
type TraceEvent struct {
	Event RouterEvent
	Desc  string
	Args  []any
}

func (t TraceEvent) String() string {
	out := fmt.Sprintf("%s %s", t.Event, t.Desc)
	for i := 0; i+1 < len(t.Args); i += 2 {
		out += fmt.Sprintf(" %v=%v", t.Args[i], t.Args[i+1])
	}
	return out
}
