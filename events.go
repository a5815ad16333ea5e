package membership

// EventType identifies a membership transition.
type EventType string

const (
	EventJoin    EventType = "group.join"
	EventLeave   EventType = "group.leave"
	EventRequest EventType = "group.requestMembership"
	EventInvite  EventType = "group.inviteMember"
	EventDestroy EventType = "group.destroy"
)

// Event is the structured payload handed to the sink on a transition.
// UID is zero for EventDestroy.
type Event struct {
	Type  EventType
	Group string
	UID   int64
}

// EventSink receives membership transition events. Implementations MUST be
// cheap and non-blocking: the engines emit on hot paths, fire-and-forget,
// and never check an error. Notification delivery belongs behind this
// boundary; core correctness never depends on a subscriber being present or
// succeeding. See events/async for a buffered wrapper.
type EventSink interface {
	Emit(Event)
}

// NopSink is the default no-op.
type NopSink struct{}

func (NopSink) Emit(Event) {}
