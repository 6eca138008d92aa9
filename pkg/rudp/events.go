package rudp

// EventType identifies the kind of Event a half connection's Step
// produces (spec.md §6 Application API). Generalized from the teacher's
// core/events.EventType enum, traded from per-player game events for
// per-connection transport events.
type EventType int

const (
	EventConnect EventType = iota
	EventDisconnect
	EventReceive
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventConnect:
		return "Connect"
	case EventDisconnect:
		return "Disconnect"
	case EventReceive:
		return "Receive"
	case EventError:
		return "Error"
	default:
		return "EventType(?)"
	}
}

// ErrorKind enumerates the recoverable conditions an EventError carries
// (spec.md §6 "Error(kind)").
type ErrorKind int

const (
	ErrorHandshakeTimeout ErrorKind = iota
	ErrorTimeout
	ErrorVersion
	ErrorServerFull
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorHandshakeTimeout:
		return "HandshakeTimeout"
	case ErrorTimeout:
		return "Timeout"
	case ErrorVersion:
		return "Version"
	case ErrorServerFull:
		return "ServerFull"
	default:
		return "ErrorKind(?)"
	}
}

// Event is one item of the event stream a half connection's Step call
// surfaces to the application (spec.md §6). Only the fields relevant to
// Type are populated.
type Event struct {
	Type    EventType
	Channel uint8  // EventReceive
	Data    []byte // EventReceive
	Kind    ErrorKind
}
