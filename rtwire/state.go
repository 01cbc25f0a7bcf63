package rtwire

// ConnectionState is the sum type driven exclusively by the lifecycle
// engine (single writer); every other component only reads it.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
	Failed
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Reconnecting:
		return "Reconnecting"
	case Failed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// validTransitions enumerates every transition the lifecycle engine is
// allowed to make. It exists as data, not a chain of if-statements, so the
// state-monotonicity property in the specification can be checked directly
// against it in tests.
var validTransitions = map[ConnectionState]map[ConnectionState]bool{
	Disconnected:  {Connecting: true},
	Connecting:    {Connected: true, Reconnecting: true, Failed: true, Disconnected: true},
	Connected:     {Reconnecting: true, Disconnected: true},
	Reconnecting:  {Connected: true, Failed: true, Disconnected: true},
	Failed:        {Disconnected: true},
}

// CanTransition reports whether moving from 'from' to 'to' is a legal
// lifecycle transition. Disconnected→Connected and Reconnecting→Connecting
// are always forbidden, matching the specification's state-monotonicity
// property.
func CanTransition(from, to ConnectionState) bool {
	return validTransitions[from][to]
}
