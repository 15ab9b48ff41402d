package engine

// State is the delivery engine's position in the word-of-day cycle.
type State int

const (
	StateIdle State = iota
	StateAwaitingConfirmation
	StateGenerating
	StateDelivering
	StateAwaitingEtymology
	StatePostDelivery
)

var stateNames = map[State]string{
	StateIdle:                 "idle",
	StateAwaitingConfirmation: "awaiting-confirmation",
	StateGenerating:           "generating",
	StateDelivering:           "delivering",
	StateAwaitingEtymology:    "awaiting-etymology",
	StatePostDelivery:         "post-delivery",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// MarshalText lets snapshots carry the state name over the control socket.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
