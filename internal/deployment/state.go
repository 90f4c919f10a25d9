package deployment

// State is a deployment attempt's position in the pipeline. Confirmed,
// Failed and TimedOut are terminal; TimedOut means the outcome is unknown
// and the owner may retry after reconciling against on-chain bytecode.
type State string

const (
	StateRequested      State = "REQUESTED"
	StateKeyExported    State = "KEY_EXPORTED"
	StateRelaySubmitted State = "RELAY_SUBMITTED"
	StateConfirmed      State = "CONFIRMED"
	StateFailed         State = "FAILED"
	StateTimedOut       State = "TIMED_OUT"
)

var transitions = map[State][]State{
	StateRequested:      {StateKeyExported, StateFailed},
	StateKeyExported:    {StateRelaySubmitted, StateFailed},
	StateRelaySubmitted: {StateConfirmed, StateFailed, StateTimedOut},
}

func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed || s == StateTimedOut
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}
