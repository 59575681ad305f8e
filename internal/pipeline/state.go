package pipeline

// State is the lifecycle position of a Runner.
type State int

const (
	Idle State = iota
	ValidatingInput
	ConnectingStore
	Streaming
	Reporting
	Closed
	Failed
)

var stateNames = [...]string{
	Idle:            "idle",
	ValidatingInput: "validating_input",
	ConnectingStore: "connecting_store",
	Streaming:       "streaming",
	Reporting:       "reporting",
	Closed:          "closed",
	Failed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition can happen from s.
func (s State) Terminal() bool { return s == Closed || s == Failed }

// allowed lists the legal transitions. Failed is reachable only from the
// three working states.
var allowed = map[State][]State{
	Idle:            {ValidatingInput},
	ValidatingInput: {ConnectingStore, Failed},
	ConnectingStore: {Streaming, Failed},
	Streaming:       {Reporting, Failed},
	Reporting:       {Closed},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
