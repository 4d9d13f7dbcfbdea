package trainer

// State is the observable phase of a training run.
type State int32

const (
	Idle State = iota
	Initializing
	RunningEpoch
	Checkpointing
	Completed
	Failed
)

var stateNames = map[State]string{
	Idle:         "idle",
	Initializing: "initializing",
	RunningEpoch: "running-epoch",
	Checkpointing: "checkpointing",
	Completed:    "completed",
	Failed:       "failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}
