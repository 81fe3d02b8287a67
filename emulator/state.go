package emulator

// State of the execution engine.
type State int

const (
	STATE_IDLE     = State(iota) // Nothing loaded, or reset.
	STATE_RUNNING                // Run mode.
	STATE_STEPPING               // Step mode.
	STATE_HALTED                 // HALT, or end of program.
	STATE_STOPPED                // Stopped, or cancelled.
)

var stateName = []string{"idle", "running", "stepping", "halted", "stopped"}

func (state State) String() string {
	if state < 0 || int(state) >= len(stateName) {
		return "unknown"
	}
	return stateName[state]
}

// Active returns true if a program is running or stepping.
func (state State) Active() bool {
	return state == STATE_RUNNING || state == STATE_STEPPING
}
