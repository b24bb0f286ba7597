package domain

// PipelineState is the position of the voice pipeline in its listen/record cycle.
type PipelineState int

const (
	StateIdle PipelineState = iota
	StateArmed
	StateRecording
	StateDraining
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRecording:
		return "recording"
	case StateDraining:
		return "draining"
	default:
		return "unknown"
	}
}

// Capturing reports whether the device is expected to be recording in this state.
func (s PipelineState) Capturing() bool {
	return s == StateRecording || s == StateDraining
}
