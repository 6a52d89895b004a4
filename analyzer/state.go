package analyzer

import "fmt"

// State is the lifecycle state of an Instance
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StatePlaying
	StateRecording
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StateRecording:
		return "recording"
	case StateProcessing:
		return "processing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// busy reports whether a decode or analysis is in flight
func (s State) busy() bool {
	return s == StateLoading || s == StateProcessing
}
