package session

// State is the lifecycle state of a compression session.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateWritingVideo
	StateWritingAudio
	StateFinalizing
	StateCompleted
	StateCancelled
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateWritingVideo:
		return "writing_video"
	case StateWritingAudio:
		return "writing_audio"
	case StateFinalizing:
		return "finalizing"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transitions can happen.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

// cancellable reports whether a cancel request can still take effect.
// Finalization is not interrupted.
func (s State) cancellable() bool {
	return s <= StateWritingAudio
}
