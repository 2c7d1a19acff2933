package narration

// State is the playback state.
type State int

const (
	Idle State = iota
	Playing
	Paused
)

// NoUnit is the current index when nothing is being narrated.
const NoUnit = -1

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	}
	return "unknown"
}
