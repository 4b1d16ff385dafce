package chat

import "time"

type State int

const (
	StateIdle State = iota
	StateCollectTitle
	StateCollectDescription
	StateCollectStart
	StateCollectEnd
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCollectTitle:
		return "collect_title"
	case StateCollectDescription:
		return "collect_description"
	case StateCollectStart:
		return "collect_start"
	case StateCollectEnd:
		return "collect_end"
	default:
		return "unknown"
	}
}

// DateTimeLayout is the format users type start and end times in.
const DateTimeLayout = "02.01.2006 15:04"

// session holds the fields of an event being assembled over several turns.
type session struct {
	state       State
	title       string
	description string
	startTime   time.Time
}
