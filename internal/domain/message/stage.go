package message

// Stage is the lifecycle position of one unit of work in the coordinator
type Stage int

const (
	StageDiscovered Stage = iota
	StageFiltered
	StageDedupChecked
	StageBuffered
	StageCorrelating
	StageDelivering
	StageDelivered
	StageDropped
)

var stageNames = [...]string{
	StageDiscovered:   "DISCOVERED",
	StageFiltered:     "FILTERED",
	StageDedupChecked: "DEDUP_CHECKED",
	StageBuffered:     "BUFFERED",
	StageCorrelating:  "CORRELATING",
	StageDelivering:   "DELIVERING",
	StageDelivered:    "DELIVERED",
	StageDropped:      "DROPPED",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "UNKNOWN"
	}
	return stageNames[s]
}

// IsTerminal reports whether no further transition can follow s
func (s Stage) IsTerminal() bool {
	return s == StageDelivered || s == StageDropped
}

// CanTransitionTo reports whether moving from s to next is allowed.
// DELIVERING may loop onto itself for retries, and any non-terminal
// stage may fall to DROPPED.
func (s Stage) CanTransitionTo(next Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StageDropped {
		return true
	}
	if s == StageDelivering {
		return next == StageDelivering || next == StageDelivered
	}
	return next == s+1
}
