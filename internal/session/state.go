package session

import (
	"time"

	"github.com/xkilldash9x/trafficsim-cli/internal/funnel"
	"github.com/xkilldash9x/trafficsim-cli/internal/referrer"
)

// Outcome is the terminal disposition of a session.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeFailed
)

func (o Outcome) String() string {
	if o == OutcomeCompleted {
		return "completed"
	}
	return "failed"
}

// State is the mutable per-session record. It is owned exclusively by the
// goroutine running the session; no session ever reads another's state.
// At session end it is summarized into a Result and a log line, then
// discarded.
type State struct {
	ID              string
	Seq             uint64
	Profile         referrer.Profile
	HotspotsVisited []string
	PDPViews        int
	StartTime       time.Time
	EndTime         time.Time
}

// Result is the immutable summary sent to the scheduler's aggregator.
type Result struct {
	ID       string
	Seq      uint64
	Outcome  Outcome
	Stage    funnel.Stage
	Source   string
	Direct   bool
	Hotspots []string
	PDPViews int
	Duration time.Duration
	Err      error
}
