package store

import (
	"time"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// StatusRunning marks a submission that was started but never completed,
// e.g. because the process was killed mid-attempt
const StatusRunning = "running"

// Submission is one recorded attempt for one target
type Submission struct {
	ID           string     `json:"id"`
	Target       string     `json:"target"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Log          AttemptLog `json:"log"`
}

// AttemptLog is what the run observed for each configured field
type AttemptLog struct {
	Filled     []string `json:"filled,omitempty"`
	Missing    []string `json:"missing,omitempty"`
	Uncertain  []string `json:"uncertain,omitempty"`
	Submitted  bool     `json:"submitted"`
	Challenged bool     `json:"challenged,omitempty"`
}

// Outcome returns the submission status as an outcome. Running submissions
// (including ones whose process died mid-attempt) return false.
func (s Submission) Outcome() (types.SubmissionOutcome, bool) {
	if s.Status == StatusRunning {
		return "", false
	}
	return types.SubmissionOutcome(s.Status), true
}

// LogFor extracts the attempt log from a run result
func LogFor(r types.Result) AttemptLog {
	return AttemptLog{
		Filled:     r.Filled,
		Missing:    r.Missing,
		Uncertain:  r.Uncertain,
		Submitted:  r.Submitted,
		Challenged: r.Challenged,
	}
}
