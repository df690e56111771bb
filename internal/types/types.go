package types

import (
	"strings"
	"time"
)

// TargetPlaceholder is replaced by the target identifier in field values
const TargetPlaceholder = "{target}"

// FieldDescriptor identifies one form field by its stable identifier and a
// human-readable label used as a fallback
type FieldDescriptor struct {
	StableID string `toml:"stable_id" json:"stable_id"`
	Label    string `toml:"label" json:"label"`
}

// Name returns the identifier used for this field in logs and history
func (d FieldDescriptor) Name() string {
	if d.StableID != "" {
		return d.StableID
	}
	return d.Label
}

// FormField pairs a descriptor with the value to enter
type FormField struct {
	FieldDescriptor
	Value string `toml:"value" json:"value"`
}

// Resolve returns the field value with the target placeholder substituted
func (f FormField) Resolve(target string) string {
	return strings.ReplaceAll(f.Value, TargetPlaceholder, target)
}

// Target is one record of the target list
type Target struct {
	Identifier string `json:"identifier"`
	Line       int    `json:"line"`
}

// SubmissionOutcome is the terminal result of one submission attempt
type SubmissionOutcome string

const (
	Confirmed SubmissionOutcome = "confirmed"
	TimedOut  SubmissionOutcome = "timed_out"
	// Failed is only recorded when the form could not be reached at all
	Failed SubmissionOutcome = "failed"
)

// InjectResult reports whether a value assignment registered
type InjectResult string

const (
	Applied   InjectResult = "applied"
	Uncertain InjectResult = "uncertain"
)

// Marker describes the success indicator shown after a submission
type Marker struct {
	Selector string `toml:"selector" json:"selector"`
	Pattern  string `toml:"pattern" json:"pattern"`
}

// Result summarizes one processed target
type Result struct {
	Target     Target            `json:"target"`
	Outcome    SubmissionOutcome `json:"outcome"`
	Filled     []string          `json:"filled"`
	Missing    []string          `json:"missing"`
	Uncertain  []string          `json:"uncertain"`
	Submitted  bool              `json:"submitted"`
	Challenged bool              `json:"challenged,omitempty"` // a verification challenge was seen
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	Duration   time.Duration     `json:"duration"`
}

// NeedsAttention reports whether the operator should look at this target
func (r Result) NeedsAttention() bool {
	return r.Outcome != Confirmed
}
