package inference

import "time"

// Status values carried on a Result.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome labels which path produced a Result.
type Outcome string

const (
	OutcomeModel       Outcome = "model"
	OutcomeUnavailable Outcome = "fallback_unavailable"
	OutcomeTimeout     Outcome = "fallback_timeout"
	OutcomeError       Outcome = "fallback_error"
	OutcomeBusy        Outcome = "fallback_busy"
	OutcomeInvalid     Outcome = "invalid"
)

// InvalidPromptMessage is returned as the text of a rejected request.
const InvalidPromptMessage = "Please provide a valid prompt for story generation."

// TimeoutNote annotates results produced after the deadline expired.
const TimeoutNote = "generation exceeded time budget"

// Result is always produced by Executor.Generate.
type Result struct {
	ID        string
	Text      string
	ModelUsed bool
	Status    string
	Note      string
	Error     string
	Outcome   Outcome
	Duration  time.Duration
}

// Fallback reports whether the text came from the fallback generator.
func (r Result) Fallback() bool {
	return r.Outcome != OutcomeModel && r.Outcome != OutcomeInvalid
}
