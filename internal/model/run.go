// Package model defines the persisted records of reconciliation checks.
package model

import (
	"time"

	"github.com/sells-group/familycheck/internal/family"
	"github.com/sells-group/familycheck/internal/session"
)

// RunStatus represents the outcome state of a check run.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"
	RunStatusInvalid  RunStatus = "invalid"
)

// CheckRun is one reconciliation of an authoritative list against a stored
// list. Invalid runs carry the validation message in Error and no Result.
type CheckRun struct {
	ID        string                   `json:"id" yaml:"id"`
	SessionID string                   `json:"session_id,omitempty" yaml:"session_id,omitempty"`
	Name      string                   `json:"name" yaml:"name"`
	Status    RunStatus                `json:"status" yaml:"status"`
	Verdict   family.Verdict           `json:"verdict,omitempty" yaml:"verdict,omitempty"`
	Result    *family.ComparisonResult `json:"result,omitempty" yaml:"result,omitempty"`
	Error     string                   `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time                `json:"created_at" yaml:"created_at"`
}

// NewCheckRun builds a run record from a reconciliation outcome. A non-nil
// err marks the run invalid.
func NewCheckRun(name string, result *family.ComparisonResult, err error) *CheckRun {
	run := &CheckRun{Name: name}
	if err != nil {
		run.Status = RunStatusInvalid
		run.Error = err.Error()
		return run
	}
	run.Status = RunStatusComplete
	run.Result = result
	run.Verdict = family.Classify(result)
	return run
}

// Valid reports whether the run produced a comparison result.
func (r *CheckRun) Valid() bool {
	return r.Status == RunStatusComplete && r.Result != nil
}

// RunFromOutcome builds a run record for one evaluated session pair.
func RunFromOutcome(sessionID string, o session.Outcome) *CheckRun {
	run := &CheckRun{SessionID: sessionID, Name: o.Name}
	if o.Error != "" {
		run.Status = RunStatusInvalid
		run.Error = o.Error
		return run
	}
	run.Status = RunStatusComplete
	run.Result = o.Result
	run.Verdict = o.Verdict
	return run
}
