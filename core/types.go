package core

import (
	"strings"
	"time"
)

// AssertionKind is the category of a required correctness property.
type AssertionKind string

const (
	KindDeadlockFree AssertionKind = "deadlock-free"
	KindReachability AssertionKind = "reachability"
	KindLTL          AssertionKind = "ltl"
)

// Outcome is a normalized checker verdict.
type Outcome string

const (
	OutcomeValid       Outcome = "Valid"
	OutcomeInvalid     Outcome = "Invalid"
	OutcomeUnparseable Outcome = "" // no verdict could be read from the report
)

// NoTrace marks a violation attributable to the initial state.
const NoTrace = "<init>"

// AssertionSpec is one required correctness property of a target model.
type AssertionSpec struct {
	ID          string        `json:"id"`
	Kind        AssertionKind `json:"kind"`
	Description string        `json:"description,omitempty"`
	Desired     Outcome       `json:"desired,omitempty"` // empty means Valid
	Component   string        `json:"component,omitempty"`
	StateName   string        `json:"state_name,omitempty"`
}

// DesiredOutcome returns the expected verdict, defaulting to Valid. Valid and Invalid
// are matched case-insensitively.
func (a AssertionSpec) DesiredOutcome() Outcome {
	d := strings.TrimSpace(string(a.Desired))
	switch {
	case d == "", strings.EqualFold(d, string(OutcomeValid)):
		return OutcomeValid
	case strings.EqualFold(d, string(OutcomeInvalid)):
		return OutcomeInvalid
	}
	return Outcome(d)
}

// TargetModel is the natural-language description of one system to be modeled.
type TargetModel struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Subsystems  []Subsystem     `json:"subsystems,omitempty"`
	Interaction string          `json:"interaction,omitempty"`
	Annotation  string          `json:"annotation,omitempty"`
	Assertions  []AssertionSpec `json:"assertions"`
}

// Subsystem is one process of a target model.
type Subsystem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// VerificationUnit is a self-contained checker input: shared body, declarations, one assertion.
type VerificationUnit struct {
	Index        int      `json:"index"`
	Body         string   `json:"body"`
	Declarations []string `json:"declarations"`
	Assertion    string   `json:"assertion"`
}

// Source renders the unit as checker input text.
func (u VerificationUnit) Source() string {
	lines := make([]string, 0, len(u.Declarations)+1)
	lines = append(lines, u.Declarations...)
	lines = append(lines, u.Assertion)
	return u.Body + "\n\n" + strings.Join(lines, "\n")
}

// VerificationResult is the normalized checker report for one unit.
type VerificationResult struct {
	Assertion string  `json:"assertion"`
	Report    string  `json:"patResult"` // text between the result and setting markers, counterexample included
	Outcome   Outcome `json:"actualResult"`
	Desired   Outcome `json:"desiredOutcome,omitempty"`
}

// Parseable reports whether a verdict was read from the report.
func (r VerificationResult) Parseable() bool {
	return r.Outcome != OutcomeUnparseable
}

// MismatchRecord describes one assertion whose verdict disagrees with the desired one.
type MismatchRecord struct {
	Assertion string  `json:"assertion"`
	Trace     string  `json:"trace"`
	Actual    Outcome `json:"current_result"`
	Desired   Outcome `json:"desired_result"`
}

// Phase identifies which loop a round belongs to.
type Phase string

const (
	PhaseGenerate Phase = "generate"
	PhaseRefine   Phase = "refine"
)

// RoundRecord is an immutable snapshot of one verification pass.
type RoundRecord struct {
	RunID      string               `json:"run_id"`
	Model      string               `json:"model"`
	Phase      Phase                `json:"phase"`
	Round      int                  `json:"round"`
	Attempt    int                  `json:"attempt"`
	Artifact   string               `json:"artifact"`
	Outcome    OutcomeKind          `json:"outcome"`
	Results    []VerificationResult `json:"results"`
	Mismatches []MismatchRecord     `json:"mismatches"`
	Reason     string               `json:"reason,omitempty"`
	RecordedAt time.Time            `json:"recorded_at"`
}

// VerifiedArtifact is a (target identifier, verified artifact) pair.
type VerifiedArtifact struct {
	Model     string    `json:"model_name"`
	Code      string    `json:"verified_code"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RunStatus is the terminal state of a refinement run.
type RunStatus string

const (
	StatusSuccess         RunStatus = "success"
	StatusExhaustedSyntax RunStatus = "exhausted_syntax"
	StatusExhaustedRefine RunStatus = "exhausted_refine"
)

// RunReport is what a run returns to its caller. Exhaustion is a status, not an error.
type RunReport struct {
	RunID              string           `json:"run_id"`
	Model              string           `json:"model"`
	Status             RunStatus        `json:"status"`
	GenerationAttempts int              `json:"generation_attempts"`
	RefineRounds       int              `json:"refine_rounds"`
	Artifact           string           `json:"artifact,omitempty"`
	Mismatches         []MismatchRecord `json:"mismatches,omitempty"`
	Duration           time.Duration    `json:"duration"`
}

// Succeeded reports whether the run produced a verified artifact.
func (r RunReport) Succeeded() bool {
	return r.Status == StatusSuccess
}
