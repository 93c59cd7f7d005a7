package core

// OutcomeKind tags a VerifyOutcome variant for logs and persisted records.
type OutcomeKind string

const (
	KindTotalFailure OutcomeKind = "total_failure"
	KindAnomalous    OutcomeKind = "anomalous"
	KindVerified     OutcomeKind = "verified"
)

// VerifyOutcome is the result of one split+verify+classify pass over a candidate.
// It is exactly one of TotalFailure, AnomalousResults or Verified.
type VerifyOutcome interface {
	Kind() OutcomeKind
	// Results returns the per-unit results; empty for TotalFailure.
	Results() []VerificationResult
	// SyntaxClean is true only for Verified: no fatal error and no unparseable unit.
	SyntaxClean() bool
	isVerifyOutcome()
}

// TotalFailure means no result of the call can be trusted: timeout, checker crash,
// or a unit count that does not match the assertion count.
type TotalFailure struct {
	Err error
}

func (TotalFailure) Kind() OutcomeKind              { return KindTotalFailure }
func (TotalFailure) Results() []VerificationResult { return nil }
func (TotalFailure) SyntaxClean() bool             { return false }
func (TotalFailure) isVerifyOutcome()              {}

// HasMismatch is always true: a total failure counts as every assertion mismatched.
func (TotalFailure) HasMismatch() bool { return true }

// AnomalousResults means at least one unit produced an unparseable report.
// Mismatches among the parseable units are kept for diagnostics only.
type AnomalousResults struct {
	Units       []VerificationResult
	Unparseable []int
	Mismatches  []MismatchRecord
}

func (a AnomalousResults) Kind() OutcomeKind              { return KindAnomalous }
func (a AnomalousResults) Results() []VerificationResult { return a.Units }
func (AnomalousResults) SyntaxClean() bool               { return false }
func (AnomalousResults) isVerifyOutcome()                {}

// Verified means every unit produced a verdict. Mismatches may still exist.
type Verified struct {
	Units      []VerificationResult
	Mismatches []MismatchRecord
}

func (v Verified) Kind() OutcomeKind              { return KindVerified }
func (v Verified) Results() []VerificationResult { return v.Units }
func (Verified) SyntaxClean() bool               { return true }
func (Verified) isVerifyOutcome()                {}

// HasMismatch reports whether any verdict disagrees with its desired outcome.
func (v Verified) HasMismatch() bool { return len(v.Mismatches) > 0 }

// MismatchesOf returns the mismatch records carried by an outcome, if any.
func MismatchesOf(o VerifyOutcome) []MismatchRecord {
	switch v := o.(type) {
	case Verified:
		return v.Mismatches
	case AnomalousResults:
		return v.Mismatches
	default:
		return nil
	}
}
