// Package classify compares normalized verdicts with desired outcomes and folds a
// verification pass into a core.VerifyOutcome.
package classify

import (
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

// Classifier implements core.Classifier.
type Classifier struct{}

// New creates a classifier.
func New() *Classifier { return &Classifier{} }

var _ core.Classifier = (*Classifier)(nil)

// Desired returns the expected verdict for the i-th result. Results beyond the
// assertion list default to Valid.
func Desired(assertions []core.AssertionSpec, i int) core.Outcome {
	if i < len(assertions) {
		return assertions[i].DesiredOutcome()
	}
	return core.OutcomeValid
}

// Annotate returns a copy of results with Desired filled in.
func Annotate(results []core.VerificationResult, assertions []core.AssertionSpec) []core.VerificationResult {
	out := make([]core.VerificationResult, len(results))
	for i, r := range results {
		r.Desired = Desired(assertions, i)
		out[i] = r
	}
	return out
}

// Classify returns one record per parseable result whose verdict differs from the
// desired outcome. Unparseable results never produce a record.
func (c *Classifier) Classify(results []core.VerificationResult, assertions []core.AssertionSpec) ([]core.MismatchRecord, bool) {
	var mismatches []core.MismatchRecord
	for i, r := range results {
		if !r.Parseable() {
			continue
		}
		desired := Desired(assertions, i)
		if r.Outcome == desired {
			continue
		}
		mismatches = append(mismatches, core.MismatchRecord{
			Assertion: r.Assertion,
			Trace:     Trace(r.Report),
			Actual:    r.Outcome,
			Desired:   desired,
		})
	}
	return mismatches, len(mismatches) > 0
}

// Trace returns the first counterexample line of a report: a line starting with "<"
// that contains "->". Reports without one yield core.NoTrace.
func Trace(report string) string {
	for _, line := range strings.Split(report, "\n") {
		t := strings.TrimSpace(line)
		if strings.HasPrefix(t, "<") && strings.Contains(t, "->") {
			return t
		}
	}
	return core.NoTrace
}

// Assess folds the outcome of one pass into a core.VerifyOutcome. A non-nil err
// (count mismatch, checker timeout or crash) is a TotalFailure regardless of results.
func (c *Classifier) Assess(results []core.VerificationResult, err error, assertions []core.AssertionSpec) core.VerifyOutcome {
	if err != nil {
		return core.TotalFailure{Err: err}
	}

	annotated := Annotate(results, assertions)
	mismatches, _ := c.Classify(annotated, assertions)

	var unparseable []int
	for i, r := range annotated {
		if !r.Parseable() {
			unparseable = append(unparseable, i)
		}
	}
	if len(unparseable) > 0 {
		return core.AnomalousResults{Units: annotated, Unparseable: unparseable, Mismatches: mismatches}
	}
	return core.Verified{Units: annotated, Mismatches: mismatches}
}
