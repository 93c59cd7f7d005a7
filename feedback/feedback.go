// Package feedback turns mismatch records into repair guidance for the generator.
package feedback

import (
	"fmt"
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

// Connective separates consecutive guidance items.
const Connective = "Apart from this, please also take note of the following mistake that we need to correct."

// DeadlockKeyword marks an assertion as a deadlock-freedom property.
const DeadlockKeyword = "deadlockfree"

// Synthesizer implements core.Synthesizer with fixed templates.
type Synthesizer struct{}

// New creates a synthesizer.
func New() *Synthesizer { return &Synthesizer{} }

var _ core.Synthesizer = (*Synthesizer)(nil)

// Synthesize renders one guidance item per mismatch, in order, joined by newlines with
// the connective between items. No mismatches yields an empty string.
func (s *Synthesizer) Synthesize(mismatches []core.MismatchRecord) string {
	messages := make([]string, 0, 2*len(mismatches))
	for _, m := range mismatches {
		if len(messages) > 0 {
			messages = append(messages, Connective)
		}
		messages = append(messages, Item(m))
	}
	return strings.Join(messages, "\n")
}

// Item renders guidance for a single mismatch.
func Item(m core.MismatchRecord) string {
	switch {
	case strings.Contains(m.Assertion, DeadlockKeyword):
		return deadlock(m)
	case m.Trace == core.NoTrace:
		return initial(m)
	default:
		return action(m)
	}
}

func deadlock(m core.MismatchRecord) string {
	return fmt.Sprintf("The generated code does not satisfy the following property: %s, "+
		"meaning that the system is prone to deadlock, which is the opposite to the desired result. "+
		"Through analyzing your current implementation, we identify that "+
		"deadlock can be triggered by this trace: %s. Therefore, please analyze whether there are any states in the system that don't have any outgoing transitions, with a particular focus on the actions involved in the trace, "+
		"and make sure that the system is deadlock-free. ",
		m.Assertion, m.Trace)
}

func initial(m core.MismatchRecord) string {
	return fmt.Sprintf("The generated code does not satisfy the following property: %[1]s, "+
		"its current verification result is %[2]s, which is the opposite to the expected result "+
		"of the desired system (%[3]s). Through analyzing your current implementation, we identify that "+
		"this assertion is violated after the initialization of the system. Therefore, please analyze the initial "+
		"values of the variables involved in this assertion, and make sure that the initial values of the variables, "+
		"the definitions of the constants which serve as the possible values of the variables are logically correct "+
		"and will not lead to the assertion %[1]s being %[2]s with the initialization.",
		m.Assertion, m.Actual, m.Desired)
}

func action(m core.MismatchRecord) string {
	last, others := Actions(m.Trace)
	return fmt.Sprintf("The generated code does not satisfy the following property: %[1]s, its current verification result is %[2]s, "+
		"which is the opposite to the expected result of the desired system (%[3]s). Through analyzing your current implementation, "+
		"we identify that this assertion is violated after performing the %[4]s action. Therefore, please carefully analyze if the guarded condition "+
		"of performing the %[4]s action is weaker than it should be, possibly missing out some requirements for the action to be valid. "+
		"If, after careful analysis, you think the problem is not with the %[4]s action, then carefully analyze these actions as well: %[5]s. "+
		"Please make sure that the conditions of those actions happening are strict enough to not lead to the assertion %[1]s being %[2]s.",
		m.Assertion, m.Actual, m.Desired, last, strings.Join(others, ", "))
}

// Actions splits a "<a -> b -> c>" trace into its last action and the ones before it.
func Actions(trace string) (last string, others []string) {
	parts := strings.Split(strings.Trim(trace, "<>"), "->")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts[len(parts)-1], parts[:len(parts)-1]
}
