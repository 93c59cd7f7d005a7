package core

import (
	"context"
	"errors"
)

var (
	ErrUnitCountMismatch = errors.New("unit count does not match assertion count")
	ErrCheckerTimeout    = errors.New("checker timed out")
	ErrCheckerFailed     = errors.New("checker exited abnormally")
	ErrEmptyExtraction   = errors.New("no code extracted from generator response")
)

// Generator is an external code generator: prompt in, unstructured text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EngineMode selects the checker's analysis engine.
type EngineMode int

const (
	EngineDefault EngineMode = iota
	EngineAlternate
)

func (m EngineMode) String() string {
	if m == EngineAlternate {
		return "alternate"
	}
	return "default"
}

// Checker is the external model checker. Run writes its report to outputPath.
// A timeout returns ErrCheckerTimeout; a non-zero exit wraps ErrCheckerFailed.
type Checker interface {
	Run(ctx context.Context, mode EngineMode, inputPath, outputPath string) error
}

// Splitter partitions a candidate into one unit per assertion.
type Splitter interface {
	Split(artifact string, assertionCount int) ([]VerificationUnit, error)
}

// Oracle verifies a set of units and returns one result per unit, or an error that
// aborts the whole call.
type Oracle interface {
	Verify(ctx context.Context, units []VerificationUnit, workDir string) ([]VerificationResult, error)
}

// Classifier compares results against desired outcomes.
type Classifier interface {
	Classify(results []VerificationResult, assertions []AssertionSpec) ([]MismatchRecord, bool)
}

// Synthesizer turns mismatches into repair guidance text.
type Synthesizer interface {
	Synthesize(mismatches []MismatchRecord) string
}

// KnowledgeBase is the append-only store of verified artifacts.
type KnowledgeBase interface {
	Save(ctx context.Context, a VerifiedArtifact) error
	List(ctx context.Context) ([]VerifiedArtifact, error)
}

// ExampleRetriever picks a worked example for the generation prompt.
type ExampleRetriever interface {
	MostRelevant(ctx context.Context, annotation string) (Example, error)
}

// Example is a (natural-language annotation, code) pair used as a few-shot example.
type Example struct {
	NL   string `json:"nl"`
	Code string `json:"code"`
}
