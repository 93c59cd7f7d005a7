package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/snow-ghost/patrefine/classify"
	"github.com/snow-ghost/patrefine/core"
	"github.com/snow-ghost/patrefine/extract"
	"github.com/snow-ghost/patrefine/feedback"
	"github.com/snow-ghost/patrefine/pkg/tracing"
	"github.com/snow-ghost/patrefine/prompt"
	"github.com/snow-ghost/patrefine/splitter"
	"github.com/snow-ghost/patrefine/store"
)

// phaseVerify labels standalone verification passes that belong to no run.
const phaseVerify core.Phase = "verify"

// Budgets bounds the loop.
type Budgets struct {
	MaxGenAttempts   int
	MaxRefineRounds  int
	MaxInnerAttempts int
	// MaxEmptyRetries is how many empty extractions in a row are retried for free.
	// Past it an empty extraction consumes an attempt like any other rejected candidate.
	MaxEmptyRetries int
}

// DefaultBudgets returns 3 generation attempts and 5 rounds of 3 inner attempts.
func DefaultBudgets() Budgets {
	return Budgets{MaxGenAttempts: 3, MaxRefineRounds: 5, MaxInnerAttempts: 3, MaxEmptyRetries: 3}
}

// Assessor folds one verification pass into an outcome.
type Assessor interface {
	Assess(results []core.VerificationResult, err error, assertions []core.AssertionSpec) core.VerifyOutcome
}

// Recorder receives loop metrics.
type Recorder interface {
	RecordVerification(phase core.Phase, o core.VerifyOutcome)
	RecordAttempt(phase core.Phase)
	RecordRound()
	RecordRun(status core.RunStatus, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordVerification(core.Phase, core.VerifyOutcome) {}
func (nopRecorder) RecordAttempt(core.Phase)                          {}
func (nopRecorder) RecordRound()                                      {}
func (nopRecorder) RecordRun(core.RunStatus, time.Duration)           {}

// Controller drives the generate, verify and refine loop for one target model at a time.
// A Controller holds no per-run state and may run different models concurrently.
type Controller struct {
	Generator   core.Generator
	Retriever   core.ExampleRetriever
	Syntax      prompt.Syntax
	Extract     extract.Extractor
	Splitter    core.Splitter
	Oracle      core.Oracle
	Assessor    Assessor
	Synthesizer core.Synthesizer
	KB          core.KnowledgeBase
	Store       *store.Store
	Metrics     Recorder
	Budgets     Budgets

	tracer trace.Tracer
	newID  func() string
}

// NewController wires the default splitter, classifier, synthesizer and extractor.
func NewController(gen core.Generator, oracle core.Oracle, st *store.Store, kb core.KnowledgeBase) *Controller {
	return &Controller{
		Generator:   gen,
		Extract:     extract.LongestBlock,
		Splitter:    splitter.New(),
		Oracle:      oracle,
		Assessor:    classify.New(),
		Synthesizer: feedback.New(),
		KB:          kb,
		Store:       st,
		Budgets:     DefaultBudgets(),
		tracer:      otel.Tracer("github.com/snow-ghost/patrefine/worker"),
		newID:       uuid.NewString,
	}
}

func (c *Controller) metrics() Recorder {
	if c.Metrics == nil {
		return nopRecorder{}
	}
	return c.Metrics
}

// Run takes one target model to a terminal state. Exhausted budgets are reported in
// the returned status; the error is reserved for storage, generator and context failures.
func (c *Controller) Run(ctx context.Context, m core.TargetModel) (core.RunReport, error) {
	start := time.Now()
	ls := NewLoopState(c.newID(), m.Name)

	ctx, span := c.tracer.Start(ctx, "refine.run", trace.WithAttributes(
		attribute.String("run.id", ls.RunID),
		attribute.String("model.name", m.Name),
		attribute.Int("model.assertions", len(m.Assertions)),
	))
	defer span.End()

	slog.InfoContext(ctx, "refinement run started", "run_id", ls.RunID, "model", m.Name, "assertions", len(m.Assertions))

	status, err := c.run(ctx, m, ls)
	report := core.RunReport{
		RunID:              ls.RunID,
		Model:              m.Name,
		Status:             status,
		GenerationAttempts: ls.GenAttempts,
		RefineRounds:       ls.Round,
		Artifact:           ls.Current,
		Mismatches:         ls.Mismatches,
		Duration:           time.Since(start),
	}
	if err != nil {
		tracing.RecordSpanError(span, err)
		slog.ErrorContext(ctx, "refinement run failed", "run_id", ls.RunID, "model", m.Name, "state", ls.State, "error", err)
		return report, fmt.Errorf("refine %s: %w", m.Name, err)
	}

	span.SetAttributes(attribute.String("run.status", string(status)))
	c.metrics().RecordRun(status, report.Duration)
	slog.InfoContext(ctx, "refinement run finished",
		"run_id", ls.RunID,
		"model", m.Name,
		"status", status,
		"generation_attempts", ls.GenAttempts,
		"refine_rounds", ls.Round,
		"remaining_mismatches", len(ls.Mismatches),
		"duration", report.Duration)
	return report, nil
}

func (c *Controller) run(ctx context.Context, m core.TargetModel, ls *LoopState) (core.RunStatus, error) {
	annotation := prompt.Annotation(m)
	example := c.example(ctx, annotation)

	v, accepted, err := c.generate(ctx, m, ls, prompt.Generation(annotation, example, c.Syntax))
	if err != nil {
		return "", err
	}
	if !accepted {
		return core.StatusExhaustedSyntax, nil
	}
	if !v.HasMismatch() {
		return core.StatusSuccess, c.accept(ctx, m, ls, v)
	}

	done, err := c.refine(ctx, m, ls)
	if err != nil {
		return "", err
	}
	if done {
		return core.StatusSuccess, nil
	}
	return core.StatusExhaustedRefine, nil
}

// example returns the retrieved example, or none when retrieval is unavailable.
func (c *Controller) example(ctx context.Context, annotation string) core.Example {
	if c.Retriever == nil {
		return core.Example{}
	}
	ex, err := c.Retriever.MostRelevant(ctx, annotation)
	if err != nil {
		slog.WarnContext(ctx, "example retrieval failed, generating without example", "error", err)
		return core.Example{}
	}
	return ex
}

// generate runs the syntax-acceptance loop. It returns the first candidate whose every
// unit produced a verdict, mismatches or not.
func (c *Controller) generate(ctx context.Context, m core.TargetModel, ls *LoopState, p string) (core.Verified, bool, error) {
	ctx, span := c.tracer.Start(ctx, "refine.generate")
	defer span.End()

	var last core.VerifyOutcome = core.TotalFailure{Err: core.ErrEmptyExtraction}
	for ls.GenAttempts < c.Budgets.MaxGenAttempts {
		if ls.State == StateSyntaxRetry {
			if err := ls.Advance(StateGenerating); err != nil {
				return core.Verified{}, false, err
			}
		}

		raw, code, err := c.propose(ctx, m, core.PhaseGenerate, p)
		if err != nil {
			return core.Verified{}, false, err
		}
		if code == "" && ls.EmptyRetries < c.Budgets.MaxEmptyRetries {
			ls.EmptyRetries++
			slog.WarnContext(ctx, "empty extraction, retrying", "model", m.Name, "attempt", ls.GenAttempts+1, "empty_retries", ls.EmptyRetries)
			if err := ls.Advance(StateGenerating); err != nil {
				return core.Verified{}, false, err
			}
			continue
		}
		ls.EmptyRetries = 0
		ls.GenAttempts++
		c.metrics().RecordAttempt(core.PhaseGenerate)

		var outcome core.VerifyOutcome = core.TotalFailure{Err: core.ErrEmptyExtraction}
		if code != "" {
			if err := c.Store.SaveResponse(m.Name, core.PhaseGenerate, 0, raw, code); err != nil {
				return core.Verified{}, false, err
			}
			if err := ls.Advance(StateVerifying); err != nil {
				return core.Verified{}, false, err
			}
			outcome, err = c.verify(ctx, m, core.PhaseGenerate, code, c.Store.VerifyDir(m.Name, core.PhaseGenerate, 0))
			if err != nil {
				return core.Verified{}, false, err
			}
		}
		if err := c.record(ls, core.PhaseGenerate, 0, ls.GenAttempts, code, outcome); err != nil {
			return core.Verified{}, false, err
		}

		if v, ok := outcome.(core.Verified); ok {
			ls.Current, ls.Mismatches = code, v.Mismatches
			slog.InfoContext(ctx, "candidate accepted", "model", m.Name, "attempt", ls.GenAttempts, "mismatches", len(v.Mismatches))
			return v, true, ls.Advance(StateAccepted)
		}

		last = outcome
		slog.WarnContext(ctx, "candidate rejected", "model", m.Name, "attempt", ls.GenAttempts, "outcome", outcome.Kind())
		if ls.GenAttempts < c.Budgets.MaxGenAttempts {
			if err := ls.Advance(StateSyntaxRetry); err != nil {
				return core.Verified{}, false, err
			}
		}
	}

	if err := ls.Advance(StateDoneExhausted); err != nil {
		return core.Verified{}, false, err
	}
	slog.WarnContext(ctx, "generation budget exhausted", "model", m.Name, "attempts", ls.GenAttempts)
	return core.Verified{}, false, c.Store.SaveRegenerationErrors(m.Name, ls.GenAttempts, last.Results())
}

// refine runs refinement rounds until zero mismatches remain or rounds run out.
func (c *Controller) refine(ctx context.Context, m core.TargetModel, ls *LoopState) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "refine.refine")
	defer span.End()

	for ls.Round < c.Budgets.MaxRefineRounds {
		ls.Round++
		ls.InnerAttempt, ls.EmptyRetries = 0, 0
		if err := ls.Advance(StateRefining); err != nil {
			return false, err
		}
		c.metrics().RecordRound()

		done, err := c.refineRound(ctx, m, ls)
		if err != nil || done {
			return done, err
		}
		if err := ls.Advance(StateRefineRoundAdvance); err != nil {
			return false, err
		}
	}

	if err := ls.Advance(StateDoneExhausted); err != nil {
		return false, err
	}
	slog.WarnContext(ctx, "refinement budget exhausted", "model", m.Name, "rounds", ls.Round, "remaining_mismatches", len(ls.Mismatches))
	return false, c.Store.SaveRefinementExhausted(m.Name, ls.Current, ls.Round, len(ls.Mismatches))
}

// refineRound asks for revisions of the current artifact. A rejected revision never
// replaces the current artifact; when every inner attempt is rejected the round ends
// with the previous artifact and mismatches unchanged.
func (c *Controller) refineRound(ctx context.Context, m core.TargetModel, ls *LoopState) (bool, error) {
	ctx, span := c.tracer.Start(ctx, "refine.round", trace.WithAttributes(attribute.Int("round", ls.Round)))
	defer span.End()

	brief := c.Synthesizer.Synthesize(ls.Mismatches)
	p := prompt.Refinement(ls.Current, brief)
	dir := c.Store.VerifyDir(m.Name, core.PhaseRefine, ls.Round)
	slog.InfoContext(ctx, "refinement round started", "model", m.Name, "round", ls.Round, "mismatches", len(ls.Mismatches))

	for ls.InnerAttempt < c.Budgets.MaxInnerAttempts {
		if ls.State == StateRefineRetry {
			if err := ls.Advance(StateRefining); err != nil {
				return false, err
			}
		}

		raw, code, err := c.propose(ctx, m, core.PhaseRefine, p)
		if err != nil {
			return false, err
		}
		if code == "" && ls.EmptyRetries < c.Budgets.MaxEmptyRetries {
			ls.EmptyRetries++
			slog.WarnContext(ctx, "empty extraction, retrying", "model", m.Name, "round", ls.Round, "empty_retries", ls.EmptyRetries)
			if err := ls.Advance(StateRefining); err != nil {
				return false, err
			}
			continue
		}
		ls.EmptyRetries = 0
		ls.InnerAttempt++
		c.metrics().RecordAttempt(core.PhaseRefine)

		var outcome core.VerifyOutcome = core.TotalFailure{Err: core.ErrEmptyExtraction}
		if code != "" {
			if err := c.Store.SaveResponse(m.Name, core.PhaseRefine, ls.Round, raw, code); err != nil {
				return false, err
			}
			if err := ls.Advance(StateRefineVerifying); err != nil {
				return false, err
			}
			outcome, err = c.verify(ctx, m, core.PhaseRefine, code, dir)
			if err != nil {
				return false, err
			}
		}
		if err := c.record(ls, core.PhaseRefine, ls.Round, ls.InnerAttempt, code, outcome); err != nil {
			return false, err
		}

		if v, ok := outcome.(core.Verified); ok {
			if err := ls.Advance(StateAccepted); err != nil {
				return false, err
			}
			ls.Current, ls.Mismatches = code, v.Mismatches
			if !v.HasMismatch() {
				return true, c.accept(ctx, m, ls, v)
			}
			slog.InfoContext(ctx, "refined candidate accepted", "model", m.Name, "round", ls.Round, "mismatches", len(v.Mismatches))
			return false, nil
		}

		slog.WarnContext(ctx, "refined candidate rejected", "model", m.Name, "round", ls.Round, "attempt", ls.InnerAttempt, "outcome", outcome.Kind())
		if ls.InnerAttempt < c.Budgets.MaxInnerAttempts {
			if err := ls.Advance(StateRefineRetry); err != nil {
				return false, err
			}
		}
	}

	slog.WarnContext(ctx, "round ended without replacement, keeping previous artifact", "model", m.Name, "round", ls.Round)
	return false, nil
}

// propose asks the generator once and extracts code. An empty code means the response
// held nothing usable.
func (c *Controller) propose(ctx context.Context, m core.TargetModel, phase core.Phase, p string) (string, string, error) {
	start := time.Now()
	raw, err := c.Generator.Generate(ctx, p)
	if err != nil {
		return "", "", fmt.Errorf("%s generation: %w", phase, err)
	}
	code, ok := c.Extract(raw)
	if !ok {
		code = ""
	}

	stage := "codegen-time"
	if phase == core.PhaseRefine {
		stage = "refinement-time"
	}
	failed := !ok
	if err := c.Store.RecordStage(m.Name, c.Store.StageName(stage), time.Since(start), nil, &failed); err != nil {
		return "", "", err
	}
	return raw, code, nil
}

// verify runs one split, check and classify pass. Checker timeouts, checker crashes and
// unit-count mismatches become a TotalFailure outcome; any other failure is returned.
func (c *Controller) verify(ctx context.Context, m core.TargetModel, phase core.Phase, code, dir string) (core.VerifyOutcome, error) {
	ctx, span := c.tracer.Start(ctx, "refine.verify", trace.WithAttributes(attribute.String("phase", string(phase))))
	defer span.End()
	start := time.Now()

	var results []core.VerificationResult
	units, err := c.Splitter.Split(code, len(m.Assertions))
	if err == nil {
		results, err = c.Oracle.Verify(ctx, units, dir)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if !isVerificationFailure(err) {
			tracing.RecordSpanError(span, err)
			return nil, fmt.Errorf("verification: %w", err)
		}
		slog.WarnContext(ctx, "verification call aborted", "model", m.Name, "phase", phase, "error", err)
	}

	outcome := c.Assessor.Assess(results, err, m.Assertions)
	mismatches := core.MismatchesOf(outcome)
	c.metrics().RecordVerification(phase, outcome)

	if err := c.Store.SaveVerification(dir, outcome.Results(), mismatches); err != nil {
		return nil, err
	}
	hasMismatch := outcome.Kind() != core.KindVerified || len(mismatches) > 0
	if err := c.Store.RecordStage(m.Name, c.Store.StageName("verify-time"), time.Since(start), &hasMismatch, nil); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("outcome", string(outcome.Kind())),
		attribute.Int("mismatches", len(mismatches)),
	)
	slog.InfoContext(ctx, "verification finished",
		"model", m.Name,
		"phase", phase,
		"outcome", outcome.Kind(),
		"units", len(outcome.Results()),
		"mismatches", len(mismatches))
	return outcome, nil
}

func isVerificationFailure(err error) bool {
	return errors.Is(err, core.ErrCheckerTimeout) ||
		errors.Is(err, core.ErrCheckerFailed) ||
		errors.Is(err, core.ErrUnitCountMismatch)
}

// accept persists the canonical artifact. Only a Verified outcome with no mismatches
// reaches the verified file and the knowledge base.
func (c *Controller) accept(ctx context.Context, m core.TargetModel, ls *LoopState, v core.Verified) error {
	if v.HasMismatch() {
		return fmt.Errorf("refusing to persist artifact with %d mismatches", len(v.Mismatches))
	}
	if err := ls.Advance(StateDoneSuccess); err != nil {
		return err
	}
	if err := c.Store.SaveVerified(m.Name, ls.Current); err != nil {
		return err
	}
	if c.KB != nil {
		if err := c.KB.Save(ctx, core.VerifiedArtifact{Model: m.Name, Code: ls.Current}); err != nil {
			return fmt.Errorf("failed to save verified artifact: %w", err)
		}
	}
	slog.InfoContext(ctx, "verified artifact saved", "model", m.Name, "run_id", ls.RunID)
	return nil
}

func (c *Controller) record(ls *LoopState, phase core.Phase, round, attempt int, code string, o core.VerifyOutcome) error {
	rec := core.RoundRecord{
		RunID:      ls.RunID,
		Model:      ls.Model,
		Phase:      phase,
		Round:      round,
		Attempt:    attempt,
		Artifact:   code,
		Outcome:    o.Kind(),
		Results:    o.Results(),
		Mismatches: core.MismatchesOf(o),
		RecordedAt: time.Now().UTC(),
	}
	switch v := o.(type) {
	case core.TotalFailure:
		if v.Err != nil {
			rec.Reason = v.Err.Error()
		}
	case core.AnomalousResults:
		rec.Reason = fmt.Sprintf("%d unparseable result(s)", len(v.Unparseable))
	}
	return c.Store.AppendRound(rec)
}

// Verification is the result of a standalone pass over supplied code.
type Verification struct {
	Outcome    core.OutcomeKind          `json:"outcome"`
	Results    []core.VerificationResult `json:"results"`
	Mismatches []core.MismatchRecord     `json:"mismatches"`
	Feedback   string                    `json:"feedback,omitempty"`
	Reason     string                    `json:"reason,omitempty"`
}

// VerifyOnce splits, checks and classifies code without generating anything. Its files
// go to <model>/verify so they never mix with a run's rounds.
func (c *Controller) VerifyOnce(ctx context.Context, m core.TargetModel, code string) (Verification, error) {
	dir := filepath.Join(c.Store.ModelDir(m.Name), "verify")
	outcome, err := c.verify(ctx, m, phaseVerify, code, dir)
	if err != nil {
		return Verification{}, err
	}

	res := Verification{
		Outcome:    outcome.Kind(),
		Results:    outcome.Results(),
		Mismatches: core.MismatchesOf(outcome),
	}
	switch v := outcome.(type) {
	case core.Verified:
		if v.HasMismatch() {
			res.Feedback = c.Synthesizer.Synthesize(v.Mismatches)
		}
	case core.AnomalousResults:
		res.Reason = fmt.Sprintf("%d unparseable result(s)", len(v.Unparseable))
	case core.TotalFailure:
		if v.Err != nil {
			res.Reason = v.Err.Error()
		}
	}
	if res.Results == nil {
		res.Results = []core.VerificationResult{}
	}
	if res.Mismatches == nil {
		res.Mismatches = []core.MismatchRecord{}
	}
	return res, nil
}
