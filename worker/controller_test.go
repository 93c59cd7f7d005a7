package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	checkmock "github.com/snow-ghost/patrefine/checker/mock"
	"github.com/snow-ghost/patrefine/core"
	kbmem "github.com/snow-ghost/patrefine/kb/memory"
	llmmock "github.com/snow-ghost/patrefine/llm/mock"
	"github.com/snow-ghost/patrefine/oracle"
	"github.com/snow-ghost/patrefine/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	liftCode = "var floor = 0;\nLift() = up{floor = floor + 1} -> down{floor = floor - 1} -> Lift();\n" +
		"#assert Lift() deadlockfree;\n#define top floor == 1;\n#assert Lift() reaches top;"
	fixedCode = "var floor = 0;\nLift() = up{floor = 1} -> down{floor = 0} -> Lift();\n" +
		"#assert Lift() deadlockfree;\n#define top floor == 1;\n#assert Lift() reaches top;"
	// brokenCode has one assertion too many for the model.
	brokenCode = liftCode + "\n#assert Lift() deadlockfree;"
)

func liftModel() core.TargetModel {
	return core.TargetModel{
		Name:        "Lift",
		Description: "a lift moves between two floors",
		Assertions: []core.AssertionSpec{
			{ID: "assertion-0", Kind: core.KindDeadlockFree},
			{ID: "assertion-1", Kind: core.KindReachability},
		},
	}
}

type fixture struct {
	controller *Controller
	store      *store.Store
	kb         *kbmem.Registry
	checker    *checkmock.Checker
}

func newFixture(t *testing.T, gen core.Generator, script checkmock.Script) fixture {
	t.Helper()
	st := store.New(t.TempDir())
	kb := kbmem.New()
	chk := checkmock.New(script)
	c := NewController(gen, oracle.New(chk), st, kb)
	c.newID = func() string { return "run-1" }
	return fixture{controller: c, store: st, kb: kb, checker: chk}
}

// reachFails answers VALID for everything except the reachability assertion.
func reachFails() checkmock.Script {
	return checkmock.ByAssertion(
		map[string]checkmock.Response{
			"reaches": {Output: checkmock.Invalid("#assert Lift() reaches top;", "<init -> up -> down>")},
		},
		checkmock.Response{Output: checkmock.Valid("#assert Lift() deadlockfree;")},
	)
}

func unparseable() checkmock.Script {
	return func(checkmock.Call) checkmock.Response {
		return checkmock.Response{Output: "Parsing error at line 3"}
	}
}

func fileExists(t *testing.T, path string) bool {
	t.Helper()
	_, err := os.Stat(path)
	return err == nil
}

func TestRun_VerifiedOnFirstAttempt(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(liftCode))
	f := newFixture(t, gen, checkmock.AllValid())

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	assert.Equal(t, core.StatusSuccess, report.Status)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 1, report.GenerationAttempts)
	assert.Zero(t, report.RefineRounds)
	assert.Equal(t, liftCode, report.Artifact)
	assert.Empty(t, report.Mismatches)
	assert.Equal(t, 1, gen.Calls())
	assert.Len(t, f.checker.Calls(), 2)

	dir := f.store.ModelDir("Lift")
	code, err := os.ReadFile(filepath.Join(dir, store.VerifiedFile))
	require.NoError(t, err)
	assert.Equal(t, liftCode, string(code))
	assert.True(t, fileExists(t, filepath.Join(dir, store.RunTimeFile)))
	assert.False(t, fileExists(t, filepath.Join(dir, store.MismatchFile)))

	saved, err := f.kb.List(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Lift", saved[0].Model)
	assert.Equal(t, liftCode, saved[0].Code)
}

func TestRun_AlternateEngineForReachability(t *testing.T) {
	f := newFixture(t, llmmock.New(llmmock.Fenced(liftCode)), checkmock.AllValid())
	_, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	calls := f.checker.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, core.EngineAlternate, calls[1].Mode)
	assert.Equal(t, "#assert Lift() reaches top;", calls[1].Assertion())
}

func TestRun_AnomalousResultsAreNeverAccepted(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(liftCode))
	f := newFixture(t, gen, unparseable())

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	assert.Equal(t, core.StatusExhaustedSyntax, report.Status)
	assert.Equal(t, 3, report.GenerationAttempts)
	assert.Zero(t, report.RefineRounds)
	assert.Empty(t, report.Artifact)
	assert.Equal(t, 3, gen.Calls())

	dir := f.store.ModelDir("Lift")
	assert.False(t, fileExists(t, filepath.Join(dir, store.VerifiedFile)))
	assert.Zero(t, f.kb.Len())

	var regen store.RegenerationErrors
	data, err := os.ReadFile(filepath.Join(dir, store.RegenerationErrorFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &regen))
	assert.Equal(t, 3, regen.Attempts)
	assert.Len(t, regen.VerificationResults, 2)

	rounds, err := f.store.Rounds("Lift")
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	for i, r := range rounds {
		assert.Equal(t, core.PhaseGenerate, r.Phase)
		assert.Equal(t, i+1, r.Attempt)
		assert.Equal(t, core.KindAnomalous, r.Outcome)
		assert.Equal(t, "2 unparseable result(s)", r.Reason)
	}
}

func TestRun_CheckerTimeoutIsTotalFailure(t *testing.T) {
	timeout := func(checkmock.Call) checkmock.Response {
		return checkmock.Response{Err: core.ErrCheckerTimeout}
	}
	f := newFixture(t, llmmock.New(llmmock.Fenced(liftCode)), timeout)

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)
	assert.Equal(t, core.StatusExhaustedSyntax, report.Status)
	assert.Equal(t, 3, report.GenerationAttempts)
	// The call aborts on the first unit.
	assert.Len(t, f.checker.Calls(), 3)

	rounds, err := f.store.Rounds("Lift")
	require.NoError(t, err)
	require.Len(t, rounds, 3)
	assert.Equal(t, core.KindTotalFailure, rounds[0].Outcome)
	assert.Empty(t, rounds[0].Results)
	assert.Contains(t, rounds[0].Reason, "timed out")
}

func TestRun_UnitCountMismatchIsTotalFailure(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(brokenCode), llmmock.Fenced(liftCode))
	f := newFixture(t, gen, checkmock.AllValid())

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, report.Status)
	assert.Equal(t, 2, report.GenerationAttempts)

	rounds, err := f.store.Rounds("Lift")
	require.NoError(t, err)
	require.Len(t, rounds, 2)
	assert.Equal(t, core.KindTotalFailure, rounds[0].Outcome)
	assert.Equal(t, core.KindVerified, rounds[1].Outcome)
}

func TestRun_RefinesToSuccess(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(liftCode), llmmock.Fenced(fixedCode))
	f := newFixture(t, gen, checkmock.ByPass(reachFails(), checkmock.AllValid()))

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	assert.Equal(t, core.StatusSuccess, report.Status)
	assert.Equal(t, 1, report.GenerationAttempts)
	assert.Equal(t, 1, report.RefineRounds)
	assert.Equal(t, fixedCode, report.Artifact)

	prompts := gen.Prompts()
	require.Len(t, prompts, 2)
	assert.Contains(t, prompts[1], liftCode)
	assert.Contains(t, prompts[1], "performing the down action")

	dir := f.store.ModelDir("Lift")
	assert.True(t, fileExists(t, filepath.Join(dir, store.MismatchFile)))
	assert.True(t, fileExists(t, filepath.Join(dir, "refine_round_1", "0.csp")))
	assert.True(t, fileExists(t, filepath.Join(dir, "extracted_refined_1.csp")))
	assert.False(t, fileExists(t, filepath.Join(dir, "refine_round_1", store.MismatchFile)))

	saved, err := f.kb.List(context.Background())
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, fixedCode, saved[0].Code)
}

func TestRun_NothingPersistedWhileMismatchesRemain(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(liftCode))
	f := newFixture(t, gen, reachFails())

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	assert.Equal(t, core.StatusExhaustedRefine, report.Status)
	assert.Equal(t, 5, report.RefineRounds)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, "#assert Lift() reaches top;", report.Mismatches[0].Assertion)
	// One generation plus one accepted revision per round.
	assert.Equal(t, 6, gen.Calls())

	dir := f.store.ModelDir("Lift")
	assert.False(t, fileExists(t, filepath.Join(dir, store.VerifiedFile)))
	assert.Zero(t, f.kb.Len())

	final, err := os.ReadFile(filepath.Join(dir, store.FinalRefinedFile))
	require.NoError(t, err)
	assert.Equal(t, liftCode, string(final))

	var summary store.RefinementSummary
	data, err := os.ReadFile(filepath.Join(dir, store.SummaryFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 5, summary.Rounds)
	assert.False(t, summary.AllFixed)
	assert.Equal(t, 1, summary.RemainingMismatches)
}

func TestRun_FailedInnerAttemptsKeepBaseline(t *testing.T) {
	gen := llmmock.Func(func(n int, _ string) (string, error) {
		if n == 0 {
			return llmmock.Fenced(liftCode), nil
		}
		return llmmock.Fenced(brokenCode), nil
	})
	f := newFixture(t, gen, reachFails())
	f.controller.Budgets.MaxRefineRounds = 2

	report, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)

	assert.Equal(t, core.StatusExhaustedRefine, report.Status)
	assert.Equal(t, 2, report.RefineRounds)
	assert.Equal(t, liftCode, report.Artifact)
	assert.Len(t, report.Mismatches, 1)
	assert.Equal(t, 1+2*3, gen.Calls())

	// Every round revises the same baseline.
	prompts := gen.Prompts()
	for _, p := range prompts[1:] {
		assert.Contains(t, p, liftCode)
		assert.NotContains(t, p, brokenCode)
	}

	rounds, err := f.store.Rounds("Lift")
	require.NoError(t, err)
	require.Len(t, rounds, 7)
	for i, r := range rounds[1:] {
		assert.Equal(t, core.PhaseRefine, r.Phase)
		assert.Equal(t, i/3+1, r.Round)
		assert.Equal(t, i%3+1, r.Attempt)
		assert.Equal(t, core.KindTotalFailure, r.Outcome)
	}

	final, err := os.ReadFile(filepath.Join(f.store.ModelDir("Lift"), store.FinalRefinedFile))
	require.NoError(t, err)
	assert.Equal(t, liftCode, string(final))
}

func TestRun_BudgetDiscipline(t *testing.T) {
	tests := []struct {
		name     string
		budgets  Budgets
		script   checkmock.Script
		gen      func() *llmmock.Generator
		status   core.RunStatus
		attempts int
		rounds   int
		calls    int
	}{
		{
			name:     "generation exhausted",
			budgets:  Budgets{MaxGenAttempts: 2, MaxRefineRounds: 2, MaxInnerAttempts: 2},
			script:   unparseable(),
			gen:      func() *llmmock.Generator { return llmmock.New(llmmock.Fenced(liftCode)) },
			status:   core.StatusExhaustedSyntax,
			attempts: 2,
			calls:    2,
		},
		{
			name:    "every revision broken",
			budgets: Budgets{MaxGenAttempts: 2, MaxRefineRounds: 3, MaxInnerAttempts: 2},
			script:  reachFails(),
			gen: func() *llmmock.Generator {
				return llmmock.New(llmmock.Fenced(liftCode), llmmock.Fenced(brokenCode))
			},
			status:   core.StatusExhaustedRefine,
			attempts: 1,
			rounds:   3,
			calls:    1 + 3*2,
		},
		{
			name:     "no refinement budget",
			budgets:  Budgets{MaxGenAttempts: 1, MaxRefineRounds: 0, MaxInnerAttempts: 1},
			script:   reachFails(),
			gen:      func() *llmmock.Generator { return llmmock.New(llmmock.Fenced(liftCode)) },
			status:   core.StatusExhaustedRefine,
			attempts: 1,
			calls:    1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := tt.gen()
			f := newFixture(t, gen, tt.script)
			f.controller.Budgets = tt.budgets

			report, err := f.controller.Run(context.Background(), liftModel())
			require.NoError(t, err)
			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, tt.attempts, report.GenerationAttempts)
			assert.Equal(t, tt.rounds, report.RefineRounds)
			assert.Equal(t, tt.calls, gen.Calls())
			assert.Zero(t, f.kb.Len())
		})
	}
}

func TestRun_EmptyExtractionRetriesAreBounded(t *testing.T) {
	t.Run("free retry", func(t *testing.T) {
		gen := llmmock.New("   ", llmmock.Fenced(liftCode))
		f := newFixture(t, gen, checkmock.AllValid())

		report, err := f.controller.Run(context.Background(), liftModel())
		require.NoError(t, err)
		assert.Equal(t, core.StatusSuccess, report.Status)
		assert.Equal(t, 1, report.GenerationAttempts)
		assert.Equal(t, 2, gen.Calls())
	})

	t.Run("always empty", func(t *testing.T) {
		gen := llmmock.New("")
		f := newFixture(t, gen, checkmock.AllValid())

		report, err := f.controller.Run(context.Background(), liftModel())
		require.NoError(t, err)
		assert.Equal(t, core.StatusExhaustedSyntax, report.Status)
		assert.Equal(t, 3, report.GenerationAttempts)
		// Three free retries, then the attempt is consumed.
		assert.Equal(t, 3*4, gen.Calls())
		assert.Empty(t, f.checker.Calls())

		rounds, err := f.store.Rounds("Lift")
		require.NoError(t, err)
		require.Len(t, rounds, 3)
		assert.Equal(t, core.ErrEmptyExtraction.Error(), rounds[0].Reason)
	})

	t.Run("no free retries", func(t *testing.T) {
		gen := llmmock.New("")
		f := newFixture(t, gen, checkmock.AllValid())
		f.controller.Budgets.MaxEmptyRetries = 0

		report, err := f.controller.Run(context.Background(), liftModel())
		require.NoError(t, err)
		assert.Equal(t, core.StatusExhaustedSyntax, report.Status)
		assert.Equal(t, 3, gen.Calls())
	})
}

func TestRun_GeneratorFailureIsAnError(t *testing.T) {
	boom := errors.New("connection refused")
	gen := llmmock.Func(func(int, string) (string, error) { return "", boom })
	f := newFixture(t, gen, checkmock.AllValid())

	report, err := f.controller.Run(context.Background(), liftModel())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, report.Status)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(t, llmmock.New(llmmock.Fenced(liftCode)), checkmock.AllValid())

	_, err := f.controller.Run(ctx, liftModel())
	assert.ErrorIs(t, err, context.Canceled)
}

type recorder struct {
	verifications map[core.OutcomeKind]int
	attempts      map[core.Phase]int
	rounds        int
	runs          []core.RunStatus
}

func (r *recorder) RecordVerification(_ core.Phase, o core.VerifyOutcome) { r.verifications[o.Kind()]++ }
func (r *recorder) RecordAttempt(p core.Phase)                           { r.attempts[p]++ }
func (r *recorder) RecordRound()                                         { r.rounds++ }
func (r *recorder) RecordRun(s core.RunStatus, _ time.Duration)          { r.runs = append(r.runs, s) }

func TestRun_Metrics(t *testing.T) {
	gen := llmmock.New(llmmock.Fenced(liftCode), llmmock.Fenced(fixedCode))
	f := newFixture(t, gen, checkmock.ByPass(reachFails(), checkmock.AllValid()))
	rec := &recorder{verifications: map[core.OutcomeKind]int{}, attempts: map[core.Phase]int{}}
	f.controller.Metrics = rec

	_, err := f.controller.Run(context.Background(), liftModel())
	require.NoError(t, err)
	assert.Equal(t, 2, rec.verifications[core.KindVerified])
	assert.Equal(t, 1, rec.attempts[core.PhaseGenerate])
	assert.Equal(t, 1, rec.attempts[core.PhaseRefine])
	assert.Equal(t, 1, rec.rounds)
	assert.Equal(t, []core.RunStatus{core.StatusSuccess}, rec.runs)
}

func TestVerifyOnce(t *testing.T) {
	f := newFixture(t, llmmock.New(), reachFails())

	res, err := f.controller.VerifyOnce(context.Background(), liftModel(), liftCode)
	require.NoError(t, err)
	assert.Equal(t, core.KindVerified, res.Outcome)
	assert.Len(t, res.Results, 2)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, "<init -> up -> down>", res.Mismatches[0].Trace)
	assert.NotEmpty(t, res.Feedback)

	dir := filepath.Join(f.store.ModelDir("Lift"), "verify")
	assert.True(t, fileExists(t, filepath.Join(dir, "1.csp")))
	assert.True(t, fileExists(t, filepath.Join(dir, store.MismatchFile)))
	assert.False(t, fileExists(t, filepath.Join(f.store.ModelDir("Lift"), store.RoundLogFile)))
	assert.Zero(t, f.kb.Len())
}

func TestVerifyOnce_TotalFailure(t *testing.T) {
	f := newFixture(t, llmmock.New(), checkmock.AllValid())

	res, err := f.controller.VerifyOnce(context.Background(), liftModel(), brokenCode)
	require.NoError(t, err)
	assert.Equal(t, core.KindTotalFailure, res.Outcome)
	assert.Empty(t, res.Results)
	assert.NotNil(t, res.Results)
	assert.Contains(t, res.Reason, "unit count")
	assert.Empty(t, f.checker.Calls())
}
