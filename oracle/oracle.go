// Package oracle drives the external checker over verification units and normalizes
// its reports.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/snow-ghost/patrefine/core"
)

// DefaultAlternateKeywords route an assertion to the checker's alternate engine.
var DefaultAlternateKeywords = []string{"reaches", "deadlockfree"}

// CheckObserver receives the duration and error of every checker invocation.
type CheckObserver interface {
	ObserveCheck(mode core.EngineMode, d time.Duration, err error)
}

// Observers fans one observation out to several observers.
type Observers []CheckObserver

func (o Observers) ObserveCheck(mode core.EngineMode, d time.Duration, err error) {
	for _, obs := range o {
		obs.ObserveCheck(mode, d, err)
	}
}

// Adapter implements core.Oracle on top of a core.Checker.
type Adapter struct {
	Checker           core.Checker
	Markers           Markers
	AlternateKeywords []string
	Observer          CheckObserver
}

// New creates an adapter with the PAT markers and engine keywords.
func New(checker core.Checker) *Adapter {
	return &Adapter{
		Checker:           checker,
		Markers:           DefaultMarkers(),
		AlternateKeywords: DefaultAlternateKeywords,
	}
}

var _ core.Oracle = (*Adapter)(nil)

// SelectEngine picks the alternate engine when the assertion mentions a keyword. The
// default keywords follow the PAT console invocation: reachability and deadlock-freedom
// checks run with -engine 1, while LTL assertions such as "|= []<> done" keep the
// default engine.
func (a *Adapter) SelectEngine(assertion string) core.EngineMode {
	for _, kw := range a.AlternateKeywords {
		if strings.Contains(assertion, kw) {
			return core.EngineAlternate
		}
	}
	return core.EngineDefault
}

// InputPath and OutputPath name the per-unit checker files inside workDir.
func InputPath(workDir string, i int) string  { return filepath.Join(workDir, fmt.Sprintf("%d.csp", i)) }
func OutputPath(workDir string, i int) string { return filepath.Join(workDir, fmt.Sprintf("pat_output_%d.txt", i)) }

// Verify runs the checker once per unit, sequentially. A checker timeout or failure
// aborts the whole call; the caller receives no results.
func (a *Adapter) Verify(ctx context.Context, units []core.VerificationUnit, workDir string) ([]core.VerificationResult, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create verification directory: %w", err)
	}

	results := make([]core.VerificationResult, 0, len(units))
	for i, unit := range units {
		res, err := a.verifyOne(ctx, i, unit, workDir)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (a *Adapter) verifyOne(ctx context.Context, i int, unit core.VerificationUnit, workDir string) (core.VerificationResult, error) {
	in, out := InputPath(workDir, i), OutputPath(workDir, i)
	if err := os.WriteFile(in, []byte(unit.Source()), 0644); err != nil {
		return core.VerificationResult{}, fmt.Errorf("failed to write unit %d: %w", i, err)
	}
	// A stale report from an earlier call must not be read as this call's output.
	_ = os.Remove(out)

	mode := a.SelectEngine(unit.Assertion)
	ctx, span := otel.Tracer("github.com/snow-ghost/patrefine/oracle").Start(ctx, "checker.run")
	span.SetAttributes(
		attribute.Int("unit.index", i),
		attribute.String("checker.engine", mode.String()),
	)
	defer span.End()

	start := time.Now()
	err := a.Checker.Run(ctx, mode, in, out)
	if a.Observer != nil {
		a.Observer.ObserveCheck(mode, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.WarnContext(ctx, "checker run aborted verification", "unit", i, "engine", mode.String(), "error", err)
		return core.VerificationResult{}, fmt.Errorf("unit %d: %w", i, err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		slog.WarnContext(ctx, "checker produced no output file", "unit", i, "error", err)
		raw = nil
	}

	section, outcome := a.Markers.ParseReport(string(raw))
	if outcome == core.OutcomeUnparseable {
		slog.InfoContext(ctx, "unparseable checker report", "unit", i, "bytes", len(raw))
	}

	return core.VerificationResult{
		Assertion: unit.Assertion,
		Report:    section,
		Outcome:   outcome,
	}, nil
}
