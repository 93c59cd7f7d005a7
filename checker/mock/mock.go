// Package mock provides a scripted core.Checker for tests and offline runs.
package mock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/snow-ghost/patrefine/core"
)

// Response is what the checker does for one invocation.
type Response struct {
	// Output is written to the output path unless NoOutput is set.
	Output   string
	NoOutput bool
	// Err is returned instead of writing output.
	Err   error
	Delay time.Duration
}

// Call records one invocation.
type Call struct {
	Mode   core.EngineMode
	Input  string
	Source string
}

// Script decides the response for one invocation.
type Script func(call Call) Response

// Checker implements core.Checker from a Script.
type Checker struct {
	mu     sync.Mutex
	script Script
	calls  []Call
}

// New creates a checker driven by script.
func New(script Script) *Checker {
	return &Checker{script: script}
}

var _ core.Checker = (*Checker)(nil)

func (c *Checker) Run(ctx context.Context, mode core.EngineMode, inputPath, outputPath string) error {
	src, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrCheckerFailed, err)
	}

	call := Call{Mode: mode, Input: inputPath, Source: string(src)}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()

	resp := c.script(call)
	if resp.Delay > 0 {
		select {
		case <-time.After(resp.Delay):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", core.ErrCheckerTimeout, ctx.Err())
		}
	}
	if resp.Err != nil {
		return resp.Err
	}
	if resp.NoOutput {
		return nil
	}
	return os.WriteFile(outputPath, []byte(resp.Output), 0644)
}

// Calls returns a copy of the recorded invocations.
func (c *Checker) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// Report renders a console-style report with the given verdict sentence and trace.
func Report(assertion, verdict, trace string) string {
	var b strings.Builder
	b.WriteString("=======================================================\n")
	b.WriteString("Assertion: " + assertion + "\n")
	b.WriteString("********Verification Result********\n")
	b.WriteString("The Assertion (" + assertion + ") is " + verdict + ".\n")
	if trace != "" {
		b.WriteString("The following trace leads to a violating state.\n")
		b.WriteString(trace + "\n")
	}
	b.WriteString("\n********Verification Setting********\n")
	b.WriteString("Admissible Behavior: All\n")
	b.WriteString("Search Engine: First Witness Trace using Depth First Search\n")
	return b.String()
}

// Valid and Invalid are shorthands for Report.
func Valid(assertion string) string { return Report(assertion, "VALID", "") }
func Invalid(assertion, trace string) string {
	return Report(assertion, "NOT valid", trace)
}

// ByAssertion answers by matching the unit's assertion line against keys, which are
// substrings of assertions. Units with no matching key get fallback.
func ByAssertion(answers map[string]Response, fallback Response) Script {
	return func(call Call) Response {
		line := call.Assertion()
		for key, resp := range answers {
			if strings.Contains(line, key) {
				return resp
			}
		}
		return fallback
	}
}

// AllValid answers VALID for every unit.
func AllValid() Script {
	return func(call Call) Response {
		return Response{Output: Valid(call.Assertion())}
	}
}

// ByPass answers each verification pass with the next script, repeating the last one.
// A pass starts whenever unit 0 is checked.
func ByPass(scripts ...Script) Script {
	var (
		mu   sync.Mutex
		pass = -1
	)
	return func(call Call) Response {
		mu.Lock()
		if filepath.Base(call.Input) == "0.csp" || pass < 0 {
			pass++
		}
		s := scripts[min(pass, len(scripts)-1)]
		mu.Unlock()
		return s(call)
	}
}

// Assertion returns the unit's assertion line.
func (c Call) Assertion() string {
	lines := strings.Split(c.Source, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if t := strings.TrimSpace(lines[i]); strings.HasPrefix(t, "#assert") {
			return t
		}
	}
	return ""
}
