// Package splitter partitions a candidate artifact into one verification unit per assertion.
package splitter

import (
	"fmt"
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

const (
	DefaultDeclarationPrefix = "#define"
	DefaultAssertionPrefix   = "#assert"
)

// BlockSplitter implements core.Splitter.
//
// A run is zero or more declaration lines immediately followed by one assertion line;
// blank lines inside a run are absorbed. Everything outside runs is the shared body.
type BlockSplitter struct {
	DeclarationPrefix string
	AssertionPrefix   string
}

// New creates a splitter for the default `#define` / `#assert` statements.
func New() *BlockSplitter {
	return &BlockSplitter{
		DeclarationPrefix: DefaultDeclarationPrefix,
		AssertionPrefix:   DefaultAssertionPrefix,
	}
}

var _ core.Splitter = (*BlockSplitter)(nil)

// Split returns one unit per assertion line found in artifact. Every unit carries the
// whole body and the de-duplicated declarations of all runs in first-seen order.
// A count different from assertionCount returns core.ErrUnitCountMismatch.
func (s *BlockSplitter) Split(artifact string, assertionCount int) ([]core.VerificationUnit, error) {
	body, decls, asserts := s.scan(artifact)

	if len(asserts) != assertionCount {
		return nil, fmt.Errorf("%w: found %d assertions, expected %d",
			core.ErrUnitCountMismatch, len(asserts), assertionCount)
	}

	units := make([]core.VerificationUnit, 0, len(asserts))
	for i, a := range asserts {
		d := make([]string, len(decls))
		copy(d, decls)
		units = append(units, core.VerificationUnit{
			Index:        i,
			Body:         body,
			Declarations: d,
			Assertion:    a,
		})
	}
	return units, nil
}

// scan walks the artifact line by line. Pending declarations (and blank lines between
// them) are held until the next significant line decides whether they belong to a run.
func (s *BlockSplitter) scan(artifact string) (body string, decls, asserts []string) {
	var (
		bodyLines []string
		pending   []string // raw lines held back, returned to the body if no assertion follows
		runDecls  []string
		seen      = make(map[string]bool)
	)

	flush := func() {
		bodyLines = append(bodyLines, pending...)
		pending = pending[:0]
		runDecls = runDecls[:0]
	}

	for _, line := range strings.Split(artifact, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case s.isAssertion(trimmed):
			for _, d := range runDecls {
				if !seen[d] {
					seen[d] = true
					decls = append(decls, d)
				}
			}
			asserts = append(asserts, trimmed)
			pending = pending[:0]
			runDecls = runDecls[:0]
		case s.isDeclaration(trimmed):
			pending = append(pending, line)
			runDecls = append(runDecls, trimmed)
		case trimmed == "" && len(pending) > 0:
			pending = append(pending, line)
		default:
			flush()
			bodyLines = append(bodyLines, line)
		}
	}
	flush()

	return strings.TrimSpace(strings.Join(bodyLines, "\n")), decls, asserts
}

func (s *BlockSplitter) isDeclaration(trimmed string) bool {
	return strings.HasPrefix(trimmed, s.DeclarationPrefix)
}

func (s *BlockSplitter) isAssertion(trimmed string) bool {
	return strings.HasPrefix(trimmed, s.AssertionPrefix)
}
