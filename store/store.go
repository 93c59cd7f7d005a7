// Package store lays out the per-model working directory: generator responses,
// verification results, the round log and terminal records.
package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/snow-ghost/patrefine/core"
)

// File names inside a model directory.
const (
	ResponseFile          = "original_llm_response.txt"
	ExtractedFile         = "extracted_code.csp"
	ResultsFile           = "verification_results.json"
	MismatchFile          = "mismatch_traces.json"
	RoundLogFile          = "rounds.jsonl"
	VerifiedFile          = "verifiedCode.csp"
	RegenerationErrorFile = "regeneration_errors.json"
	FinalRefinedFile      = "final_refined_code.csp"
	SummaryFile           = "refinement_summary.json"
	RunTimeFile           = "run_time.json"
)

const timeLayout = "2006-01-02 15:04:05"

// Store writes under root, one directory per target model.
type Store struct {
	root string
	mu   sync.Mutex // serializes rounds.jsonl appends and run_time.json updates
	now  func() time.Time
}

// New creates a store rooted at root.
func New(root string) *Store {
	return &Store{root: root, now: time.Now}
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// ModelDir returns the directory of a target model.
func (s *Store) ModelDir(model string) string {
	return filepath.Join(s.root, SafeName(model))
}

// VerifyDir returns where a verification call writes its unit files: the model
// directory for generation, refine_round_<r> for refinement rounds.
func (s *Store) VerifyDir(model string, phase core.Phase, round int) string {
	if phase == core.PhaseRefine {
		return filepath.Join(s.ModelDir(model), fmt.Sprintf("refine_round_%d", round))
	}
	return s.ModelDir(model)
}

// SafeName maps a model name to a single path element.
func SafeName(model string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(model))
	if name == "" || name == "." || name == ".." {
		return "unknown_model"
	}
	return name
}

// SaveResponse records a raw generator response and the code extracted from it.
func (s *Store) SaveResponse(model string, phase core.Phase, round int, raw, code string) error {
	respName, codeName := ResponseFile, ExtractedFile
	if phase == core.PhaseRefine {
		respName = fmt.Sprintf("original_refined_%d.txt", round)
		codeName = fmt.Sprintf("extracted_refined_%d.csp", round)
	}
	dir := s.ModelDir(model)
	if err := WriteFile(filepath.Join(dir, respName), []byte(raw)); err != nil {
		return err
	}
	return WriteFile(filepath.Join(dir, codeName), []byte(code))
}

// SaveVerification writes the results of one pass into dir, plus the mismatch file
// when mismatches exist. A stale mismatch file from an earlier pass is removed.
func (s *Store) SaveVerification(dir string, results []core.VerificationResult, mismatches []core.MismatchRecord) error {
	if results == nil {
		results = []core.VerificationResult{}
	}
	if err := WriteJSON(filepath.Join(dir, ResultsFile), results); err != nil {
		return err
	}
	path := filepath.Join(dir, MismatchFile)
	if len(mismatches) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove stale mismatch file: %w", err)
		}
		return nil
	}
	return WriteJSON(path, mismatches)
}

// AppendRound appends a record to the model's round log.
func (s *Store) AppendRound(rec core.RoundRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.ModelDir(rec.Model)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal round record: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, RoundLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open round log: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append round record: %w", err)
	}
	return nil
}

// Rounds reads the model's round log in append order.
func (s *Store) Rounds(model string) ([]core.RoundRecord, error) {
	f, err := os.Open(filepath.Join(s.ModelDir(model), RoundLogFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open round log: %w", err)
	}
	defer f.Close()

	var records []core.RoundRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if len(strings.TrimSpace(scanner.Text())) == 0 {
			continue
		}
		var rec core.RoundRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("failed to decode round record: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// SaveVerified writes the canonical verified artifact.
func (s *Store) SaveVerified(model, code string) error {
	return WriteFile(filepath.Join(s.ModelDir(model), VerifiedFile), []byte(code))
}

// RegenerationErrors is the diagnostic record of an exhausted generation phase.
type RegenerationErrors struct {
	Attempts            int                       `json:"attempts"`
	LastErrorTime       string                    `json:"last_error_time"`
	VerificationResults []core.VerificationResult `json:"verification_results"`
}

// SaveRegenerationErrors records an exhausted generation phase.
func (s *Store) SaveRegenerationErrors(model string, attempts int, results []core.VerificationResult) error {
	if results == nil {
		results = []core.VerificationResult{}
	}
	return WriteJSON(filepath.Join(s.ModelDir(model), RegenerationErrorFile), RegenerationErrors{
		Attempts:            attempts,
		LastErrorTime:       s.now().Format(timeLayout),
		VerificationResults: results,
	})
}

// RefinementSummary is the terminal record of an exhausted refinement phase.
type RefinementSummary struct {
	Rounds              int    `json:"rounds"`
	AllFixed            bool   `json:"all_fixed"`
	RemainingMismatches int    `json:"remaining_mismatches"`
	CompletionTime      string `json:"completion_time"`
}

// SaveRefinementExhausted writes the last artifact and the refinement summary.
func (s *Store) SaveRefinementExhausted(model, code string, rounds, remaining int) error {
	dir := s.ModelDir(model)
	if err := WriteFile(filepath.Join(dir, FinalRefinedFile), []byte(code)); err != nil {
		return err
	}
	return WriteJSON(filepath.Join(dir, SummaryFile), RefinementSummary{
		Rounds:              rounds,
		AllFixed:            false,
		RemainingMismatches: remaining,
		CompletionTime:      s.now().Format(timeLayout),
	})
}

// StageTiming is one entry of run_time.json.
type StageTiming struct {
	RunTime       float64 `json:"runTime"`
	HasMismatch   *bool   `json:"hasMismatch,omitempty"`
	CodegenFailed *bool   `json:"codegenFailed,omitempty"`
}

// RecordStage stores the duration of a named stage, e.g. "codegen-time_<ts>".
func (s *Store) RecordStage(model, stage string, d time.Duration, hasMismatch, codegenFailed *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.ModelDir(model), RunTimeFile)
	timings := map[string]StageTiming{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &timings); err != nil {
			return fmt.Errorf("failed to decode run times: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to read run times: %w", err)
	}

	timings[stage] = StageTiming{RunTime: d.Seconds(), HasMismatch: hasMismatch, CodegenFailed: codegenFailed}
	return WriteJSON(path, timings)
}

// StageName builds a timestamped stage key.
func (s *Store) StageName(prefix string) string {
	return prefix + "_" + s.now().Format("2006-01-02-15-04-05.000")
}
