// Package dataset loads structured target-model descriptions.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

// Condition is one variable = value clause of a state definition.
type Condition struct {
	Variable  string `json:"variable"`
	Value     string `json:"value"`
	Connector string `json:"connector,omitempty"`
}

// Assertion is one assertion entry as it appears in a dataset file.
type Assertion struct {
	Type              string      `json:"assertionType"`
	Truth             string      `json:"assertionTruth,omitempty"`
	Component         string      `json:"component,omitempty"`
	StateName         string      `json:"stateName,omitempty"`
	Conditions        []Condition `json:"conditions,omitempty"`
	ReachabilityType  string      `json:"reachabilityType,omitempty"`
	CustomDescription string      `json:"customDescription,omitempty"`
	LTLTarget         string      `json:"ltlTarget,omitempty"`
	LTLLogic          string      `json:"ltlLogic,omitempty"`
	SelectedActions   []string    `json:"selectedActions,omitempty"`
}

// Entry is one target model as it appears in a dataset file.
type Entry struct {
	ModelName       string           `json:"modelName"`
	ModelDesc       string           `json:"modelDesc"`
	SubsystemCount  int              `json:"subsystemCount,omitempty"`
	Subsystems      []core.Subsystem `json:"subsystems"`
	InteractionMode string           `json:"interactionMode"`
	Assertions      []Assertion      `json:"assertions"`
	Annotation      string           `json:"annotation,omitempty"`
}

var ErrInvalidEntry = errors.New("invalid dataset entry")

// Load reads a dataset file holding either one entry or an array of entries.
func Load(path string) ([]core.TargetModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates dataset JSON.
func Parse(data []byte) ([]core.TargetModel, error) {
	var entries []Entry
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("failed to decode dataset: %w", err)
		}
		entries = []Entry{e}
	} else if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}

	models := make([]core.TargetModel, 0, len(entries))
	for i, e := range entries {
		m, err := e.Model()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		models = append(models, m)
	}
	return models, nil
}

// Model validates the entry and converts it, keeping assertion order.
func (e Entry) Model() (core.TargetModel, error) {
	if strings.TrimSpace(e.ModelName) == "" {
		return core.TargetModel{}, fmt.Errorf("%w: modelName is required", ErrInvalidEntry)
	}
	for i, s := range e.Subsystems {
		if strings.TrimSpace(s.Name) == "" {
			return core.TargetModel{}, fmt.Errorf("%w: subsystem %d has no name", ErrInvalidEntry, i)
		}
	}

	assertions := make([]core.AssertionSpec, 0, len(e.Assertions))
	for i, a := range e.Assertions {
		spec, err := a.Spec(i)
		if err != nil {
			return core.TargetModel{}, fmt.Errorf("assertion %d: %w", i, err)
		}
		assertions = append(assertions, spec)
	}

	return core.TargetModel{
		Name:        strings.TrimSpace(e.ModelName),
		Description: e.ModelDesc,
		Subsystems:  e.Subsystems,
		Interaction: e.InteractionMode,
		Annotation:  e.Annotation,
		Assertions:  assertions,
	}, nil
}

// Spec converts an assertion entry, rendering its natural-language description.
func (a Assertion) Spec(i int) (core.AssertionSpec, error) {
	kind, err := parseKind(a.Type)
	if err != nil {
		return core.AssertionSpec{}, err
	}
	desired, err := parseTruth(a.Truth)
	if err != nil {
		return core.AssertionSpec{}, err
	}
	return core.AssertionSpec{
		ID:          fmt.Sprintf("assertion-%d", i),
		Kind:        kind,
		Description: a.describe(i, kind),
		Desired:     desired,
		Component:   a.Component,
		StateName:   strings.TrimSpace(a.StateName),
	}, nil
}

func parseKind(s string) (core.AssertionKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deadlock-free", "deadlockfree":
		return core.KindDeadlockFree, nil
	case "reachability":
		return core.KindReachability, nil
	case "ltl":
		return core.KindLTL, nil
	}
	return "", fmt.Errorf("%w: unknown assertionType %q", ErrInvalidEntry, s)
}

func parseTruth(s string) (core.Outcome, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "valid":
		return core.OutcomeValid, nil
	case "invalid":
		return core.OutcomeInvalid, nil
	}
	return "", fmt.Errorf("%w: unknown assertionTruth %q", ErrInvalidEntry, s)
}

func (a Assertion) describe(i int, kind core.AssertionKind) string {
	target := "system"
	if a.Component != "" {
		target = "subsystem " + a.Component
	}
	state := strings.TrimSpace(a.StateName)
	if state == "" {
		state = "{stateName}"
	}

	var lines []string
	switch kind {
	case core.KindDeadlockFree:
		lines = append(lines, fmt.Sprintf("Assertion %d: assert that the system is deadlockfree", i))
	case core.KindReachability:
		cond := a.CustomDescription
		if strings.ToLower(strings.TrimSpace(a.ReachabilityType)) != "customize" {
			cond = a.conditions(true, " ")
		}
		lines = append(lines,
			fmt.Sprintf("Assertion %d:", i),
			fmt.Sprintf(" define %s: %s", state, cond),
			fmt.Sprintf(" assert that the %s can reach the state %q", target, state))
	case core.KindLTL:
		logic := strings.ReplaceAll(strings.TrimSpace(a.LTLLogic), "_", " ")
		switch strings.ToLower(strings.TrimSpace(a.LTLTarget)) {
		case "customize":
			lines = append(lines, fmt.Sprintf("Assertion %d: ", i), "// "+a.CustomDescription)
		case "action":
			lines = append(lines,
				fmt.Sprintf("Assertion %d: ", i),
				fmt.Sprintf("assert that the %s will %s perform those actions %q", target, logic, strings.Join(a.SelectedActions, ", ")))
		case "state":
			lines = append(lines,
				fmt.Sprintf("Assertion %d: ", i),
				fmt.Sprintf("define %s: %s", state, a.conditions(false, " and ")),
				fmt.Sprintf("assert that the %s will %s reach the state %q", target, logic, state))
		}
	}
	return strings.Join(lines, "\n")
}

// conditions renders the variable = value clauses. With connectors, every clause after
// the first is prefixed by its connector (AND by default).
func (a Assertion) conditions(connectors bool, sep string) string {
	var parts []string
	for _, c := range a.Conditions {
		variable, value := strings.TrimSpace(c.Variable), strings.TrimSpace(c.Value)
		if variable == "" || value == "" {
			continue
		}
		expr := variable + " = " + value
		if connectors && len(parts) > 0 {
			conn := strings.ToUpper(strings.TrimSpace(c.Connector))
			if conn == "" {
				conn = "AND"
			}
			expr = conn + " " + expr
		}
		parts = append(parts, expr)
	}
	if len(parts) == 0 {
		return "no conditions provided"
	}
	return strings.Join(parts, sep)
}
