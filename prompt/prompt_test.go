package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/patrefine/core"
)

func model() core.TargetModel {
	return core.TargetModel{
		Name:        "Lift",
		Description: "a lift serves two floors",
		Subsystems: []core.Subsystem{
			{Name: "Cabin", Description: "moves between floors"},
			{Name: "Door", Description: "opens at a floor"},
		},
		Interaction: "synchronous channels",
		Assertions: []core.AssertionSpec{
			{Kind: core.KindDeadlockFree, Description: "Assertion 0: assert that the system is deadlockfree"},
			{Kind: core.KindReachability, Description: "Assertion 1:\n define top: floor = 1"},
		},
	}
}

func TestDescribe(t *testing.T) {
	d := Describe(model())
	assert.Contains(t, d, "a system called Lift, where a lift serves two floors.")
	assert.Contains(t, d, "There are 2 processes")
	assert.Contains(t, d, "Cabin: moves between floors; Door: opens at a floor")
	assert.Contains(t, d, "through the following way: synchronous channels.")
	assert.Contains(t, d, "without any modification: Assertion 0: assert that the system is deadlockfree\nAssertion 1:\n define top: floor = 1")
}

func TestAnnotation(t *testing.T) {
	m := model()
	assert.Equal(t, Describe(m), Annotation(m))
	m.Annotation = "custom annotation"
	assert.Equal(t, "custom annotation", Annotation(m))
}

func TestGeneration_IncludesInputs(t *testing.T) {
	p := Generation("the annotation", core.Example{NL: "example nl", Code: "P() = Skip;"},
		Syntax{GeneralInfo: "general", PitfallsRules: "pitfalls"})
	for _, want := range []string{"the annotation", "example nl", "P() = Skip;", "General Information: general", "Pitfalls and Syntax Guidelines: pitfalls"} {
		assert.Contains(t, p, want)
	}
}

func TestRefinement_IncludesInputsAndConstraint(t *testing.T) {
	p := Refinement("var x = 0;", "fix the guard")
	assert.Contains(t, p, "var x = 0;")
	assert.Contains(t, p, "fix the guard")
	assert.Contains(t, p, "NEVER remove semicolons")
	assert.Contains(t, p, "should not be changed")
}

func TestLoadSyntax(t *testing.T) {
	s, err := LoadSyntax(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Syntax{}, s)

	path := filepath.Join(t.TempDir(), "syntax.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"general_info": "g", "pitfalls_rules": "p"}`), 0644))
	s, err = LoadSyntax(path)
	require.NoError(t, err)
	assert.Equal(t, Syntax{GeneralInfo: "g", PitfallsRules: "p"}, s)

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0644))
	_, err = LoadSyntax(path)
	assert.Error(t, err)
}
