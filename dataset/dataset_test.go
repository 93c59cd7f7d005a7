package dataset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/patrefine/core"
)

const carPark = `[
  {
    "modelName": "CarPark",
    "modelDesc": "cars enter and leave a car park with limited capacity",
    "subsystemCount": 2,
    "subsystems": [
      {"name": "Car", "description": "a car that enters and leaves"},
      {"name": "Gate", "description": "the gate that counts cars"}
    ],
    "interactionMode": "shared variables",
    "assertions": [
      {"assertionType": "deadlock-free"},
      {"assertionType": "reachability", "stateName": "full",
       "conditions": [{"variable": "count", "value": "N"}, {"variable": "gate", "value": "0", "connector": "or"}]},
      {"assertionType": "ltl", "ltlTarget": "state", "ltlLogic": "always_eventually", "stateName": "empty",
       "conditions": [{"variable": "count", "value": "0"}], "assertionTruth": "Invalid"},
      {"assertionType": "LTL", "ltlTarget": "action", "ltlLogic": "eventually", "component": "Gate",
       "selectedActions": ["open", "close"]}
    ]
  }
]`

func TestParse(t *testing.T) {
	models, err := Parse([]byte(carPark))
	require.NoError(t, err)
	require.Len(t, models, 1)

	m := models[0]
	assert.Equal(t, "CarPark", m.Name)
	assert.Equal(t, "shared variables", m.Interaction)
	require.Len(t, m.Subsystems, 2)
	require.Len(t, m.Assertions, 4)

	kinds := []core.AssertionKind{core.KindDeadlockFree, core.KindReachability, core.KindLTL, core.KindLTL}
	for i, a := range m.Assertions {
		assert.Equal(t, kinds[i], a.Kind)
	}

	assert.Equal(t, core.OutcomeValid, m.Assertions[0].DesiredOutcome())
	assert.Equal(t, core.OutcomeInvalid, m.Assertions[2].DesiredOutcome())

	assert.Equal(t, "Assertion 0: assert that the system is deadlockfree", m.Assertions[0].Description)
	assert.Equal(t, "Assertion 1:\n define full: count = N OR gate = 0\n assert that the system can reach the state \"full\"",
		m.Assertions[1].Description)
	assert.Equal(t, "Assertion 2: \ndefine empty: count = 0\nassert that the system will always eventually reach the state \"empty\"",
		m.Assertions[2].Description)
	assert.Equal(t, "Assertion 3: \nassert that the subsystem Gate will eventually perform those actions \"open, close\"",
		m.Assertions[3].Description)
}

func TestParse_SingleObject(t *testing.T) {
	models, err := Parse([]byte(`{"modelName": "Solo", "assertions": [{"assertionType": "deadlock-free"}]}`))
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "Solo", models[0].Name)
}

func TestParse_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"missing model name", `[{"modelDesc": "x"}]`},
		{"unnamed subsystem", `[{"modelName": "M", "subsystems": [{"description": "d"}]}]`},
		{"unknown assertion type", `[{"modelName": "M", "assertions": [{"assertionType": "fairness"}]}]`},
		{"unknown truth", `[{"modelName": "M", "assertions": [{"assertionType": "ltl", "assertionTruth": "maybe"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			assert.ErrorIs(t, err, ErrInvalidEntry)
		})
	}

	_, err := Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(carPark), 0644))

	models, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, models, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
