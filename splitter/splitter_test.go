package splitter

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snow-ghost/patrefine/core"
)

const carModel = `#define N 2;
var owner[N];
var door = 0;

Car() = open{door = 1;} -> close{door = 0;} -> Car();

#define opened door == 1;
#assert Car() reaches opened;
#assert Car() deadlockfree;

#define opened door == 1;
#define closed door == 0;

#assert Car() |= []<> closed;`

func TestSplit_OneUnitPerAssertion(t *testing.T) {
	units, err := New().Split(carModel, 3)
	require.NoError(t, err)
	require.Len(t, units, 3)

	wantBody := "#define N 2;\nvar owner[N];\nvar door = 0;\n\nCar() = open{door = 1;} -> close{door = 0;} -> Car();"
	wantDecls := []string{"#define opened door == 1;", "#define closed door == 0;"}
	wantAsserts := []string{
		"#assert Car() reaches opened;",
		"#assert Car() deadlockfree;",
		"#assert Car() |= []<> closed;",
	}

	for i, u := range units {
		assert.Equal(t, i, u.Index)
		assert.Equal(t, wantBody, u.Body)
		assert.Equal(t, wantDecls, u.Declarations)
		assert.Equal(t, wantAsserts[i], u.Assertion)
	}

	assert.Equal(t, wantBody+"\n\n#define opened door == 1;\n#define closed door == 0;\n#assert Car() deadlockfree;", units[1].Source())
}

func TestSplit_EachSourceHasExactlyOneAssertion(t *testing.T) {
	units, err := New().Split(carModel, 3)
	require.NoError(t, err)

	for _, u := range units {
		count := 0
		for _, line := range splitLines(u.Source()) {
			if len(line) >= len(DefaultAssertionPrefix) && line[:len(DefaultAssertionPrefix)] == DefaultAssertionPrefix {
				count++
			}
		}
		assert.Equal(t, 1, count, "unit %d", u.Index)
	}
}

func TestSplit_Idempotent(t *testing.T) {
	s := New()
	first, err := s.Split(carModel, 3)
	require.NoError(t, err)
	second, err := s.Split(carModel, 3)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("split is not deterministic (-first +second):\n%s", diff)
	}
}

func TestSplit_CountMismatchIsFatal(t *testing.T) {
	artifact := "P() = a -> P();\n#assert P() deadlockfree;\n#assert P() reaches x;\n#assert P() |= <> a;"
	units, err := New().Split(artifact, 2)
	assert.Nil(t, units)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrUnitCountMismatch))
}

func TestSplit_ZeroAssertions(t *testing.T) {
	units, err := New().Split("P() = Skip;", 0)
	require.NoError(t, err)
	assert.Empty(t, units)

	_, err = New().Split("P() = Skip;", 1)
	assert.ErrorIs(t, err, core.ErrUnitCountMismatch)
}

func TestSplit_CommentedStatementsStayInBody(t *testing.T) {
	artifact := "P() = a -> P();\n// #assert P() deadlockfree;\n  #assert P() reaches goal;"
	units, err := New().Split(artifact, 1)
	require.NoError(t, err)
	assert.Equal(t, "P() = a -> P();\n// #assert P() deadlockfree;", units[0].Body)
	assert.Equal(t, "#assert P() reaches goal;", units[0].Assertion)
}

func TestSplit_DeclarationNotFollowedByAssertionIsBody(t *testing.T) {
	artifact := "#define N 3;\nvar x = N;\nP() = Skip;\n#assert P() deadlockfree;"
	units, err := New().Split(artifact, 1)
	require.NoError(t, err)
	assert.Equal(t, "#define N 3;\nvar x = N;\nP() = Skip;", units[0].Body)
	assert.Empty(t, units[0].Declarations)
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	return append(out, s[start:])
}
