package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/snow-ghost/patrefine/core"
)

func TestVerdict(t *testing.T) {
	tests := []struct {
		section string
		want    core.Outcome
	}{
		{"The Assertion (P() deadlockfree) is VALID.", core.OutcomeValid},
		{"The Assertion (P() deadlockfree) is valid.", core.OutcomeValid},
		{"The Assertion (P() deadlockfree) is NOT valid.", core.OutcomeInvalid},
		{"This assertion IS invalid", core.OutcomeInvalid},
		{"no verdict here", core.OutcomeUnparseable},
		{"", core.OutcomeUnparseable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Verdict(tt.section), tt.section)
	}
}

func TestParseReport(t *testing.T) {
	m := DefaultMarkers()

	raw := "header\n" + DefaultResultMarker + "\nThe Assertion (x) is VALID.\n\n" + DefaultSettingMarker + "\nsettings"
	section, outcome := m.ParseReport(raw)
	assert.Equal(t, "The Assertion (x) is VALID.", section)
	assert.Equal(t, core.OutcomeValid, outcome)

	section, outcome = m.ParseReport("")
	assert.Equal(t, "", section)
	assert.Equal(t, core.OutcomeUnparseable, outcome)

	section, outcome = m.ParseReport("Parsing error: unexpected token")
	assert.Equal(t, MissingSection, section)
	assert.Equal(t, core.OutcomeUnparseable, outcome)

	_, outcome = m.ParseReport(DefaultSettingMarker + " x " + DefaultResultMarker)
	assert.Equal(t, core.OutcomeUnparseable, outcome)
}
