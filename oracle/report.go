package oracle

import (
	"regexp"
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

// Section markers printed by the PAT console around the verdict.
const (
	DefaultResultMarker  = "********Verification Result********"
	DefaultSettingMarker = "********Verification Setting********"
)

// MissingSection is stored as the report when the markers are absent.
const MissingSection = "Verification result not found - potential syntax error"

var verdictPattern = regexp.MustCompile(`(?i)\bis\s+(\w+)`)

// Markers delimit the verdict section of a checker report.
type Markers struct {
	Result  string
	Setting string
}

// DefaultMarkers returns the PAT console markers.
func DefaultMarkers() Markers {
	return Markers{Result: DefaultResultMarker, Setting: DefaultSettingMarker}
}

// Section returns the trimmed text between the result and setting markers.
func (m Markers) Section(output string) (string, bool) {
	start := strings.Index(output, m.Result)
	end := strings.Index(output, m.Setting)
	if start == -1 || end == -1 {
		return "", false
	}
	start += len(m.Result)
	if end < start {
		return "", false
	}
	return strings.TrimSpace(output[start:end]), true
}

// Verdict reads the outcome token from a verdict section. "is VALID" (any case) is
// Valid, "is <anything else>" is Invalid, no match is unparseable.
func Verdict(section string) core.Outcome {
	m := verdictPattern.FindStringSubmatch(section)
	if m == nil || m[1] == "" {
		return core.OutcomeUnparseable
	}
	if strings.EqualFold(m[1], "VALID") {
		return core.OutcomeValid
	}
	return core.OutcomeInvalid
}

// ParseReport normalizes a raw checker output into (section, outcome).
func (m Markers) ParseReport(output string) (string, core.Outcome) {
	if output == "" {
		return "", core.OutcomeUnparseable
	}
	section, ok := m.Section(output)
	if !ok {
		return MissingSection, core.OutcomeUnparseable
	}
	return section, Verdict(section)
}
