// Package prompt composes generator prompts for code generation and refinement.
package prompt

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/snow-ghost/patrefine/core"
)

// Syntax is the checker-language quick reference included in generation prompts.
type Syntax struct {
	GeneralInfo   string `json:"general_info"`
	PitfallsRules string `json:"pitfalls_rules"`
}

// LoadSyntax reads a syntax reference file. A missing file yields an empty reference.
func LoadSyntax(path string) (Syntax, error) {
	var s Syntax
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("failed to read syntax reference: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("failed to decode syntax reference: %w", err)
	}
	return s, nil
}

// Describe renders the natural-language description of a target model, ending with
// the ordered assertion instructions.
func Describe(m core.TargetModel) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The user would like to build a system called %s, where %s. ", m.Name, m.Description)
	fmt.Fprintf(&b, "There are %d processes in the system, the descriptions of the processes are as follows: ", len(m.Subsystems))

	subs := make([]string, 0, len(m.Subsystems))
	for _, s := range m.Subsystems {
		subs = append(subs, s.Name+": "+s.Description)
	}
	b.WriteString(strings.Join(subs, "; "))

	fmt.Fprintf(&b, " The processes interact with each other through the following way: %s. ", m.Interaction)
	b.WriteString(" Please analyze the constants and variables in the system. Subsequently, analyze the actions in the system, " +
		"focusing on the guarded conditions and the state changes associated with each action. " +
		"With the analyzed information, please generate the PAT code according to the system description. ")

	instructions := make([]string, 0, len(m.Assertions))
	for _, a := range m.Assertions {
		if a.Description != "" {
			instructions = append(instructions, a.Description)
		}
	}
	b.WriteString(" Finally, please generate exactly the following assertions in order, without any modification: ")
	b.WriteString(strings.Join(instructions, "\n"))
	return b.String()
}

// Annotation returns the model's own annotation, or its rendered description.
func Annotation(m core.TargetModel) string {
	if strings.TrimSpace(m.Annotation) != "" {
		return m.Annotation
	}
	return Describe(m)
}

// Generation builds the code-generation prompt.
func Generation(annotation string, example core.Example, syntax Syntax) string {
	return fmt.Sprintf(`You are an expert in PAT (Process Analysis Toolkit), and you already possess a strong understanding of PAT concepts as outlined in the documentation. As a reminder, here are a few key guidelines:
--- Quick Reference ---
General Information: %s

Pitfalls and Syntax Guidelines: %s

Your task is to generate the PAT code given the system description.
### Example PAT Code Output:
**Detailed Description:** %s
**Expected Output:** %s

Given the general system description: %s, now generate the PAT code.

The PAT code should be:
### Response:`, syntax.GeneralInfo, syntax.PitfallsRules, example.NL, example.Code, annotation)
}

// Refinement builds the prompt asking the generator to revise previous with brief.
func Refinement(previous, brief string) string {
	return "You are an expert in PAT (Process Analysis Toolkit). Your task now is to refine your previously generated PAT code according to some suggestions.\n\n" +
		"Your previously generated PAT code is as follows:\n" + previous + "\n\n" +
		"The logic that we can follow to refine our code to satisfy user requirements is:\n" + brief + "\n\n" +
		"Please refine and fix the PAT code so that it avoids the problems we mentioned, and only through modifying code relevant to our suggestions. " +
		"**The other parts of code should not be changed to avoid syntax error, especially, NEVER remove semicolons.** " +
		"Please provide the revised PAT code."
}
