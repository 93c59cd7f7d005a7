// Package extract pulls candidate source code out of free-form generator output.
package extract

import (
	"regexp"
	"strings"
)

// fenced matches ```lang\n...``` and ```...``` blocks, non-greedy.
var fenced = regexp.MustCompile("(?s)```(?:[a-zA-Z]*\\n)?(.*?)```")

// Blocks returns the contents of every fenced code block in text, in order.
func Blocks(text string) []string {
	matches := fenced.FindAllStringSubmatch(text, -1)
	blocks := make([]string, 0, len(matches))
	for _, m := range matches {
		blocks = append(blocks, m[1])
	}
	return blocks
}

// LongestBlock returns the longest fenced block, trimmed. With no fenced blocks the
// trimmed raw text is used. ok is false when the result is empty.
func LongestBlock(text string) (string, bool) {
	blocks := Blocks(text)
	if len(blocks) == 0 {
		raw := strings.TrimSpace(text)
		return raw, raw != ""
	}

	longest := blocks[0]
	for _, b := range blocks[1:] {
		if len(b) > len(longest) {
			longest = b
		}
	}
	code := strings.TrimSpace(longest)
	return code, code != ""
}

// Extractor is the swappable form of LongestBlock.
type Extractor func(text string) (string, bool)
