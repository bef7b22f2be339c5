// Filename: javascript/helpers.go
package javascript

import (
	"strings"

	"github.com/xkilldash9x/snitchlint/internal/analysis/core"
	"github.com/xkilldash9x/snitchlint/internal/analysis/static/javascript/syntax"
)

const maxSnippetLen = 200

// toPosition converts a zero-based tree point into a 1-based Position.
func toPosition(p syntax.Point) core.Position {
	return core.Position{Line: p.Row + 1, Column: p.Column + 1}
}

// lineSnippet returns the trimmed source line containing byte offset idx.
func lineSnippet(source []byte, idx int) string {
	if len(source) == 0 || idx < 0 || idx > len(source) {
		return ""
	}
	start := findLineStart(source, idx)
	end := findLineEnd(source, idx)
	if end <= start {
		return ""
	}
	snippet := strings.TrimSpace(string(source[start:end]))
	if len(snippet) > maxSnippetLen {
		snippet = snippet[:maxSnippetLen] + "..."
	}
	return snippet
}

func findLineStart(source []byte, idx int) int {
	if idx >= len(source) {
		if len(source) == 0 {
			return 0
		}
		idx = len(source) - 1
	}
	if idx < 0 {
		return 0
	}

	for i := idx; i >= 0; i-- {
		if source[i] == '\n' {
			// idx sitting on the newline itself belongs to the line before it.
			if i == idx && i > 0 {
				continue
			}
			return i + 1
		}
	}
	return 0
}

func findLineEnd(source []byte, idx int) int {
	for i := idx; i < len(source); i++ {
		if source[i] == '\n' {
			return i
		}
	}
	return len(source)
}
