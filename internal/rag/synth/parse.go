package synth

import (
	"strings"

	"github.com/nkapre/docqa/internal/config"
)

// IsRefusal matches the fixed refusal sentence verbatim. Exact string
// match, not fuzzy: the model is instructed to emit it unchanged.
func IsRefusal(answer string) bool {
	return strings.Contains(answer, config.RefusalSentence)
}

// ExtractCitations pulls every [bracketed] substring out of the model's
// answer in order of first appearance, de-duplicated. Names spanning a
// line break are discarded, the citation convention is single-line.
func ExtractCitations(answer string) []string {
	var citations []string
	seen := make(map[string]bool)

	for i := 0; i < len(answer); i++ {
		if answer[i] != '[' {
			continue
		}
		end := strings.IndexByte(answer[i+1:], ']')
		if end < 0 {
			break
		}
		name := strings.TrimSpace(answer[i+1 : i+1+end])
		i += end + 1
		if name == "" || strings.ContainsAny(name, "\n[") {
			continue
		}
		if !seen[name] {
			seen[name] = true
			citations = append(citations, name)
		}
	}
	return citations
}

// ExtractEmphasis returns the spans wrapped in **double asterisks**,
// in order, unpaired trailing markers ignored.
func ExtractEmphasis(answer string) []string {
	var spans []string
	rest := answer
	for {
		open := strings.Index(rest, "**")
		if open < 0 {
			break
		}
		rest = rest[open+2:]
		close := strings.Index(rest, "**")
		if close < 0 {
			break
		}
		if span := strings.TrimSpace(rest[:close]); span != "" {
			spans = append(spans, span)
		}
		rest = rest[close+2:]
	}
	return spans
}
