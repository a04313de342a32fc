package knowledge

import "strings"

// DefaultContextBudget caps the characters of knowledge text injected into
// the system prompt.
const DefaultContextBudget = 2000

// minTruncatedLen is the largest remainder not worth keeping. A fragment is
// truncated in only when more than this many characters of budget are left.
const minTruncatedLen = 100

// assembleContext joins document contents under the character budget. The
// budget counts document text only, not the blank-line joiners. Documents
// come in relevance order; the first document that does not fit is truncated
// with an ellipsis when more than minTruncatedLen characters of budget
// remain, and assembly stops there either way.
func assembleContext(docs []Document, budget int) string {
	if budget <= 0 {
		budget = DefaultContextBudget
	}

	var parts []string
	used := 0
	for _, doc := range docs {
		content := doc.Content
		if content == "" {
			continue
		}
		remaining := budget - used
		if remaining <= 0 {
			break
		}
		runes := []rune(content)
		if len(runes) > remaining {
			if remaining > minTruncatedLen {
				parts = append(parts, string(runes[:remaining])+"...")
			}
			break
		}
		parts = append(parts, content)
		used += len(runes)
	}
	return strings.Join(parts, "\n\n")
}
