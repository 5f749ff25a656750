package votes

import (
	"strings"

	"golang.org/x/text/cases"
)

// MinOptions is the smallest option set a question may have after normalization.
const MinOptions = 2

// normalizeText trims s and collapses internal whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeQuestion returns the normalized question text.
func NormalizeQuestion(q string) (string, error) {
	q = normalizeText(q)
	if q == "" {
		return "", ErrQuestionRequired
	}
	return q, nil
}

// NormalizeOptions normalizes labels and drops blanks and case-insensitive
// duplicates, keeping the first spelling and the original order.
func NormalizeOptions(labels []string) ([]string, error) {
	fold := cases.Fold()
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = normalizeText(l)
		if l == "" {
			continue
		}
		key := fold.String(l)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, l)
	}
	if len(out) < MinOptions {
		return nil, ErrOptionsRequired
	}
	return out, nil
}
