package core

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

// CategoryKey returns the semantic name of a category label, dropping any
// leading icon or emoji prefix ("🏠 Housing" and "Housing" both give
// "Housing"). Labels made only of symbols are returned trimmed as-is.
func CategoryKey(label string) string {
	label = strings.TrimSpace(label)
	key := strings.TrimLeftFunc(label, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if key == "" {
		return label
	}
	return key
}

// maxSuggestDistance is the largest edit distance still offered as a
// "did you mean" suggestion.
const maxSuggestDistance = 2

// SuggestCategory returns the known category name closest to input, compared
// case-insensitively on category keys. ok is false when nothing is close.
func SuggestCategory(input string, known []Category) (name string, ok bool) {
	want := strings.ToLower(CategoryKey(input))
	if want == "" {
		return "", false
	}
	best := maxSuggestDistance + 1
	for _, c := range known {
		d := levenshtein.ComputeDistance(want, strings.ToLower(c.Name))
		if d < best {
			best, name = d, c.Name
		}
	}
	return name, best <= maxSuggestDistance
}
