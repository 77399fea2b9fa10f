package usecase

import (
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// reviewPrefixes are stripped from the start of a lowercased title, repeatedly, to reach the movie name.
// Longer phrases come first so "review phim" wins over "review".
var reviewPrefixes = []string{
	"review phim",
	"vus review",
	"đánh giá phim",
	"đánh giá",
	"phân tích",
	"nhận xét",
	"chi tiết",
	"critique",
	"review",
	"phim",
	"vus",
}

var titleCaser = cases.Title(language.Und)

// NormalizeText lowercases, replaces everything but letters, digits and whitespace with a space,
// and collapses whitespace runs.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(norm.NFC.String(text))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Similarity returns the longest-matching-blocks ratio of the normalized texts, in [0, 1].
// The result does not depend on argument order and identical texts score 1.0.
func Similarity(a, b string) float64 {
	return normalizedSimilarity(NormalizeText(a), NormalizeText(b))
}

func normalizedSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	// SequenceMatcher is not symmetric, so always feed it the same order.
	if a > b {
		a, b = b, a
	}
	matcher := difflib.NewMatcher(splitRunes(a), splitRunes(b))
	return matcher.Ratio()
}

func splitRunes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// ExtractMovieName derives the reviewed movie's name from a review title: known review prefixes
// are stripped, the remainder is cut at the first colon (or else the first hyphen), normalized and
// title-cased. It returns "" when nothing usable remains.
func ExtractMovieName(title string) string {
	name := strings.TrimSpace(strings.ToLower(norm.NFC.String(title)))
	for {
		stripped := false
		for _, prefix := range reviewPrefixes {
			if hasWordPrefix(name, prefix) {
				name = strings.TrimLeft(name[len(prefix):], " \t:-|–—")
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	if idx := strings.Index(name, ":"); idx >= 0 {
		name = name[:idx]
	} else if idx := strings.Index(name, "-"); idx >= 0 {
		name = name[:idx]
	}

	name = NormalizeText(name)
	if name == "" {
		return ""
	}
	return titleCaser.String(name)
}

// hasWordPrefix reports whether s starts with prefix followed by a non-letter or the end of s.
func hasWordPrefix(s, prefix string) bool {
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	return isWordBoundary(s[len(prefix):], false)
}
