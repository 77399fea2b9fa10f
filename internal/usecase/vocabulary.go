package usecase

import (
	"strings"
	"unicode"
	"unicode/utf8"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// shortTermRunes is the length at or below which a term only matches as a whole word.
const shortTermRunes = 3

// vocabulary is a keyword set matched in one pass over the text. Terms that are short or listed as
// ambiguous are confirmed with a whole-word check so "game" does not fire inside "endgame".
type vocabulary struct {
	terms     []string
	wholeWord []bool
	matcher   *ahocorasick.Matcher
}

func newVocabulary(terms []string, ambiguous ...string) *vocabulary {
	forced := make(map[string]bool, len(ambiguous))
	for _, t := range ambiguous {
		forced[normalizeTerm(t)] = true
	}

	v := &vocabulary{}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		t = normalizeTerm(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		v.terms = append(v.terms, t)
		v.wholeWord = append(v.wholeWord, forced[t] || utf8.RuneCountInString(t) <= shortTermRunes)
	}
	if len(v.terms) > 0 {
		v.matcher = ahocorasick.NewStringMatcher(v.terms)
	}
	return v
}

func normalizeTerm(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}

// matches returns the indices of confirmed terms present in text, which must already be lowercase.
func (v *vocabulary) matches(text string) []int {
	if v.matcher == nil || text == "" {
		return nil
	}
	hits := v.matcher.MatchThreadSafe([]byte(text))
	confirmed := hits[:0]
	for _, idx := range hits {
		if idx < 0 || idx >= len(v.terms) {
			continue
		}
		if v.wholeWord[idx] && !containsWord(text, v.terms[idx]) {
			continue
		}
		confirmed = append(confirmed, idx)
	}
	return confirmed
}

func (v *vocabulary) contains(text string) bool {
	return len(v.matches(text)) > 0
}

// containsWord reports whether word occurs in text bounded by non-alphanumeric runes or the text edges.
func containsWord(text, word string) bool {
	offset := 0
	for {
		idx := strings.Index(text[offset:], word)
		if idx < 0 {
			return false
		}
		start := offset + idx
		end := start + len(word)
		if isWordBoundary(text[:start], true) && isWordBoundary(text[end:], false) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
}

// isWordBoundary checks the rune adjacent to a match: the last rune of s when before is set,
// otherwise the first rune of s.
func isWordBoundary(s string, before bool) bool {
	if s == "" {
		return true
	}
	var r rune
	if before {
		r, _ = utf8.DecodeLastRuneInString(s)
	} else {
		r, _ = utf8.DecodeRuneInString(s)
	}
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r))
}

// category is one labelled row of a priority-ordered keyword table.
type category struct {
	label    string
	keywords []string
}

// keywordTable resolves text to the first category, in table order, with a matching keyword.
// Every keyword matches as a whole word, so "phim hàn" never fires inside "phim hành động".
type keywordTable struct {
	vocab   *vocabulary
	owner   []int
	labels  []string
	unknown string
}

func newKeywordTable(rows []category, unknown string) *keywordTable {
	var terms []string
	var owner []int
	seen := make(map[string]bool)
	for i, row := range rows {
		for _, kw := range row.keywords {
			kw = normalizeTerm(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			terms = append(terms, kw)
			owner = append(owner, i)
		}
	}

	labels := make([]string, len(rows))
	for i, row := range rows {
		labels[i] = row.label
	}
	return &keywordTable{
		vocab:   newVocabulary(terms, terms...),
		owner:   owner,
		labels:  labels,
		unknown: unknown,
	}
}

func (t *keywordTable) lookup(text string) string {
	best := -1
	for _, idx := range t.vocab.matches(text) {
		if row := t.owner[idx]; best < 0 || row < best {
			best = row
		}
	}
	if best < 0 {
		return t.unknown
	}
	return t.labels[best]
}
