// Package aggregate reassembles chunk transcripts into one document,
// trimming the text duplicated by boundary guards.
package aggregate

import (
	"strings"
	"unicode"
)

// maxOverlapWords bounds the boundary overlap search. Guards are a fraction
// of a second, so real overlaps are a handful of words.
const maxOverlapWords = 16

// Join concatenates chunk transcripts in order with a single separating
// space. Text inside a chunk is passed through untouched; only the outer
// whitespace is trimmed. When guarded is set, each boundary is checked for
// an exact word overlap between the tail of one chunk and the head of the
// next, and the duplicated words are dropped from the later chunk.
func Join(texts []string, guarded bool) string {
	var parts []string
	for _, text := range texts {
		text = strings.TrimSpace(text)
		if guarded && len(parts) > 0 {
			prev := strings.Fields(parts[len(parts)-1])
			text = trimLeadingWords(text, overlap(prev, strings.Fields(text)))
		}
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}

// overlap returns the length of the longest suffix of prev that matches a
// prefix of next, comparing words case-insensitively with boundary
// punctuation stripped.
func overlap(prev, next []string) int {
	limit := maxOverlapWords
	if len(prev) < limit {
		limit = len(prev)
	}
	if len(next) < limit {
		limit = len(next)
	}
	for k := limit; k > 0; k-- {
		match := true
		for i := 0; i < k; i++ {
			if foldWord(prev[len(prev)-k+i]) != foldWord(next[i]) {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

// trimLeadingWords drops the first k whitespace-delimited words of s,
// leaving the remainder's internal spacing intact.
func trimLeadingWords(s string, k int) string {
	for i := 0; i < k; i++ {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		cut := strings.IndexFunc(s, unicode.IsSpace)
		if cut < 0 {
			return ""
		}
		s = s[cut:]
	}
	return strings.TrimLeftFunc(s, unicode.IsSpace)
}

func foldWord(w string) string {
	return strings.ToLower(strings.Trim(w, ".,;:!?\"'"))
}
