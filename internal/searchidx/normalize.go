// Package searchidx derives search-index documents from ledger state.
//
// All derivation is pure: store drivers call BuildDoc inside the same
// transaction that mutates the stint row, so the index is never observably
// behind the ledger.
package searchidx

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD, drops combining marks, and recomposes.
// "Álvaro" and "Alvaro" become byte-identical after it.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

var folder = cases.Fold()

// Normalize case-folds s and strips diacritics. It is idempotent: a folded,
// mark-free string passes through unchanged.
func Normalize(s string) string {
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		// transform only fails on malformed UTF-8; fold what we have.
		out = s
	}
	return folder.String(out)
}

// Tokenize splits an already-normalized label into unique tokens on any rune
// that is neither a letter nor a digit. Order of first occurrence is kept.
func Tokenize(normalized string) []string {
	fields := strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// QueryPrefix returns the 4-rune bucket a prefix query of length >= 4 falls
// into; shorter queries use the exact prefix-2/3 columns instead.
func QueryPrefix(q string) string { return runePrefix(q, 4) }

// runePrefix returns the first n runes of s, or "" when s is shorter than n.
// An empty prefix never matches a query, which is exactly what we want for
// tokens too short for a given prefix tier.
func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	if count == n {
		return s
	}
	return ""
}
