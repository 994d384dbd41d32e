package domain

import (
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ligatures maps the French ligatures that NFD does not decompose.
var ligatures = strings.NewReplacer(
	"œ", "oe", "Œ", "OE",
	"æ", "ae", "Æ", "AE",
)

// civilityTitles are stripped from the front of holder names on bills,
// which often read "M. DUPONT" or "Mme MARTIN".
var civilityTitles = map[string]bool{
	"m": true, "mr": true, "mme": true, "mlle": true, "mrs": true, "ms": true,
	"monsieur": true, "madame": true, "mademoiselle": true,
}

// NormalizeSurname trims, collapses inner whitespace and uppercases a surname.
func NormalizeSurname(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// NormalizeIdentifier removes whitespace and the separators printed inside
// document and account numbers, then uppercases the result.
func NormalizeIdentifier(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || isIdentifierSeparator(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

// FoldName canonicalizes a personal name for comparison: accents are removed,
// case is folded, and runs of spaces, hyphens and apostrophes become a
// single space. "Jean-Pierre", "JEAN PIERRE" and "Jéan  Pierre" all fold to
// "jean pierre".
func FoldName(s string) string {
	s = ligatures.Replace(s)

	// Transformers and casers carry state, so they are built per call to keep
	// FoldName safe for concurrent use.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)

	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return unicode.IsSpace(r) || isNameSeparator(r)
	})
	return strings.Join(fields, " ")
}

// FoldSurname folds a surname like FoldName and also drops a leading
// civility title.
func FoldSurname(s string) string {
	fields := strings.Fields(FoldName(strings.ReplaceAll(s, ".", " ")))
	for len(fields) > 1 && civilityTitles[fields[0]] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// NamesMatch reports whether two names are equal once folded.
// It is symmetric, case-insensitive, accent-insensitive and treats hyphens
// and spaces as the same separator.
func NamesMatch(a, b string) bool {
	return FoldName(a) == FoldName(b)
}

// SurnamesMatch reports whether two surnames are equal once folded and
// stripped of civility titles.
func SurnamesMatch(a, b string) bool {
	fa, fb := FoldSurname(a), FoldSurname(b)
	return fa != "" && fa == fb
}

// NameSimilarity returns a score in [0, 1] derived from the Levenshtein
// distance between the folded names. 1 means identical after folding.
func NameSimilarity(a, b string) float64 {
	fa, fb := FoldSurname(a), FoldSurname(b)
	if fa == fb {
		return 1
	}

	longest := max(len([]rune(fa)), len([]rune(fb)))
	if longest == 0 {
		return 1
	}

	distance := levenshtein.ComputeDistance(fa, fb)
	return 1 - float64(distance)/float64(longest)
}

func isIdentifierSeparator(r rune) bool {
	switch r {
	case '-', '.', '/', '_', '‐', '‑', '–':
		return true
	}
	return false
}

func isNameSeparator(r rune) bool {
	switch r {
	case '-', '\'', '’', '‐', '‑', '–', '_':
		return true
	}
	return false
}

// stripSpaces removes every whitespace rune from s.
func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
