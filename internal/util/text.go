package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	rePlaceholder = regexp.MustCompile(`(?i)^unnamed(:\s*\d+(_level_\d+)?)?$`)
)

// NormalizeHeader folds accents, uppercases and collapses whitespace so that
// "Último acesso" and "ULTIMO  ACESSO" compare equal.
func NormalizeHeader(input string) string {
	s := FoldAccents(input)
	s = strings.ToUpper(s)
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func FoldAccents(input string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, input)
	if err != nil {
		return input
	}
	return out
}

// IsPlaceholder reports header text that stands for "no label": blanks,
// dataframe-style "Unnamed: 3" columns, dashes and the textual NaN.
func IsPlaceholder(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return true
	}
	switch strings.ToUpper(s) {
	case "-", "—", "–", "NAN":
		return true
	}
	return rePlaceholder.MatchString(s)
}

// ContainsAny reports whether one of the needles appears in the haystack as
// whole words, after normalization. A plural "S" on a haystack word still
// matches, so "NOTA" finds "Notas parciais" but not "Anotações".
func ContainsAny(haystack string, needles []string) bool {
	words := Words(haystack)
	for _, n := range needles {
		if want := Words(n); len(want) > 0 && containsWords(words, want) {
			return true
		}
	}
	return false
}

// Words splits normalized text on anything that is not a letter or digit.
func Words(input string) []string {
	return strings.FieldsFunc(NormalizeHeader(input), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func containsWords(words, want []string) bool {
	for i := 0; i+len(want) <= len(words); i++ {
		match := true
		for j, w := range want {
			if words[i+j] != w && words[i+j] != w+"S" {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func DiceCoefficient(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	pairs := func(s string) []string {
		r := []rune(s)
		if len(r) < 2 {
			return nil
		}
		out := make([]string, 0, len(r)-1)
		for i := 0; i < len(r)-1; i++ {
			out = append(out, string(r[i:i+2]))
		}
		return out
	}

	aPairs := pairs(a)
	bPairs := pairs(b)
	if len(aPairs) == 0 || len(bPairs) == 0 {
		return 0
	}

	bCount := map[string]int{}
	for _, p := range bPairs {
		bCount[p]++
	}
	inter := 0
	for _, p := range aPairs {
		if bCount[p] > 0 {
			inter++
			bCount[p]--
		}
	}

	return float64(2*inter) / float64(len(aPairs)+len(bPairs))
}

func SanitizeFileName(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
