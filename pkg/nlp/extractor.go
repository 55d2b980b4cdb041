package nlp

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ExtractService returns the first known service mentioned in text. Generic booking words without a
// known service resolve to DefaultService.
func ExtractService(text string) (string, bool) {
	t := cleanText(text)

	for _, s := range Services {
		if strings.Contains(t, s) {
			return s, true
		}
	}

	if containsAny(t, bookingWords) {
		return DefaultService, true
	}

	return "", false
}

// NormalizeWhen keeps the raw time expression; it is parsed by the booking task.
func NormalizeWhen(text string) string {
	return strings.TrimSpace(text)
}

// ClassifyConfirmation matches the yes/no keyword sets as substrings. Affirmative wins over negative.
func ClassifyConfirmation(text string) Confirmation {
	t := cleanText(text)

	if containsAny(t, affirmativeWords) {
		return ConfirmationAffirmative
	}
	if containsAny(t, negativeWords) {
		return ConfirmationNegative
	}

	return ConfirmationUnclear
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func cleanText(text string) string {
	text = strings.ToLower(text)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, text)

	result = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, result)

	return strings.Join(strings.Fields(result), " ")
}
