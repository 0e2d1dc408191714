package activitypub

import (
	"regexp"
	"strings"

	"github.com/abadojack/whatlanggo"
)

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

// TextLanguageDetector guesses post languages with a trigram classifier.
type TextLanguageDetector struct{}

func NewTextLanguageDetector() *TextLanguageDetector {
	return &TextLanguageDetector{}
}

// Detect returns the ISO 639-1 code of the most likely language, or empty
// when the classifier is not confident enough to be useful.
func (d *TextLanguageDetector) Detect(text string) string {
	stripped := strings.TrimSpace(htmlTagPattern.ReplaceAllString(text, " "))
	if stripped == "" {
		return ""
	}
	info := whatlanggo.Detect(stripped)
	if !info.IsReliable() {
		return ""
	}
	return info.Lang.Iso6391()
}

// Ensure TextLanguageDetector implements LanguageDetector interface
var _ LanguageDetector = (*TextLanguageDetector)(nil)
