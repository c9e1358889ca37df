// Package analyzer computes text statistics and the normalized-text
// fingerprint used to detect semantically identical uploads.
package analyzer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/xxxsen/textstat/internal/model"
	appErr "github.com/xxxsen/textstat/internal/pkg/errors"
)

var (
	wordRegex      = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	paragraphRegex = regexp.MustCompile(`(?:\r?\n){2,}`)
	lowerCaser     = cases.Lower(language.Und)
)

// Decode interprets data as UTF-8 text.
func Decode(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", fmt.Errorf("decode text: %w", appErr.ErrUnsupportedEncoding)
	}
	return string(data), nil
}

// Normalize lower-cases text and keeps only its word characters, so texts
// that differ in whitespace, punctuation or case normalize identically.
func Normalize(text string) string {
	tokens := wordRegex.FindAllString(lowerCaser.String(text), -1)
	return strings.Join(tokens, "")
}

func Fingerprint(normalized string) [sha256.Size]byte {
	return sha256.Sum256([]byte(normalized))
}

// TextHash returns the hex fingerprint of the normalized form of text.
func TextHash(text string) string {
	sum := Fingerprint(Normalize(text))
	return hex.EncodeToString(sum[:])
}

func CountParagraphs(text string) int {
	count := 0
	for _, part := range paragraphRegex.Split(text, -1) {
		if strings.TrimSpace(part) != "" {
			count++
		}
	}
	return count
}

func CountWords(text string) int {
	return len(wordRegex.FindAllStringIndex(text, -1))
}

func CountCharacters(text string) int {
	return utf8.RuneCountInString(text)
}

func CountCharactersNoSpaces(text string) int {
	count := 0
	for _, r := range text {
		switch r {
		case ' ', '\n', '\r':
			continue
		}
		count++
	}
	return count
}

func Analyze(text string) model.Stats {
	return model.Stats{
		Paragraphs: CountParagraphs(text),
		Words:      CountWords(text),
		Characters: CountCharacters(text),
	}
}

// Extra returns the open-ended statistics stored next to the fixed counters.
func Extra(text string) map[string]interface{} {
	return map[string]interface{}{
		"characters_no_spaces": CountCharactersNoSpaces(text),
	}
}
