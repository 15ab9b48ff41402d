package wotd

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIncompleteResponse is returned when fewer than four usable fields can
// be recovered from a model response.
var ErrIncompleteResponse = errors.New("incomplete word response")

const fieldSep = "|"

var (
	lineBreaks    = strings.NewReplacer("\r\n", fieldSep, "\n", fieldSep, "\r", fieldSep)
	headerTokens  = strings.NewReplacer("WORD|", "", "Word|", "")
	spellingBreak = strings.NewReplacer("-", " - ")
)

// ParseWordResponse turns free model text into a payload. The text is
// expected as WORD|SPELLING|DEFINITION|EXAMPLE but may carry a chatty
// preamble, header row or line breaks; the last four non-empty fields win.
func ParseWordResponse(raw string) (WordPayload, error) {
	clean := lineBreaks.Replace(strings.TrimSpace(raw))
	clean = headerTokens.Replace(clean)

	var fields []string
	for _, f := range strings.Split(clean, fieldSep) {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}

	if len(fields) < 4 {
		return WordPayload{}, fmt.Errorf("%w: got %d fields, want 4", ErrIncompleteResponse, len(fields))
	}
	fields = fields[len(fields)-4:]

	// "The word is EBULLIENT" -> "EBULLIENT"
	lead := strings.Fields(fields[0])
	word := strings.ToUpper(lead[len(lead)-1])

	p := WordPayload{
		Word:       word,
		Spelling:   strings.ToUpper(spellingBreak.Replace(fields[1])),
		Definition: fields[2],
		Example:    fields[3],
	}
	if err := p.Validate(); err != nil {
		return WordPayload{}, fmt.Errorf("%w: %v", ErrIncompleteResponse, err)
	}
	return p, nil
}
