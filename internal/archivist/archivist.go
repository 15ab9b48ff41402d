// Package archivist turns language-model replies into the day's word and
// its etymology.
package archivist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"wes/internal/llm"
	"wes/internal/wotd"
)

const (
	PurposeWord      = "word-of-day"
	PurposeEtymology = "etymology"

	archivistSystem   = "You are a linguistic archivist. Output *only* the requested pipe-separated data and nothing else."
	etymologistSystem = "You are an etymologist. Be concise and authoritative."
)

// ErrEmptyEtymology is returned when the model answers with nothing.
var ErrEmptyEtymology = errors.New("empty etymology")

// Archivist implements the engine's Generator on top of an llm.Provider.
type Archivist struct {
	provider    llm.Provider
	maxTokens   int
	temperature float64
}

type Option func(*Archivist)

func WithMaxTokens(n int) Option {
	return func(a *Archivist) { a.maxTokens = n }
}

func WithTemperature(t float64) Option {
	return func(a *Archivist) { a.temperature = t }
}

func New(p llm.Provider, opts ...Option) *Archivist {
	a := &Archivist{provider: p}
	for _, o := range opts {
		o(a)
	}
	return a
}

// WordPrompt is the request for the word of date.
func WordPrompt(date wotd.Date) string {
	return fmt.Sprintf("Provide a single word of the day for %s, its spelling, definition, and a brief example. "+
		"Format this strictly as: WORD|SPELLING|DEFINITION|EXAMPLE", date.Long())
}

func EtymologyPrompt(word string) string {
	return fmt.Sprintf("Provide the etymology and historical context for the word '%s' in three to five sentences.", word)
}

// GenerateWord asks for the word of date and parses the pipe-separated
// reply. Parse failures are wrapped in llm.ErrInvalidResponse and still
// match wotd.ErrIncompleteResponse.
func (a *Archivist) GenerateWord(ctx context.Context, date wotd.Date) (wotd.WordPayload, error) {
	resp, err := a.provider.Generate(llm.WithPurpose(ctx, PurposeWord), a.request(archivistSystem, WordPrompt(date)))
	if err != nil {
		return wotd.WordPayload{}, fmt.Errorf("word of the day: %w", err)
	}

	p, err := wotd.ParseWordResponse(resp.Text)
	if err != nil {
		return wotd.WordPayload{}, fmt.Errorf("word of the day: %w", &llm.ErrInvalidResponse{Content: resp.Text, Err: err})
	}
	return p, nil
}

func (a *Archivist) GenerateEtymology(ctx context.Context, word string) (string, error) {
	resp, err := a.provider.Generate(llm.WithPurpose(ctx, PurposeEtymology), a.request(etymologistSystem, EtymologyPrompt(word)))
	if err != nil {
		return "", fmt.Errorf("etymology of %s: %w", word, err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("etymology of %s: %w", word, &llm.ErrInvalidResponse{Err: ErrEmptyEtymology})
	}
	return text, nil
}

func (a *Archivist) request(system, prompt string) llm.Request {
	req := llm.UserPrompt(system, prompt)
	req.MaxTokens = a.maxTokens
	req.Temperature = a.temperature
	return req
}
