// Package wotd holds the word-of-the-day data model: the four-field payload,
// the calendar date it belongs to, and the single-day cache the delivery
// engine consults.
package wotd

import (
	"errors"
	"fmt"
	"time"
)

// WordPayload is one day's word. It is only ever built complete.
type WordPayload struct {
	Word       string `json:"word"`
	Spelling   string `json:"spelling"`
	Definition string `json:"definition"`
	Example    string `json:"example"`
}

var ErrIncompletePayload = errors.New("incomplete word payload")

// Validate reports whether every field is populated.
func (p WordPayload) Validate() error {
	switch {
	case p.Word == "":
		return fmt.Errorf("%w: missing word", ErrIncompletePayload)
	case p.Spelling == "":
		return fmt.Errorf("%w: missing spelling", ErrIncompletePayload)
	case p.Definition == "":
		return fmt.Errorf("%w: missing definition", ErrIncompletePayload)
	case p.Example == "":
		return fmt.Errorf("%w: missing example", ErrIncompletePayload)
	}
	return nil
}

// Date is a calendar date with no time-of-day or zone attached.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// Long formats the date the way it is read out in prompts, e.g. "October 05, 2025".
func (d Date) Long() string {
	return d.Time(time.UTC).Format("January 02, 2006")
}
