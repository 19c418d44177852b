package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Answer is a puzzle answer: either a number or a string. Numbers are kept in
// a canonical decimal form so equal values always compare equal as text.
// The zero Answer means no answer was produced.
type Answer struct {
	text   string
	number bool
}

// Int returns a numeric answer.
func Int(n int) Answer {
	return Answer{text: strconv.Itoa(n), number: true}
}

// Number returns a numeric answer for f. Integral values are formatted
// without a fractional part.
func Number(f float64) Answer {
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return Answer{text: strconv.FormatInt(int64(f), 10), number: true}
	}
	return Answer{text: strconv.FormatFloat(f, 'f', -1, 64), number: true}
}

// String returns a string answer. The empty string is the zero Answer.
func String(s string) Answer {
	return Answer{text: s}
}

// ParseNumber parses a decimal number into a numeric answer.
func ParseNumber(s string) (Answer, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return Answer{text: strconv.FormatInt(n, 10), number: true}, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return Answer{}, fmt.Errorf("invalid number %q", s)
	}
	return Number(f), nil
}

// ParseAnswer reads an answer typed by a user. It is numeric only when that
// does not change how it is written, so "007" stays a string.
func ParseAnswer(raw string) Answer {
	trimmed := strings.TrimSpace(raw)
	if n, err := ParseNumber(trimmed); err == nil && n.text == trimmed {
		return n
	}
	return String(trimmed)
}

// IsZero reports whether a is the zero Answer.
func (a Answer) IsZero() bool {
	return a.text == ""
}

// IsNumber reports whether a is numeric.
func (a Answer) IsNumber() bool {
	return a.number
}

// String returns the canonical form sent to the puzzle site.
func (a Answer) String() string {
	return a.text
}

// Matches reports whether s, as written by the site or stored earlier,
// denotes the same answer.
func (a Answer) Matches(s string) bool {
	if !a.number {
		return a.text == s
	}
	other, err := ParseNumber(strings.TrimSpace(s))
	return err == nil && other.text == a.text
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch {
	case a.IsZero():
		return []byte("null"), nil
	case a.number:
		return []byte(a.text), nil
	default:
		return json.Marshal(a.text)
	}
}

// UnmarshalJSON accepts a JSON number or string.
func (a *Answer) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	switch v := v.(type) {
	case json.Number:
		parsed, err := ParseNumber(v.String())
		if err != nil {
			return err
		}
		*a = parsed
	case string:
		*a = String(v)
	default:
		return fmt.Errorf("answer must be a number or a string, got %s", string(data))
	}
	return nil
}
