package source

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession means neither the environment nor the store has a session cookie.
	ErrNoSession = errors.New("could not find Advent of Code session cookie")
	// ErrInvalidSession means the site rejected the session cookie.
	ErrInvalidSession = errors.New("session cookie is invalid, set it with `aocd set-cookie COOKIE`")
	// ErrUnexpectedResponse means a site page did not have the expected shape.
	ErrUnexpectedResponse = errors.New("could not parse response")
	// ErrAnswerNotFound means the puzzle page did not show the accepted answer.
	ErrAnswerNotFound = errors.New("could not find correct answer in page")
)

// StatusError is a non-2xx response from the puzzle site or the sandbox proxy.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("bad response from %s: %d", e.URL, e.Code)
}
