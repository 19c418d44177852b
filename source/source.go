// Package source supplies puzzle inputs and submits answers.
//
// A Source is either a Direct provider, which talks to the puzzle site and
// caches everything in the local store, or a Proxy, which forwards both
// operations over authenticated loopback HTTP to a Direct provider running in
// a trusted parent process (see package sandbox).
package source

import (
	"context"
	"fmt"
)

// Source fetches puzzle inputs and submits answers.
type Source interface {
	Input(ctx context.Context, year, day int) (string, error)
	Submit(ctx context.Context, year, day, part int, answer Answer) (bool, error)
}

// PuzzleKey identifies one day's puzzle.
type PuzzleKey struct {
	Year int
	Day  int
}

func (k PuzzleKey) String() string {
	return fmt.Sprintf("%d day %d", k.Year, k.Day)
}

// PartKey identifies one scored part of a puzzle.
type PartKey struct {
	PuzzleKey
	Part int
}

// SubmitRequest is the body of a proxied submission.
type SubmitRequest struct {
	Year     int    `json:"year"`
	Day      int    `json:"day"`
	Part     int    `json:"part"`
	Solution Answer `json:"solution"`
}

// SubmitResponse is the reply to a proxied submission.
type SubmitResponse struct {
	Correct bool `json:"correct"`
}
