// Package judge scores how well an actual answer matches an expected one.
package judge

import (
	"context"
	"fmt"
)

// Judgement is a judge's verdict: a score from 0 to 100 and its justification.
type Judgement struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning"`
}

// Judge rates the semantic similarity of two texts. Implementations must honour
// ctx cancellation and report failures as *Error.
type Judge interface {
	Judge(ctx context.Context, expected, actual string) (Judgement, error)
}

// Func adapts an ordinary function to Judge.
type Func func(ctx context.Context, expected, actual string) (Judgement, error)

func (f Func) Judge(ctx context.Context, expected, actual string) (Judgement, error) {
	return f(ctx, expected, actual)
}

// Operations that can fail inside a judge.
const (
	OpCall  = "call"
	OpParse = "parse"
)

// Error is returned when the judge is unavailable or replies with something
// that is not a judgement.
type Error struct {
	Op    string
	Reply string // raw reply, set for parse failures
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("judge %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
