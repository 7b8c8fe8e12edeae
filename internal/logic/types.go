package logic

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/danielpatrickdp/gatekeeper/internal/bounds"
	"github.com/danielpatrickdp/gatekeeper/internal/interval"
)

// #region atomic

// Atomic is what a trace element must offer to appear in a formula: a degree
// of truth, value equality and a display form.
type Atomic interface {
	comparable
	fmt.Stringer
	Val() interval.Valuation
}

// #endregion atomic

// #region signal

// Signal is a named sequence of atoms, one per time step.
type Signal[T Atomic] struct {
	Name  string
	Steps []T
}

// NewSignal copies steps so later changes to the caller's slice cannot reach
// a formula built from it.
func NewSignal[T Atomic](name string, steps []T) Signal[T] {
	return Signal[T]{Name: name, Steps: slices.Clone(steps)}
}

// At returns the atom recorded at step t.
func (s Signal[T]) At(t interval.Time) (T, error) {
	if t < 0 || t >= len(s.Steps) {
		var zero T
		return zero, &IndexOutOfRangeError{Signal: s.Name, Index: t, Len: len(s.Steps)}
	}
	return s.Steps[t], nil
}

func (s Signal[T]) Len() int { return len(s.Steps) }

// String renders a named signal by its name, an anonymous one by its steps.
func (s Signal[T]) String() string {
	if s.Name != "" {
		return s.Name
	}
	parts := make([]string, len(s.Steps))
	for i, step := range s.Steps {
		parts[i] = step.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (s Signal[T]) equal(o Signal[T]) bool {
	return s.Name == o.Name && slices.Equal(s.Steps, o.Steps)
}

// #endregion signal

// #region errors

// ErrIndexOutOfRange matches every *IndexOutOfRangeError.
var ErrIndexOutOfRange = errors.New("logic: index out of range")

// IndexOutOfRangeError reports a read past the recorded length of a signal.
// The caller asked for an evaluation horizon the trace does not cover.
type IndexOutOfRangeError struct {
	Signal string
	Index  interval.Time
	Len    int
}

func (e *IndexOutOfRangeError) Error() string {
	name := e.Signal
	if name == "" {
		name = "<anonymous>"
	}
	return fmt.Sprintf("logic: signal %s has %d steps, read at %d", name, e.Len, e.Index)
}

func (e *IndexOutOfRangeError) Is(target error) bool { return target == ErrIndexOutOfRange }

// ParseError reports malformed formula text.
type ParseError struct {
	Pos int // byte offset into the input
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("logic: parse error at offset %d: %s", e.Pos, e.Msg)
}

// #endregion errors

// #region config

// Config controls an Interpreter.
type Config struct {
	// MaxTime bounds the outer search of Until: t' ranges over [time, MaxTime).
	MaxTime interval.Time
	Debug   bool
	Bounds  bounds.Config
}

// DefaultConfig returns an interpreter config whose searches assume degrees
// in [0, 1]. MaxTime must still be set by the caller.
func DefaultConfig() Config {
	b := bounds.DefaultConfig()
	b.Prior = interval.Unit()
	return Config{Bounds: b}
}

// #endregion config
