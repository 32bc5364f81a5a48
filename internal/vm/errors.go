// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package vm

import (
	"fmt"

	"github.com/comfort-stereo/regis/internal/token"
)

// TypeError is raised when an operation is applied to operand kinds it does
// not support.
type TypeError struct {
	Pos token.Position
	Msg string
}

func (e *TypeError) Error() string { return fmt.Sprintf("%s: type error: %s", e.Pos, e.Msg) }

// ArityError is raised when a call supplies a different argument count than
// the callee's parameter list declares. Regis never pads or truncates —
// every mismatch is an error.
type ArityError struct {
	Pos  token.Position
	Name string
	Want int
	Got  int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: %s expects %d argument(s), got %d", e.Pos, e.Name, e.Want, e.Got)
}

// RangeError is raised by an out-of-bounds List index assignment. (Assigning
// into a String is a TypeError; out-of-bounds reads yield Null.)
type RangeError struct {
	Pos token.Position
	Msg string
}

func (e *RangeError) Error() string { return fmt.Sprintf("%s: range error: %s", e.Pos, e.Msg) }

// ZeroDivisionError is raised by integer division by zero. Float division by
// zero instead follows IEEE 754 and produces Inf/NaN.
type ZeroDivisionError struct {
	Pos token.Position
}

func (e *ZeroDivisionError) Error() string { return fmt.Sprintf("%s: division by zero", e.Pos) }

// NameError is raised reading an undefined global. Writing an undefined
// global instead auto-vivifies it — only reads can fail this way.
type NameError struct {
	Pos  token.Position
	Name string
}

func (e *NameError) Error() string {
	return fmt.Sprintf("%s: undefined name %q", e.Pos, e.Name)
}

// ImportError wraps a failure resolving or loading a module.
type ImportError struct {
	Pos  token.Position
	Path string
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("%s: import %q failed: %s", e.Pos, e.Path, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// StackOverflowError is raised when call depth exceeds MaxFrames or a call's
// local-slot region would not fit in MaxStack.
type StackOverflowError struct {
	Pos token.Position
}

func (e *StackOverflowError) Error() string { return fmt.Sprintf("%s: stack overflow", e.Pos) }

// VMHalt reports that execution stopped because its context was canceled or
// hit its deadline: a ctx.Err() check at the top of each dispatch iteration
// gives the host cooperative cancellation of a runaway script.
type VMHalt struct {
	Err error
}

func (e *VMHalt) Error() string { return fmt.Sprintf("halted: %s", e.Err) }

func (e *VMHalt) Unwrap() error { return e.Err }
