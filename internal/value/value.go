// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package value implements Regis's tagged runtime value representation: a
// eight-variant sum (Null, Bool, Int, Float, String, List, Object, Function),
// plus the Chunk/Upvalue shapes that a Function value carries.
//
// Chunk lives here rather than in internal/compiler because a Function value
// holds a *Chunk directly (a closure is a code chunk reference plus a vector
// of captured upvalues); internal/compiler imports this package to build
// Chunks, so putting Chunk on the compiler side would create an import
// cycle. internal/compiler still owns all the logic that produces a Chunk
// (scope resolution, codegen, the Opcode table) — this package only defines
// its shape, the same "explicit tag, no interface{} payload" discipline as
// the rest of this type.
package value

import "github.com/comfort-stereo/regis/internal/token"

// Kind discriminates the eight Value variants.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindObject
	KindFunction
)

var kindNames = [...]string{
	KindNull:     "null",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindList:     "list",
	KindObject:   "object",
	KindFunction: "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a tagged sum of Regis's eight runtime variants. Scalars (Null,
// Bool, Int, Float, String) are carried inline; aggregates (List, Object,
// Function) carry a pointer to heap-allocated shared state, so copying a
// Value never copies aggregate contents — the defining property behind the
// "shared by all holders" identity semantics List, Object, and Function
// values have.
type Value struct {
	kind    Kind
	boolean bool
	integer int64
	float   float64
	str     string
	list    *List
	object  *Object
	fn      *Function
}

// Null is the single null value.
var Null = Value{kind: KindNull}

// True and False are the two Bool values.
var (
	True  = Value{kind: KindBool, boolean: true}
	False = Value{kind: KindBool, boolean: false}
)

// Bool returns the Value for b.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

// Int returns an Int value.
func Int(i int64) Value { return Value{kind: KindInt, integer: i} }

// Float returns a Float value.
func Float(f float64) Value { return Value{kind: KindFloat, float: f} }

// Str returns a String value.
func Str(s string) Value { return Value{kind: KindString, str: s} }

// FromList wraps a *List as a Value.
func FromList(l *List) Value { return Value{kind: KindList, list: l} }

// FromObject wraps an *Object as a Value.
func FromObject(o *Object) Value { return Value{kind: KindObject, object: o} }

// FromFunction wraps a *Function as a Value.
func FromFunction(f *Function) Value { return Value{kind: KindFunction, fn: f} }

// Kind reports which of the eight variants v holds.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the null value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the Bool payload. Only valid when Kind() == KindBool.
func (v Value) AsBool() bool { return v.boolean }

// AsInt returns the Int payload. Only valid when Kind() == KindInt.
func (v Value) AsInt() int64 { return v.integer }

// AsFloat returns the Float payload. Only valid when Kind() == KindFloat.
func (v Value) AsFloat() float64 { return v.float }

// AsString returns the String payload. Only valid when Kind() == KindString.
func (v Value) AsString() string { return v.str }

// AsList returns the shared *List. Only valid when Kind() == KindList.
func (v Value) AsList() *List { return v.list }

// AsObject returns the shared *Object. Only valid when Kind() == KindObject.
func (v Value) AsObject() *Object { return v.object }

// AsFunction returns the shared *Function. Only valid when Kind() == KindFunction.
func (v Value) AsFunction() *Function { return v.fn }

// Truthy implements the VM's truthiness rule: false, null, Int 0, and
// Float 0.0 are falsey; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindNull:
		return false
	case KindBool:
		return v.boolean
	case KindInt:
		return v.integer != 0
	case KindFloat:
		return v.float != 0
	default:
		return true
	}
}

// NumericFloat promotes an Int or Float value to float64. The caller must
// check Kind() first.
func (v Value) NumericFloat() float64 {
	if v.kind == KindInt {
		return float64(v.integer)
	}
	return v.float
}

// IsNumeric reports whether v is an Int or a Float.
func (v Value) IsNumeric() bool { return v.kind == KindInt || v.kind == KindFloat }

// Chunk is an immutable compiled function body: its constant pool, bytecode,
// parameter count, local-slot count, upvalue descriptor table, and an
// optional instruction->position map for diagnostics.
type Chunk struct {
	Name      string
	Constants []Value
	Code      []byte
	NumParams int
	NumLocals int
	Upvalues  []UpvalDesc
	// Spans holds one entry per emitted instruction, keyed by its starting
	// byte offset in Code, used to recover
	// a token.Position for a faulting instruction without growing Code itself.
	Spans map[int]token.Position
}

// UpvalDesc describes how a closure should populate one upvalue slot when
// make-closure runs: either by capturing a slot of the function directly
// enclosing the one being closed over (FromLocal), or by copying one of that
// enclosing function's own upvalue entries (FromLocal == false).
type UpvalDesc struct {
	FromLocal bool
	Index     int
}

// Function is a closure: a Chunk reference plus the upvalue cells captured
// at the time the closure was created.
type Function struct {
	Chunk    *Chunk
	Upvalues []*Upvalue
	Name     string
}

// Upvalue is a cell enabling a closure to share a variable with an enclosing
// scope. While Open, it points at a live stack slot; Close snapshots that
// slot's current value into the cell and detaches it, after which reads and
// writes go through the snapshot. Multiple closures may share one cell, so
// writes through any of them are visible to all.
type Upvalue struct {
	location *Value
	closed   Value
}

// NewOpenUpvalue creates a cell pointing at a live stack slot.
func NewOpenUpvalue(loc *Value) *Upvalue { return &Upvalue{location: loc} }

// IsOpen reports whether the cell still points into a live frame.
func (u *Upvalue) IsOpen() bool { return u.location != nil }

// Location returns the stack slot this open cell points at, or nil if closed.
func (u *Upvalue) Location() *Value { return u.location }

// Get reads the cell's current value.
func (u *Upvalue) Get() Value {
	if u.location != nil {
		return *u.location
	}
	return u.closed
}

// Set writes through the cell.
func (u *Upvalue) Set(v Value) {
	if u.location != nil {
		*u.location = v
		return
	}
	u.closed = v
}

// Close detaches the cell from its stack slot, moving the slot's current
// value into the cell itself.
func (u *Upvalue) Close() {
	if u.location != nil {
		u.closed = *u.location
		u.location = nil
	}
}
