// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"strings"
	"unicode/utf8"
)

// Equal implements Regis's `==` relation: numeric equality with Int/Float
// cross-promotion, structural equality for Null/Bool/String, identity
// equality for List/Object/Function, and false for any other cross-kind
// comparison.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.integer == b.integer
		}
		return a.NumericFloat() == b.NumericFloat()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boolean == b.boolean
	case KindString:
		return a.str == b.str
	case KindList:
		return a.list == b.list
	case KindObject:
		return a.object == b.object
	case KindFunction:
		return a.fn == b.fn
	}
	return false
}

// Compare orders a and b for `< > <= >=`. It is defined only for two numeric
// operands or two Strings (lexicographic by Unicode scalar, which UTF-8's
// byte ordering preserves); ok is false for any other combination, and the
// VM raises TypeError in that case.
func Compare(a, b Value) (cmp int, ok bool) {
	if a.IsNumeric() && b.IsNumeric() {
		x, y := a.NumericFloat(), b.NumericFloat()
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		default:
			return 0, true
		}
	}
	if a.kind == KindString && b.kind == KindString {
		return strings.Compare(a.str, b.str), true
	}
	return 0, false
}

// Add implements `+` polymorphism: numeric add, string concatenation, list
// concatenation (a fresh List; operands unmodified), and object merge (right
// shadows left). ok is false for any other operand combination.
func Add(a, b Value) (Value, bool) {
	switch {
	case a.IsNumeric() && b.IsNumeric():
		if a.kind == KindInt && b.kind == KindInt {
			return Int(a.integer + b.integer), true
		}
		return Float(a.NumericFloat() + b.NumericFloat()), true
	case a.kind == KindString && b.kind == KindString:
		return Str(a.str + b.str), true
	case a.kind == KindList && b.kind == KindList:
		items := make([]Value, 0, len(a.list.Items)+len(b.list.Items))
		items = append(items, a.list.Items...)
		items = append(items, b.list.Items...)
		return NewList(items), true
	case a.kind == KindObject && b.kind == KindObject:
		return Merge(a.object, b.object), true
	}
	return Null, false
}

// StringCharAt returns the single-character string at Unicode-scalar
// position i, or (Null, false) for an out-of-range (including negative)
// index.
func StringCharAt(s string, i int64) (Value, bool) {
	if i < 0 {
		return Null, false
	}
	n := int64(0)
	for _, r := range s {
		if n == i {
			return Str(string(r)), true
		}
		n++
	}
	return Null, false
}

// RuneCount returns the number of Unicode scalars in s, the `@len` contract
// for String.
func RuneCount(s string) int64 { return int64(utf8.RuneCountInString(s)) }
