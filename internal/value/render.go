// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package value

import (
	"strconv"
	"strings"
)

// Render produces the canonical `@print`/`@println` rendering of v:
// Null -> "null", Bool -> "true"/"false", Int -> decimal, Float -> decimal
// with at least one fractional digit, String -> verbatim (no quoting),
// List -> "[v1, v2, …]" recursively, Object -> "{ k1: v1, … }" with
// identifier-shaped string keys unquoted, Function -> "<fn name?>". A cycle
// through a List/Object is rendered with an elision marker instead of
// recursing forever.
func Render(v Value) string {
	var b strings.Builder
	renderInto(&b, v, map[any]bool{})
	return b.String()
}

func renderInto(b *strings.Builder, v Value, seen map[any]bool) {
	switch v.kind {
	case KindNull:
		b.WriteString("null")
	case KindBool:
		if v.boolean {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case KindInt:
		b.WriteString(strconv.FormatInt(v.integer, 10))
	case KindFloat:
		b.WriteString(formatFloat(v.float))
	case KindString:
		b.WriteString(v.str)
	case KindList:
		renderList(b, v.list, seen)
	case KindObject:
		renderObject(b, v.object, seen)
	case KindFunction:
		if v.fn.Name == "" {
			b.WriteString("<fn>")
		} else {
			b.WriteString("<fn " + v.fn.Name + ">")
		}
	}
}

func renderList(b *strings.Builder, l *List, seen map[any]bool) {
	if seen[l] {
		b.WriteString("[...]")
		return
	}
	seen[l] = true
	defer delete(seen, l)
	b.WriteString("[")
	for i, el := range l.Items {
		if i > 0 {
			b.WriteString(", ")
		}
		renderInto(b, el, seen)
	}
	b.WriteString("]")
}

func renderObject(b *strings.Builder, o *Object, seen map[any]bool) {
	if seen[o] {
		b.WriteString("{...}")
		return
	}
	seen[o] = true
	defer delete(seen, o)
	if o.Len() == 0 {
		b.WriteString("{}")
		return
	}
	b.WriteString("{ ")
	first := true
	for i, k := range o.order {
		if !first {
			b.WriteString(", ")
		}
		first = false
		switch {
		case k.kind == KindString && isIdentShaped(k.str):
			b.WriteString(k.str)
		case k.kind == KindString:
			b.WriteString(strconv.Quote(k.str))
		default:
			renderInto(b, k, seen)
		}
		b.WriteString(": ")
		renderInto(b, o.vals[i], seen)
	}
	b.WriteString(" }")
}

func isIdentShaped(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

// formatFloat renders f with at least one fractional digit, so an integral
// Float like 2.0 is never mistakable for an Int in printed output.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") { // no '.', not Inf/NaN
		s += ".0"
	}
	return s
}
