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
	"io"
	"time"

	"github.com/comfort-stereo/regis/internal/token"
	"github.com/comfort-stereo/regis/internal/value"
)

// callBuiltin dispatches one of the five host built-ins. args is a live
// slice of vm.stack; it must not be retained past this call.
func (vm *VM) callBuiltin(name string, args []value.Value, pos token.Position) (value.Value, error) {
	switch name {
	case "print":
		if len(args) != 1 {
			return value.Null, &ArityError{Pos: pos, Name: "@print", Want: 1, Got: len(args)}
		}
		io.WriteString(vm.stdout, value.Render(args[0]))
		return value.Null, nil
	case "println":
		if len(args) != 1 {
			return value.Null, &ArityError{Pos: pos, Name: "@println", Want: 1, Got: len(args)}
		}
		io.WriteString(vm.stdout, value.Render(args[0]))
		fmt.Fprintln(vm.stdout)
		return value.Null, nil
	case "len":
		if len(args) != 1 {
			return value.Null, &ArityError{Pos: pos, Name: "@len", Want: 1, Got: len(args)}
		}
		return builtinLen(args[0], pos)
	case "import":
		if len(args) != 1 || args[0].Kind() != value.KindString {
			return value.Null, &TypeError{Pos: pos, Msg: "@import expects one string argument"}
		}
		if vm.importer == nil {
			return value.Null, &ImportError{Pos: pos, Path: args[0].AsString(), Err: fmt.Errorf("no module importer configured")}
		}
		exports, err := vm.importer.Import(args[0].AsString())
		if err != nil {
			return value.Null, &ImportError{Pos: pos, Path: args[0].AsString(), Err: err}
		}
		return exports, nil
	case "sleep":
		if len(args) != 1 || !args[0].IsNumeric() {
			return value.Null, &TypeError{Pos: pos, Msg: "@sleep expects one number argument (seconds)"}
		}
		vm.sleeper.Sleep(time.Duration(args[0].NumericFloat() * float64(time.Second)))
		return value.Null, nil
	default:
		return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("unknown built-in @%s", name)}
	}
}

func builtinLen(v value.Value, pos token.Position) (value.Value, error) {
	switch v.Kind() {
	case value.KindString:
		return value.Int(value.RuneCount(v.AsString())), nil
	case value.KindList:
		return value.Int(int64(v.AsList().Len())), nil
	case value.KindObject:
		return value.Int(int64(v.AsObject().Len())), nil
	default:
		return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("@len does not support %s", v.Kind())}
	}
}
