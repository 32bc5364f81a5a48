// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package compiler

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/comfort-stereo/regis/internal/value"
)

// Disassemble writes a human-readable listing of chunk (and, recursively,
// every nested function prototype reachable through its constant pool) to
// w, descending into nested MAKE_CLOSURE prototypes so `regis -emit=bytecode`
// shows an entire program in one pass.
func Disassemble(w io.Writer, chunk *value.Chunk) {
	disassemble(w, chunk, map[*value.Chunk]bool{})
}

func disassemble(w io.Writer, chunk *value.Chunk, seen map[*value.Chunk]bool) {
	if seen[chunk] {
		return
	}
	seen[chunk] = true

	name := chunk.Name
	if name == "" {
		name = "<anonymous>"
	}
	fmt.Fprintf(w, "== %s (params=%d locals=%d upvalues=%d) ==\n",
		name, chunk.NumParams, chunk.NumLocals, len(chunk.Upvalues))

	var nested []*value.Chunk
	code := chunk.Code
	for ip := 0; ip < len(code); {
		op := Opcode(code[ip])
		width := op.OperandBytes()
		line := fmt.Sprintf("%04d %-22s", ip, op.String())
		if width == 2 {
			operand := binary.LittleEndian.Uint16(code[ip+1 : ip+3])
			line += describeOperand(chunk, op, operand)
		}
		fmt.Fprintln(w, line)
		if op == OpMakeClosure {
			operand := binary.LittleEndian.Uint16(code[ip+1 : ip+3])
			if int(operand) < len(chunk.Constants) {
				if fn := chunk.Constants[operand].AsFunction(); fn != nil {
					nested = append(nested, fn.Chunk)
				}
			}
		}
		ip += 1 + width
	}

	for _, n := range nested {
		fmt.Fprintln(w)
		disassemble(w, n, seen)
	}
}

func describeOperand(chunk *value.Chunk, op Opcode, operand uint16) string {
	switch op {
	case OpJump, OpJumpIfFalse, OpJumpIfTruthyPeek, OpJumpIfFalseyPeek, OpJumpIfNonNullPeek:
		return fmt.Sprintf("%d", int16(operand))
	case OpConst, OpLoadGlobal, OpStoreGlobal, OpExportSet:
		if int(operand) < len(chunk.Constants) {
			return fmt.Sprintf("%d ; %s", operand, value.Render(chunk.Constants[operand]))
		}
		return fmt.Sprintf("%d", operand)
	case OpLoadBuiltin:
		if int(operand) < len(BuiltinNames) {
			return fmt.Sprintf("%d ; @%s", operand, BuiltinNames[operand])
		}
		return fmt.Sprintf("%d", operand)
	case OpMakeClosure:
		if int(operand) < len(chunk.Constants) {
			if fn := chunk.Constants[operand].AsFunction(); fn != nil {
				name := fn.Name
				if name == "" {
					name = "<anonymous>"
				}
				return fmt.Sprintf("%d ; %s", operand, name)
			}
		}
		return fmt.Sprintf("%d", operand)
	default:
		return fmt.Sprintf("%d", operand)
	}
}
