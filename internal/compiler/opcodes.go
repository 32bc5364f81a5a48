// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package compiler walks a Regis AST and produces a value.Chunk: resolved
// local/upvalue/global references, a constant pool, and a bytecode stream.
//
// The AST is compiled directly to a stack-machine encoding in a single pass;
// there is no intermediate IR stage.
package compiler

import "fmt"

// Opcode is a one-byte instruction code for the Regis VM.
type Opcode byte

const (
	// ---- Push --------------------------------------------------------------

	OpConst Opcode = iota // u16 constant-pool index
	OpNull
	OpTrue
	OpFalse

	// ---- Load/Store ----------------------------------------------------------

	OpLoadLocal    // u16 slot (relative to frame base+1)
	OpStoreLocal   // u16 slot
	OpLoadUpvalue  // u16 index into the active closure's upvalue vector
	OpStoreUpvalue // u16 index
	OpLoadGlobal   // u16 constant-pool index of the interned name
	OpStoreGlobal  // u16 constant-pool index
	OpLoadBuiltin  // u16 index into the fixed built-in table

	// ---- Aggregate -----------------------------------------------------------

	OpMakeList   // u16 element count N; pops N, pushes one List
	OpMakeObject // u16 entry count N; pops 2N (key,val)*N, pushes one Object
	OpIndexGet   // pops index then target; pushes element
	OpIndexSet   // pops value, index, target; writes the entry, pushes nothing

	// ---- Arithmetic/logic ------------------------------------------------------

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg
	OpBitAnd
	OpBitOr
	OpBitNot
	// OpShl is `<<`: on two Ints, an arithmetic left shift (amount masked to
	// 6 bits); on a List and any value, in-place append yielding the list —
	// chosen at runtime by operand kind, the same way OpAdd dispatches
	// numeric add vs. string/list/object concatenation.
	OpShl
	OpShr

	// ---- Comparison ------------------------------------------------------------

	OpEq
	OpNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpNot // pops, pushes the Bool negation of its truthiness

	// ---- Control ---------------------------------------------------------------

	OpJump               // i16 relative offset from the instruction after the operand
	OpJumpIfFalse        // i16 offset; pops and tests the condition
	OpJumpIfTruthyPeek   // i16 offset; jumps (without popping) if TOS is truthy — `or`
	OpJumpIfFalseyPeek   // i16 offset; jumps (without popping) if TOS is falsey — `and`
	OpJumpIfNonNullPeek  // i16 offset; jumps (without popping) if TOS is non-null — `??`
	OpPop
	OpDup
	OpDup2 // duplicates the top two stack values, preserving their order
	OpSwap

	// ---- Calls/closures ----------------------------------------------------------

	OpCall           // u16 argument count
	OpReturn         // pops the return value, ends the frame
	OpMakeClosure    // u16 constant-pool index of the nested prototype Function
	OpCloseUpvalues  // u16 slot; closes every open upvalue at or above it

	// ---- Module exports ------------------------------------------------------------

	OpExportSet // u16 constant-pool index of the exported name; pops the value

	opcodeCount
)

type opcodeInfo struct {
	name          string
	operandBytes  int // 0 or 2 (a little-endian u16/i16)
}

var opcodeTable = [opcodeCount]opcodeInfo{
	OpConst:     {"CONST", 2},
	OpNull:      {"NULL", 0},
	OpTrue:      {"TRUE", 0},
	OpFalse:     {"FALSE", 0},

	OpLoadLocal:    {"LOAD_LOCAL", 2},
	OpStoreLocal:   {"STORE_LOCAL", 2},
	OpLoadUpvalue:  {"LOAD_UPVALUE", 2},
	OpStoreUpvalue: {"STORE_UPVALUE", 2},
	OpLoadGlobal:   {"LOAD_GLOBAL", 2},
	OpStoreGlobal:  {"STORE_GLOBAL", 2},
	OpLoadBuiltin:  {"LOAD_BUILTIN", 2},

	OpMakeList:   {"MAKE_LIST", 2},
	OpMakeObject: {"MAKE_OBJECT", 2},
	OpIndexGet:   {"INDEX_GET", 0},
	OpIndexSet:   {"INDEX_SET", 0},

	OpAdd:    {"ADD", 0},
	OpSub:    {"SUB", 0},
	OpMul:    {"MUL", 0},
	OpDiv:    {"DIV", 0},
	OpNeg:    {"NEG", 0},
	OpBitAnd: {"BIT_AND", 0},
	OpBitOr:  {"BIT_OR", 0},
	OpBitNot: {"BIT_NOT", 0},
	OpShl:    {"SHL", 0},
	OpShr:    {"SHR", 0},

	OpEq:  {"EQ", 0},
	OpNe:  {"NE", 0},
	OpLt:  {"LT", 0},
	OpGt:  {"GT", 0},
	OpLe:  {"LE", 0},
	OpGe:  {"GE", 0},
	OpNot: {"NOT", 0},

	OpJump:              {"JUMP", 2},
	OpJumpIfFalse:       {"JUMP_IF_FALSE", 2},
	OpJumpIfTruthyPeek:  {"JUMP_IF_TRUTHY_PEEK", 2},
	OpJumpIfFalseyPeek:  {"JUMP_IF_FALSEY_PEEK", 2},
	OpJumpIfNonNullPeek: {"JUMP_IF_NON_NULL_PEEK", 2},
	OpPop:               {"POP", 0},
	OpDup:               {"DUP", 0},
	OpDup2:              {"DUP2", 0},
	OpSwap:              {"SWAP", 0},

	OpCall:          {"CALL", 2},
	OpReturn:        {"RETURN", 0},
	OpMakeClosure:   {"MAKE_CLOSURE", 2},
	OpCloseUpvalues: {"CLOSE_UPVALUES", 2},

	OpExportSet: {"EXPORT_SET", 2},
}

// String returns the mnemonic name of the opcode.
func (op Opcode) String() string {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op].name
	}
	return fmt.Sprintf("OP(%d)", byte(op))
}

// OperandBytes returns how many bytes of fixed-width operand follow op in
// the instruction stream (0 or 2).
func (op Opcode) OperandBytes() int {
	if int(op) < len(opcodeTable) {
		return opcodeTable[op].operandBytes
	}
	return 0
}

// BuiltinNames is the closed set of host built-ins, in the fixed order their
// OpLoadBuiltin index refers to.
var BuiltinNames = [...]string{"print", "println", "len", "import", "sleep"}

// BuiltinIndex returns the built-in table index for name, or -1 if name does
// not name a known built-in.
func BuiltinIndex(name string) int {
	for i, n := range BuiltinNames {
		if n == name {
			return i
		}
	}
	return -1
}
