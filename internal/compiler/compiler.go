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

	"github.com/comfort-stereo/regis/internal/ast"
	"github.com/comfort-stereo/regis/internal/token"
	"github.com/comfort-stereo/regis/internal/value"
)

// CompileError reports a compile-time failure at a source position: a
// duplicate local in one block, a misplaced `export`, a `return` outside a
// function, an unknown built-in, too many locals/constants/upvalues, an
// invalid assignment target, or any other AST shape codegen cannot lower.
type CompileError struct {
	Pos token.Position
	Msg string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: compile error: %s", e.Pos, e.Msg)
}

func errf(pos token.Position, format string, args ...any) error {
	return &CompileError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// local is one name bound by a `let` or function parameter within a scope.
type local struct {
	name string
	slot int
}

// block is one lexical scope: the set of locals declared directly within it.
type block struct {
	locals []local
}

// state carries the in-progress compilation of a single function body (or
// the top-level script, compiled as an implicit zero-argument function).
type state struct {
	parent *state

	// interactive marks a REPL compilation: top-level let/fn declarations
	// store globals instead of frame locals, so bindings survive the one
	// chunk they were typed in. Only set on the outermost state.
	interactive bool

	chunk     *value.Chunk
	code      []byte
	constants []value.Value
	strConst  map[string]int

	blocks   []*block
	nextSlot int
	maxSlot  int

	upvalues   []value.UpvalDesc
	upvalNames []string

	// exports holds (name, slot) pairs recorded by `export` declarations.
	// Only meaningful on the outermost (parent == nil) state.
	exports []exportedName

	spans map[int]token.Position
}

type exportedName struct {
	name string
	slot int
}

func newState(parent *state, name string) *state {
	return &state{
		parent:   parent,
		chunk:    &value.Chunk{Name: name},
		strConst: make(map[string]int),
		spans:    make(map[int]token.Position),
	}
}

// Compile compiles a whole program into a top-level Chunk. The returned
// Chunk's NumParams is always 0; it is run by pushing it as a zero-argument
// closure with no captured upvalues.
func Compile(prog *ast.Program, filename string) (*value.Chunk, error) {
	return compile(prog, filename, false)
}

// CompileInteractive compiles one REPL input as a top-level Chunk against a
// persistent global table: top-level `let`/`fn` declarations store globals
// rather than frame locals (a per-line chunk's locals would die with the
// line), `export` is rejected (there is no module to populate), and if the
// program ends in an expression statement, that expression's value becomes
// the chunk's return value so the REPL can echo it.
func CompileInteractive(prog *ast.Program, filename string) (*value.Chunk, error) {
	return compile(prog, filename, true)
}

func compile(prog *ast.Program, filename string, interactive bool) (*value.Chunk, error) {
	s := newState(nil, filename)
	s.interactive = interactive
	s.enterBlock()

	for i, stmt := range prog.Statements {
		if interactive && i == len(prog.Statements)-1 {
			if es, ok := stmt.(*ast.ExprStmt); ok {
				if err := s.compileExpression(es.Expr); err != nil {
					return nil, err
				}
				s.leaveBlock(stmtPos(prog))
				s.emit(OpReturn, es.Pos())
				return s.finish(0, stmtPos(prog))
			}
		}
		if err := s.compileStatement(stmt); err != nil {
			return nil, err
		}
	}

	for _, ex := range s.exports {
		s.emitU16At(OpLoadLocal, uint16(ex.slot), stmtPos(prog))
		s.emitU16At(OpExportSet, uint16(s.nameConst(ex.name)), stmtPos(prog))
	}

	s.leaveBlock(stmtPos(prog))
	s.emit(OpNull, stmtPos(prog))
	s.emit(OpReturn, stmtPos(prog))

	return s.finish(0, stmtPos(prog))
}

func stmtPos(prog *ast.Program) token.Position {
	if len(prog.Statements) > 0 {
		return prog.Statements[0].Pos()
	}
	return token.Position{Line: 1, Column: 1}
}

// maxEncodable is the number of distinct indices (0..65535) a 16-bit
// constant/upvalue operand can name; a function needing more entries than
// that is a CompileError rather than a silently-wrapped index.
const maxEncodable = 1 << 16

func (s *state) finish(numParams int, pos token.Position) (*value.Chunk, error) {
	if len(s.constants) > maxEncodable {
		return nil, errf(pos, "too many constants in function %q", s.chunk.Name)
	}
	if len(s.upvalues) > maxEncodable {
		return nil, errf(pos, "too many upvalues in function %q", s.chunk.Name)
	}
	s.chunk.Constants = s.constants
	s.chunk.Code = s.code
	s.chunk.NumParams = numParams
	s.chunk.NumLocals = s.maxSlot
	s.chunk.Upvalues = s.upvalues
	s.chunk.Spans = s.spans
	return s.chunk, nil
}

// ---- emission helpers -------------------------------------------------------

func (s *state) emit(op Opcode, pos token.Position) int {
	offset := len(s.code)
	s.spans[offset] = pos
	s.code = append(s.code, byte(op))
	return offset
}

func (s *state) emitU16At(op Opcode, operand uint16, pos token.Position) int {
	offset := s.emit(op, pos)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], operand)
	s.code = append(s.code, buf[:]...)
	return offset
}

func (s *state) emitJump(op Opcode, pos token.Position) int {
	return s.emitU16At(op, 0xFFFF, pos)
}

// patchJump backpatches the i16 operand at offset (which must be the start
// of a jump instruction) so that it lands on the current end of the code
// stream. Patching happens in place immediately since Regis compiles
// structured control flow in one pass with no unresolved labels crossing
// statement boundaries.
func (s *state) patchJump(offset int) {
	target := len(s.code) - (offset + 3)
	binary.LittleEndian.PutUint16(s.code[offset+1:offset+3], uint16(int16(target)))
}

func (s *state) addConstant(v value.Value) int {
	s.constants = append(s.constants, v)
	return len(s.constants) - 1
}

func (s *state) nameConst(name string) int {
	if i, ok := s.strConst[name]; ok {
		return i
	}
	i := s.addConstant(value.Str(name))
	s.strConst[name] = i
	return i
}

// ---- scope management -------------------------------------------------------

func (s *state) enterBlock() { s.blocks = append(s.blocks, &block{}) }

func (s *state) leaveBlock(pos token.Position) {
	b := s.blocks[len(s.blocks)-1]
	s.blocks = s.blocks[:len(s.blocks)-1]
	if len(b.locals) == 0 {
		return
	}
	from := b.locals[0].slot
	s.emitU16At(OpCloseUpvalues, uint16(from), pos)
	s.nextSlot -= len(b.locals)
}

// maxLocals bounds a function's local-slot count to what OpLoadLocal's
// 16-bit operand can address; exceeding it is a CompileError, not a silent
// wraparound.
const maxLocals = 1 << 16

func (s *state) declareLocal(name string, pos token.Position) (int, error) {
	b := s.blocks[len(s.blocks)-1]
	for _, existing := range b.locals {
		if existing.name == name {
			return 0, errf(pos, "duplicate local %q in the same block", name)
		}
	}
	if s.nextSlot >= maxLocals {
		return 0, errf(pos, "too many locals in function %q", s.chunk.Name)
	}
	slot := s.nextSlot
	s.nextSlot++
	if s.nextSlot > s.maxSlot {
		s.maxSlot = s.nextSlot
	}
	b.locals = append(b.locals, local{name: name, slot: slot})
	return slot, nil
}

func (s *state) resolveLocal(name string) (int, bool) {
	for bi := len(s.blocks) - 1; bi >= 0; bi-- {
		locals := s.blocks[bi].locals
		for li := len(locals) - 1; li >= 0; li-- {
			if locals[li].name == name {
				return locals[li].slot, true
			}
		}
	}
	return 0, false
}

func (s *state) addUpvalue(desc value.UpvalDesc, name string) int {
	for i, d := range s.upvalues {
		if d == desc {
			return i
		}
	}
	s.upvalues = append(s.upvalues, desc)
	s.upvalNames = append(s.upvalNames, name)
	return len(s.upvalues) - 1
}

func (s *state) resolveUpvalue(name string) (int, bool) {
	if s.parent == nil {
		return 0, false
	}
	if slot, ok := s.parent.resolveLocal(name); ok {
		return s.addUpvalue(value.UpvalDesc{FromLocal: true, Index: slot}, name), true
	}
	if idx, ok := s.parent.resolveUpvalue(name); ok {
		return s.addUpvalue(value.UpvalDesc{FromLocal: false, Index: idx}, name), true
	}
	return 0, false
}

// ---- name load/store ---------------------------------------------------------

func (s *state) compileLoadName(name string, pos token.Position) {
	if slot, ok := s.resolveLocal(name); ok {
		s.emitU16At(OpLoadLocal, uint16(slot), pos)
		return
	}
	if idx, ok := s.resolveUpvalue(name); ok {
		s.emitU16At(OpLoadUpvalue, uint16(idx), pos)
		return
	}
	s.emitU16At(OpLoadGlobal, uint16(s.nameConst(name)), pos)
}

func (s *state) compileStoreName(name string, pos token.Position) {
	if slot, ok := s.resolveLocal(name); ok {
		s.emitU16At(OpStoreLocal, uint16(slot), pos)
		return
	}
	if idx, ok := s.resolveUpvalue(name); ok {
		s.emitU16At(OpStoreUpvalue, uint16(idx), pos)
		return
	}
	s.emitU16At(OpStoreGlobal, uint16(s.nameConst(name)), pos)
}

// ---- statements --------------------------------------------------------------

func (s *state) compileStatement(stmt ast.Statement) error {
	switch st := stmt.(type) {
	case *ast.LetStmt:
		return s.compileLetStmt(st)
	case *ast.FnStmt:
		return s.compileFnStmt(st)
	case *ast.ReturnStmt:
		return s.compileReturnStmt(st)
	case *ast.WhileStmt:
		return s.compileWhileStmt(st)
	case *ast.LoopStmt:
		return s.compileLoopStmt(st)
	case *ast.IfStmt:
		return s.compileIfStmt(st)
	case *ast.ExprStmt:
		if err := s.compileExpression(st.Expr); err != nil {
			return err
		}
		s.emit(OpPop, st.Pos())
		return nil
	case *ast.AssignStmt:
		return s.compileAssignStmt(st)
	default:
		return errf(stmt.Pos(), "cannot compile statement of type %T", stmt)
	}
}

func (s *state) compileLetStmt(st *ast.LetStmt) error {
	if err := s.compileExpression(st.Value); err != nil {
		return err
	}
	if s.interactive && s.parent == nil {
		if st.Export {
			return errf(st.Pos(), "export is not available in interactive mode")
		}
		s.emitU16At(OpStoreGlobal, uint16(s.nameConst(st.Name.Name)), st.Pos())
		return nil
	}
	slot, err := s.declareLocal(st.Name.Name, st.Pos())
	if err != nil {
		return err
	}
	s.emitU16At(OpStoreLocal, uint16(slot), st.Pos())
	if st.Export {
		if s.parent != nil {
			return errf(st.Pos(), "export is only valid at the top level")
		}
		s.exports = append(s.exports, exportedName{name: st.Name.Name, slot: slot})
	}
	return nil
}

func (s *state) compileFnStmt(st *ast.FnStmt) error {
	if s.interactive && s.parent == nil {
		if st.Export {
			return errf(st.Pos(), "export is not available in interactive mode")
		}
		if err := s.compileFnLiteral(st.Fn, st.Name.Name); err != nil {
			return err
		}
		s.emitU16At(OpStoreGlobal, uint16(s.nameConst(st.Name.Name)), st.Pos())
		return nil
	}
	slot, err := s.declareLocal(st.Name.Name, st.Pos())
	if err != nil {
		return err
	}
	if err := s.compileFnLiteral(st.Fn, st.Name.Name); err != nil {
		return err
	}
	s.emitU16At(OpStoreLocal, uint16(slot), st.Pos())
	if st.Export {
		if s.parent != nil {
			return errf(st.Pos(), "export is only valid at the top level")
		}
		s.exports = append(s.exports, exportedName{name: st.Name.Name, slot: slot})
	}
	return nil
}

func (s *state) compileReturnStmt(st *ast.ReturnStmt) error {
	// A top-level return would also skip the export population emitted at
	// the end of the module's chunk.
	if s.parent == nil {
		return errf(st.Pos(), "return outside function")
	}
	if st.Value != nil {
		if err := s.compileExpression(st.Value); err != nil {
			return err
		}
	} else {
		s.emit(OpNull, st.Pos())
	}
	s.emit(OpReturn, st.Pos())
	return nil
}

func (s *state) compileWhileStmt(st *ast.WhileStmt) error {
	condStart := len(s.code)
	if err := s.compileExpression(st.Condition); err != nil {
		return err
	}
	exitJump := s.emitJump(OpJumpIfFalse, st.Pos())
	if err := s.compileBlock(st.Body); err != nil {
		return err
	}
	s.emitLoopBack(condStart, st.Pos())
	s.patchJump(exitJump)
	return nil
}

func (s *state) compileLoopStmt(st *ast.LoopStmt) error {
	bodyStart := len(s.code)
	if err := s.compileBlock(st.Body); err != nil {
		return err
	}
	s.emitLoopBack(bodyStart, st.Pos())
	return nil
}

func (s *state) emitLoopBack(target int, pos token.Position) {
	offset := s.emit(OpJump, pos)
	rel := target - (offset + 3)
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], uint16(int16(rel)))
	s.code = append(s.code, buf[:]...)
}

func (s *state) compileIfStmt(st *ast.IfStmt) error {
	if err := s.compileExpression(st.Condition); err != nil {
		return err
	}
	elseJump := s.emitJump(OpJumpIfFalse, st.Pos())
	if err := s.compileBlock(st.Consequence); err != nil {
		return err
	}
	if st.Alternative == nil {
		s.patchJump(elseJump)
		return nil
	}
	endJump := s.emitJump(OpJump, st.Pos())
	s.patchJump(elseJump)
	switch alt := st.Alternative.(type) {
	case *ast.Block:
		if err := s.compileBlock(alt); err != nil {
			return err
		}
	case *ast.IfStmt:
		if err := s.compileIfStmt(alt); err != nil {
			return err
		}
	default:
		return errf(st.Pos(), "unexpected else-branch node %T", alt)
	}
	s.patchJump(endJump)
	return nil
}

func (s *state) compileBlock(b *ast.Block) error {
	s.enterBlock()
	for _, stmt := range b.Statements {
		if err := s.compileStatement(stmt); err != nil {
			return err
		}
	}
	s.leaveBlock(b.Pos())
	return nil
}

func (s *state) compileAssignStmt(st *ast.AssignStmt) error {
	switch target := st.Target.(type) {
	case *ast.Ident:
		if st.Op != ast.AssignSet {
			s.compileLoadName(target.Name, st.Pos())
			if err := s.compileExpression(st.Value); err != nil {
				return err
			}
			if err := s.emitCompoundOp(st.Op, st.Pos()); err != nil {
				return err
			}
		} else if err := s.compileExpression(st.Value); err != nil {
			return err
		}
		s.compileStoreName(target.Name, st.Pos())
		return nil

	case *ast.IndexExpr:
		if err := s.compileExpression(target.Target); err != nil {
			return err
		}
		if err := s.compileExpression(target.Index); err != nil {
			return err
		}
		if st.Op != ast.AssignSet {
			s.emit(OpDup2, st.Pos())
			s.emit(OpIndexGet, st.Pos())
			if err := s.compileExpression(st.Value); err != nil {
				return err
			}
			if err := s.emitCompoundOp(st.Op, st.Pos()); err != nil {
				return err
			}
		} else if err := s.compileExpression(st.Value); err != nil {
			return err
		}
		s.emit(OpIndexSet, st.Pos())
		return nil

	case *ast.MemberExpr:
		if err := s.compileExpression(target.Target); err != nil {
			return err
		}
		keyIdx := s.nameConst(target.Name)
		s.emitU16At(OpConst, uint16(keyIdx), st.Pos())
		if st.Op != ast.AssignSet {
			s.emit(OpDup2, st.Pos())
			s.emit(OpIndexGet, st.Pos())
			if err := s.compileExpression(st.Value); err != nil {
				return err
			}
			if err := s.emitCompoundOp(st.Op, st.Pos()); err != nil {
				return err
			}
		} else if err := s.compileExpression(st.Value); err != nil {
			return err
		}
		s.emit(OpIndexSet, st.Pos())
		return nil

	default:
		return errf(st.Pos(), "invalid assignment target %T", target)
	}
}

func (s *state) emitCompoundOp(op ast.AssignOp, pos token.Position) error {
	switch op {
	case ast.AssignAdd:
		s.emit(OpAdd, pos)
	case ast.AssignSub:
		s.emit(OpSub, pos)
	case ast.AssignMul:
		s.emit(OpMul, pos)
	case ast.AssignDiv:
		s.emit(OpDiv, pos)
	default:
		return errf(pos, "unsupported compound assignment operator")
	}
	return nil
}

// ---- expressions -------------------------------------------------------------

func (s *state) compileExpression(expr ast.Expression) error {
	switch e := expr.(type) {
	case *ast.IntLiteral:
		s.emitU16At(OpConst, uint16(s.addConstant(value.Int(e.Value))), e.Pos())
	case *ast.FloatLiteral:
		s.emitU16At(OpConst, uint16(s.addConstant(value.Float(e.Value))), e.Pos())
	case *ast.StringLiteral:
		s.emitU16At(OpConst, uint16(s.nameConst(e.Value)), e.Pos())
	case *ast.BoolLiteral:
		if e.Value {
			s.emit(OpTrue, e.Pos())
		} else {
			s.emit(OpFalse, e.Pos())
		}
	case *ast.NullLiteral:
		s.emit(OpNull, e.Pos())
	case *ast.Ident:
		s.compileLoadName(e.Name, e.Pos())
	case *ast.BuiltinRef:
		idx := BuiltinIndex(e.Name)
		if idx < 0 {
			return errf(e.Pos(), "unknown built-in @%s", e.Name)
		}
		s.emitU16At(OpLoadBuiltin, uint16(idx), e.Pos())
	case *ast.ListLiteral:
		for _, el := range e.Elements {
			if err := s.compileExpression(el); err != nil {
				return err
			}
		}
		s.emitU16At(OpMakeList, uint16(len(e.Elements)), e.Pos())
	case *ast.ObjectLiteral:
		for _, entry := range e.Entries {
			if entry.Computed {
				if err := s.compileExpression(entry.Key); err != nil {
					return err
				}
			} else {
				switch k := entry.Key.(type) {
				case *ast.Ident:
					s.emitU16At(OpConst, uint16(s.nameConst(k.Name)), e.Pos())
				case *ast.StringLiteral:
					s.emitU16At(OpConst, uint16(s.nameConst(k.Value)), e.Pos())
				default:
					return errf(e.Pos(), "unexpected object key node %T", k)
				}
			}
			if err := s.compileExpression(entry.Value); err != nil {
				return err
			}
		}
		s.emitU16At(OpMakeObject, uint16(len(e.Entries)), e.Pos())
	case *ast.FnLiteral:
		return s.compileFnLiteral(e, "")
	case *ast.PrefixExpr:
		return s.compilePrefixExpr(e)
	case *ast.InfixExpr:
		return s.compileInfixExpr(e)
	case *ast.CallExpr:
		return s.compileCallExpr(e)
	case *ast.IndexExpr:
		if err := s.compileExpression(e.Target); err != nil {
			return err
		}
		if err := s.compileExpression(e.Index); err != nil {
			return err
		}
		s.emit(OpIndexGet, e.Pos())
	case *ast.MemberExpr:
		if err := s.compileExpression(e.Target); err != nil {
			return err
		}
		s.emitU16At(OpConst, uint16(s.nameConst(e.Name)), e.Pos())
		s.emit(OpIndexGet, e.Pos())
	default:
		return errf(expr.Pos(), "cannot compile expression of type %T", expr)
	}
	return nil
}

func (s *state) compileCallExpr(e *ast.CallExpr) error {
	if err := s.compileExpression(e.Callee); err != nil {
		return err
	}
	for _, arg := range e.Args {
		if err := s.compileExpression(arg); err != nil {
			return err
		}
	}
	s.emitU16At(OpCall, uint16(len(e.Args)), e.Pos())
	return nil
}

func (s *state) compilePrefixExpr(e *ast.PrefixExpr) error {
	if err := s.compileExpression(e.Operand); err != nil {
		return err
	}
	switch e.Op {
	case ast.PrefixNeg:
		s.emit(OpNeg, e.Pos())
	case ast.PrefixNot:
		s.emit(OpNot, e.Pos())
	case ast.PrefixBitNot:
		s.emit(OpBitNot, e.Pos())
	default:
		return errf(e.Pos(), "unsupported prefix operator")
	}
	return nil
}

func (s *state) compileInfixExpr(e *ast.InfixExpr) error {
	switch e.Op {
	case ast.InfixAnd:
		if err := s.compileExpression(e.Left); err != nil {
			return err
		}
		jump := s.emitJump(OpJumpIfFalseyPeek, e.Pos())
		s.emit(OpPop, e.Pos())
		if err := s.compileExpression(e.Right); err != nil {
			return err
		}
		s.patchJump(jump)
		return nil
	case ast.InfixOr:
		if err := s.compileExpression(e.Left); err != nil {
			return err
		}
		jump := s.emitJump(OpJumpIfTruthyPeek, e.Pos())
		s.emit(OpPop, e.Pos())
		if err := s.compileExpression(e.Right); err != nil {
			return err
		}
		s.patchJump(jump)
		return nil
	case ast.InfixCoalesce:
		if err := s.compileExpression(e.Left); err != nil {
			return err
		}
		jump := s.emitJump(OpJumpIfNonNullPeek, e.Pos())
		s.emit(OpPop, e.Pos())
		if err := s.compileExpression(e.Right); err != nil {
			return err
		}
		s.patchJump(jump)
		return nil
	}

	if err := s.compileExpression(e.Left); err != nil {
		return err
	}
	if err := s.compileExpression(e.Right); err != nil {
		return err
	}
	switch e.Op {
	case ast.InfixAdd:
		s.emit(OpAdd, e.Pos())
	case ast.InfixSub:
		s.emit(OpSub, e.Pos())
	case ast.InfixMul:
		s.emit(OpMul, e.Pos())
	case ast.InfixDiv:
		s.emit(OpDiv, e.Pos())
	case ast.InfixBitAnd:
		s.emit(OpBitAnd, e.Pos())
	case ast.InfixBitOr:
		s.emit(OpBitOr, e.Pos())
	case ast.InfixShl:
		s.emit(OpShl, e.Pos())
	case ast.InfixShr:
		s.emit(OpShr, e.Pos())
	case ast.InfixEq:
		s.emit(OpEq, e.Pos())
	case ast.InfixNe:
		s.emit(OpNe, e.Pos())
	case ast.InfixLt:
		s.emit(OpLt, e.Pos())
	case ast.InfixGt:
		s.emit(OpGt, e.Pos())
	case ast.InfixLe:
		s.emit(OpLe, e.Pos())
	case ast.InfixGe:
		s.emit(OpGe, e.Pos())
	default:
		return errf(e.Pos(), "unsupported infix operator")
	}
	return nil
}

// compileFnLiteral compiles a nested function body into its own Chunk,
// wraps it as a prototype Function constant, and emits MAKE_CLOSURE so the
// VM captures the live upvalues the prototype's descriptor table names.
func (s *state) compileFnLiteral(lit *ast.FnLiteral, name string) error {
	child := newState(s, name)
	child.enterBlock()
	for _, p := range lit.Params {
		if _, err := child.declareLocal(p.Name, lit.Pos()); err != nil {
			return err
		}
	}
	for _, stmt := range lit.Body.Statements {
		if err := child.compileStatement(stmt); err != nil {
			return err
		}
	}
	child.leaveBlock(lit.Pos())
	child.emit(OpNull, lit.Pos())
	child.emit(OpReturn, lit.Pos())

	chunk, err := child.finish(len(lit.Params), lit.Pos())
	if err != nil {
		return err
	}
	proto := &value.Function{Chunk: chunk, Name: name}
	idx := s.addConstant(value.FromFunction(proto))
	s.emitU16At(OpMakeClosure, uint16(idx), lit.Pos())
	return nil
}
