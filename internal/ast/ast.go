// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package ast defines the abstract syntax tree produced by the parser and
// consumed by the compiler.
package ast

import (
	"bytes"
	"strings"

	"github.com/comfort-stereo/regis/internal/token"
)

// Node is the common interface implemented by every AST node.
type Node interface {
	Pos() token.Position
	String() string
}

// Statement is a Node that appears at statement position.
type Statement interface {
	Node
	statementNode()
}

// Expression is a Node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Program is the root node: a sequence of top-level statements.
type Program struct {
	Statements []Statement
}

func (p *Program) Pos() token.Position {
	if len(p.Statements) > 0 {
		return p.Statements[0].Pos()
	}
	return token.Position{}
}

func (p *Program) String() string {
	var b bytes.Buffer
	for _, s := range p.Statements {
		b.WriteString(s.String())
		b.WriteString("\n")
	}
	return b.String()
}

// ---- Statements ----

// LetStmt is `let <name> = <value>;`.
type LetStmt struct {
	Token  token.Token
	Name   *Ident
	Value  Expression
	Export bool
}

func (s *LetStmt) statementNode()       {}
func (s *LetStmt) Pos() token.Position  { return s.Token.Pos }
func (s *LetStmt) String() string {
	kw := "let"
	if s.Export {
		kw = "export let"
	}
	return kw + " " + s.Name.String() + " = " + s.Value.String() + ";"
}

// FnStmt is a named function declaration: `fn name(params) { body }`.
type FnStmt struct {
	Token  token.Token
	Name   *Ident
	Fn     *FnLiteral
	Export bool
}

func (s *FnStmt) statementNode()      {}
func (s *FnStmt) Pos() token.Position { return s.Token.Pos }
func (s *FnStmt) String() string {
	kw := "fn"
	if s.Export {
		kw = "export fn"
	}
	return kw + " " + s.Name.String() + s.Fn.paramsAndBody()
}

// ReturnStmt is `return <value>;` or a bare `return;`.
type ReturnStmt struct {
	Token token.Token
	Value Expression // nil for a bare return
}

func (s *ReturnStmt) statementNode()      {}
func (s *ReturnStmt) Pos() token.Position { return s.Token.Pos }
func (s *ReturnStmt) String() string {
	if s.Value == nil {
		return "return;"
	}
	return "return " + s.Value.String() + ";"
}

// WhileStmt is `while expr { body }`.
type WhileStmt struct {
	Token     token.Token
	Condition Expression
	Body      *Block
}

func (s *WhileStmt) statementNode()      {}
func (s *WhileStmt) Pos() token.Position { return s.Token.Pos }
func (s *WhileStmt) String() string {
	return "while " + s.Condition.String() + " " + s.Body.String()
}

// LoopStmt is `loop { body }`, an unconditional backward jump with no
// implicit exit — only `return` leaves it (documented only here, not in
// any user-facing surface).
type LoopStmt struct {
	Token token.Token
	Body  *Block
}

func (s *LoopStmt) statementNode()      {}
func (s *LoopStmt) Pos() token.Position { return s.Token.Pos }
func (s *LoopStmt) String() string      { return "loop " + s.Body.String() }

// IfStmt is `if expr { block } (else if expr { block })* (else { block })?`.
// Alternative is nil, a *Block (the final else), or a nested *IfStmt
// (an else-if link).
type IfStmt struct {
	Token       token.Token
	Condition   Expression
	Consequence *Block
	Alternative Statement
}

func (s *IfStmt) statementNode()      {}
func (s *IfStmt) Pos() token.Position { return s.Token.Pos }
func (s *IfStmt) String() string {
	str := "if " + s.Condition.String() + " " + s.Consequence.String()
	if s.Alternative != nil {
		str += " else " + s.Alternative.String()
	}
	return str
}

// ExprStmt wraps an expression used in statement position.
type ExprStmt struct {
	Token token.Token
	Expr  Expression
}

func (s *ExprStmt) statementNode()      {}
func (s *ExprStmt) Pos() token.Position { return s.Token.Pos }
func (s *ExprStmt) String() string {
	if s.Expr == nil {
		return ""
	}
	return s.Expr.String() + ";"
}

// AssignOp identifies which (possibly compound) assignment operator was used.
type AssignOp int

const (
	AssignSet AssignOp = iota
	AssignAdd
	AssignSub
	AssignMul
	AssignDiv
)

// AssignStmt covers `target = value;`, `target += value;`, etc. Target may
// be an Ident, an IndexExpr, or a MemberExpr.
type AssignStmt struct {
	Token  token.Token
	Target Expression
	Op     AssignOp
	Value  Expression
}

func (s *AssignStmt) statementNode()      {}
func (s *AssignStmt) Pos() token.Position { return s.Token.Pos }
func (s *AssignStmt) String() string {
	ops := map[AssignOp]string{AssignSet: "=", AssignAdd: "+=", AssignSub: "-=", AssignMul: "*=", AssignDiv: "/="}
	return s.Target.String() + " " + ops[s.Op] + " " + s.Value.String() + ";"
}

// ---- Expressions ----

// Ident is a bare identifier reference.
type Ident struct {
	Token token.Token
	Name  string
}

func (e *Ident) expressionNode()     {}
func (e *Ident) Pos() token.Position { return e.Token.Pos }
func (e *Ident) String() string      { return e.Name }

// BuiltinRef is an `@name` reference to a host built-in.
type BuiltinRef struct {
	Token token.Token
	Name  string
}

func (e *BuiltinRef) expressionNode()     {}
func (e *BuiltinRef) Pos() token.Position { return e.Token.Pos }
func (e *BuiltinRef) String() string      { return "@" + e.Name }

// IntLiteral is an integer literal.
type IntLiteral struct {
	Token token.Token
	Value int64
}

func (e *IntLiteral) expressionNode()     {}
func (e *IntLiteral) Pos() token.Position { return e.Token.Pos }
func (e *IntLiteral) String() string      { return e.Token.Literal }

// FloatLiteral is a floating-point literal.
type FloatLiteral struct {
	Token token.Token
	Value float64
}

func (e *FloatLiteral) expressionNode()     {}
func (e *FloatLiteral) Pos() token.Position { return e.Token.Pos }
func (e *FloatLiteral) String() string      { return e.Token.Literal }

// StringLiteral is a (already-escape-decoded) string literal.
type StringLiteral struct {
	Token token.Token
	Value string
}

func (e *StringLiteral) expressionNode()     {}
func (e *StringLiteral) Pos() token.Position { return e.Token.Pos }
func (e *StringLiteral) String() string      { return `"` + e.Value + `"` }

// BoolLiteral is `true` or `false`.
type BoolLiteral struct {
	Token token.Token
	Value bool
}

func (e *BoolLiteral) expressionNode()     {}
func (e *BoolLiteral) Pos() token.Position { return e.Token.Pos }
func (e *BoolLiteral) String() string {
	if e.Value {
		return "true"
	}
	return "false"
}

// NullLiteral is `null`.
type NullLiteral struct{ Token token.Token }

func (e *NullLiteral) expressionNode()     {}
func (e *NullLiteral) Pos() token.Position { return e.Token.Pos }
func (e *NullLiteral) String() string      { return "null" }

// ListLiteral is `[a, b, c]`.
type ListLiteral struct {
	Token    token.Token
	Elements []Expression
}

func (e *ListLiteral) expressionNode()     {}
func (e *ListLiteral) Pos() token.Position { return e.Token.Pos }
func (e *ListLiteral) String() string {
	parts := make([]string, len(e.Elements))
	for i, el := range e.Elements {
		parts[i] = el.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ObjectEntry is one `key: value` pair of an object literal. Key is either
// an Ident (bareword key), a StringLiteral, or a bracketed computed
// Expression (Computed == true).
type ObjectEntry struct {
	Key      Expression
	Value    Expression
	Computed bool
}

// ObjectLiteral is `{ a: 1, "b": 2, [expr]: 3 }`.
type ObjectLiteral struct {
	Token   token.Token
	Entries []ObjectEntry
}

func (e *ObjectLiteral) expressionNode()     {}
func (e *ObjectLiteral) Pos() token.Position { return e.Token.Pos }
func (e *ObjectLiteral) String() string {
	parts := make([]string, len(e.Entries))
	for i, ent := range e.Entries {
		key := ent.Key.String()
		if ent.Computed {
			key = "[" + key + "]"
		}
		parts[i] = key + ": " + ent.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// FnLiteral is a function expression or the function-statement's tail:
// `fn NAME?(params) { body }`, `fn NAME?(params) => expr`, or — only valid
// as an expression, never as a statement — the no-parameter shorthand
// `fn { body }` / `fn => expr`. An `=> expr` body is sugar for
// `{ return expr; }`, folded in by the parser; Arrow records whether the
// source used the sugar. String() prints the desugared block either way.
type FnLiteral struct {
	Token      token.Token
	Name       *Ident // nil for an anonymous function expression
	Params     []*Ident
	HasParens  bool // false only for the no-parameter expression shorthand
	Body       *Block
	Arrow      bool
}

func (e *FnLiteral) expressionNode()     {}
func (e *FnLiteral) Pos() token.Position { return e.Token.Pos }
func (e *FnLiteral) String() string      { return "fn" + e.paramsAndBody() }

func (e *FnLiteral) paramsAndBody() string {
	var b bytes.Buffer
	if e.Name != nil {
		b.WriteString(" ")
		b.WriteString(e.Name.Name)
	}
	if e.HasParens {
		params := make([]string, len(e.Params))
		for i, p := range e.Params {
			params[i] = p.String()
		}
		b.WriteString("(" + strings.Join(params, ", ") + ")")
	}
	b.WriteString(" ")
	b.WriteString(e.Body.String())
	return b.String()
}

// Block is a brace-delimited statement sequence: a function body, or the
// body of an `if`/`else`/`while`/`loop`. It is not itself an expression —
// Regis has no tail-expression block value.
type Block struct {
	Token      token.Token
	Statements []Statement
}

func (b *Block) statementNode()      {}
func (b *Block) Pos() token.Position { return b.Token.Pos }
func (b *Block) String() string {
	var buf bytes.Buffer
	buf.WriteString("{ ")
	for _, s := range b.Statements {
		buf.WriteString(s.String())
		buf.WriteString(" ")
	}
	buf.WriteString("}")
	return buf.String()
}

// PrefixOp identifies a unary prefix operator.
type PrefixOp int

const (
	PrefixNeg PrefixOp = iota
	PrefixNot
	PrefixBitNot
)

// PrefixExpr is `-x`, `not x`, or `~x`.
type PrefixExpr struct {
	Token    token.Token
	Op       PrefixOp
	Operand  Expression
}

func (e *PrefixExpr) expressionNode()     {}
func (e *PrefixExpr) Pos() token.Position { return e.Token.Pos }
func (e *PrefixExpr) String() string {
	syms := map[PrefixOp]string{PrefixNeg: "-", PrefixNot: "not ", PrefixBitNot: "~"}
	return "(" + syms[e.Op] + e.Operand.String() + ")"
}

// InfixOp identifies a binary operator.
type InfixOp int

const (
	InfixAdd InfixOp = iota
	InfixSub
	InfixMul
	InfixDiv
	InfixBitAnd
	InfixBitOr
	InfixShl
	InfixShr
	InfixLt
	InfixGt
	InfixLe
	InfixGe
	InfixEq
	InfixNe
	InfixAnd // short-circuit
	InfixOr  // short-circuit
	InfixCoalesce
)

var infixSymbols = map[InfixOp]string{
	InfixAdd: "+", InfixSub: "-", InfixMul: "*", InfixDiv: "/",
	InfixBitAnd: "&", InfixBitOr: "|", InfixShl: "<<", InfixShr: ">>",
	InfixLt: "<", InfixGt: ">", InfixLe: "<=", InfixGe: ">=",
	InfixEq: "==", InfixNe: "!=", InfixAnd: "and", InfixOr: "or",
	InfixCoalesce: "??",
}

// InfixExpr is any binary operator expression, including the short-circuit
// `and`/`or` forms and the `??` null-coalescing operator.
type InfixExpr struct {
	Token token.Token
	Left  Expression
	Op    InfixOp
	Right Expression
}

func (e *InfixExpr) expressionNode()     {}
func (e *InfixExpr) Pos() token.Position { return e.Token.Pos }
func (e *InfixExpr) String() string {
	return "(" + e.Left.String() + " " + infixSymbols[e.Op] + " " + e.Right.String() + ")"
}

// CallExpr is `callee(args...)`.
type CallExpr struct {
	Token  token.Token
	Callee Expression
	Args   []Expression
}

func (e *CallExpr) expressionNode()     {}
func (e *CallExpr) Pos() token.Position { return e.Token.Pos }
func (e *CallExpr) String() string {
	parts := make([]string, len(e.Args))
	for i, a := range e.Args {
		parts[i] = a.String()
	}
	return e.Callee.String() + "(" + strings.Join(parts, ", ") + ")"
}

// IndexExpr is `target[index]`.
type IndexExpr struct {
	Token  token.Token
	Target Expression
	Index  Expression
}

func (e *IndexExpr) expressionNode()     {}
func (e *IndexExpr) Pos() token.Position { return e.Token.Pos }
func (e *IndexExpr) String() string {
	return e.Target.String() + "[" + e.Index.String() + "]"
}

// MemberExpr is `target.name`, sugar for indexing by a string key.
type MemberExpr struct {
	Token  token.Token
	Target Expression
	Name   string
}

func (e *MemberExpr) expressionNode()     {}
func (e *MemberExpr) Pos() token.Position { return e.Token.Pos }
func (e *MemberExpr) String() string      { return e.Target.String() + "." + e.Name }
