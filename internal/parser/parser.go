// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package parser implements a recursive-descent statement grammar with a
// Pratt expression parser on top, producing an internal/ast tree.
//
// The parser fails fast: the first ParseError aborts the parse rather than
// collecting errors and resynchronizing at statement boundaries. A
// partially-parsed program is never handed to the compiler.
package parser

import (
	"fmt"
	"strconv"

	"github.com/comfort-stereo/regis/internal/ast"
	"github.com/comfort-stereo/regis/internal/lexer"
	"github.com/comfort-stereo/regis/internal/token"
)

// ParseError reports a syntax error at a source position.
type ParseError struct {
	Pos token.Position
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// precedence levels, lowest to tightest-binding.
type precedence int

const (
	lowest precedence = iota
	precOr
	precAnd
	precEquality
	precRelational
	precShift
	precBitOr
	precBitAnd
	precAddSub
	precMulDiv
	precCoalesce
	precPrefix
	precCall
)

var precedences = map[token.Type]precedence{
	token.OR:      precOr,
	token.AND:     precAnd,
	token.EQ:      precEquality,
	token.NE:      precEquality,
	token.LT:      precRelational,
	token.GT:      precRelational,
	token.LE:      precRelational,
	token.GE:      precRelational,
	token.SHL:     precShift,
	token.SHR:     precShift,
	token.PIPE:    precBitOr,
	token.AMP:     precBitAnd,
	token.PLUS:    precAddSub,
	token.MINUS:   precAddSub,
	token.STAR:    precMulDiv,
	token.SLASH:   precMulDiv,
	token.QQ:      precCoalesce,
	token.LPAREN:  precCall,
	token.LBRACKET: precCall,
	token.DOT:     precCall,
}

var infixOps = map[token.Type]ast.InfixOp{
	token.PLUS: ast.InfixAdd, token.MINUS: ast.InfixSub,
	token.STAR: ast.InfixMul, token.SLASH: ast.InfixDiv,
	token.AMP: ast.InfixBitAnd, token.PIPE: ast.InfixBitOr,
	token.SHL: ast.InfixShl, token.SHR: ast.InfixShr,
	token.LT: ast.InfixLt, token.GT: ast.InfixGt,
	token.LE: ast.InfixLe, token.GE: ast.InfixGe,
	token.EQ: ast.InfixEq, token.NE: ast.InfixNe,
	token.AND: ast.InfixAnd, token.OR: ast.InfixOr,
	token.QQ: ast.InfixCoalesce,
}

var assignOps = map[token.Type]ast.AssignOp{
	token.ASSIGN:  ast.AssignSet,
	token.PLUSEQ:  ast.AssignAdd,
	token.MINUSEQ: ast.AssignSub,
	token.STAREQ:  ast.AssignMul,
	token.SLASHEQ: ast.AssignDiv,
}

// Parser holds the state for a single parse.
type Parser struct {
	lex *lexer.Lexer

	cur  token.Token
	peek token.Token
}

// New creates a Parser over the given lexer, priming the two-token lookahead.
func New(lex *lexer.Lexer) (*Parser, error) {
	p := &Parser{lex: lex}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parser) advance() error {
	p.cur = p.peek
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) curIs(t token.Type) bool  { return p.cur.Type == t }
func (p *Parser) peekIs(t token.Type) bool { return p.peek.Type == t }

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if !p.curIs(t) {
		return token.Token{}, &ParseError{Pos: p.cur.Pos, Msg: fmt.Sprintf("expected %s, got %s %q", t, p.cur.Type, p.cur.Literal)}
	}
	tok := p.cur
	if err := p.advance(); err != nil {
		return token.Token{}, err
	}
	return tok, nil
}

func (p *Parser) peekPrecedence() precedence {
	if pr, ok := precedences[p.peek.Type]; ok {
		return pr
	}
	return lowest
}

// Parse parses a whole program. It stops at the first ParseError.
func Parse(filename, src string) (*ast.Program, error) {
	p, err := New(lexer.New(filename, src))
	if err != nil {
		return nil, err
	}
	return p.ParseProgram()
}

// ParseProgram parses the whole token stream into a Program.
func (p *Parser) ParseProgram() (*ast.Program, error) {
	prog := &ast.Program{}
	for !p.curIs(token.EOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		prog.Statements = append(prog.Statements, stmt)
	}
	return prog, nil
}

func (p *Parser) parseStatement() (ast.Statement, error) {
	switch p.cur.Type {
	case token.LET:
		return p.parseLetStmt(false)
	case token.EXPORT:
		return p.parseExportStmt()
	case token.FN:
		return p.parseFnStmt(false)
	case token.RETURN:
		return p.parseReturnStmt()
	case token.WHILE:
		return p.parseWhileStmt()
	case token.LOOP:
		return p.parseLoopStmt()
	case token.IF:
		return p.parseIfStmt()
	default:
		return p.parseExprOrAssignStmt()
	}
}

func (p *Parser) parseExportStmt() (ast.Statement, error) {
	if p.peekIs(token.LET) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseLetStmt(true)
	}
	if p.peekIs(token.FN) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseFnStmt(true)
	}
	return nil, &ParseError{Pos: p.cur.Pos, Msg: "expected 'let' or 'fn' after 'export'"}
}

func (p *Parser) parseLetStmt(export bool) (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume 'let'
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.ASSIGN); err != nil {
		return nil, err
	}
	value, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.LetStmt{
		Token:  tok,
		Name:   &ast.Ident{Token: nameTok, Name: nameTok.Literal},
		Value:  value,
		Export: export,
	}, nil
}

func (p *Parser) parseFnStmt(export bool) (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume 'fn'
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	name := &ast.Ident{Token: nameTok, Name: nameTok.Literal}
	// The statement form always requires an explicit parameter list; the
	// no-parameter shorthand is only valid for the expression form.
	fn, err := p.parseFnLiteralTail(tok, name, true, true)
	if err != nil {
		return nil, err
	}
	return &ast.FnStmt{
		Token:  tok,
		Name:   name,
		Fn:     fn,
		Export: export,
	}, nil
}

func (p *Parser) parseReturnStmt() (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.curIs(token.SEMI) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.ReturnStmt{Token: tok}, nil
	}
	value, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ReturnStmt{Token: tok, Value: value}, nil
}

func (p *Parser) parseWhileStmt() (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.WhileStmt{Token: tok, Condition: cond, Body: body}, nil
}

func (p *Parser) parseIfStmt() (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume 'if'
		return nil, err
	}
	cond, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	cons, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	stmt := &ast.IfStmt{Token: tok, Condition: cond, Consequence: cons}
	if p.curIs(token.ELSE) {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.curIs(token.IF) {
			alt, err := p.parseIfStmt()
			if err != nil {
				return nil, err
			}
			stmt.Alternative = alt
		} else {
			alt, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			stmt.Alternative = alt
		}
	}
	return stmt, nil
}

func (p *Parser) parseLoopStmt() (ast.Statement, error) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.LoopStmt{Token: tok, Body: body}, nil
}

func (p *Parser) parseExprOrAssignStmt() (ast.Statement, error) {
	tok := p.cur
	expr, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if op, ok := assignOps[p.cur.Type]; ok {
		switch expr.(type) {
		case *ast.Ident, *ast.IndexExpr, *ast.MemberExpr:
		default:
			return nil, &ParseError{Pos: tok.Pos, Msg: "invalid assignment target"}
		}
		if err := p.advance(); err != nil { // consume the assignment operator
			return nil, err
		}
		value, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.SEMI); err != nil {
			return nil, err
		}
		return &ast.AssignStmt{Token: tok, Target: expr, Op: op, Value: value}, nil
	}
	if _, err := p.expect(token.SEMI); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Token: tok, Expr: expr}, nil
}

// parseBlock parses `{ stmt* }`. Regis blocks have no tail-expression
// value; every statement inside, including the last, ends with its own
// terminator.
func (p *Parser) parseBlock() (*ast.Block, error) {
	tok, err := p.expect(token.LBRACE)
	if err != nil {
		return nil, err
	}
	block := &ast.Block{Token: tok}
	for !p.curIs(token.RBRACE) {
		if p.curIs(token.EOF) {
			return nil, &ParseError{Pos: p.cur.Pos, Msg: "unexpected end of input, expected '}'"}
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		block.Statements = append(block.Statements, stmt)
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return block, nil
}

// ---- Pratt expression parsing ----

func (p *Parser) parseExpression(prec precedence) (ast.Expression, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}
	for !p.curIs(token.SEMI) && prec < p.curPrecedence() {
		left, err = p.parseInfix(left)
		if err != nil {
			return nil, err
		}
	}
	return left, nil
}

func (p *Parser) curPrecedence() precedence {
	if pr, ok := precedences[p.cur.Type]; ok {
		return pr
	}
	return lowest
}

func (p *Parser) parsePrefix() (ast.Expression, error) {
	tok := p.cur
	switch tok.Type {
	case token.IDENT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.Ident{Token: tok, Name: tok.Literal}, nil

	case token.BUILTIN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parsePostfix(&ast.BuiltinRef{Token: tok, Name: tok.Literal})

	case token.INT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseInt(tok.Literal, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid integer literal %q", tok.Literal)}
		}
		return &ast.IntLiteral{Token: tok, Value: v}, nil

	case token.FLOAT:
		if err := p.advance(); err != nil {
			return nil, err
		}
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("invalid float literal %q", tok.Literal)}
		}
		return &ast.FloatLiteral{Token: tok, Value: v}, nil

	case token.STRING:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.StringLiteral{Token: tok, Value: tok.Literal}, nil

	case token.TRUE, token.FALSE:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.BoolLiteral{Token: tok, Value: tok.Type == token.TRUE}, nil

	case token.NULL:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &ast.NullLiteral{Token: tok}, nil

	case token.MINUS:
		return p.parsePrefixOp(ast.PrefixNeg)
	case token.TILDE:
		return p.parsePrefixOp(ast.PrefixBitNot)
	case token.NOT:
		return p.parsePrefixOp(ast.PrefixNot)

	case token.LPAREN:
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return p.parsePostfix(expr)

	case token.LBRACKET:
		return p.parseListLiteral()

	case token.LBRACE:
		return p.parseObjectLiteral()

	case token.FN:
		return p.parseFnExpr()
	}

	return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected token %s %q", tok.Type, tok.Literal)}
}

func (p *Parser) parsePrefixOp(op ast.PrefixOp) (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	operand, err := p.parseExpression(precPrefix)
	if err != nil {
		return nil, err
	}
	return &ast.PrefixExpr{Token: tok, Op: op, Operand: operand}, nil
}

func (p *Parser) parseInfix(left ast.Expression) (ast.Expression, error) {
	tok := p.cur
	switch tok.Type {
	case token.LPAREN:
		return p.parseCall(left)
	case token.LBRACKET:
		return p.parseIndex(left)
	case token.DOT:
		return p.parseMember(left)
	}

	op, ok := infixOps[tok.Type]
	if !ok {
		return nil, &ParseError{Pos: tok.Pos, Msg: fmt.Sprintf("unexpected infix token %s", tok.Type)}
	}
	prec := p.curPrecedence()
	if err := p.advance(); err != nil {
		return nil, err
	}
	right, err := p.parseExpression(prec)
	if err != nil {
		return nil, err
	}
	return &ast.InfixExpr{Token: tok, Left: left, Op: op, Right: right}, nil
}

// parsePostfix handles the call/index/member chain directly after a
// primary expression, used where parseExpression's normal infix loop
// hasn't started yet (e.g. right after a parenthesized expression).
func (p *Parser) parsePostfix(expr ast.Expression) (ast.Expression, error) {
	for {
		switch p.cur.Type {
		case token.LPAREN:
			var err error
			expr, err = p.parseCall(expr)
			if err != nil {
				return nil, err
			}
		case token.LBRACKET:
			var err error
			expr, err = p.parseIndex(expr)
			if err != nil {
				return nil, err
			}
		case token.DOT:
			var err error
			expr, err = p.parseMember(expr)
			if err != nil {
				return nil, err
			}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parseCall(callee ast.Expression) (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume '('
		return nil, err
	}
	var args []ast.Expression
	for !p.curIs(token.RPAREN) {
		arg, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.curIs(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.CallExpr{Token: tok, Callee: callee, Args: args}, nil
}

func (p *Parser) parseIndex(target ast.Expression) (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	idx, err := p.parseExpression(lowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.IndexExpr{Token: tok, Target: target, Index: idx}, nil
}

func (p *Parser) parseMember(target ast.Expression) (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume '.'
		return nil, err
	}
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	return &ast.MemberExpr{Token: tok, Target: target, Name: nameTok.Literal}, nil
}

func (p *Parser) parseListLiteral() (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume '['
		return nil, err
	}
	list := &ast.ListLiteral{Token: tok}
	for !p.curIs(token.RBRACKET) {
		el, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		list.Elements = append(list.Elements, el)
		if p.curIs(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return p.parsePostfix(list)
}

func (p *Parser) parseObjectLiteral() (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume '{'
		return nil, err
	}
	obj := &ast.ObjectLiteral{Token: tok}
	for !p.curIs(token.RBRACE) {
		entry, err := p.parseObjectEntry()
		if err != nil {
			return nil, err
		}
		obj.Entries = append(obj.Entries, entry)
		if p.curIs(token.COMMA) {
			if err := p.advance(); err != nil {
				return nil, err
			}
		} else {
			break
		}
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return p.parsePostfix(obj)
}

func (p *Parser) parseObjectEntry() (ast.ObjectEntry, error) {
	switch p.cur.Type {
	case token.LBRACKET:
		if err := p.advance(); err != nil {
			return ast.ObjectEntry{}, err
		}
		keyExpr, err := p.parseExpression(lowest)
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		if _, err := p.expect(token.RBRACKET); err != nil {
			return ast.ObjectEntry{}, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return ast.ObjectEntry{}, err
		}
		value, err := p.parseExpression(lowest)
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		return ast.ObjectEntry{Key: keyExpr, Value: value, Computed: true}, nil

	case token.STRING:
		keyTok := p.cur
		if err := p.advance(); err != nil {
			return ast.ObjectEntry{}, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return ast.ObjectEntry{}, err
		}
		value, err := p.parseExpression(lowest)
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		return ast.ObjectEntry{Key: &ast.StringLiteral{Token: keyTok, Value: keyTok.Literal}, Value: value}, nil

	case token.IDENT:
		keyTok := p.cur
		if err := p.advance(); err != nil {
			return ast.ObjectEntry{}, err
		}
		if _, err := p.expect(token.COLON); err != nil {
			return ast.ObjectEntry{}, err
		}
		value, err := p.parseExpression(lowest)
		if err != nil {
			return ast.ObjectEntry{}, err
		}
		return ast.ObjectEntry{Key: &ast.Ident{Token: keyTok, Name: keyTok.Literal}, Value: value}, nil
	}
	return ast.ObjectEntry{}, &ParseError{Pos: p.cur.Pos, Msg: "expected object key (identifier, string, or '[' computed key ']')"}
}

// parseFnExpr parses a function expression: `fn NAME?(params) { body }`,
// `fn NAME?(params) => expr`, or — only here, never in statement position —
// the no-parameter shorthand `fn { body }` / `fn => expr`.
func (p *Parser) parseFnExpr() (ast.Expression, error) {
	tok := p.cur
	if err := p.advance(); err != nil { // consume 'fn'
		return nil, err
	}
	var name *ast.Ident
	if p.curIs(token.IDENT) {
		nameTok := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		name = &ast.Ident{Token: nameTok, Name: nameTok.Literal}
	}
	return p.parseFnLiteralTail(tok, name, false, false)
}

// parseFnLiteralTail parses the `(params)? ({ body } | => expr)` tail
// shared by function statements and function expressions. requireParens
// forbids the no-parameter shorthand (mandatory in statement position);
// requireSemiAfterArrow consumes a trailing `;` after an `=> expr` body,
// required only for the statement form's arrow sugar.
func (p *Parser) parseFnLiteralTail(tok token.Token, name *ast.Ident, requireParens, requireSemiAfterArrow bool) (*ast.FnLiteral, error) {
	fn := &ast.FnLiteral{Token: tok, Name: name}
	if requireParens || p.curIs(token.LPAREN) {
		if _, err := p.expect(token.LPAREN); err != nil {
			return nil, err
		}
		fn.HasParens = true
		for !p.curIs(token.RPAREN) {
			nameTok, err := p.expect(token.IDENT)
			if err != nil {
				return nil, err
			}
			fn.Params = append(fn.Params, &ast.Ident{Token: nameTok, Name: nameTok.Literal})
			if p.curIs(token.COMMA) {
				if err := p.advance(); err != nil {
					return nil, err
				}
			} else {
				break
			}
		}
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
	}

	if p.curIs(token.ARROW) {
		arrowTok := p.cur
		if err := p.advance(); err != nil { // consume '=>'
			return nil, err
		}
		expr, err := p.parseExpression(lowest)
		if err != nil {
			return nil, err
		}
		fn.Arrow = true
		fn.Body = &ast.Block{
			Token:      arrowTok,
			Statements: []ast.Statement{&ast.ReturnStmt{Token: arrowTok, Value: expr}},
		}
		if requireSemiAfterArrow {
			if _, err := p.expect(token.SEMI); err != nil {
				return nil, err
			}
		}
		return fn, nil
	}

	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	fn.Body = body
	return fn, nil
}
