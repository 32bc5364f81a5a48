package lexer_test

import (
	"testing"

	"github.com/comfort-stereo/regis/internal/lexer"
	"github.com/comfort-stereo/regis/internal/token"
)

// tokenCase is a single expected token in a table-driven test.
type tokenCase struct {
	typ     token.Type
	literal string
}

// runTokenize lexes input and checks that it produces exactly the expected
// sequence (plus a final EOF).
func runTokenize(t *testing.T, name, input string, want []tokenCase) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		t.Helper()
		l := lexer.New("test.regis", input)
		toks, err := l.All()
		if err != nil {
			t.Fatalf("All() returned error: %v", err)
		}

		if len(toks) == 0 {
			t.Fatal("All returned empty slice")
		}
		last := toks[len(toks)-1]
		if last.Type != token.EOF {
			t.Errorf("last token is %s, want EOF", last.Type)
		}
		body := toks[:len(toks)-1]

		if len(body) != len(want) {
			t.Errorf("got %d tokens (excl. EOF), want %d", len(body), len(want))
			for i, tok := range body {
				t.Logf("  [%d] %s %q", i, tok.Type, tok.Literal)
			}
			return
		}
		for i, w := range want {
			got := body[i]
			if got.Type != w.typ {
				t.Errorf("token[%d]: type = %s, want %s (literal %q)", i, got.Type, w.typ, got.Literal)
			}
			if got.Literal != w.literal {
				t.Errorf("token[%d]: literal = %q, want %q", i, got.Literal, w.literal)
			}
		}
	})
}

func runIllegal(t *testing.T, name, input string) {
	t.Helper()
	t.Run(name, func(t *testing.T) {
		l := lexer.New("test.regis", input)
		_, err := l.All()
		if err == nil {
			t.Fatal("expected a LexError, got none")
		}
	})
}

// ---------------------------------------------------------------------------
// Single-character punctuation
// ---------------------------------------------------------------------------

func TestSingleCharTokens(t *testing.T) {
	cases := []struct {
		name string
		in   string
		typ  token.Type
	}{
		{"lparen", "(", token.LPAREN},
		{"rparen", ")", token.RPAREN},
		{"lbrace", "{", token.LBRACE},
		{"rbrace", "}", token.RBRACE},
		{"lbracket", "[", token.LBRACKET},
		{"rbracket", "]", token.RBRACKET},
		{"comma", ",", token.COMMA},
		{"semi", ";", token.SEMI},
		{"colon", ":", token.COLON},
		{"dot", ".", token.DOT},
		{"question", "?", token.QUESTION},
		{"plus", "+", token.PLUS},
		{"minus", "-", token.MINUS},
		{"star", "*", token.STAR},
		{"slash", "/", token.SLASH},
		{"amp", "&", token.AMP},
		{"pipe", "|", token.PIPE},
		{"tilde", "~", token.TILDE},
		{"lt", "<", token.LT},
		{"gt", ">", token.GT},
		{"assign", "=", token.ASSIGN},
	}
	for _, c := range cases {
		runTokenize(t, c.name, c.in, []tokenCase{{c.typ, c.in}})
	}
}

// ---------------------------------------------------------------------------
// Multi-character operators
// ---------------------------------------------------------------------------

func TestMultiCharOperators(t *testing.T) {
	runTokenize(t, "qq", "??", []tokenCase{{token.QQ, "??"}})
	runTokenize(t, "arrow", "=>", []tokenCase{{token.ARROW, "=>"}})
	runTokenize(t, "eq", "==", []tokenCase{{token.EQ, "=="}})
	runTokenize(t, "ne", "!=", []tokenCase{{token.NE, "!="}})
	runTokenize(t, "le", "<=", []tokenCase{{token.LE, "<="}})
	runTokenize(t, "ge", ">=", []tokenCase{{token.GE, ">="}})
	runTokenize(t, "shl", "<<", []tokenCase{{token.SHL, "<<"}})
	runTokenize(t, "shr", ">>", []tokenCase{{token.SHR, ">>"}})
}

func TestCompoundAssignment(t *testing.T) {
	runTokenize(t, "pluseq", "+=", []tokenCase{{token.PLUSEQ, "+="}})
	runTokenize(t, "minuseq", "-=", []tokenCase{{token.MINUSEQ, "-="}})
	runTokenize(t, "stareq", "*=", []tokenCase{{token.STAREQ, "*="}})
	runTokenize(t, "slasheq", "/=", []tokenCase{{token.SLASHEQ, "/="}})
}

// A bare '!' with no following '=' is not a valid token; only !=  is legal.
func TestBangAloneIsIllegal(t *testing.T) {
	runIllegal(t, "bang_alone", "!")
}

// ---------------------------------------------------------------------------
// Literals
// ---------------------------------------------------------------------------

func TestIntLiterals(t *testing.T) {
	runTokenize(t, "zero", "0", []tokenCase{{token.INT, "0"}})
	runTokenize(t, "multi", "42", []tokenCase{{token.INT, "42"}})
	runTokenize(t, "large", "1000000", []tokenCase{{token.INT, "1000000"}})
}

func TestFloatLiterals(t *testing.T) {
	runTokenize(t, "basic", "3.14", []tokenCase{{token.FLOAT, "3.14"}})
	runTokenize(t, "leading_zero", "0.5", []tokenCase{{token.FLOAT, "0.5"}})
	runTokenize(t, "trailing_digits", "10.025", []tokenCase{{token.FLOAT, "10.025"}})
}

func TestIntDotIsNotFloat(t *testing.T) {
	// "1.fn" - the dot is not the start of a float because 'f' is not a digit.
	runTokenize(t, "int_dot_kw", "1.fn", []tokenCase{
		{token.INT, "1"},
		{token.DOT, "."},
		{token.FN, "fn"},
	})
}

func TestDotNotFollowedByDigitIsMalformed(t *testing.T) {
	runIllegal(t, "trailing_dot", "1.")
}

func TestDigitsFollowedByIdentIsMalformed(t *testing.T) {
	runIllegal(t, "digits_then_ident", "1x")
}

func TestNegativeNumberIsMinusThenInt(t *testing.T) {
	// The lexer never produces negative literals; '-' is always its own token.
	runTokenize(t, "negative", "-42", []tokenCase{
		{token.MINUS, "-"},
		{token.INT, "42"},
	})
}

func TestStringLiterals(t *testing.T) {
	runTokenize(t, "empty", `""`, []tokenCase{{token.STRING, ""}})
	runTokenize(t, "hello", `"hello"`, []tokenCase{{token.STRING, "hello"}})
	runTokenize(t, "spaces", `"hello world"`, []tokenCase{{token.STRING, "hello world"}})
	runTokenize(t, "escape_n", `"line\nfeed"`, []tokenCase{{token.STRING, "line\nfeed"}})
	runTokenize(t, "escape_t", `"tab\there"`, []tokenCase{{token.STRING, "tab\there"}})
	runTokenize(t, "escape_r", `"cr\rhere"`, []tokenCase{{token.STRING, "cr\rhere"}})
	runTokenize(t, "escape_backslash", `"back\\slash"`, []tokenCase{{token.STRING, `back\slash`}})
	runTokenize(t, "escape_quote", `"say\"hi\""`, []tokenCase{{token.STRING, `say"hi"`}})
	runTokenize(t, "escape_zero", `"a\0b"`, []tokenCase{{token.STRING, "a\x00b"}})
}

func TestUnterminatedString(t *testing.T) {
	runIllegal(t, "unterminated", `"no closing`)
	runIllegal(t, "newline_in_string", "\"ab\ncd\"")
}

func TestInvalidEscapeSequence(t *testing.T) {
	runIllegal(t, "bad_escape", `"\q"`)
}

func TestBuiltinRefs(t *testing.T) {
	runTokenize(t, "print", "@print", []tokenCase{{token.BUILTIN, "print"}})
	runTokenize(t, "len", "@len(xs)", []tokenCase{
		{token.BUILTIN, "len"},
		{token.LPAREN, "("},
		{token.IDENT, "xs"},
		{token.RPAREN, ")"},
	})
}

func TestBareAtIsIllegal(t *testing.T) {
	runIllegal(t, "bare_at", "@")
	runIllegal(t, "at_digit", "@1")
}

// ---------------------------------------------------------------------------
// Identifiers and keywords
// ---------------------------------------------------------------------------

func TestIdentifiers(t *testing.T) {
	runTokenize(t, "simple", "foo", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "underscore_prefix", "_bar", []tokenCase{{token.IDENT, "_bar"}})
	runTokenize(t, "underscore_only", "_", []tokenCase{{token.IDENT, "_"}})
	runTokenize(t, "mixed_case", "myVar2", []tokenCase{{token.IDENT, "myVar2"}})
}

func TestKeywords(t *testing.T) {
	cases := []struct {
		kw  string
		typ token.Type
	}{
		{"let", token.LET},
		{"export", token.EXPORT},
		{"fn", token.FN},
		{"return", token.RETURN},
		{"if", token.IF},
		{"else", token.ELSE},
		{"while", token.WHILE},
		{"loop", token.LOOP},
		{"and", token.AND},
		{"or", token.OR},
		{"not", token.NOT},
		{"true", token.TRUE},
		{"false", token.FALSE},
		{"null", token.NULL},
	}
	for _, c := range cases {
		runTokenize(t, c.kw, c.kw, []tokenCase{{c.typ, c.kw}})
	}
}

// Prefix/suffix of a keyword should still lex as IDENT.
func TestKeywordPrefixIsIdent(t *testing.T) {
	runTokenize(t, "fn_suffix", "fnx", []tokenCase{{token.IDENT, "fnx"}})
	runTokenize(t, "let_suffix", "letx", []tokenCase{{token.IDENT, "letx"}})
	runTokenize(t, "loops_suffix", "loops", []tokenCase{{token.IDENT, "loops"}})
}

// ---------------------------------------------------------------------------
// Comments and whitespace
// ---------------------------------------------------------------------------

func TestLineComment(t *testing.T) {
	runTokenize(t, "comment_only", "# hello world", nil)
	runTokenize(t, "comment_then_code", "# comment\nfoo", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "comment_amid_code", "x # ignore this\ny", []tokenCase{
		{token.IDENT, "x"},
		{token.IDENT, "y"},
	})
}

func TestWhitespaceSkipping(t *testing.T) {
	runTokenize(t, "spaces", "   foo   ", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "tabs", "\t\tfoo\t\t", []tokenCase{{token.IDENT, "foo"}})
	runTokenize(t, "newlines", "\n\nfoo\n\n", []tokenCase{{token.IDENT, "foo"}})
}

func TestEmptyInput(t *testing.T) {
	runTokenize(t, "empty", "", nil)
}

func TestWhitespaceOnlyInput(t *testing.T) {
	runTokenize(t, "whitespace_only", "   \t\n  ", nil)
}

func TestMultipleCallsAfterEOF(t *testing.T) {
	t.Run("eof_idempotent", func(t *testing.T) {
		l := lexer.New("test.regis", "")
		for i := 0; i < 3; i++ {
			tok, err := l.Next()
			if err != nil {
				t.Fatalf("call %d: %v", i, err)
			}
			if tok.Type != token.EOF {
				t.Errorf("call %d: got %s, want EOF", i, tok.Type)
			}
		}
	})
}

func TestIllegalCharacter(t *testing.T) {
	runIllegal(t, "backtick", "`")
}

// ---------------------------------------------------------------------------
// Position tracking
// ---------------------------------------------------------------------------

func TestPositionTracking(t *testing.T) {
	l := lexer.New("src.regis", "foo\nbar")
	toks, err := l.All()
	if err != nil {
		t.Fatalf("All(): %v", err)
	}
	if len(toks) < 2 {
		t.Fatal("expected at least 2 tokens")
	}
	foo, bar := toks[0], toks[1]
	if foo.Pos.Line != 1 || foo.Pos.Column != 1 {
		t.Errorf("foo pos = %d:%d, want 1:1", foo.Pos.Line, foo.Pos.Column)
	}
	if bar.Pos.Line != 2 || bar.Pos.Column != 1 {
		t.Errorf("bar pos = %d:%d, want 2:1", bar.Pos.Line, bar.Pos.Column)
	}
	if foo.Pos.File != "src.regis" {
		t.Errorf("file = %q, want src.regis", foo.Pos.File)
	}
}

// ---------------------------------------------------------------------------
// Compound expressions
// ---------------------------------------------------------------------------

func TestLetStatement(t *testing.T) {
	runTokenize(t, "let_stmt", `let x = 42;`, []tokenCase{
		{token.LET, "let"},
		{token.IDENT, "x"},
		{token.ASSIGN, "="},
		{token.INT, "42"},
		{token.SEMI, ";"},
	})
}

func TestFunctionLiteral(t *testing.T) {
	input := `fn(x, y) => x + y`
	runTokenize(t, "fn_literal", input, []tokenCase{
		{token.FN, "fn"},
		{token.LPAREN, "("},
		{token.IDENT, "x"},
		{token.COMMA, ","},
		{token.IDENT, "y"},
		{token.RPAREN, ")"},
		{token.ARROW, "=>"},
		{token.IDENT, "x"},
		{token.PLUS, "+"},
		{token.IDENT, "y"},
	})
}

func TestIndexExpression(t *testing.T) {
	input := `xs[0]`
	runTokenize(t, "index_expr", input, []tokenCase{
		{token.IDENT, "xs"},
		{token.LBRACKET, "["},
		{token.INT, "0"},
		{token.RBRACKET, "]"},
	})
}

func TestMemberExpression(t *testing.T) {
	input := `obj.field`
	runTokenize(t, "member_expr", input, []tokenCase{
		{token.IDENT, "obj"},
		{token.DOT, "."},
		{token.IDENT, "field"},
	})
}

func TestCoalesceOperator(t *testing.T) {
	input := `a ?? b`
	runTokenize(t, "coalesce", input, []tokenCase{
		{token.IDENT, "a"},
		{token.QQ, "??"},
		{token.IDENT, "b"},
	})
}

func TestComparisonChain(t *testing.T) {
	input := `a == b != c < d > e <= f >= g`
	runTokenize(t, "comparison_chain", input, []tokenCase{
		{token.IDENT, "a"},
		{token.EQ, "=="},
		{token.IDENT, "b"},
		{token.NE, "!="},
		{token.IDENT, "c"},
		{token.LT, "<"},
		{token.IDENT, "d"},
		{token.GT, ">"},
		{token.IDENT, "e"},
		{token.LE, "<="},
		{token.IDENT, "f"},
		{token.GE, ">="},
		{token.IDENT, "g"},
	})
}

func TestComplexProgram(t *testing.T) {
	input := `
export let add = fn(a, b) => a + b;

let main = fn() {
	let total = add(1, 2);
	@println(total);
	return total;
};
`
	runTokenize(t, "complex_program", input, []tokenCase{
		{token.EXPORT, "export"},
		{token.LET, "let"},
		{token.IDENT, "add"},
		{token.ASSIGN, "="},
		{token.FN, "fn"},
		{token.LPAREN, "("},
		{token.IDENT, "a"},
		{token.COMMA, ","},
		{token.IDENT, "b"},
		{token.RPAREN, ")"},
		{token.ARROW, "=>"},
		{token.IDENT, "a"},
		{token.PLUS, "+"},
		{token.IDENT, "b"},
		{token.SEMI, ";"},

		{token.LET, "let"},
		{token.IDENT, "main"},
		{token.ASSIGN, "="},
		{token.FN, "fn"},
		{token.LPAREN, "("},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.LET, "let"},
		{token.IDENT, "total"},
		{token.ASSIGN, "="},
		{token.IDENT, "add"},
		{token.LPAREN, "("},
		{token.INT, "1"},
		{token.COMMA, ","},
		{token.INT, "2"},
		{token.RPAREN, ")"},
		{token.SEMI, ";"},
		{token.BUILTIN, "println"},
		{token.LPAREN, "("},
		{token.IDENT, "total"},
		{token.RPAREN, ")"},
		{token.SEMI, ";"},
		{token.RETURN, "return"},
		{token.IDENT, "total"},
		{token.SEMI, ";"},
		{token.RBRACE, "}"},
		{token.SEMI, ";"},
	})
}
