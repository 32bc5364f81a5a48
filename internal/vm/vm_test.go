package vm

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comfort-stereo/regis/internal/compiler"
	"github.com/comfort-stereo/regis/internal/parser"
	"github.com/comfort-stereo/regis/internal/value"
)

func runExports(t *testing.T, src string) *value.Object {
	t.Helper()
	prog, err := parser.Parse("test.regis", src)
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	exports := value.NewObject().AsObject()
	m := New()
	_, err = m.RunExports(context.Background(), chunk, exports)
	require.NoError(t, err, "run error")
	return exports
}

func runStdout(t *testing.T, src string) string {
	t.Helper()
	prog, err := parser.Parse("test.regis", src)
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	var buf bytes.Buffer
	m := New(WithStdout(&buf))
	_, err = m.Run(context.Background(), chunk)
	require.NoError(t, err, "run error")
	return buf.String()
}

func TestClosureSharesVariableAcrossCalls(t *testing.T) {
	exports := runExports(t, `
		export let x = 0;
		fn inc() { x = x + 1; }
		inc();
		inc();
	`)
	got, ok := exports.Get(value.Str("x"))
	require.True(t, ok, "expected exported x")
	assert.Equal(t, value.KindInt, got.Kind())
	assert.Equal(t, int64(2), got.AsInt())
}

func TestListsShareIdentity(t *testing.T) {
	exports := runExports(t, `
		export let a = [1, 2];
		let b = a;
		b << 3;
	`)
	got, _ := exports.Get(value.Str("a"))
	assert.Equal(t, "[1, 2, 3]", value.Render(got))
}

func TestObjectAddMerges(t *testing.T) {
	exports := runExports(t, `
		export let m = {a: 1} + {b: 2};
	`)
	got, _ := exports.Get(value.Str("m"))
	assert.Equal(t, "{ a: 1, b: 2 }", value.Render(got))
}

func TestStringIndexing(t *testing.T) {
	out := runStdout(t, `@print("hello"[1]);`)
	assert.Equal(t, "e", out)
}

func TestShlSharesShiftAndAppend(t *testing.T) {
	out := runStdout(t, `@println(1 << 3); @println([1] << 2);`)
	assert.Equal(t, "8\n[1, 2]\n", out)
}

func TestIntDivisionByZeroIsError(t *testing.T) {
	prog, err := parser.Parse("test.regis", "1 / 0;")
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	_, err = New().Run(context.Background(), chunk)
	require.Error(t, err, "expected a ZeroDivisionError")
	assert.IsType(t, &ZeroDivisionError{}, err)
}

func TestUndefinedGlobalReadIsNameError(t *testing.T) {
	prog, err := parser.Parse("test.regis", "undefined_name;")
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	_, err = New().Run(context.Background(), chunk)
	assert.IsType(t, &NameError{}, err)
}

func TestArityMismatchIsArityError(t *testing.T) {
	prog, err := parser.Parse("test.regis", `
		fn add(a, b) { return a + b; }
		add(1);
	`)
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	_, err = New().Run(context.Background(), chunk)
	assert.IsType(t, &ArityError{}, err)
}

func TestFibonacciRecursion(t *testing.T) {
	out := runStdout(t, `
		fn fib(n) {
			if n < 2 {
				return n;
			}
			return fib(n - 1) + fib(n - 2);
		}
		@println(fib(10));
	`)
	assert.Equal(t, "55\n", out)
}

func TestClosureAliasingBetweenDistinctClosures(t *testing.T) {
	out := runStdout(t, `
		let counter = 0;
		fn makeSetter() {
			fn set(v) {
				counter = v;
			}
			return set;
		}
		fn makeGetter() {
			fn get() {
				return counter;
			}
			return get;
		}
		let setter = makeSetter();
		let getter = makeGetter();
		@println(getter());
		setter(5);
		@println(getter());
	`)
	assert.Equal(t, "0\n5\n", out)
}

func TestCounterIncrementsThroughClosure(t *testing.T) {
	out := runStdout(t, `
		let n = 0;
		fn inc() { n += 1; }
		inc();
		inc();
		inc();
		@println(n);
	`)
	assert.Equal(t, "3\n", out)
}

func TestListAppendThroughSharedIdentity(t *testing.T) {
	out := runStdout(t, `
		let a = [1, 2];
		let b = a;
		b << 3;
		@println(a);
	`)
	assert.Equal(t, "[1, 2, 3]\n", out)
}

func TestObjectMergeShadowsAndKeepsInsertionOrder(t *testing.T) {
	out := runStdout(t, `@println({a: 1, b: 2} + {b: 3, c: 4});`)
	assert.Equal(t, "{ a: 1, b: 3, c: 4 }\n", out)
}

func TestStringIndexOutOfRangeIsNull(t *testing.T) {
	out := runStdout(t, `
		@println("abc"[1]);
		@println("abc"[-1]);
		@println("abc"[3]);
	`)
	assert.Equal(t, "b\nnull\nnull\n", out)
}

func TestOperatorPrecedence(t *testing.T) {
	out := runStdout(t, `
		@println(1 + 2 * 3 == 7);
		@println(not 0 == true);
		@println(1 << 2 + 3 == 1 << 5);
	`)
	assert.Equal(t, "true\ntrue\ntrue\n", out)
}

func TestShortCircuitSkipsRightOperand(t *testing.T) {
	out := runStdout(t, `
		let calls = [];
		fn effect(tag, result) {
			calls << tag;
			return result;
		}
		1 or effect("a", 1);
		0 and effect("b", 1);
		1 ?? effect("c", 1);
		0 or effect("d", 1);
		null ?? effect("e", 1);
		@println(calls);
	`)
	assert.Equal(t, "[d, e]\n", out)
}

func TestAggregateEqualityIsByIdentity(t *testing.T) {
	out := runStdout(t, `
		let a = [];
		@println(a == a);
		@println([] == []);
	`)
	assert.Equal(t, "true\nfalse\n", out)
}

func TestLoopStatementRunsUntilReturn(t *testing.T) {
	out := runStdout(t, `
		fn count(n) {
			let i = 0;
			loop {
				if i == n {
					return i;
				}
				i += 1;
			}
		}
		@println(count(5));
	`)
	assert.Equal(t, "5\n", out)
}

func TestCompoundAssignOnMemberTarget(t *testing.T) {
	out := runStdout(t, `
		let o = {n: 1};
		o.n += 2;
		@println(o.n);
	`)
	assert.Equal(t, "3\n", out)
}

func TestGameOfLifeBlinkerStep(t *testing.T) {
	// A horizontal blinker flips to a vertical one under B3/S23. Neighbor
	// reads off the top/bottom fall back to an absent row (?? []) and reads
	// off the left/right to an absent cell (?? 0), so no index ever faults.
	out := runStdout(t, `
		fn neighbors(grid, r, c) {
			let count = 0;
			let dr = -1;
			while dr <= 1 {
				let dc = -1;
				while dc <= 1 {
					if not (dr == 0 and dc == 0) {
						let row = grid[r + dr] ?? [];
						count += row[c + dc] ?? 0;
					}
					dc += 1;
				}
				dr += 1;
			}
			return count;
		}
		fn step(grid) {
			let next = [];
			let r = 0;
			while r < @len(grid) {
				let row = [];
				let c = 0;
				while c < @len(grid[r]) {
					let n = neighbors(grid, r, c);
					if grid[r][c] == 1 and (n == 2 or n == 3) {
						row << 1;
					} else if grid[r][c] == 0 and n == 3 {
						row << 1;
					} else {
						row << 0;
					}
					c += 1;
				}
				next << row;
				r += 1;
			}
			return next;
		}
		@println(step([[0, 0, 0], [1, 1, 1], [0, 0, 0]]));
	`)
	assert.Equal(t, "[[0, 1, 0], [0, 1, 0], [0, 1, 0]]\n", out)
}

func TestHaltOnCanceledContext(t *testing.T) {
	prog, err := parser.Parse("test.regis", "loop { }")
	require.NoError(t, err, "parse error")
	chunk, err := compiler.Compile(prog, "test.regis")
	require.NoError(t, err, "compile error")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = New().Run(ctx, chunk)
	assert.IsType(t, &VMHalt{}, err)
}

func TestNestedClosuresCaptureThroughTwoLevels(t *testing.T) {
	out := runStdout(t, `
		fn makeAdder(x) {
			fn adder(y) {
				fn inner(z) {
					return x + y + z;
				}
				return inner;
			}
			return adder;
		}
		@println(makeAdder(1)(2)(3));
	`)
	assert.Equal(t, "6\n", out)
}
