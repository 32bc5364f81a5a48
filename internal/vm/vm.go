// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package vm implements the Regis bytecode interpreter: a stack-based
// fetch-decode-dispatch loop operating over fixed-size stack/frame arrays so
// that open upvalue cells can hold raw pointers into live locals without
// risking invalidation from a slice reallocation.
package vm

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/comfort-stereo/regis/internal/compiler"
	"github.com/comfort-stereo/regis/internal/token"
	"github.com/comfort-stereo/regis/internal/value"
)

// logger emits structured Debug/Warn diagnostics about VM execution —
// frame-level tracing and fault reporting — never the script's own
// @print/@println output, which always goes through vm.stdout instead.
var logger = log.New("pkg", "vm")

const (
	// MaxStack bounds the value stack: closures plus their locals plus
	// whatever operand-evaluation temporaries are live at once, summed
	// across every active frame.
	MaxStack = 1 << 16
	// MaxFrames bounds call depth.
	MaxFrames = 1 << 10
)

// Importer resolves `@import(path)` to the exports Object of the named
// module. internal/module implements this; the VM only depends on the
// interface, the same way risor's VM takes an injected module loader rather
// than importing its own module package.
type Importer interface {
	Import(path string) (value.Value, error)
}

// Sleeper performs `@sleep(seconds)`. The default wraps time.Sleep; tests may
// substitute a fake that just records the requested duration.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// VM is one bytecode interpreter instance. It is not safe for concurrent use.
type VM struct {
	stack [MaxStack]value.Value
	sp    int

	frames [MaxFrames]frame
	fp     int

	globals map[string]value.Value

	stdout   io.Writer
	importer Importer
	sleeper  Sleeper

	builtins [len(compiler.BuiltinNames)]value.Value
}

type frame struct {
	fn           *value.Function
	ip           int
	base         int // index of the closure itself in vm.stack; locals occupy stack[base+1:base+1+NumLocals]
	openUpvalues map[int]*value.Upvalue
}

// Option configures a VM at construction time.
type Option func(*VM)

// WithStdout overrides the destination for `@print`/`@println`.
func WithStdout(w io.Writer) Option { return func(vm *VM) { vm.stdout = w } }

// WithImporter wires a module loader for `@import`.
func WithImporter(i Importer) Option { return func(vm *VM) { vm.importer = i } }

// WithSleeper overrides the `@sleep` implementation (for tests).
func WithSleeper(s Sleeper) Option { return func(vm *VM) { vm.sleeper = s } }

// New builds a VM with empty globals and the default stdout/sleeper.
func New(opts ...Option) *VM {
	vm := &VM{
		globals: make(map[string]value.Value),
		stdout:  io.Discard,
		sleeper: realSleeper{},
	}
	for i, name := range compiler.BuiltinNames {
		vm.builtins[i] = value.FromFunction(&value.Function{Name: name})
	}
	for _, opt := range opts {
		opt(vm)
	}
	logger.Debug("vm initialized", "maxStack", MaxStack, "maxFrames", MaxFrames)
	return vm
}

// Globals exposes the VM's global table, primarily so a REPL can inspect or
// seed it between top-level evaluations.
func (vm *VM) Globals() map[string]value.Value { return vm.globals }

// Run executes chunk as the program's top-level function (a zero-argument
// closure with no captured upvalues) and returns the chunk's return value:
// Null for a chunk from compiler.Compile, or the trailing expression's
// value for a chunk from compiler.CompileInteractive.
func (vm *VM) Run(ctx context.Context, chunk *value.Chunk) (value.Value, error) {
	return vm.RunExports(ctx, chunk, nil)
}

// RunExports runs chunk, routing any `export` statements it contains into
// exports (if non-nil) via OP_EXPORT_SET — used by internal/module to
// populate a module record's exports Object while running its top-level
// code.
func (vm *VM) RunExports(ctx context.Context, chunk *value.Chunk, exports *value.Object) (value.Value, error) {
	fn := &value.Function{Chunk: chunk, Name: chunk.Name}
	return vm.callExported(ctx, fn, nil, exports)
}

// Call invokes fn with args from Go code (used by built-ins that accept
// callbacks, were any added; currently unused internally but kept as the
// supported embedding entry point alongside Run).
func (vm *VM) Call(ctx context.Context, fn *value.Function, args []value.Value) (value.Value, error) {
	return vm.callExported(ctx, fn, args, nil)
}

func (vm *VM) callExported(ctx context.Context, fn *value.Function, args []value.Value, exports *value.Object) (value.Value, error) {
	baseFp := vm.fp
	baseSp := vm.sp
	if err := vm.pushCall(fn, args); err != nil {
		return value.Null, err
	}
	result, err := vm.run(ctx, baseFp, exports)
	if err != nil {
		vm.fp = baseFp
		vm.sp = baseSp
		return value.Null, err
	}
	return result, nil
}

// pushCall lays out a call's arguments and reserves the rest of the callee's
// local-slot region, then pushes its frame. The caller is responsible for
// having already evaluated fn and args onto the stack in the OpCall path;
// for a Go-side call (Run/Call), this pushes them itself.
func (vm *VM) pushCall(fn *value.Function, args []value.Value) error {
	if fn.Chunk.NumParams != len(args) {
		return &ArityError{Name: displayName(fn), Want: fn.Chunk.NumParams, Got: len(args)}
	}
	if vm.fp >= MaxFrames {
		logger.Warn("call stack exceeded MaxFrames", "frames", vm.fp, "fn", displayName(fn))
		return &StackOverflowError{}
	}
	if vm.sp+1+fn.Chunk.NumLocals > MaxStack {
		return &StackOverflowError{}
	}
	base := vm.sp
	vm.push(value.FromFunction(fn))
	for _, a := range args {
		vm.push(a)
	}
	for i := len(args); i < fn.Chunk.NumLocals; i++ {
		vm.push(value.Null)
	}
	vm.frames[vm.fp] = frame{fn: fn, base: base}
	vm.fp++
	return nil
}

func displayName(fn *value.Function) string {
	if fn.Name == "" {
		return "<anonymous>"
	}
	return fn.Name
}

func (vm *VM) push(v value.Value) {
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() value.Value {
	vm.sp--
	return vm.stack[vm.sp]
}

func (vm *VM) peek(fromTop int) value.Value { return vm.stack[vm.sp-1-fromTop] }

// run executes frames until the frame pushed most recently before floor
// returns, yielding that call's return value. exports, if non-nil, receives
// every OP_EXPORT_SET write made by the outermost frame in this run.
func (vm *VM) run(ctx context.Context, floor int, exports *value.Object) (value.Value, error) {
	for {
		f := &vm.frames[vm.fp-1]
		if err := ctx.Err(); err != nil {
			logger.Warn("execution halted by host cancellation", "fn", displayName(f.fn), "err", err)
			return value.Null, &VMHalt{Err: err}
		}

		code := f.fn.Chunk.Code
		instrStart := f.ip
		op := compiler.Opcode(code[f.ip])
		f.ip++

		pos := f.fn.Chunk.Spans[instrStart]

		switch op {
		case compiler.OpConst:
			vm.push(f.fn.Chunk.Constants[vm.readU16(f)])
		case compiler.OpNull:
			vm.push(value.Null)
		case compiler.OpTrue:
			vm.push(value.True)
		case compiler.OpFalse:
			vm.push(value.False)

		case compiler.OpLoadLocal:
			slot := vm.readU16(f)
			vm.push(vm.stack[f.base+1+int(slot)])
		case compiler.OpStoreLocal:
			slot := vm.readU16(f)
			vm.stack[f.base+1+int(slot)] = vm.pop()

		case compiler.OpLoadUpvalue:
			idx := vm.readU16(f)
			vm.push(f.fn.Upvalues[idx].Get())
		case compiler.OpStoreUpvalue:
			idx := vm.readU16(f)
			f.fn.Upvalues[idx].Set(vm.pop())

		case compiler.OpLoadGlobal:
			name := f.fn.Chunk.Constants[vm.readU16(f)].AsString()
			v, ok := vm.globals[name]
			if !ok {
				return value.Null, &NameError{Pos: pos, Name: name}
			}
			vm.push(v)
		case compiler.OpStoreGlobal:
			name := f.fn.Chunk.Constants[vm.readU16(f)].AsString()
			vm.globals[name] = vm.pop()

		case compiler.OpLoadBuiltin:
			vm.push(vm.builtins[vm.readU16(f)])

		case compiler.OpMakeList:
			n := int(vm.readU16(f))
			items := make([]value.Value, n)
			copy(items, vm.stack[vm.sp-n:vm.sp])
			vm.sp -= n
			vm.push(value.NewList(items))
		case compiler.OpMakeObject:
			n := int(vm.readU16(f))
			obj := value.NewObject()
			base := vm.sp - 2*n
			for i := 0; i < n; i++ {
				k := vm.stack[base+2*i]
				v := vm.stack[base+2*i+1]
				obj.AsObject().Set(k, v)
			}
			vm.sp = base
			vm.push(obj)

		case compiler.OpIndexGet:
			idx := vm.pop()
			target := vm.pop()
			result, err := indexGet(target, idx, pos)
			if err != nil {
				return value.Null, err
			}
			vm.push(result)
		case compiler.OpIndexSet:
			val := vm.pop()
			idx := vm.pop()
			target := vm.pop()
			if err := indexSet(target, idx, val, pos); err != nil {
				return value.Null, err
			}

		case compiler.OpAdd:
			b, a := vm.pop(), vm.pop()
			res, ok := value.Add(a, b)
			if !ok {
				return value.Null, typeErr(pos, "+", a, b)
			}
			vm.push(res)
		case compiler.OpSub:
			b, a := vm.pop(), vm.pop()
			if !a.IsNumeric() || !b.IsNumeric() {
				return value.Null, typeErr(pos, "-", a, b)
			}
			vm.push(numericBinOp(a, b, func(x, y int64) int64 { return x - y }, func(x, y float64) float64 { return x - y }))
		case compiler.OpMul:
			b, a := vm.pop(), vm.pop()
			if !a.IsNumeric() || !b.IsNumeric() {
				return value.Null, typeErr(pos, "*", a, b)
			}
			vm.push(numericBinOp(a, b, func(x, y int64) int64 { return x * y }, func(x, y float64) float64 { return x * y }))
		case compiler.OpDiv:
			b, a := vm.pop(), vm.pop()
			if !a.IsNumeric() || !b.IsNumeric() {
				return value.Null, typeErr(pos, "/", a, b)
			}
			if a.Kind() == value.KindInt && b.Kind() == value.KindInt {
				if b.AsInt() == 0 {
					return value.Null, &ZeroDivisionError{Pos: pos}
				}
				vm.push(value.Int(a.AsInt() / b.AsInt()))
			} else {
				vm.push(value.Float(a.NumericFloat() / b.NumericFloat()))
			}
		case compiler.OpNeg:
			a := vm.pop()
			switch a.Kind() {
			case value.KindInt:
				vm.push(value.Int(-a.AsInt()))
			case value.KindFloat:
				vm.push(value.Float(-a.AsFloat()))
			default:
				return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot negate a %s", a.Kind())}
			}
		case compiler.OpBitAnd, compiler.OpBitOr:
			b, a := vm.pop(), vm.pop()
			if a.Kind() != value.KindInt || b.Kind() != value.KindInt {
				return value.Null, typeErr(pos, "bitwise operator", a, b)
			}
			if op == compiler.OpBitAnd {
				vm.push(value.Int(a.AsInt() & b.AsInt()))
			} else {
				vm.push(value.Int(a.AsInt() | b.AsInt()))
			}
		case compiler.OpBitNot:
			a := vm.pop()
			if a.Kind() != value.KindInt {
				return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot bitwise-negate a %s", a.Kind())}
			}
			vm.push(value.Int(^a.AsInt()))
		case compiler.OpShl:
			b, a := vm.pop(), vm.pop()
			if a.Kind() == value.KindList {
				a.AsList().Append(b)
				vm.push(a)
			} else if a.Kind() == value.KindInt && b.Kind() == value.KindInt {
				vm.push(value.Int(a.AsInt() << (uint(b.AsInt()) & 63)))
			} else {
				return value.Null, typeErr(pos, "<<", a, b)
			}
		case compiler.OpShr:
			b, a := vm.pop(), vm.pop()
			if a.Kind() != value.KindInt || b.Kind() != value.KindInt {
				return value.Null, typeErr(pos, ">>", a, b)
			}
			vm.push(value.Int(a.AsInt() >> (uint(b.AsInt()) & 63)))

		case compiler.OpEq:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(value.Equal(a, b)))
		case compiler.OpNe:
			b, a := vm.pop(), vm.pop()
			vm.push(value.Bool(!value.Equal(a, b)))
		case compiler.OpLt, compiler.OpGt, compiler.OpLe, compiler.OpGe:
			b, a := vm.pop(), vm.pop()
			cmp, ok := value.Compare(a, b)
			if !ok {
				return value.Null, typeErr(pos, "comparison", a, b)
			}
			var res bool
			switch op {
			case compiler.OpLt:
				res = cmp < 0
			case compiler.OpGt:
				res = cmp > 0
			case compiler.OpLe:
				res = cmp <= 0
			case compiler.OpGe:
				res = cmp >= 0
			}
			vm.push(value.Bool(res))
		case compiler.OpNot:
			vm.push(value.Bool(!vm.pop().Truthy()))

		case compiler.OpJump:
			rel := vm.readI16(f)
			f.ip += int(rel)
		case compiler.OpJumpIfFalse:
			rel := vm.readI16(f)
			if !vm.pop().Truthy() {
				f.ip += int(rel)
			}
		case compiler.OpJumpIfTruthyPeek:
			rel := vm.readI16(f)
			if vm.peek(0).Truthy() {
				f.ip += int(rel)
			}
		case compiler.OpJumpIfFalseyPeek:
			rel := vm.readI16(f)
			if !vm.peek(0).Truthy() {
				f.ip += int(rel)
			}
		case compiler.OpJumpIfNonNullPeek:
			rel := vm.readI16(f)
			if !vm.peek(0).IsNull() {
				f.ip += int(rel)
			}

		case compiler.OpPop:
			vm.sp--
		case compiler.OpDup:
			vm.push(vm.peek(0))
		case compiler.OpDup2:
			a, b := vm.peek(1), vm.peek(0)
			vm.push(a)
			vm.push(b)
		case compiler.OpSwap:
			vm.stack[vm.sp-1], vm.stack[vm.sp-2] = vm.stack[vm.sp-2], vm.stack[vm.sp-1]

		case compiler.OpCall:
			nargs := int(vm.readU16(f))
			calleeIdx := vm.sp - nargs - 1
			callee := vm.stack[calleeIdx]
			if callee.Kind() != value.KindFunction {
				return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot call a %s", callee.Kind())}
			}
			fn := callee.AsFunction()
			if fn.Chunk == nil {
				result, err := vm.callBuiltin(fn.Name, vm.stack[calleeIdx+1:vm.sp], pos)
				vm.sp = calleeIdx
				if err != nil {
					return value.Null, err
				}
				vm.push(result)
				break
			}
			if nargs != fn.Chunk.NumParams {
				return value.Null, &ArityError{Pos: pos, Name: displayName(fn), Want: fn.Chunk.NumParams, Got: nargs}
			}
			if vm.fp >= MaxFrames {
				return value.Null, &StackOverflowError{Pos: pos}
			}
			if calleeIdx+1+fn.Chunk.NumLocals > MaxStack {
				return value.Null, &StackOverflowError{Pos: pos}
			}
			for i := nargs; i < fn.Chunk.NumLocals; i++ {
				vm.push(value.Null)
			}
			vm.frames[vm.fp] = frame{fn: fn, base: calleeIdx}
			vm.fp++

		case compiler.OpReturn:
			result := vm.pop()
			for _, uv := range f.openUpvalues {
				uv.Close()
			}
			if vm.fp-1 == floor {
				vm.sp = f.base
				vm.fp--
				return result, nil
			}
			vm.sp = f.base
			vm.fp--
			vm.push(result)

		case compiler.OpMakeClosure:
			idx := vm.readU16(f)
			proto := f.fn.Chunk.Constants[idx].AsFunction()
			upvalues := make([]*value.Upvalue, len(proto.Chunk.Upvalues))
			for i, d := range proto.Chunk.Upvalues {
				if d.FromLocal {
					upvalues[i] = vm.captureUpvalue(f, d.Index)
				} else {
					upvalues[i] = f.fn.Upvalues[d.Index]
				}
			}
			vm.push(value.FromFunction(&value.Function{Chunk: proto.Chunk, Upvalues: upvalues, Name: proto.Name}))

		case compiler.OpCloseUpvalues:
			from := int(vm.readU16(f))
			for slot, uv := range f.openUpvalues {
				if slot >= from {
					uv.Close()
					delete(f.openUpvalues, slot)
				}
			}

		case compiler.OpExportSet:
			name := f.fn.Chunk.Constants[vm.readU16(f)]
			val := vm.pop()
			if exports != nil {
				exports.Set(name, val)
			}

		default:
			return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("invalid opcode %d", op)}
		}
	}
}

func (vm *VM) captureUpvalue(f *frame, slot int) *value.Upvalue {
	if f.openUpvalues == nil {
		f.openUpvalues = make(map[int]*value.Upvalue)
	}
	if uv, ok := f.openUpvalues[slot]; ok {
		return uv
	}
	uv := value.NewOpenUpvalue(&vm.stack[f.base+1+slot])
	f.openUpvalues[slot] = uv
	return uv
}

func (vm *VM) readU16(f *frame) uint16 {
	v := binary.LittleEndian.Uint16(f.fn.Chunk.Code[f.ip : f.ip+2])
	f.ip += 2
	return v
}

func (vm *VM) readI16(f *frame) int16 {
	return int16(vm.readU16(f))
}

func numericBinOp(a, b value.Value, onInt func(int64, int64) int64, onFloat func(float64, float64) float64) value.Value {
	if a.Kind() == value.KindInt && b.Kind() == value.KindInt {
		return value.Int(onInt(a.AsInt(), b.AsInt()))
	}
	return value.Float(onFloat(a.NumericFloat(), b.NumericFloat()))
}

func typeErr(pos token.Position, op string, a, b value.Value) error {
	return &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot apply %s to %s and %s", op, a.Kind(), b.Kind())}
}

// indexGet never raises for a List/Object/String target, regardless of how
// odd the index is: a missing row or column reads as Null rather than
// faulting. Only a target of any other kind is a TypeError.
func indexGet(target, idx value.Value, pos token.Position) (value.Value, error) {
	switch target.Kind() {
	case value.KindList:
		if idx.Kind() != value.KindInt {
			return value.Null, nil
		}
		v, ok := target.AsList().Get(idx.AsInt())
		if !ok {
			return value.Null, nil
		}
		return v, nil
	case value.KindObject:
		v, ok := target.AsObject().Get(idx)
		if !ok {
			return value.Null, nil
		}
		return v, nil
	case value.KindString:
		if idx.Kind() != value.KindInt {
			return value.Null, nil
		}
		v, ok := value.StringCharAt(target.AsString(), idx.AsInt())
		if !ok {
			return value.Null, nil
		}
		return v, nil
	default:
		return value.Null, &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot index a %s", target.Kind())}
	}
}

func indexSet(target, idx, val value.Value, pos token.Position) error {
	switch target.Kind() {
	case value.KindList:
		if idx.Kind() != value.KindInt {
			return &TypeError{Pos: pos, Msg: "list index must be an int"}
		}
		if !target.AsList().Set(idx.AsInt(), val) {
			return &RangeError{Pos: pos, Msg: fmt.Sprintf("list index %d out of range", idx.AsInt())}
		}
		return nil
	case value.KindObject:
		target.AsObject().Set(idx, val)
		return nil
	default:
		return &TypeError{Pos: pos, Msg: fmt.Sprintf("cannot assign into a %s", target.Kind())}
	}
}
