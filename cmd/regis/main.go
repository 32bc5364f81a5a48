// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Command regis is the Regis language front end: it drives the
// lexer/parser/compiler/vm pipeline against a script file, or, with no file
// argument (or -i), opens a line-editing REPL.
//
// Usage:
//
//	regis [flags] <script.regis>
//
// Flags:
//
//	-emit <stage>   Emit intermediate output: tokens, ast, bytecode, value (default: run the program)
//	-config <file>  Load an optional TOML configuration file
//	-i              Force REPL mode even if a script path is given
//	-version        Print version and exit
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/fatih/color"
	log "github.com/inconshreveable/log15"
	"github.com/mattn/go-isatty"
	"github.com/naoina/toml"
	"github.com/peterh/liner"

	"github.com/comfort-stereo/regis/internal/compiler"
	"github.com/comfort-stereo/regis/internal/lexer"
	"github.com/comfort-stereo/regis/internal/module"
	"github.com/comfort-stereo/regis/internal/parser"
	"github.com/comfort-stereo/regis/internal/token"
	"github.com/comfort-stereo/regis/internal/value"
	"github.com/comfort-stereo/regis/internal/vm"
)

const version = "0.1.0"

// config is the optional regis.toml shape. Its SleepEnabled/LogLevel knobs
// are the parts of the host configuration surface this interpreter can
// actually honor at runtime; MaxStack/MaxFrames are deliberately NOT
// configurable here — internal/vm backs its value stack and frame table
// with fixed-size arrays so open upvalues can hold raw pointers into live
// locals without risking invalidation from a slice reallocation, so their
// sizes are compile-time constants, not config-file knobs.
type config struct {
	SleepEnabled bool
	LogLevel     string
}

var defaultConfig = config{SleepEnabled: true, LogLevel: "warn"}

// logger is the CLI's own diagnostic logger, separate from internal/vm's and
// internal/module's package-level loggers; applyLogLevel raises or lowers
// its handler's threshold to cfg.LogLevel once the config file is loaded, so
// a regis.toml can quiet or enable the Debug-level traffic those packages
// emit without a recompile.
var logger = log.New("pkg", "cmd/regis")

func applyLogLevel(level string) {
	lvl, err := log.LvlFromString(level)
	if err != nil {
		lvl = log.LvlWarn
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StderrHandler))
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func main() {
	var (
		emit       = flag.String("emit", "", "Emit intermediate output: tokens, ast, bytecode, value")
		configPath = flag.String("config", "", "Load a TOML configuration file")
		replFlag   = flag.Bool("i", false, "Force an interactive REPL even with a script argument")
		ver        = flag.Bool("version", false, "Print version and exit")
	)
	flag.Parse()

	if *ver {
		fmt.Printf("regis %s\n", version)
		os.Exit(0)
	}

	diag := newDiagnostics()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		diag.fatal(err)
	}
	applyLogLevel(cfg.LogLevel)

	if *replFlag || flag.NArg() == 0 {
		runRepl(cfg, diag)
		return
	}

	path := flag.Arg(0)
	source, err := os.ReadFile(path)
	if err != nil {
		diag.fatal(err)
	}

	if *emit != "" {
		runEmit(*emit, path, string(source), diag)
		return
	}

	logger.Debug("running script", "path", path, "sleepEnabled", cfg.SleepEnabled)
	if err := runScript(cfg, path); err != nil {
		diag.fatal(err)
	}
}

// diagnostics colors stderr output red/yellow when it's a terminal.
type diagnostics struct {
	errColor  *color.Color
	warnColor *color.Color
}

func newDiagnostics() *diagnostics {
	enabled := isatty.IsTerminal(os.Stderr.Fd())
	errColor := color.New(color.FgRed, color.Bold)
	warnColor := color.New(color.FgYellow)
	errColor.EnableColor()
	warnColor.EnableColor()
	if !enabled {
		errColor.DisableColor()
		warnColor.DisableColor()
	}
	return &diagnostics{errColor: errColor, warnColor: warnColor}
}

func (d *diagnostics) fatal(err error) {
	d.errColor.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func (d *diagnostics) warn(format string, args ...any) {
	d.warnColor.Fprintf(os.Stderr, "warning: "+format+"\n", args...)
}

// runScript runs path to completion via a fresh module loader, the same
// pipeline an @import of it from another module would take; this is how
// the CLI's entry script and any files it imports end up sharing one
// module table and one canonicalization cache, and how -config's
// SleepEnabled/stdout routing reach every module a script transitively
// imports, not just the entry script's own VM.
func runScript(cfg config, path string) error {
	loader := module.NewWithVMOptions(nil, vmOptionsFor(cfg)...)
	_, err := loader.RunEntry(path)
	return err
}

// vmOptionsFor builds the vm.Options a loader should apply to every VM it
// constructs. @print/@println always go to stdout; @sleep is only
// overridden with a no-op when the config disables it — omitting the
// option entirely (rather than passing a nil Sleeper) leaves vm.New's
// own realSleeper default in place.
func vmOptionsFor(cfg config) []vm.Option {
	opts := []vm.Option{vm.WithStdout(os.Stdout)}
	if !cfg.SleepEnabled {
		opts = append(opts, vm.WithSleeper(noopSleeper{}))
	}
	return opts
}

type noopSleeper struct{}

func (noopSleeper) Sleep(_ time.Duration) {}

// runEmit drives the pipeline only as far as the requested stage and prints
// that stage's representation instead of executing the program. "value"
// runs the program to completion and dumps its final global table with
// go-spew, independent of Regis's own @print renderer — useful precisely
// because it doesn't go through the thing under test.
func runEmit(stage, path, source string, diag *diagnostics) {
	switch stage {
	case "tokens":
		emitTokens(path, source, diag)
	case "ast":
		emitAST(path, source, diag)
	case "bytecode":
		emitBytecode(path, source, diag)
	case "value":
		emitValue(path, source, diag)
	default:
		diag.fatal(fmt.Errorf("unknown emit stage %q (want tokens, ast, bytecode, or value)", stage))
	}
}

func emitTokens(path, source string, diag *diagnostics) {
	l := lexer.New(path, source)
	for {
		tok, err := l.Next()
		if err != nil {
			diag.fatal(err)
		}
		fmt.Printf("%s\t%s\t%q\n", tok.Pos, tok.Type, tok.Literal)
		if tok.Type == token.EOF {
			return
		}
	}
}

func emitAST(path, source string, diag *diagnostics) {
	prog, err := parser.Parse(path, source)
	if err != nil {
		diag.fatal(err)
	}
	for _, stmt := range prog.Statements {
		fmt.Println(stmt.String())
	}
}

func emitBytecode(path, source string, diag *diagnostics) {
	prog, err := parser.Parse(path, source)
	if err != nil {
		diag.fatal(err)
	}
	chunk, err := compiler.Compile(prog, path)
	if err != nil {
		diag.fatal(err)
	}
	compiler.Disassemble(os.Stdout, chunk)
}

func emitValue(path, source string, diag *diagnostics) {
	prog, err := parser.Parse(path, source)
	if err != nil {
		diag.fatal(err)
	}
	chunk, err := compiler.Compile(prog, path)
	if err != nil {
		diag.fatal(err)
	}
	loader := module.NewWithVMOptions(nil, vm.WithStdout(os.Stdout))
	m := vm.New(vm.WithStdout(os.Stdout), vm.WithImporter(loader))
	if _, err := m.Run(context.Background(), chunk); err != nil {
		diag.fatal(err)
	}
	spew.Dump(m.Globals())
}

// runRepl reads one statement-or-expression at a time via peterh/liner's
// line editor, following the same line-oriented terminal front-end shape as
// db47h-ngaro/cmd/retro/term.go, and evaluates each against one persistent
// VM so `let`s and function definitions accumulate across lines (see
// evalLine). @import is unavailable in this mode: there is no module
// loader behind the REPL's VM.
func runRepl(cfg config, diag *diagnostics) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	realVM := vm.New(vmOptionsFor(cfg)...)
	fmt.Printf("regis %s — interactive mode, Ctrl-D to exit\n", version)
	for {
		input, err := line.Prompt("regis> ")
		if err != nil { // io.EOF on Ctrl-D, liner.ErrPromptAborted on Ctrl-C
			fmt.Println()
			return
		}
		if input == "" {
			continue
		}
		line.AppendHistory(input)
		if err := evalLine(realVM, input); err != nil {
			diag.warn("%v", err)
		}
	}
}

// evalLine compiles input in interactive mode and runs it against vm, whose
// global table persists across calls: CompileInteractive lowers top-level
// `let`/`fn` declarations to global stores (a per-line chunk's locals would
// die with the line), so a `let x = 1;` typed at one prompt makes `x`
// visible at the next, and a trailing expression's value is returned for
// echoing.
func evalLine(m *vm.VM, input string) error {
	prog, err := parser.Parse("<repl>", input)
	if err != nil {
		return err
	}
	chunk, err := compiler.CompileInteractive(prog, "<repl>")
	if err != nil {
		return err
	}
	result, err := m.Run(context.Background(), chunk)
	if err != nil {
		return err
	}
	if !result.IsNull() {
		fmt.Println(value.Render(result))
	}
	return nil
}
