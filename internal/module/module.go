// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

// Package module implements Regis's import system: canonicalizing a
// `@import` path, loading and compiling the referenced file at most once,
// and handing back its exports Object.
//
// Each module's Loading/Loaded status gates a shared mutable record: a
// path's state decides whether loading it again returns the finished
// exports Object, the in-progress one, or starts loading at all.
package module

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/inconshreveable/log15"

	"github.com/comfort-stereo/regis/internal/compiler"
	"github.com/comfort-stereo/regis/internal/parser"
	"github.com/comfort-stereo/regis/internal/value"
	"github.com/comfort-stereo/regis/internal/vm"
)

// logger emits structured Debug diagnostics about module resolution and
// loading — cache hits, cyclic-import detection, load completion — in the
// same key-value convention internal/vm's logger uses.
var logger = log.New("pkg", "module")

// Status is a module record's load state.
type Status uint8

const (
	// Loading marks a record whose top-level chunk is still executing —
	// its exports Object exists but may be only partially populated.
	Loading Status = iota
	// Loaded marks a record whose top-level chunk ran to completion.
	Loaded
)

func (s Status) String() string {
	if s == Loaded {
		return "Loaded"
	}
	return "Loading"
}

// Record is one imported file's entry in the loader's module table. Its
// Exports identity is stable across every @import of the same canonical
// path for the VM's lifetime.
type Record struct {
	Path    string
	Exports *value.Object
	Status  Status
}

// FileResolver reads module source text from whatever backing store hosts
// it. The default, NewOSResolver, reads plain files from disk.
type FileResolver interface {
	Canonicalize(baseDir, relative string) (string, error)
	Read(canonicalPath string) (string, error)
}

type osResolver struct{}

// NewOSResolver returns a FileResolver backed by the local filesystem.
func NewOSResolver() FileResolver { return osResolver{} }

func (osResolver) Canonicalize(baseDir, relative string) (string, error) {
	p := relative
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, relative)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &IOError{Path: relative, Err: err}
	}
	return filepath.Clean(abs), nil
}

func (osResolver) Read(canonicalPath string) (string, error) {
	data, err := os.ReadFile(canonicalPath)
	if err != nil {
		return "", &IOError{Path: canonicalPath, Err: err}
	}
	return string(data), nil
}

type canonKey struct {
	baseDir, relative string
}

// Loader resolves `@import` paths and runs each module's top-level chunk at
// most once. It implements vm.Importer, so a VM constructed with
// vm.WithImporter(loader) can call back into it without internal/vm
// importing this package.
//
// One Loader is shared by every VM instance it's handed to, mirroring how
// the module table is specified to live for the whole process, not per
// script run; callers that want isolated module tables construct separate
// Loaders.
type Loader struct {
	resolver FileResolver

	mu       sync.Mutex
	records  map[string]*Record
	canon    *lru.Cache[canonKey, string]
	dirStack []string

	// newVM builds the VM that runs an imported module's top-level code.
	// Defaulted to produce a VM sharing this Loader as its importer, so
	// transitive imports resolve through the same module table.
	newVM func(*Loader) *vm.VM
}

const canonCacheSize = 256

// New builds a Loader using resolver to read module source. A nil resolver
// defaults to NewOSResolver(). RunEntry resolves the entry path itself
// against the process working directory; every import made while a module
// runs, the entry script included, resolves relative to that module's own
// directory, so the entry script's imports do not resolve against the
// working directory unless the entry file lives there. Only an Import call
// made while no module is running resolves against the working directory.
func New(resolver FileResolver) *Loader {
	return NewWithVMOptions(resolver)
}

// NewWithVMOptions is New, but every VM the loader constructs to run a
// module's top-level code (the entry script and every transitive import)
// is built with vmOpts applied first — used by cmd/regis to route every
// module's @print/@println output to the same stdout and share one
// @sleep policy across an entire import graph.
func NewWithVMOptions(resolver FileResolver, vmOpts ...vm.Option) *Loader {
	if resolver == nil {
		resolver = NewOSResolver()
	}
	cache, err := lru.New[canonKey, string](canonCacheSize)
	if err != nil {
		// lru.New only errors for a non-positive size, which canonCacheSize
		// never is.
		panic(fmt.Sprintf("module: building canonicalization cache: %v", err))
	}
	l := &Loader{
		resolver: resolver,
		records:  make(map[string]*Record),
		canon:    cache,
	}
	l.newVM = func(parent *Loader) *vm.VM {
		opts := append([]vm.Option{vm.WithImporter(parent)}, vmOpts...)
		return vm.New(opts...)
	}
	return l
}

// RunEntry loads and runs path as the top-level script (resolved against
// the process working directory) and returns its exports Object, the same
// way an @import of it from another module would — used by cmd/regis so
// the entry script and its imports share one module table and one
// canonicalization cache.
func (l *Loader) RunEntry(path string) (*value.Object, error) {
	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	exports, err := l.importFrom(wd, path)
	if err != nil {
		return nil, err
	}
	return exports.AsObject(), nil
}

// Import satisfies vm.Importer. path is resolved relative to the directory
// of whichever module is currently executing (tracked by the dirStack
// pushed/popped in run), or the process working directory before any
// module has been entered.
func (l *Loader) Import(path string) (value.Value, error) {
	return l.importFrom(l.currentDir(), path)
}

// currentDir reports the directory new imports should resolve relative to.
// It tracks the most recently entered (not yet exited) module directory, a
// small stack pushed/popped by run, defaulting to the process
// working directory before any module has been entered.
func (l *Loader) currentDir() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.dirStack) == 0 {
		wd, err := os.Getwd()
		if err != nil {
			return "."
		}
		return wd
	}
	return l.dirStack[len(l.dirStack)-1]
}

func (l *Loader) importFrom(dir, relative string) (value.Value, error) {
	canonical, err := l.canonicalize(dir, relative)
	if err != nil {
		return value.Null, err
	}

	l.mu.Lock()
	if rec, ok := l.records[canonical]; ok {
		exports := rec.Exports
		status := rec.Status
		l.mu.Unlock()
		if status == Loading {
			logger.Debug("cyclic import observed, returning partial exports", "path", canonical)
		} else {
			logger.Debug("module cache hit", "path", canonical)
		}
		return value.FromObject(exports), nil
	}
	rec := &Record{Path: canonical, Exports: value.NewObject().AsObject(), Status: Loading}
	l.records[canonical] = rec
	l.mu.Unlock()

	logger.Debug("loading module", "path", canonical)
	if err := l.run(rec); err != nil {
		logger.Warn("module load failed", "path", canonical, "err", err)
		return value.Null, err
	}

	l.mu.Lock()
	rec.Status = Loaded
	l.mu.Unlock()
	logger.Debug("module loaded", "path", canonical)
	return value.FromObject(rec.Exports), nil
}

func (l *Loader) run(rec *Record) error {
	source, err := l.resolver.Read(rec.Path)
	if err != nil {
		return err
	}
	prog, err := parser.Parse(rec.Path, source)
	if err != nil {
		return err
	}
	chunk, err := compiler.Compile(prog, rec.Path)
	if err != nil {
		return err
	}

	l.mu.Lock()
	l.dirStack = append(l.dirStack, filepath.Dir(rec.Path))
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.dirStack = l.dirStack[:len(l.dirStack)-1]
		l.mu.Unlock()
	}()

	sub := l.newVM(l)
	_, err = sub.RunExports(context.Background(), chunk, rec.Exports)
	return err
}

func (l *Loader) canonicalize(baseDir, relative string) (string, error) {
	key := canonKey{baseDir: baseDir, relative: relative}
	if hit, ok := l.canon.Get(key); ok {
		return hit, nil
	}
	canonical, err := l.resolver.Canonicalize(baseDir, relative)
	if err != nil {
		return "", err
	}
	l.canon.Add(key, canonical)
	return canonical, nil
}
