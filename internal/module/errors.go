// Copyright 2026 The Regis Authors
// This file is part of Regis.
//
// Regis is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package module

import "fmt"

// IOError reports a failure resolving or reading a module's source file.
// It is normally seen wrapped inside a vm.ImportError at the @import call
// site.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string { return fmt.Sprintf("%s: %s", e.Path, e.Err) }

func (e *IOError) Unwrap() error { return e.Err }
