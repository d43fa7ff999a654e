// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"github.com/pkg/errors"
)

// Option configures a new Engine.
type Option func(*Engine) error

// Interpreter selects the wazero interpreter instead of the compiler.
func Interpreter() Option {
	return func(e *Engine) error {
		e.interpreter = true
		return nil
	}
}

// MemoryLimitPages limits the linear memory of every instance to pages of
// 64KiB each.
func MemoryLimitPages(pages uint32) Option {
	return func(e *Engine) error {
		if pages == 0 || pages > 65536 {
			return errors.Errorf("memory limit of %d pages out of range", pages)
		}
		e.memoryLimitPages = pages
		return nil
	}
}

// CloseOnContextDone makes a scan stop when its context is canceled or its
// deadline passes.  This is how a caller bounds a pathological condition.
func CloseOnContextDone() Option {
	return func(e *Engine) error {
		e.closeOnContextDone = true
		return nil
	}
}

// CacheSize sets how many compiled executables the engine keeps.
func CacheSize(n int) Option {
	return func(e *Engine) error {
		if n <= 0 {
			return errors.Errorf("cache size must be positive, got %d", n)
		}
		e.cacheSize = n
		return nil
	}
}
