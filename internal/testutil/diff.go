// Copyright 2018 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package testutil holds the helpers shared by the package tests.  The go-cmp
// options are re-exported so tests need not import cmp and cmpopts.
package testutil

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Diff returns a human-readable report of the differences between a and b.
func Diff(a, b interface{}, opts ...cmp.Option) string {
	return cmp.Diff(a, b, opts...)
}

// ExpectNoDiff reports a test error if want and got differ.  It returns
// true if they were equal.
func ExpectNoDiff(tb testing.TB, want, got interface{}, opts ...cmp.Option) bool {
	tb.Helper()
	if diff := Diff(want, got, opts...); diff != "" {
		tb.Errorf("unexpected diff, -want +got:\n%s", diff)
		tb.Logf("expected:\n%#v", want)
		tb.Logf("received:\n%#v", got)
		return false
	}
	return true
}

func IgnoreUnexported(types ...interface{}) cmp.Option {
	return cmpopts.IgnoreUnexported(types...)
}

func EquateEmpty() cmp.Option {
	return cmpopts.EquateEmpty()
}

func SortSlices(lessFunc interface{}) cmp.Option {
	return cmpopts.SortSlices(lessFunc)
}
