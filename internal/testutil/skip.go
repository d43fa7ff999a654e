// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package testutil

import (
	"testing"
)

// SkipIfShort skips tests that start many scans when -short is given.
func SkipIfShort(tb testing.TB) {
	tb.Helper()
	if testing.Short() {
		tb.Skipf("skipping %s in -short mode", tb.Name())
	}
}
