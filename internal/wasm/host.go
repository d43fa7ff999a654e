// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"context"

	"github.com/google/rulewasm/internal/patterns"
	"github.com/google/rulewasm/internal/scan"
	"github.com/tetratelabs/wazero/api"
)

// The host functions find the state of the scan they serve in the context
// passed to the main function's Call.
type scanContextKey struct{}

func withScanContext(ctx context.Context, sc *scan.Context) context.Context {
	return context.WithValue(ctx, scanContextKey{}, sc)
}

func scanContextFrom(ctx context.Context) *scan.Context {
	sc, _ := ctx.Value(scanContextKey{}).(*scan.Context)
	return sc
}

// hostFuncs implements HostFunctions, in the same order.  Calls made with no
// scan attached to the context report no matches and record nothing.
var hostFuncs = [numHostFunctions]api.GoFunc{
	RuleMatch:    ruleMatch,
	IsPatMatch:   isPatMatch,
	IsPatMatchAt: isPatMatchAt,
	IsPatMatchIn: isPatMatchIn,
}

// ruleMatch is invoked from the module when a rule matches.  The rule_id-th
// bit of the matching bitmap is set.
func ruleMatch(ctx context.Context, stack []uint64) {
	if sc := scanContextFrom(ctx); sc != nil {
		sc.RuleMatch(scan.RuleID(api.DecodeI32(stack[0])))
	}
}

// isPatMatch returns 1 if the pattern identified by pattern_id matched, or 0
// otherwise.
func isPatMatch(ctx context.Context, stack []uint64) {
	sc := scanContextFrom(ctx)
	id := patterns.PatternID(api.DecodeI32(stack[0]))
	stack[0] = encodeBool(sc != nil && sc.IsPatMatch(id))
}

// isPatMatchAt returns 1 if the pattern identified by pattern_id matched at
// offset, or 0 otherwise.
func isPatMatchAt(ctx context.Context, stack []uint64) {
	sc := scanContextFrom(ctx)
	id := patterns.PatternID(api.DecodeI32(stack[0]))
	offset := int64(stack[1])
	stack[0] = encodeBool(sc != nil && sc.IsPatMatchAt(id, offset))
}

// isPatMatchIn returns 1 if the pattern identified by pattern_id matched at
// some offset in [lower_bound, upper_bound].
func isPatMatchIn(ctx context.Context, stack []uint64) {
	sc := scanContextFrom(ctx)
	id := patterns.PatternID(api.DecodeI32(stack[0]))
	lower, upper := int64(stack[1]), int64(stack[2])
	stack[0] = encodeBool(sc != nil && sc.IsPatMatchIn(id, lower, upper))
}

func encodeBool(b bool) uint64 {
	if b {
		return api.EncodeI32(1)
	}
	return api.EncodeI32(0)
}
