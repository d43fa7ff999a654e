// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"context"
	"crypto/sha256"
	"fmt"
	"testing"
	"time"

	"github.com/google/rulewasm/internal/patterns"
	"github.com/google/rulewasm/internal/scan"
	"github.com/google/rulewasm/internal/testutil"
	"github.com/google/rulewasm/internal/wasm/code"
	"github.com/tetratelabs/wabin/binary"
	wabin "github.com/tetratelabs/wabin/wasm"
	"golang.org/x/sync/errgroup"
)

func newTestEngine(t *testing.T, options ...Option) *Engine {
	t.Helper()
	ctx := context.Background()
	e, err := NewEngine(ctx, options...)
	testutil.FatalIfErr(t, err)
	t.Cleanup(func() {
		if err := e.Close(ctx); err != nil {
			t.Error(err)
		}
	})
	return e
}

func buildModule(t *testing.T, emit func(s *InstrSeq, syms Symbols)) *Module {
	t.Helper()
	b := NewModuleBuilder()
	emit(b.MainFn(), b.Symbols())
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	return m
}

func newIndex(t *testing.T, n int, matches map[patterns.PatternID][]int64) *patterns.Index {
	t.Helper()
	x := patterns.NewIndex(n)
	for id, offsets := range matches {
		for _, o := range offsets {
			testutil.FatalIfErr(t, x.Add(id, o))
		}
	}
	return x
}

func run(t *testing.T, e *Engine, m *Module, sc *scan.Context) {
	t.Helper()
	ctx := context.Background()
	x, err := e.Compile(ctx, m)
	testutil.FatalIfErr(t, err)
	testutil.FatalIfErr(t, e.Run(ctx, x, sc))
}

// matchIf emits "if the i32 on the stack is non-zero, report rule".
func matchIf(s *InstrSeq, syms Symbols, rule int32) {
	s.If(code.Void).I32Const(rule).Call(syms.RuleMatch).End()
}

func TestRunReportsRules(t *testing.T) {
	e := newTestEngine(t)
	// Scenario A: pattern 0 matched, rule 1 depends on it.
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		s.I32Const(0).Call(syms.IsPatMatch)
		matchIf(s, syms, 1)
	})
	sc := scan.NewContext(2, newIndex(t, 1, map[patterns.PatternID][]int64{0: {5}}))
	run(t, e, m, sc)
	testutil.ExpectNoDiff(t, []scan.RuleID{1}, sc.MatchingRules())
	if sc.Matching().Test(0) || !sc.Matching().Test(1) {
		t.Errorf("unexpected bitmap %s", sc.Matching())
	}
}

func TestRunPatternQueries(t *testing.T) {
	e := newTestEngine(t)
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		s.I32Const(0).Call(syms.IsPatMatch)
		matchIf(s, syms, 0)
		s.I32Const(1).I64Const(10).Call(syms.IsPatMatchAt)
		matchIf(s, syms, 1)
		s.I32Const(1).I64Const(11).Call(syms.IsPatMatchAt)
		matchIf(s, syms, 2)
		s.I32Const(1).I64Const(5).I64Const(15).Call(syms.IsPatMatchIn)
		matchIf(s, syms, 3)
		s.I32Const(1).I64Const(11).I64Const(15).Call(syms.IsPatMatchIn)
		matchIf(s, syms, 4)
		s.I32Const(2).Call(syms.IsPatMatch)
		matchIf(s, syms, 5)
	})
	sc := scan.NewContext(6, newIndex(t, 3, map[patterns.PatternID][]int64{0: {0}, 1: {10}}))
	run(t, e, m, sc)
	testutil.ExpectNoDiff(t, []scan.RuleID{0, 1, 3}, sc.MatchingRules())
}

func TestRunDeduplicatesRules(t *testing.T) {
	e := newTestEngine(t)
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		for _, id := range []int32{3, 0, 3} {
			s.I32Const(id).Call(syms.RuleMatch)
		}
	})
	sc := scan.NewContext(4, nil)
	run(t, e, m, sc)
	testutil.ExpectNoDiff(t, []scan.RuleID{3, 0}, sc.MatchingRules())
	if got := sc.Matching().Count(); got != 2 {
		t.Errorf("bitmap has %d bits set, want 2", got)
	}
}

func TestRunIgnoresUnknownIDs(t *testing.T) {
	e := newTestEngine(t)
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		s.I32Const(99).Call(syms.RuleMatch)
		s.I32Const(-1).Call(syms.RuleMatch)
		s.I32Const(99).Call(syms.IsPatMatch)
		matchIf(s, syms, 0)
		s.I32Const(0).I64Const(-3).Call(syms.IsPatMatchAt)
		matchIf(s, syms, 1)
		s.I32Const(0).I64Const(10).I64Const(0).Call(syms.IsPatMatchIn)
		matchIf(s, syms, 2)
	})
	sc := scan.NewContext(3, newIndex(t, 1, map[patterns.PatternID][]int64{0: {0, 5}}))
	run(t, e, m, sc)
	testutil.ExpectNoDiff(t, []scan.RuleID(nil), sc.MatchingRules(), testutil.EquateEmpty())
}

func TestCompileCachesExecutables(t *testing.T) {
	e := newTestEngine(t)
	emit := func(s *InstrSeq, syms Symbols) { s.I32Const(0).Call(syms.RuleMatch) }
	m1, m2 := buildModule(t, emit), buildModule(t, emit)
	ctx := context.Background()

	defer testutil.ExpectExpvarDelta(t, "executable_cache_misses_total", 1)()
	defer testutil.ExpectExpvarDelta(t, "executable_cache_hits_total", 1)()
	x1, err := e.Compile(ctx, m1)
	testutil.FatalIfErr(t, err)
	x2, err := e.Compile(ctx, m2)
	testutil.FatalIfErr(t, err)
	if x1 != x2 {
		t.Error("identical modules compiled twice")
	}
	if x1.Hash() != m1.Hash() {
		t.Errorf("executable hash %s, module hash %s", x1.Hash(), m1.Hash())
	}
}

// rawModule encodes a module that imports a single function, bypassing
// ModuleBuilder.
func rawModule(importModule, importName string, ft *wabin.FunctionType, export string) *Module {
	m := &wabin.Module{
		TypeSection: []*wabin.FunctionType{ft, {}},
		ImportSection: []*wabin.Import{
			{Type: wabin.ExternTypeFunc, Module: importModule, Name: importName, DescFunc: 0},
		},
		FunctionSection: []wabin.Index{1},
		CodeSection:     []*wabin.Code{{Body: []byte{byte(code.End)}}},
		ExportSection:   []*wabin.Export{{Type: wabin.ExternTypeFunc, Name: export, Index: 1}},
	}
	bin := binary.EncodeModule(m)
	return &Module{binary: bin, hash: sha256.Sum256(bin)}
}

func TestCompileLinkErrors(t *testing.T) {
	i32 := []wabin.ValueType{wabin.ValueTypeI32}
	i64 := []wabin.ValueType{wabin.ValueTypeI64}
	for _, tc := range []struct {
		name string
		m    *Module
	}{
		{"unknown module", rawModule("env", "rule_match", &wabin.FunctionType{Params: i32}, "main")},
		{"unknown function", rawModule("internal", "rule_matched", &wabin.FunctionType{Params: i32}, "main")},
		{"wrong params", rawModule("internal", "rule_match", &wabin.FunctionType{Params: i64}, "main")},
		{"wrong results", rawModule("internal", "is_pat_match", &wabin.FunctionType{Params: i32}, "main")},
		{"no main", rawModule("internal", "rule_match", &wabin.FunctionType{Params: i32}, "start")},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			_, err := e.Compile(context.Background(), tc.m)
			testutil.ExpectErrorIs(t, err, ErrLink)
		})
	}
}

func TestCompileAcceptsRawModule(t *testing.T) {
	e := newTestEngine(t)
	m := rawModule("internal", "rule_match", &wabin.FunctionType{Params: []wabin.ValueType{wabin.ValueTypeI32}}, "main")
	x, err := e.Compile(context.Background(), m)
	testutil.FatalIfErr(t, err)
	testutil.FatalIfErr(t, e.Run(context.Background(), x, scan.NewContext(0, nil)))
}

func TestConcurrentScansAreIsolated(t *testing.T) {
	e := newTestEngine(t)
	const n = 16
	// Rule i matches if pattern i matched.
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		for i := int32(0); i < n; i++ {
			s.I32Const(i).Call(syms.IsPatMatch)
			matchIf(s, syms, i)
		}
	})
	x, err := e.Compile(context.Background(), m)
	testutil.FatalIfErr(t, err)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			x1 := patterns.NewIndex(n)
			if err := x1.Add(patterns.PatternID(i), int64(i)); err != nil {
				return err
			}
			sc := scan.NewContext(n, x1)
			if err := e.Run(ctx, x, sc); err != nil {
				return err
			}
			got := sc.MatchingRules()
			if len(got) != 1 || got[0] != scan.RuleID(i) {
				return fmt.Errorf("scan %d matched rules %v", i, got)
			}
			return nil
		})
	}
	testutil.FatalIfErr(t, g.Wait())
}

func TestCloseOnContextDone(t *testing.T) {
	e := newTestEngine(t, CloseOnContextDone())
	m := buildModule(t, func(s *InstrSeq, syms Symbols) {
		s.Loop(code.Void).Br(0).End()
	})
	x, err := e.Compile(context.Background(), m)
	testutil.FatalIfErr(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := e.Run(ctx, x, scan.NewContext(0, nil)); err == nil {
		t.Error("expected runaway loop to be stopped")
	}
}

func TestEngineOptions(t *testing.T) {
	for _, tc := range []struct {
		name    string
		options []Option
		wantErr bool
	}{
		{"defaults", nil, false},
		{"interpreter", []Option{Interpreter()}, false},
		{"memory", []Option{MemoryLimitPages(1)}, false},
		{"zero memory", []Option{MemoryLimitPages(0)}, true},
		{"cache", []Option{CacheSize(1)}, false},
		{"zero cache", []Option{CacheSize(0)}, true},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			e, err := NewEngine(ctx, tc.options...)
			if tc.wantErr {
				if err == nil {
					t.Error("expected error")
					_ = e.Close(ctx)
				}
				return
			}
			testutil.FatalIfErr(t, err)
			defer e.Close(ctx)
			m := buildModule(t, func(s *InstrSeq, syms Symbols) { s.I32Const(0).Call(syms.RuleMatch) })
			sc := scan.NewContext(1, nil)
			run(t, e, m, sc)
			testutil.ExpectNoDiff(t, []scan.RuleID{0}, sc.MatchingRules())
		})
	}
}
