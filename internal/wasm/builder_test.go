// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"strings"
	"testing"

	"github.com/google/rulewasm/internal/testutil"
	"github.com/google/rulewasm/internal/wasm/code"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wabin/binary"
	wabin "github.com/tetratelabs/wabin/wasm"
)

func decode(t *testing.T, m *Module) *wabin.Module {
	t.Helper()
	d, err := binary.DecodeModule(m.Binary(), wabin.CoreFeaturesV2)
	testutil.FatalIfErr(t, err)
	return d
}

func TestBuildEmptyModule(t *testing.T) {
	b := NewModuleBuilder()
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	d := decode(t, m)

	type imp struct {
		Module, Name    string
		Params, Results []wabin.ValueType
	}
	var gotImports []imp
	for _, i := range d.ImportSection {
		ft := d.TypeSection[i.DescFunc]
		gotImports = append(gotImports, imp{i.Module, i.Name, ft.Params, ft.Results})
	}
	wantImports := []imp{
		{"internal", "rule_match", []wabin.ValueType{wabin.ValueTypeI32}, nil},
		{"internal", "is_pat_match", []wabin.ValueType{wabin.ValueTypeI32}, []wabin.ValueType{wabin.ValueTypeI32}},
		{"internal", "is_pat_match_at", []wabin.ValueType{wabin.ValueTypeI32, wabin.ValueTypeI64}, []wabin.ValueType{wabin.ValueTypeI32}},
		{"internal", "is_pat_match_in", []wabin.ValueType{wabin.ValueTypeI32, wabin.ValueTypeI64, wabin.ValueTypeI64}, []wabin.ValueType{wabin.ValueTypeI32}},
	}
	testutil.ExpectNoDiff(t, wantImports, gotImports, testutil.EquateEmpty())

	if len(d.ExportSection) != 1 {
		t.Fatalf("want 1 export, got %d", len(d.ExportSection))
	}
	e := d.ExportSection[0]
	if e.Name != "main" || e.Type != wabin.ExternTypeFunc || e.Index != 4 {
		t.Errorf("unexpected export %+v", e)
	}
	if len(d.FunctionSection) != 1 {
		t.Fatalf("want 1 function, got %d", len(d.FunctionSection))
	}
	ft := d.TypeSection[d.FunctionSection[0]]
	if len(ft.Params) != 0 || len(ft.Results) != 0 {
		t.Errorf("main has type %v -> %v, want () -> ()", ft.Params, ft.Results)
	}
	testutil.ExpectNoDiff(t, []wabin.ValueType{wabin.ValueTypeI64, wabin.ValueTypeI32, wabin.ValueTypeI32}, d.CodeSection[0].LocalTypes)
	testutil.ExpectNoDiff(t, []byte{byte(code.End)}, d.CodeSection[0].Body)
}

func TestSymbols(t *testing.T) {
	b := NewModuleBuilder()
	want := Symbols{
		RuleMatch:     0,
		IsPatMatch:    1,
		IsPatMatchAt:  2,
		IsPatMatchIn:  3,
		I64Tmp:        0,
		I32Tmp:        1,
		ExceptionFlag: 2,
	}
	testutil.ExpectNoDiff(t, want, b.Symbols())
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	testutil.ExpectNoDiff(t, want, m.Symbols())
}

func TestMainFnIsShared(t *testing.T) {
	b := NewModuleBuilder()
	b.MainFn().I32Const(7)
	b.MainFn().Call(b.Symbols().RuleMatch)
	if b.MainFn() != b.MainFn() {
		t.Error("MainFn returned distinct sequences")
	}
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	want := []code.Instr{
		{Opcode: code.I32Const, Operand: int32(7)},
		{Opcode: code.Call, Operand: uint32(0)},
	}
	testutil.ExpectNoDiff(t, want, m.Program())
	d := decode(t, m)
	testutil.ExpectNoDiff(t, []byte{0x41, 0x07, 0x10, 0x00, 0x0b}, d.CodeSection[0].Body)
}

func TestBuildTwice(t *testing.T) {
	b := NewModuleBuilder()
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Build(); !errors.Is(err, ErrBuilderFinalized) {
		t.Errorf("second Build: got %v, want %v", err, ErrBuilderFinalized)
	}
}

func TestBuildZeroBuilder(t *testing.T) {
	var b ModuleBuilder
	_, err := b.Build()
	testutil.ExpectErrorIs(t, err, ErrNeedsBuilder)
}

func TestMainFnAfterBuildPanics(t *testing.T) {
	b := NewModuleBuilder()
	if _, err := b.Build(); err != nil {
		t.Fatal(err)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Error("MainFn after Build did not panic")
		}
	}()
	b.MainFn()
}

func TestBuildRejectsMalformedBody(t *testing.T) {
	for _, tc := range []struct {
		name string
		emit func(s *InstrSeq)
	}{
		{"unclosed block", func(s *InstrSeq) { s.Block(code.Void) }},
		{"stray end", func(s *InstrSeq) { s.End() }},
		{"else without if", func(s *InstrSeq) { s.Block(code.Void).Else().End() }},
		{"branch too deep", func(s *InstrSeq) { s.Block(code.Void).Br(2).End() }},
		{"bad operand", func(s *InstrSeq) { s.Instr(code.Instr{Opcode: code.I32Const, Operand: "x"}) }},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			b := NewModuleBuilder()
			tc.emit(b.MainFn())
			if _, err := b.Build(); err == nil {
				t.Error("expected error")
			}
			if _, err := b.Build(); !errors.Is(err, ErrBuilderFinalized) {
				t.Errorf("builder not consumed by failed Build: %v", err)
			}
		})
	}
}

func TestExceptionHelpers(t *testing.T) {
	b := NewModuleBuilder()
	b.MainFn().Block(code.Void).ClearException().Raise(0).End().ExceptionRaised().Op(code.Drop)
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	want := []code.Instr{
		{Opcode: code.Block, Operand: code.Void},
		{Opcode: code.I32Const, Operand: int32(0)},
		{Opcode: code.LocalSet, Operand: uint32(2)},
		{Opcode: code.I32Const, Operand: int32(1)},
		{Opcode: code.LocalSet, Operand: uint32(2)},
		{Opcode: code.Br, Operand: uint32(0)},
		{Opcode: code.End},
		{Opcode: code.LocalGet, Operand: uint32(2)},
		{Opcode: code.Drop},
	}
	testutil.ExpectNoDiff(t, want, m.Program())
}

func TestModuleHash(t *testing.T) {
	build := func(id int32) *Module {
		b := NewModuleBuilder()
		b.MainFn().I32Const(id).Call(b.Symbols().RuleMatch)
		m, err := b.Build()
		testutil.FatalIfErr(t, err)
		return m
	}
	a, b, c := build(1), build(1), build(2)
	if a.Hash() != b.Hash() {
		t.Errorf("identical modules hash differently: %s %s", a.Hash(), b.Hash())
	}
	if a.Hash() == c.Hash() {
		t.Errorf("distinct modules hash the same: %s", a.Hash())
	}
}

func TestDumpByteCode(t *testing.T) {
	b := NewModuleBuilder()
	b.MainFn().I32Const(3).Call(b.Symbols().RuleMatch)
	m, err := b.Build()
	testutil.FatalIfErr(t, err)
	dump := m.DumpByteCode("test")
	for _, want := range []string{
		"Module: test",
		"internal.rule_match [i32] -> []",
		"internal.is_pat_match_in [i32 i64 i64] -> [i32]",
		"exception_flag",
		"i32.const",
		"call",
	} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q:\n%s", want, dump)
		}
	}
}
