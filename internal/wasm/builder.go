// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package wasm builds the WebAssembly module that evaluates rule conditions,
// and provides the host functions and engine that run it.
//
// The condition of every rule in a rule set is translated into code in the
// body of a single exported function, main.  At scan time main is invoked
// once; it calls the host back through the functions in HostFunctions to ask
// whether patterns matched and to report the rules that matched.
package wasm

import (
	"crypto/sha256"

	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/wasm/code"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wabin/binary"
	wabin "github.com/tetratelabs/wabin/wasm"
)

var (
	ErrBuilderFinalized = errors.New("module builder already finalized")
	ErrNeedsBuilder     = errors.New("module builder not created with NewModuleBuilder")
)

// ModuleBuilder builds the WebAssembly module for a set of compiled rules.
type ModuleBuilder struct {
	types   []*wabin.FunctionType
	imports []*wabin.Import
	symbols Symbols
	main    *InstrSeq

	finalized bool
}

// NewModuleBuilder creates a module builder with the host functions already
// imported and the scratch variables allocated.
func NewModuleBuilder() *ModuleBuilder {
	b := &ModuleBuilder{}
	for i, h := range HostFunctions {
		b.types = append(b.types, h.functionType())
		b.imports = append(b.imports, &wabin.Import{
			Type:     wabin.ExternTypeFunc,
			Module:   ImportModule,
			Name:     h.Name,
			DescFunc: wabin.Index(i),
		})
	}
	b.symbols = Symbols{
		RuleMatch:     RuleMatch,
		IsPatMatch:    IsPatMatch,
		IsPatMatchAt:  IsPatMatchAt,
		IsPatMatchIn:  IsPatMatchIn,
		I64Tmp:        0,
		I32Tmp:        1,
		ExceptionFlag: 2,
	}
	b.main = &InstrSeq{syms: b.symbols}
	return b
}

// MainFn returns the instruction sequence of the module's main function.
// Every call returns the same sequence.  It panics once the builder has been
// finalized.
func (b *ModuleBuilder) MainFn() *InstrSeq {
	if b.main == nil {
		panic("wasm: MainFn called on a finalized or uninitialized ModuleBuilder")
	}
	return b.main
}

// Symbols returns the symbols imported by the module.
func (b *ModuleBuilder) Symbols() Symbols {
	return b.symbols
}

// Build finalizes the builder and returns the immutable module.  The builder
// is consumed even if an error is returned.
func (b *ModuleBuilder) Build() (*Module, error) {
	if b.finalized {
		return nil, ErrBuilderFinalized
	}
	if b.main == nil {
		return nil, ErrNeedsBuilder
	}
	main := b.main
	b.main = nil
	b.finalized = true

	if main.err != nil {
		return nil, errors.Wrap(main.err, "invalid main function")
	}
	if len(main.open) > 0 {
		return nil, errors.Errorf("invalid main function: %d blocks left open", len(main.open))
	}
	body := make([]byte, 0, 4*len(main.prog)+1)
	for n, i := range main.prog {
		var err error
		body, err = i.Encode(body)
		if err != nil {
			return nil, errors.Wrapf(err, "encoding instruction %d", n)
		}
	}
	body = append(body, byte(code.End))

	mainType := wabin.Index(len(b.types))
	mainIdx := wabin.Index(len(b.imports))
	m := &wabin.Module{
		TypeSection:     append(b.types, &wabin.FunctionType{}),
		ImportSection:   b.imports,
		FunctionSection: []wabin.Index{mainType},
		CodeSection:     []*wabin.Code{{LocalTypes: localTypes, Body: body}},
		ExportSection: []*wabin.Export{
			{Type: wabin.ExternTypeFunc, Name: MainFunc, Index: mainIdx},
		},
		NameSection: nameSection(mainIdx),
	}
	bin := binary.EncodeModule(m)
	glog.V(2).Infof("built module: %d instructions, %d bytes", len(main.prog), len(bin))
	return &Module{
		binary:  bin,
		prog:    main.prog,
		symbols: b.symbols,
		hash:    sha256.Sum256(bin),
	}, nil
}

// nameSection names the functions and scratch locals for debuggers and
// stack traces.
func nameSection(mainIdx wabin.Index) *wabin.NameSection {
	n := &wabin.NameSection{}
	for i, h := range HostFunctions {
		n.FunctionNames = append(n.FunctionNames, &wabin.NameAssoc{Index: wabin.Index(i), Name: h.Name})
	}
	n.FunctionNames = append(n.FunctionNames, &wabin.NameAssoc{Index: mainIdx, Name: MainFunc})
	locals := wabin.NameMap{}
	for i, name := range localNames {
		locals = append(locals, &wabin.NameAssoc{Index: wabin.Index(i), Name: name})
	}
	n.LocalNames = wabin.IndirectNameMap{{Index: mainIdx, NameMap: locals}}
	return n
}
