// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"text/tabwriter"

	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/wasm/code"
	"github.com/tetratelabs/wazero/api"
)

// Module is the WebAssembly module produced by ModuleBuilder.Build.  It is
// immutable and may be shared by any number of concurrent scans.
type Module struct {
	binary  []byte
	prog    []code.Instr // Body of main, without the final end.
	symbols Symbols
	hash    [sha256.Size]byte
}

// Binary returns the encoded module.  The caller must not modify it.
func (m *Module) Binary() []byte {
	return m.binary
}

// Hash returns the hex SHA-256 of the encoded module.
func (m *Module) Hash() string {
	return hex.EncodeToString(m.hash[:])
}

// Symbols returns the symbols the module was built with.
func (m *Module) Symbols() Symbols {
	return m.symbols
}

// Program returns a copy of the main function body.
func (m *Module) Program() []code.Instr {
	return append([]code.Instr(nil), m.prog...)
}

// DumpByteCode emits the import table and the disassembly of main to a
// string.
func (m *Module) DumpByteCode(name string) string {
	b := new(bytes.Buffer)
	fmt.Fprintf(b, "Module: %s (%s)\n", name, m.Hash()[:12])
	fmt.Fprintln(b, "Imports")
	for i, h := range HostFunctions {
		fmt.Fprintf(b, " %8d %s.%s %v -> %v\n", i, ImportModule, h.Name, valueTypeNames(h.Params), valueTypeNames(h.Results))
	}
	fmt.Fprintln(b, "Locals")
	for i, n := range localNames {
		fmt.Fprintf(b, " %8d %s\n", i, n)
	}
	w := new(tabwriter.Writer)
	w.Init(b, 0, 0, 1, ' ', tabwriter.AlignRight)

	fmt.Fprintln(w, "disasm\tl\top\topnd\t")
	for n, i := range m.prog {
		opnd := ""
		if i.Operand != nil {
			opnd = fmt.Sprint(i.Operand)
		}
		fmt.Fprintf(w, "\t%d\t%s\t%s\t\n", n, i.Opcode, opnd)
	}
	if err := w.Flush(); err != nil {
		glog.Infof("flush error: %s", err)
	}
	return b.String()
}

func valueTypeNames(ts []api.ValueType) []string {
	r := make([]string, 0, len(ts))
	for _, t := range ts {
		r = append(r, api.ValueTypeName(t))
	}
	return r
}
