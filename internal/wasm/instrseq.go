// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package wasm

import (
	"github.com/google/rulewasm/internal/wasm/code"
	"github.com/pkg/errors"
)

// InstrSeq accumulates the body of the module's main function.  Every
// emitter returns the sequence so calls can be chained.  The first misuse
// (for example an End with no open block) is recorded and reported by
// ModuleBuilder.Build.
type InstrSeq struct {
	syms Symbols

	prog []code.Instr
	open []code.Opcode // Stack of open Block, Loop and If instructions.
	err  error
}

func (s *InstrSeq) emit(op code.Opcode, operand interface{}) *InstrSeq {
	s.prog = append(s.prog, code.Instr{Opcode: op, Operand: operand})
	return s
}

func (s *InstrSeq) errorf(format string, args ...interface{}) {
	if s.err == nil {
		s.err = errors.Errorf("instruction %d: "+format, append([]interface{}{len(s.prog)}, args...)...)
	}
}

// Len returns the number of instructions emitted so far.
func (s *InstrSeq) Len() int {
	return len(s.prog)
}

// Depth returns the number of structured blocks currently open.
func (s *InstrSeq) Depth() int {
	return len(s.open)
}

// Instr appends an arbitrary instruction.
func (s *InstrSeq) Instr(i code.Instr) *InstrSeq {
	switch i.Opcode {
	case code.Block, code.Loop, code.If:
		s.open = append(s.open, i.Opcode)
	case code.Else:
		if len(s.open) == 0 || s.open[len(s.open)-1] != code.If {
			s.errorf("else outside of if")
		}
	case code.End:
		if len(s.open) == 0 {
			s.errorf("end without open block")
			return s
		}
		s.open = s.open[:len(s.open)-1]
	case code.Br, code.BrIf:
		if d, ok := i.Operand.(uint32); ok && int(d) > len(s.open) {
			s.errorf("branch depth %d exceeds %d open blocks", d, len(s.open))
		}
	}
	return s.emit(i.Opcode, i.Operand)
}

// Op appends an instruction that takes no immediate operand.
func (s *InstrSeq) Op(op code.Opcode) *InstrSeq {
	return s.Instr(code.Instr{Opcode: op})
}

func (s *InstrSeq) I32Const(v int32) *InstrSeq {
	return s.emit(code.I32Const, v)
}

func (s *InstrSeq) I64Const(v int64) *InstrSeq {
	return s.emit(code.I64Const, v)
}

func (s *InstrSeq) LocalGet(l LocalID) *InstrSeq {
	return s.emit(code.LocalGet, l)
}

func (s *InstrSeq) LocalSet(l LocalID) *InstrSeq {
	return s.emit(code.LocalSet, l)
}

func (s *InstrSeq) LocalTee(l LocalID) *InstrSeq {
	return s.emit(code.LocalTee, l)
}

func (s *InstrSeq) Call(f FunctionID) *InstrSeq {
	return s.emit(code.Call, f)
}

func (s *InstrSeq) Block(t code.BlockType) *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.Block, Operand: t})
}

func (s *InstrSeq) Loop(t code.BlockType) *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.Loop, Operand: t})
}

func (s *InstrSeq) If(t code.BlockType) *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.If, Operand: t})
}

func (s *InstrSeq) Else() *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.Else})
}

func (s *InstrSeq) End() *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.End})
}

// Br branches to the enclosing block depth levels out; 0 is the innermost.
func (s *InstrSeq) Br(depth uint32) *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.Br, Operand: depth})
}

// BrIf pops an i32 and branches like Br if it is non-zero.
func (s *InstrSeq) BrIf(depth uint32) *InstrSeq {
	return s.Instr(code.Instr{Opcode: code.BrIf, Operand: depth})
}

// ClearException resets the exception flag.
func (s *InstrSeq) ClearException() *InstrSeq {
	return s.I32Const(0).LocalSet(s.syms.ExceptionFlag)
}

// Raise sets the exception flag and branches out of the enclosing block
// depth levels out, abandoning whatever is on the operand stack.
func (s *InstrSeq) Raise(depth uint32) *InstrSeq {
	return s.I32Const(1).LocalSet(s.syms.ExceptionFlag).Br(depth)
}

// ExceptionRaised pushes the exception flag.
func (s *InstrSeq) ExceptionRaised() *InstrSeq {
	return s.LocalGet(s.syms.ExceptionFlag)
}
