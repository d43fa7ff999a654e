// Copyright 2011 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package code contains the WebAssembly instructions emitted into the rule
// evaluation module.
package code

import "github.com/tetratelabs/wabin/wasm"

// Opcode is a single-byte WebAssembly opcode.
type Opcode byte

// The subset of the WebAssembly 1.0 instruction set used by generated rule
// conditions.  Values are the binary encodings.
const (
	Unreachable = Opcode(wasm.OpcodeUnreachable)
	Nop         = Opcode(wasm.OpcodeNop)

	// Structured control.
	Block = Opcode(wasm.OpcodeBlock) // Operand is the BlockType.
	Loop  = Opcode(wasm.OpcodeLoop)  // Operand is the BlockType.
	If    = Opcode(wasm.OpcodeIf)    // Operand is the BlockType.
	Else  = Opcode(wasm.OpcodeElse)
	End   = Opcode(wasm.OpcodeEnd)
	Br    = Opcode(wasm.OpcodeBr)    // Operand is the relative label depth.
	BrIf  = Opcode(wasm.OpcodeBrIf)  // Operand is the relative label depth.
	Ret   = Opcode(wasm.OpcodeReturn)
	Call  = Opcode(wasm.OpcodeCall)  // Operand is the function index.

	// Parametric.
	Drop   = Opcode(wasm.OpcodeDrop)
	Select = Opcode(wasm.OpcodeSelect)

	// Variables.  Operand is the local index.
	LocalGet = Opcode(wasm.OpcodeLocalGet)
	LocalSet = Opcode(wasm.OpcodeLocalSet)
	LocalTee = Opcode(wasm.OpcodeLocalTee)

	// Constants.  Operand is the int32 or int64 value.
	I32Const = Opcode(wasm.OpcodeI32Const)
	I64Const = Opcode(wasm.OpcodeI64Const)

	// i32 comparisons.
	I32Eqz = Opcode(wasm.OpcodeI32Eqz)
	I32Eq  = Opcode(wasm.OpcodeI32Eq)
	I32Ne  = Opcode(wasm.OpcodeI32Ne)
	I32LtS = Opcode(wasm.OpcodeI32LtS)
	I32GtS = Opcode(wasm.OpcodeI32GtS)
	I32LeS = Opcode(wasm.OpcodeI32LeS)
	I32GeS = Opcode(wasm.OpcodeI32GeS)

	// i64 comparisons.
	I64Eqz = Opcode(wasm.OpcodeI64Eqz)
	I64Eq  = Opcode(wasm.OpcodeI64Eq)
	I64Ne  = Opcode(wasm.OpcodeI64Ne)
	I64LtS = Opcode(wasm.OpcodeI64LtS)
	I64GtS = Opcode(wasm.OpcodeI64GtS)
	I64LeS = Opcode(wasm.OpcodeI64LeS)
	I64GeS = Opcode(wasm.OpcodeI64GeS)

	// i32 arithmetic and logic.
	I32Add = Opcode(wasm.OpcodeI32Add)
	I32Sub = Opcode(wasm.OpcodeI32Sub)
	I32And = Opcode(wasm.OpcodeI32And)
	I32Or  = Opcode(wasm.OpcodeI32Or)
	I32Xor = Opcode(wasm.OpcodeI32Xor)

	// i64 arithmetic and logic.
	I64Add  = Opcode(wasm.OpcodeI64Add)
	I64Sub  = Opcode(wasm.OpcodeI64Sub)
	I64Mul  = Opcode(wasm.OpcodeI64Mul)
	I64DivS = Opcode(wasm.OpcodeI64DivS)
	I64RemS = Opcode(wasm.OpcodeI64RemS)
	I64And  = Opcode(wasm.OpcodeI64And)
	I64Or   = Opcode(wasm.OpcodeI64Or)
	I64Xor  = Opcode(wasm.OpcodeI64Xor)
	I64Shl  = Opcode(wasm.OpcodeI64Shl)
	I64ShrS = Opcode(wasm.OpcodeI64ShrS)

	// Conversions.
	I32WrapI64    = Opcode(wasm.OpcodeI32WrapI64)
	I64ExtendI32S = Opcode(wasm.OpcodeI64ExtendI32S)
	I64ExtendI32U = Opcode(wasm.OpcodeI64ExtendI32U)
)

// BlockType is the immediate of a structured control instruction: either
// the empty result or a single value type.
type BlockType byte

const (
	Void   BlockType = 0x40
	I32Res           = BlockType(wasm.ValueTypeI32)
	I64Res           = BlockType(wasm.ValueTypeI64)
)

func (t BlockType) String() string {
	switch t {
	case Void:
		return "void"
	case I32Res:
		return "i32"
	case I64Res:
		return "i64"
	}
	return "unknown"
}

// opcodes lists the opcodes accepted by Instr.Encode.
var opcodes = map[Opcode]operandKind{
	Unreachable: noOperand, Nop: noOperand,
	Block: blockOperand, Loop: blockOperand, If: blockOperand,
	Else: noOperand, End: noOperand,
	Br: indexOperand, BrIf: indexOperand, Ret: noOperand, Call: indexOperand,
	Drop: noOperand, Select: noOperand,
	LocalGet: indexOperand, LocalSet: indexOperand, LocalTee: indexOperand,
	I32Const: i32Operand, I64Const: i64Operand,
	I32Eqz: noOperand, I32Eq: noOperand, I32Ne: noOperand,
	I32LtS: noOperand, I32GtS: noOperand, I32LeS: noOperand, I32GeS: noOperand,
	I64Eqz: noOperand, I64Eq: noOperand, I64Ne: noOperand,
	I64LtS: noOperand, I64GtS: noOperand, I64LeS: noOperand, I64GeS: noOperand,
	I32Add: noOperand, I32Sub: noOperand, I32And: noOperand, I32Or: noOperand, I32Xor: noOperand,
	I64Add: noOperand, I64Sub: noOperand, I64Mul: noOperand, I64DivS: noOperand, I64RemS: noOperand,
	I64And: noOperand, I64Or: noOperand, I64Xor: noOperand, I64Shl: noOperand, I64ShrS: noOperand,
	I32WrapI64: noOperand, I64ExtendI32S: noOperand, I64ExtendI32U: noOperand,
}

type operandKind int

const (
	noOperand operandKind = iota
	blockOperand
	indexOperand
	i32Operand
	i64Operand
)

func (o Opcode) String() string {
	if _, ok := opcodes[o]; !ok {
		return "bad"
	}
	return wasm.InstructionName(wasm.Opcode(o))
}
