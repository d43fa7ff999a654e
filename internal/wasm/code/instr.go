// Copyright 2011 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package code

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wabin/leb128"
)

type Instr struct {
	Opcode  Opcode
	Operand interface{}
}

// debug print for instructions.
func (i Instr) String() string {
	if i.Operand == nil {
		return fmt.Sprintf("{%s}", i.Opcode)
	}
	return fmt.Sprintf("{%s %v}", i.Opcode, i.Operand)
}

// Encode appends the binary encoding of the instruction to buf.  An error is
// returned if the opcode is unknown or the operand does not have the type
// the opcode requires.
func (i Instr) Encode(buf []byte) ([]byte, error) {
	kind, ok := opcodes[i.Opcode]
	if !ok {
		return buf, errors.Errorf("illegal instruction: 0x%02x", byte(i.Opcode))
	}
	buf = append(buf, byte(i.Opcode))
	switch kind {
	case noOperand:
		if i.Operand != nil {
			return buf, errors.Errorf("%s takes no operand, got %v", i.Opcode, i.Operand)
		}
	case blockOperand:
		bt, ok := i.Operand.(BlockType)
		if !ok {
			return buf, errors.Errorf("%s needs a block type, got %T", i.Opcode, i.Operand)
		}
		buf = append(buf, byte(bt))
	case indexOperand:
		idx, ok := i.Operand.(uint32)
		if !ok {
			return buf, errors.Errorf("%s needs an index, got %T", i.Opcode, i.Operand)
		}
		buf = append(buf, leb128.EncodeUint32(idx)...)
	case i32Operand:
		v, ok := i.Operand.(int32)
		if !ok {
			return buf, errors.Errorf("%s needs an int32, got %T", i.Opcode, i.Operand)
		}
		buf = append(buf, leb128.EncodeInt32(v)...)
	case i64Operand:
		v, ok := i.Operand.(int64)
		if !ok {
			return buf, errors.Errorf("%s needs an int64, got %T", i.Opcode, i.Operand)
		}
		buf = append(buf, leb128.EncodeInt64(v)...)
	}
	return buf, nil
}
