// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package codegen translates rule condition trees into the main function of
// a wasm module.
//
// Each rule is evaluated in its own block:
//
//	exception_flag = 0
//	block
//	  <condition>
//	  i32.eqz
//	  br_if 0
//	  call rule_match(id)
//	end
//
// An exception raised while evaluating the condition sets the exception flag
// and branches to the end of the rule's block, so the rule does not match and
// the rules after it are evaluated normally.
package codegen

import (
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/wasm"
	"github.com/google/rulewasm/internal/wasm/code"
)

// codegen represents a code generator.
type codegen struct {
	s    *wasm.InstrSeq
	syms wasm.Symbols

	rule      string    // Name of the rule being compiled, for errors.
	ruleDepth int       // Block depth of the current rule's block.
	errors    ErrorList // Any compile errors detected are accumulated here.
}

// CodeGen emits the conditions of rules into the main function of b.  Rules
// that fail to type check are reported in the returned ErrorList, and no
// code is emitted for them.
func CodeGen(b *wasm.ModuleBuilder, rules []Rule) error {
	c := &codegen{s: b.MainFn(), syms: b.Symbols()}
	for _, r := range rules {
		c.rule = r.Name
		if c.rule == "" {
			c.rule = fmt.Sprintf("rule %d", r.ID)
		}
		if r.ID < 0 {
			c.errorf("negative rule id %d", r.ID)
			continue
		}
		if t := c.check(r.Condition); t != BoolType {
			if t != InvalidType {
				c.errorf("condition has type %s, want bool", t)
			}
			continue
		}
		glog.V(2).Infof("codegen %s: %s", c.rule, Unparse(r.Condition))
		c.genRule(r)
	}
	if len(c.errors) > 0 {
		return c.errors
	}
	return nil
}

func (c *codegen) errorf(format string, args ...interface{}) {
	c.errors.Add(c.rule, fmt.Sprintf(format, args...))
}

// check returns the type of n, or InvalidType after recording an error.
func (c *codegen) check(n Node) Type {
	switch v := n.(type) {
	case *Bool, *PatternMatch:
		return BoolType
	case *Int:
		return IntType
	case *PatternMatchAt:
		if !c.expect(v.Offset, IntType, "offset") {
			return InvalidType
		}
		return BoolType
	case *PatternMatchIn:
		ok := c.expect(v.Lower, IntType, "lower bound")
		if !c.expect(v.Upper, IntType, "upper bound") || !ok {
			return InvalidType
		}
		return BoolType
	case *Not:
		if !c.expect(v.X, BoolType, "operand of not") {
			return InvalidType
		}
		return BoolType
	case *And:
		return c.checkBinary(v.X, v.Y, BoolType, "and")
	case *Or:
		return c.checkBinary(v.X, v.Y, BoolType, "or")
	case *Compare:
		tx, ty := c.check(v.X), c.check(v.Y)
		if tx == InvalidType || ty == InvalidType {
			return InvalidType
		}
		if tx != ty {
			c.errorf("mismatched operand types %s %s %s", tx, v.Op, ty)
			return InvalidType
		}
		if _, ok := compareOpNames[v.Op]; !ok {
			c.errorf("unknown comparison operator %d", v.Op)
			return InvalidType
		}
		if tx == BoolType && v.Op != Eq && v.Op != Ne {
			c.errorf("operator %s not defined on bool", v.Op)
			return InvalidType
		}
		return BoolType
	case *Arith:
		if _, ok := arithOpNames[v.Op]; !ok {
			c.errorf("unknown arithmetic operator %d", v.Op)
			return InvalidType
		}
		if c.checkBinary(v.X, v.Y, IntType, v.Op.String()) == InvalidType {
			return InvalidType
		}
		return IntType
	case nil:
		c.errorf("missing expression")
		return InvalidType
	}
	c.errorf("unexpected node %T", n)
	return InvalidType
}

func (c *codegen) expect(n Node, want Type, what string) bool {
	t := c.check(n)
	if t == InvalidType {
		return false
	}
	if t != want {
		c.errorf("%s has type %s, want %s", what, t, want)
		return false
	}
	return true
}

func (c *codegen) checkBinary(x, y Node, want Type, op string) Type {
	ok := c.expect(x, want, "left operand of "+op)
	if !c.expect(y, want, "right operand of "+op) || !ok {
		return InvalidType
	}
	return want
}

func (c *codegen) genRule(r Rule) {
	c.s.ClearException()
	c.s.Block(code.Void)
	c.ruleDepth = c.s.Depth()
	c.gen(r.Condition)
	c.s.Op(code.I32Eqz).BrIf(0)
	c.s.I32Const(int32(r.ID)).Call(c.syms.RuleMatch)
	c.s.End()
}

// raise sets the exception flag and leaves the current rule's block.
func (c *codegen) raise() {
	c.s.Raise(uint32(c.s.Depth() - c.ruleDepth))
}

// raiseIf raises an exception if the i32 on top of the stack is non-zero.
func (c *codegen) raiseIf() {
	c.s.If(code.Void)
	c.raise()
	c.s.End()
}

// gen emits n, leaving an i32 for booleans or an i64 for integers on the
// stack.  n must have passed check.
func (c *codegen) gen(n Node) {
	switch v := n.(type) {
	case *Bool:
		if v.Value {
			c.s.I32Const(1)
		} else {
			c.s.I32Const(0)
		}
	case *Int:
		c.s.I64Const(v.Value)
	case *PatternMatch:
		c.s.I32Const(int32(v.Pattern)).Call(c.syms.IsPatMatch)
	case *PatternMatchAt:
		c.s.I32Const(int32(v.Pattern))
		c.gen(v.Offset)
		c.s.Call(c.syms.IsPatMatchAt)
	case *PatternMatchIn:
		c.s.I32Const(int32(v.Pattern))
		c.gen(v.Lower)
		c.gen(v.Upper)
		c.s.Call(c.syms.IsPatMatchIn)
	case *Not:
		c.gen(v.X)
		c.s.Op(code.I32Eqz)
	case *And:
		c.gen(v.X)
		c.s.If(code.I32Res)
		c.gen(v.Y)
		c.s.Else().I32Const(0).End()
	case *Or:
		c.gen(v.X)
		c.s.If(code.I32Res).I32Const(1).Else()
		c.gen(v.Y)
		c.s.End()
	case *Compare:
		c.gen(v.X)
		c.gen(v.Y)
		c.s.Op(compareOpcode(v.Op, c.check(v.X)))
	case *Arith:
		c.gen(v.X)
		c.gen(v.Y)
		switch v.Op {
		case Add:
			c.s.Op(code.I64Add)
		case Sub:
			c.s.Op(code.I64Sub)
		case Mul:
			c.s.Op(code.I64Mul)
		case Div:
			c.genDiv()
		case Rem:
			c.genRem()
		}
	}
}

func compareOpcode(op CompareOp, t Type) code.Opcode {
	if t == BoolType {
		if op == Eq {
			return code.I32Eq
		}
		return code.I32Ne
	}
	return map[CompareOp]code.Opcode{
		Eq: code.I64Eq,
		Ne: code.I64Ne,
		Lt: code.I64LtS,
		Le: code.I64LeS,
		Gt: code.I64GtS,
		Ge: code.I64GeS,
	}[op]
}

// genDiv emits a checked signed division of the two i64s on the stack.  The
// divisor is replaced by 1 when it is -1 so that i64.div_s cannot trap on
// MinInt64 / -1; the quotient is then negated, and the overflow raised.
func (c *codegen) genDiv() {
	t, neg := c.syms.I64Tmp, c.syms.I32Tmp
	c.s.LocalSet(t)
	c.s.LocalGet(t).Op(code.I64Eqz)
	c.raiseIf()
	c.s.LocalGet(t).I64Const(-1).Op(code.I64Eq).LocalSet(neg)
	c.s.I64Const(1).LocalGet(t).LocalGet(neg).Op(code.Select)
	c.s.Op(code.I64DivS)
	c.s.LocalTee(t).I64Const(math.MinInt64).Op(code.I64Eq).LocalGet(neg).Op(code.I32And)
	c.raiseIf()
	c.s.LocalGet(t).I64Const(-1).I64Const(1).LocalGet(neg).Op(code.Select).Op(code.I64Mul)
}

// genRem emits a checked signed remainder.  i64.rem_s of MinInt64 and -1 is
// 0 and does not trap.
func (c *codegen) genRem() {
	t := c.syms.I64Tmp
	c.s.LocalSet(t)
	c.s.LocalGet(t).Op(code.I64Eqz)
	c.raiseIf()
	c.s.LocalGet(t).Op(code.I64RemS)
}
