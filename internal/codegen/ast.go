// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package codegen

import (
	"github.com/google/rulewasm/internal/patterns"
	"github.com/google/rulewasm/internal/scan"
)

// Type is the type of a condition expression.
type Type int

const (
	InvalidType Type = iota
	BoolType
	IntType
)

func (t Type) String() string {
	switch t {
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	}
	return "invalid"
}

// Node is a node in a rule condition tree.
type Node interface {
	node()
}

// Rule pairs a rule's identifier with its condition.  The condition must be
// of BoolType.
type Rule struct {
	ID        scan.RuleID
	Name      string
	Condition Node
}

// Bool is a boolean constant.
type Bool struct {
	Value bool
}

// Int is an integer constant.
type Int struct {
	Value int64
}

// PatternMatch is true if the pattern matched anywhere in the data.
type PatternMatch struct {
	Pattern patterns.PatternID
}

// PatternMatchAt is true if the pattern matched at Offset.
type PatternMatchAt struct {
	Pattern patterns.PatternID
	Offset  Node
}

// PatternMatchIn is true if the pattern matched at an offset within the
// inclusive range [Lower, Upper].
type PatternMatchIn struct {
	Pattern      patterns.PatternID
	Lower, Upper Node
}

// Not negates a boolean.
type Not struct {
	X Node
}

// And is the short-circuit conjunction of two booleans.
type And struct {
	X, Y Node
}

// Or is the short-circuit disjunction of two booleans.
type Or struct {
	X, Y Node
}

// CompareOp is a comparison operator.
type CompareOp int

const (
	Eq CompareOp = iota
	Ne
	Lt
	Le
	Gt
	Ge
)

var compareOpNames = map[CompareOp]string{Eq: "==", Ne: "!=", Lt: "<", Le: "<=", Gt: ">", Ge: ">="}

func (o CompareOp) String() string {
	if s, ok := compareOpNames[o]; ok {
		return s
	}
	return "?"
}

// Compare compares two integers, or two booleans for equality.
type Compare struct {
	Op   CompareOp
	X, Y Node
}

// ArithOp is an integer arithmetic operator.
type ArithOp int

const (
	Add ArithOp = iota
	Sub
	Mul
	Div
	Rem
)

var arithOpNames = map[ArithOp]string{Add: "+", Sub: "-", Mul: "*", Div: "/", Rem: "%"}

func (o ArithOp) String() string {
	if s, ok := arithOpNames[o]; ok {
		return s
	}
	return "?"
}

// Arith is 64-bit signed integer arithmetic.  Addition, subtraction and
// multiplication wrap.  Division and remainder raise an exception on a zero
// divisor, and division raises one when the quotient overflows.
type Arith struct {
	Op   ArithOp
	X, Y Node
}

func (*Bool) node()           {}
func (*Int) node()            {}
func (*PatternMatch) node()   {}
func (*PatternMatchAt) node() {}
func (*PatternMatchIn) node() {}
func (*Not) node()            {}
func (*And) node()            {}
func (*Or) node()             {}
func (*Compare) node()        {}
func (*Arith) node()          {}
