// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package codegen

import (
	"strconv"
	"strings"
)

// Unparse converts a condition tree back to text, fully parenthesised.
func Unparse(n Node) string {
	var b strings.Builder
	unparse(&b, n)
	return b.String()
}

func unparse(b *strings.Builder, n Node) {
	switch v := n.(type) {
	case *Bool:
		b.WriteString(strconv.FormatBool(v.Value))
	case *Int:
		b.WriteString(strconv.FormatInt(v.Value, 10))
	case *PatternMatch:
		b.WriteString("$p" + strconv.Itoa(int(v.Pattern)))
	case *PatternMatchAt:
		b.WriteString("$p" + strconv.Itoa(int(v.Pattern)) + " at ")
		unparse(b, v.Offset)
	case *PatternMatchIn:
		b.WriteString("$p" + strconv.Itoa(int(v.Pattern)) + " in (")
		unparse(b, v.Lower)
		b.WriteString("..")
		unparse(b, v.Upper)
		b.WriteString(")")
	case *Not:
		b.WriteString("not ")
		unparse(b, v.X)
	case *And:
		binary(b, v.X, "and", v.Y)
	case *Or:
		binary(b, v.X, "or", v.Y)
	case *Compare:
		binary(b, v.X, v.Op.String(), v.Y)
	case *Arith:
		binary(b, v.X, v.Op.String(), v.Y)
	case nil:
		b.WriteString("<nil>")
	default:
		b.WriteString("<unknown>")
	}
}

func binary(b *strings.Builder, x Node, op string, y Node) {
	b.WriteString("(")
	unparse(b, x)
	b.WriteString(" " + op + " ")
	unparse(b, y)
	b.WriteString(")")
}
