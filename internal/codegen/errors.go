// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package codegen

import (
	"fmt"
)

type compileError struct {
	rule string
	msg  string
}

func (e compileError) Error() string {
	return e.rule + ": " + e.msg
}

// ErrorList contains a list of compile errors.
type ErrorList []*compileError

// Add appends an error for a rule to the list of errors.
func (p *ErrorList) Add(rule, msg string) {
	*p = append(*p, &compileError{rule, msg})
}

// ErrorList implements the error interface.
func (p ErrorList) Error() string {
	switch len(p) {
	case 0:
		return "no errors"
	case 1:
		return p[0].Error()
	}
	var r string
	for _, e := range p {
		r += fmt.Sprintf("%s\n", e)
	}
	return r[:len(r)-1]
}
