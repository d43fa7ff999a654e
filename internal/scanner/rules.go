// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package scanner

import (
	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/codegen"
	"github.com/google/rulewasm/internal/wasm"
	"github.com/pkg/errors"
)

// Rules is a compiled rule set: the module evaluating the rule conditions,
// and the number of rules and patterns it refers to.
type Rules struct {
	Module      *wasm.Module
	NumRules    int
	NumPatterns int
}

// Validate checks that the rule set is usable by a Scanner.
func (r Rules) Validate() error {
	if r.Module == nil {
		return errors.New("rule set has no module")
	}
	if r.NumRules < 0 {
		return errors.Errorf("negative rule count %d", r.NumRules)
	}
	if r.NumPatterns < 0 {
		return errors.Errorf("negative pattern count %d", r.NumPatterns)
	}
	return nil
}

// Compile generates the module for rules.  Rule ids must be below the number
// of rules given; numPatterns bounds the pattern ids the conditions use.
func Compile(rules []codegen.Rule, numPatterns int) (Rules, error) {
	for _, r := range rules {
		if int(r.ID) >= len(rules) {
			return Rules{}, errors.Errorf("rule %q: id %d out of range for %d rules", r.Name, r.ID, len(rules))
		}
	}
	b := wasm.NewModuleBuilder()
	if err := codegen.CodeGen(b, rules); err != nil {
		return Rules{}, err
	}
	m, err := b.Build()
	if err != nil {
		return Rules{}, errors.Wrap(err, "building module")
	}
	glog.V(1).Infof("compiled %d rules into module %s", len(rules), m.Hash())
	return Rules{Module: m, NumRules: len(rules), NumPatterns: numPatterns}, nil
}
