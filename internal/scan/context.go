// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package scan holds the mutable state of a single scan.
package scan

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/patterns"
)

// RuleID identifies a rule within one compiled rule set.
type RuleID int32

// PatternIndex answers the pattern queries made by rule conditions.  It is
// produced by the pattern search and must not change during a scan.
type PatternIndex interface {
	Matched(id patterns.PatternID) bool
	MatchedAt(id patterns.PatternID, offset int64) bool
	MatchedIn(id patterns.PatternID, lower, upper int64) bool
}

// Context is the per-scan state updated by the host functions.  It is owned
// by the goroutine running the scan and is not safe for concurrent use.
type Context struct {
	numRules      int
	matching      *bitset.BitSet // Bit n is set if rule n matched.
	matchingRules []RuleID       // Matching rules, in the order they first matched.
	index         PatternIndex
}

// NewContext creates the state for one scan of a rule set with numRules
// rules.  A nil index answers every pattern query with false.
func NewContext(numRules int, index PatternIndex) *Context {
	if numRules < 0 {
		numRules = 0
	}
	return &Context{
		numRules: numRules,
		matching: bitset.New(uint(numRules)),
		index:    index,
	}
}

// NumRules returns the number of rules the context was sized for.
func (c *Context) NumRules() int {
	return c.numRules
}

// RuleMatch records that rule id matched.  A rule already recorded is not
// appended to MatchingRules again.  Unknown ids are ignored.
func (c *Context) RuleMatch(id RuleID) {
	if id < 0 || int(id) >= c.numRules {
		glog.V(1).Infof("ignoring match of unknown rule %d (rule set has %d)", id, c.numRules)
		return
	}
	if c.matching.Test(uint(id)) {
		return
	}
	c.matching.Set(uint(id))
	c.matchingRules = append(c.matchingRules, id)
}

// IsPatMatch reports whether pattern id matched anywhere.
func (c *Context) IsPatMatch(id patterns.PatternID) bool {
	return c.index != nil && c.index.Matched(id)
}

// IsPatMatchAt reports whether pattern id matched at offset.
func (c *Context) IsPatMatchAt(id patterns.PatternID, offset int64) bool {
	return c.index != nil && c.index.MatchedAt(id, offset)
}

// IsPatMatchIn reports whether pattern id matched within [lower, upper].
func (c *Context) IsPatMatchIn(id patterns.PatternID, lower, upper int64) bool {
	return c.index != nil && c.index.MatchedIn(id, lower, upper)
}

// Matching returns the bitmap of matching rules.  Its length is always
// NumRules.  The caller must not modify it.
func (c *Context) Matching() *bitset.BitSet {
	return c.matching
}

// MatchingRules returns the matching rules in first-match order.
func (c *Context) MatchingRules() []RuleID {
	return c.matchingRules
}
