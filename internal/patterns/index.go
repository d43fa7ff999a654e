// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package patterns holds the pattern-match index queried by rule conditions
// at scan time.
//
// The index is filled by the pattern search before the conditions are
// evaluated, and is read-only afterwards.  Offsets of each pattern are kept
// in a compressed bitmap so exact-offset and range queries are answered in
// logarithmic time regardless of how many times the pattern matched.
package patterns

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"github.com/pkg/errors"
)

// PatternID identifies a pattern within one compiled rule set.
type PatternID int32

var (
	ErrUnknownPattern = errors.New("pattern id out of range")
	ErrNegativeOffset = errors.New("negative pattern offset")
)

// Index records the offsets at which each pattern matched.
type Index struct {
	offsets []*roaring64.Bitmap // Indexed by PatternID, nil if no match.
}

// NewIndex creates an empty index for a rule set with numPatterns patterns.
func NewIndex(numPatterns int) *Index {
	if numPatterns < 0 {
		numPatterns = 0
	}
	return &Index{offsets: make([]*roaring64.Bitmap, numPatterns)}
}

// NumPatterns returns the number of patterns the index was sized for.
func (x *Index) NumPatterns() int {
	return len(x.offsets)
}

// Add records a match of pattern id at offset.  Adding the same offset twice
// is a no-op.
func (x *Index) Add(id PatternID, offset int64) error {
	if id < 0 || int(id) >= len(x.offsets) {
		return errors.Wrapf(ErrUnknownPattern, "pattern %d, index has %d", id, len(x.offsets))
	}
	if offset < 0 {
		return errors.Wrapf(ErrNegativeOffset, "pattern %d at %d", id, offset)
	}
	bm := x.offsets[id]
	if bm == nil {
		bm = roaring64.New()
		x.offsets[id] = bm
	}
	bm.Add(uint64(offset))
	return nil
}

func (x *Index) bitmap(id PatternID) *roaring64.Bitmap {
	if x == nil || id < 0 || int(id) >= len(x.offsets) {
		return nil
	}
	return x.offsets[id]
}

// Matched reports whether pattern id matched anywhere.
func (x *Index) Matched(id PatternID) bool {
	bm := x.bitmap(id)
	return bm != nil && !bm.IsEmpty()
}

// MatchedAt reports whether pattern id matched starting exactly at offset.
func (x *Index) MatchedAt(id PatternID, offset int64) bool {
	bm := x.bitmap(id)
	if bm == nil || offset < 0 {
		return false
	}
	return bm.Contains(uint64(offset))
}

// MatchedIn reports whether pattern id matched at some offset in the
// inclusive range [lower, upper].
func (x *Index) MatchedIn(id PatternID, lower, upper int64) bool {
	bm := x.bitmap(id)
	if bm == nil || upper < 0 || lower > upper {
		return false
	}
	if lower < 0 {
		lower = 0
	}
	// Rank(n) counts the offsets <= n.
	below := uint64(0)
	if lower > 0 {
		below = bm.Rank(uint64(lower - 1))
	}
	return bm.Rank(uint64(upper)) > below
}

// Offsets returns the recorded offsets of pattern id in increasing order.
func (x *Index) Offsets(id PatternID) []int64 {
	bm := x.bitmap(id)
	if bm == nil {
		return nil
	}
	vs := bm.ToArray()
	r := make([]int64, len(vs))
	for i, v := range vs {
		r[i] = int64(v)
	}
	return r
}
