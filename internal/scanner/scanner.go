// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

// Package scanner runs a compiled rule set against the pattern matches found
// in a piece of data.
package scanner

import (
	"context"
	"expvar"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/golang/glog"
	"github.com/google/rulewasm/internal/scan"
	"github.com/google/rulewasm/internal/wasm"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opencensus.io/trace"
)

var (
	// ScanCount counts the number of scans started.
	ScanCount = expvar.NewInt("scans_total")
	// ScanErrors counts the number of failed scans, by rule set name.
	ScanErrors = expvar.NewMap("scan_errors_total")

	// ScanDurations is the distribution of scan times by rule set.
	ScanDurations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rulewasm",
		Subsystem: "scanner",
		Name:      "scan_duration_seconds",
		Help:      "Rule evaluation time distribution in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.00002, 2.0, 10),
	}, []string{"rules"})

	// RuleMatches counts the rules reported as matching, by rule set.
	RuleMatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rulewasm",
		Subsystem: "scanner",
		Name:      "rule_matches_total",
		Help:      "Number of rules that matched.",
	}, []string{"rules"})
)

// Results holds the outcome of a scan.
type Results struct {
	// Matching has the bit of every matching rule set.
	Matching *bitset.BitSet
	// MatchingRules lists the matching rules in the order they were
	// reported, each once.
	MatchingRules []scan.RuleID
}

// Scanner evaluates a rule set.  It is safe for concurrent use; every scan
// has its own state.
type Scanner struct {
	name   string
	engine *wasm.Engine
	rules  Rules
	exe    *wasm.Executable

	dumpBytecode     bool
	logRuntimeErrors bool
}

// New creates a Scanner for rules, compiling the module on the engine.
func New(ctx context.Context, engine *wasm.Engine, rules Rules, options ...Option) (*Scanner, error) {
	if engine == nil {
		return nil, errors.New("New needs an engine")
	}
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	s := &Scanner{engine: engine, rules: rules}
	if err := s.SetOption(options...); err != nil {
		return nil, err
	}
	if s.name == "" {
		s.name = rules.Module.Hash()[:12]
	}
	if s.dumpBytecode {
		glog.Info(rules.Module.DumpByteCode(s.name))
	}
	exe, err := engine.Compile(ctx, rules.Module)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling rule set %s", s.name)
	}
	s.exe = exe
	glog.V(1).Infof("scanner %s ready: %d rules, %d patterns", s.name, rules.NumRules, rules.NumPatterns)
	return s, nil
}

// SetOption takes one or more option functions and applies them in order to
// the Scanner.
func (s *Scanner) SetOption(options ...Option) error {
	for _, option := range options {
		if err := option(s); err != nil {
			return err
		}
	}
	return nil
}

// Name returns the name of the rule set.
func (s *Scanner) Name() string {
	return s.name
}

// Rules returns the rule set the scanner evaluates.
func (s *Scanner) Rules() Rules {
	return s.rules
}

// Scan evaluates every rule against the pattern matches in index.  A nil
// index is a scan in which no pattern matched.
func (s *Scanner) Scan(ctx context.Context, index scan.PatternIndex) (*Results, error) {
	ctx, span := trace.StartSpan(ctx, "Scanner.Scan")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("rules", s.name))

	ScanCount.Add(1)
	start := time.Now()
	defer func() {
		ScanDurations.WithLabelValues(s.name).Observe(time.Since(start).Seconds())
	}()

	sc := scan.NewContext(s.rules.NumRules, index)
	if err := s.engine.Run(ctx, s.exe, sc); err != nil {
		ScanErrors.Add(s.name, 1)
		span.SetStatus(trace.Status{Code: trace.StatusCodeInternal, Message: err.Error()})
		if s.logRuntimeErrors {
			glog.Infof("scan with %s failed: %s", s.name, err)
		}
		return nil, errors.Wrapf(err, "scan with %s", s.name)
	}
	matching := sc.MatchingRules()
	RuleMatches.WithLabelValues(s.name).Add(float64(len(matching)))
	span.AddAttributes(trace.Int64Attribute("matching_rules", int64(len(matching))))
	if glog.V(2) {
		glog.Infof("scan with %s: rules %v matched", s.name, matching)
	}
	return &Results{Matching: sc.Matching(), MatchingRules: matching}, nil
}
