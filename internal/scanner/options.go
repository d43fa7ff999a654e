// Copyright 2026 Google Inc. All Rights Reserved.
// This file is available under the Apache license.

package scanner

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Option configures a new Scanner.
type Option func(*Scanner) error

// Name sets the name of the rule set, used in logs and as the metric label.
func Name(name string) Option {
	return func(s *Scanner) error {
		if name == "" {
			return errors.New("empty scanner name")
		}
		s.name = name
		return nil
	}
}

// DumpBytecode instructs the Scanner to print the disassembled module when
// it is created.
func DumpBytecode() Option {
	return func(s *Scanner) error {
		s.dumpBytecode = true
		return nil
	}
}

// LogRuntimeErrors instructs the Scanner to emit scan errors into the log.
func LogRuntimeErrors() Option {
	return func(s *Scanner) error {
		s.logRuntimeErrors = true
		return nil
	}
}

// PrometheusRegisterer passes in a registry for setting up exported metrics.
func PrometheusRegisterer(reg prometheus.Registerer) Option {
	return func(s *Scanner) error {
		for _, c := range []prometheus.Collector{ScanDurations, RuleMatches} {
			if err := reg.Register(c); err != nil {
				if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
					return errors.Wrap(err, "registering scanner metrics")
				}
			}
		}
		return nil
	}
}
