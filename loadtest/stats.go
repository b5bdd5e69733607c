// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"log/slog"
	"sort"
	"sync"
)

// Stats accumulates per-operation request and failure counts across
// all simulated users. One Stats value is shared by every User in a
// run; recording is mutex-guarded and cheap relative to the network
// round-trip it follows.
type Stats struct {
	mu         sync.Mutex
	operations map[string]*OpStats
}

// OpStats holds the counters for one operation.
type OpStats struct {
	Requests int64
	Failures int64
}

// NewStats creates an empty collector.
func NewStats() *Stats {
	return &Stats{operations: make(map[string]*OpStats)}
}

// Record counts one request for the named operation, and one failure
// when err is non-nil. A nil *Stats is valid and records nothing,
// so tests can construct Users without a collector.
func (s *Stats) Record(operation string, err error) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	counters, ok := s.operations[operation]
	if !ok {
		counters = &OpStats{}
		s.operations[operation] = counters
	}
	counters.Requests++
	if err != nil {
		counters.Failures++
	}
}

// Snapshot returns a copy of all counters.
func (s *Stats) Snapshot() map[string]OpStats {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make(map[string]OpStats, len(s.operations))
	for operation, counters := range s.operations {
		snapshot[operation] = *counters
	}
	return snapshot
}

// LogSummary emits one log line per operation, sorted by name.
func (s *Stats) LogSummary(logger *slog.Logger) {
	snapshot := s.Snapshot()
	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		counters := snapshot[name]
		logger.Info("operation summary",
			"operation", name,
			"requests", counters.Requests,
			"failures", counters.Failures,
		)
	}
}
