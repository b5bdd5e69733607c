// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"errors"
	"testing"
)

func TestStats(t *testing.T) {
	t.Run("records requests and failures", func(t *testing.T) {
		stats := NewStats()
		stats.Record("login", nil)
		stats.Record("login", nil)
		stats.Record("login", errors.New("boom"))
		stats.Record("sync", nil)

		snapshot := stats.Snapshot()
		login := snapshot["login"]
		if login.Requests != 3 || login.Failures != 1 {
			t.Errorf("login = %+v, want 3 requests, 1 failure", login)
		}
		sync := snapshot["sync"]
		if sync.Requests != 1 || sync.Failures != 0 {
			t.Errorf("sync = %+v, want 1 request, 0 failures", sync)
		}
	})

	t.Run("nil stats is a no-op", func(t *testing.T) {
		var stats *Stats
		stats.Record("login", nil) // must not panic
		if stats.Snapshot() != nil {
			t.Error("nil stats snapshot should be nil")
		}
	})
}
