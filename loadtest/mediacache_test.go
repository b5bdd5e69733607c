// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"errors"
	"testing"

	"github.com/stampede-labs/stampede/messaging"
)

func TestParseMXC(t *testing.T) {
	t.Run("valid locator", func(t *testing.T) {
		serverName, mediaID, err := ParseMXC("mxc://example.com/abc123")
		if err != nil {
			t.Fatalf("ParseMXC failed: %v", err)
		}
		if serverName != "example.com" {
			t.Errorf("serverName = %q", serverName)
		}
		if mediaID != "abc123" {
			t.Errorf("mediaID = %q", mediaID)
		}
	})

	t.Run("malformed locators", func(t *testing.T) {
		for _, locator := range []string{
			"",
			"mxc://",
			"mxc://example.com",
			"not-a-locator",
			"mxc:///abc123",
		} {
			_, _, err := ParseMXC(locator)
			if !errors.Is(err, messaging.ErrMalformedMXC) {
				t.Errorf("ParseMXC(%q) = %v, want ErrMalformedMXC", locator, err)
			}
		}
	})
}

func TestMediaCache(t *testing.T) {
	cache := NewMediaCache()
	locator := "mxc://example.com/abc123"

	if cache.Fetched(locator) {
		t.Fatal("empty cache should report unfetched")
	}
	cache.MarkFetched(locator)
	if !cache.Fetched(locator) {
		t.Error("expected fetched after marking")
	}
	if cache.Len() != 1 {
		t.Errorf("Len = %d, want 1", cache.Len())
	}

	// Marking again must not grow the cache.
	cache.MarkFetched(locator)
	if cache.Len() != 1 {
		t.Errorf("Len = %d after re-mark, want 1", cache.Len())
	}
}
