// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"fmt"
	"strings"

	"github.com/stampede-labs/stampede/messaging"
)

// MediaCache records which content locators a simulated user has
// already fetched, standing in for a real client's on-disk media
// cache. It is owned by a single User; there is no cross-user
// deduplication, matching the per-client caching a real deployment
// would see.
//
// A locator is marked fetched even when the download fails: a real
// client would not hammer the same broken resource on every timeline
// render, and neither does the simulation.
type MediaCache struct {
	fetched map[string]bool
}

// NewMediaCache creates an empty cache.
func NewMediaCache() *MediaCache {
	return &MediaCache{fetched: make(map[string]bool)}
}

// Fetched reports whether the locator has already been downloaded
// (or attempted) this run.
func (c *MediaCache) Fetched(locator string) bool {
	return c.fetched[locator]
}

// MarkFetched records a download attempt for the locator.
func (c *MediaCache) MarkFetched(locator string) {
	c.fetched[locator] = true
}

// Len returns the number of distinct locators attempted.
func (c *MediaCache) Len() int {
	return len(c.fetched)
}

// ParseMXC splits an mxc-style content locator
// ("mxc://serverName/mediaId") into its server name and media ID.
// The media ID is the last path segment and the server name the one
// before it; locators with fewer than two segments after the scheme
// are rejected with messaging.ErrMalformedMXC.
func ParseMXC(locator string) (serverName, mediaID string, err error) {
	segments := strings.Split(locator, "/")
	if len(segments) <= 2 {
		return "", "", fmt.Errorf("parsing %q: %w", locator, messaging.ErrMalformedMXC)
	}
	mediaID = segments[len(segments)-1]
	serverName = segments[len(segments)-2]
	if serverName == "" || mediaID == "" {
		return "", "", fmt.Errorf("parsing %q: %w", locator, messaging.ErrMalformedMXC)
	}
	return serverName, mediaID, nil
}
