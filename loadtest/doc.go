// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package loadtest simulates populations of Matrix chat users for
// load generation.
//
// Each simulated user is a [User]: one account's credentials, room
// membership, media cache, and the local state a real client keeps
// (recent messages, memoized profile lookups). A [Workload] drives a
// User through a weighted random mix of chat behaviors (sending,
// reading, reacting, paginating, going idle) while an optional
// background sync loop keeps its view of the world current.
//
// Users share a [CredentialStore] so access tokens and sync positions
// survive across runs, and a [Stats] collector so per-operation
// request and failure counts can be summarized at the end of a test.
//
// The simulation deliberately mirrors client-side frugality: media is
// downloaded at most once per locator, profile lookups are memoized,
// and identical uploads are deduplicated by content hash. Load placed
// on the server is the load a real client population would place, not
// an artifact of the harness.
package loadtest
