// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the subset of the Matrix client-server API
// that Stampede's simulated users exercise.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client that handles registration (negotiating the
// User-Interactive Authentication flow with the m.login.dummy stage)
// and password login, returning [AuthResponse] values. Client holds
// the homeserver URL, the configured API version prefix, and the HTTP
// transport, shared across all Sessions derived from it.
//
// [Session] wraps a Client with an access token for authenticated
// operations: room creation and join, message/reaction/typing/receipt
// events, profile display name and avatar get/set, media upload and
// download, room message pagination, and incremental sync. Sessions
// are lightweight (a pointer to the parent Client plus a token) and
// created in large numbers, one per simulated user.
//
// Neither Client nor Session ever retries a request. All server
// rejections are returned as [*MatrixError] with the Matrix error
// code (M_FORBIDDEN, M_LIMIT_EXCEEDED, etc.) and HTTP status code;
// [IsMatrixError] tests for a specific code. Failures the client
// detects on its own (empty credentials, missing auth flows, a
// malformed success body) are sentinel errors wrapped with %w.
// Request URLs are built by string concatenation rather than url.URL
// to avoid double-encoding of path segments.
package messaging
