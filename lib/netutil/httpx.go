// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides HTTP I/O utilities for Stampede.
//
// The response helpers (ReadResponse, DecodeResponse) bound all
// response body reads at MaxResponseSize to prevent unbounded memory
// allocation from a misbehaving server. A load generator reads tens of
// thousands of response bodies per minute; one pathological response
// must not take the whole run down.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize is the bound on response body reads: 64 MB. Matrix
// client-server API responses are orders of magnitude smaller; the
// limit is generous so that it never interferes with normal operation,
// including media downloads.
const MaxResponseSize int64 = 64 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
// Use instead of io.ReadAll when reading HTTP response bodies.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and decodes it into v. Replaces the common io.ReadAll +
// json.Unmarshal pattern.
func DecodeResponse(body io.Reader, v any) error {
	data, err := io.ReadAll(io.LimitReader(body, MaxResponseSize))
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}
