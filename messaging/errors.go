// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"errors"
	"fmt"
)

// MatrixError represents a structured error response from the Matrix
// homeserver. Callers can use errors.As to extract the structured
// information:
//
//	var matrixErr *MatrixError
//	if errors.As(err, &matrixErr) {
//	    if matrixErr.Code == ErrCodeForbidden { ... }
//	}
type MatrixError struct {
	// Code is the Matrix error code (e.g., "M_FORBIDDEN", "M_UNKNOWN_TOKEN").
	Code string `json:"errcode"`
	// Message is the human-readable error description from the server.
	Message string `json:"error"`
	// StatusCode is the HTTP status code of the response.
	StatusCode int `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// Standard Matrix error codes.
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeUserInUse     = "M_USER_IN_USE"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnknown       = "M_UNKNOWN"
	ErrCodeInvalidParam  = "M_INVALID_PARAM"
	ErrCodeMissingParam  = "M_MISSING_PARAM"
	ErrCodeRoomInUse     = "M_ROOM_IN_USE"
)

// Sentinel errors for failures the simulated client produces on its
// own, without (or before) a server response. Server rejections are
// reported as *MatrixError instead, with the HTTP status attached.
var (
	// ErrMissingCredentials: login was attempted with an empty
	// username or password. No request is sent.
	ErrMissingCredentials = errors.New("messaging: missing username or password")

	// ErrNoAuthFlows: the registration 401 advertised no UIAA flows,
	// so the server has no registration path this client can take.
	ErrNoAuthFlows = errors.New("messaging: server offered no registration auth flows")

	// ErrUIAAExhausted: the server demanded further interactive auth
	// after the dummy stage was submitted. Negotiation is single-round.
	ErrUIAAExhausted = errors.New("messaging: interactive auth not satisfied after dummy stage")

	// ErrMalformedResponse: a success response was missing a required
	// field (user_id, access_token).
	ErrMalformedResponse = errors.New("messaging: malformed server response")

	// ErrMalformedMXC: an mxc:// content locator had fewer than two
	// path segments.
	ErrMalformedMXC = errors.New("messaging: malformed mxc URL")

	// ErrNoCredential: an authenticated operation was invoked without
	// an access token. The operation performs no network I/O.
	ErrNoCredential = errors.New("messaging: no access token")
)

// IsMatrixError checks whether err is a *MatrixError with the given error code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	if errors.As(err, &matrixErr) {
		return matrixErr.Code == code
	}
	return false
}
