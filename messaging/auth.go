// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Register creates a new account, negotiating the User-Interactive
// Authentication (UIAA) flow when the server demands it:
//
//   - First request carries only username and password. Some servers
//     accept this outright.
//   - A 401 response advertises the acceptable stage flows. The only
//     stage this client completes is m.login.dummy; the second request
//     resubmits with the dummy auth block and the server's session ID.
//
// Negotiation is single-round: a second 401 after the dummy stage is
// ErrUIAAExhausted, not renegotiated. A 401 with no flows is
// ErrNoAuthFlows: the server has no registration path this client
// can take. Any other non-2xx status is returned as *MatrixError.
func (c *Client) Register(ctx context.Context, username, password string, options RegisterOptions) (*AuthResponse, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}
	if options.RetryInteractiveAuth {
		return nil, fmt.Errorf("messaging: multi-round interactive auth is not supported")
	}

	path := c.clientPrefix + "/register"

	// inhibit_login stays false: registration doubles as the first
	// login, and the access token comes back in the same response.
	firstAttempt := registerRequest{
		Username: username,
		Password: password,
	}
	body, err := c.doRequest(ctx, http.MethodPost, path, "", firstAttempt)
	if err == nil {
		// Registration succeeded without UIAA (possible when the
		// server has no auth requirements configured).
		return decodeAuthResponse(body)
	}

	if !isUnauthorizedUIAA(err) {
		return nil, fmt.Errorf("messaging: registration for %q failed: %w", username, err)
	}

	// The 401 body carries the UIAA challenge: the advertised flows
	// and the session ID to echo back.
	var challenge uiaaResponse
	if parseErr := json.Unmarshal(body, &challenge); parseErr != nil {
		return nil, fmt.Errorf("messaging: failed to parse UIAA challenge: %w", parseErr)
	}
	if len(challenge.Flows) == 0 {
		return nil, fmt.Errorf("messaging: registration for %q: %w", username, ErrNoAuthFlows)
	}

	secondAttempt := registerRequest{
		Username: username,
		Password: password,
		Auth: &registerAuth{
			Type:    "m.login.dummy",
			Session: challenge.Session,
		},
	}
	if challenge.Session == "" {
		c.logger.Info("no UIAA session ID provided by server for register", "username", username)
	}

	body, err = c.doRequest(ctx, http.MethodPost, path, "", secondAttempt)
	if err != nil {
		if isUnauthorizedUIAA(err) {
			return nil, fmt.Errorf("messaging: registration for %q: %w", username, ErrUIAAExhausted)
		}
		return nil, fmt.Errorf("messaging: registration for %q failed: %w", username, err)
	}

	auth, err := decodeAuthResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("registered matrix account",
		"user_id", auth.UserID,
		"device_id", auth.DeviceID,
	)
	return auth, nil
}

// Login authenticates with username and password. Empty username or
// password is ErrMissingCredentials and no request is sent. A server
// rejection comes back as *MatrixError with the HTTP status attached.
func (c *Client) Login(ctx context.Context, username, password string) (*AuthResponse, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	body, err := c.doRequest(ctx, http.MethodPost, c.clientPrefix+"/login", "", loginRequest{
		Type: "m.login.password",
		Identifier: loginIdentifier{
			Type: "m.id.user",
			User: username,
		},
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: login for %q failed: %w", username, err)
	}

	auth, err := decodeAuthResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.Info("logged in to matrix",
		"user_id", auth.UserID,
		"device_id", auth.DeviceID,
	)
	return auth, nil
}

// decodeAuthResponse parses a register/login success body. A success
// status with user_id or access_token missing is ErrMalformedResponse.
func decodeAuthResponse(body []byte) (*AuthResponse, error) {
	var auth AuthResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse auth response: %w", err)
	}
	if auth.UserID == "" || auth.AccessToken == "" {
		return nil, fmt.Errorf("messaging: auth response missing user_id or access_token: %w", ErrMalformedResponse)
	}
	return &auth, nil
}

// isUnauthorizedUIAA checks if an error is a 401 from the UIAA flow.
// This is the expected response when registration requires
// authentication stages.
func isUnauthorizedUIAA(err error) bool {
	var matrixErr *MatrixError
	if !errors.As(err, &matrixErr) {
		return false
	}
	return matrixErr.StatusCode == http.StatusUnauthorized
}
