// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"
)

// Session is an authenticated Matrix session for one simulated user.
// It wraps a Client with an access token for making authenticated API
// calls. Sessions are lightweight and safe to create in large numbers;
// the load driver holds one Client and thousands of Sessions.
//
// A Session is driven by a single goroutine (one per simulated user)
// and is not safe for concurrent use, except for SendEvent's
// transaction counter which is atomic.
type Session struct {
	client      *Client
	accessToken string
	userID      UserID
	deviceID    string

	// transactionCounter generates unique transaction IDs for idempotent sends.
	transactionCounter atomic.Int64
}

// NewSession creates a Session from a register/login response.
func NewSession(client *Client, auth *AuthResponse) *Session {
	return &Session{
		client:      client,
		accessToken: auth.AccessToken,
		userID:      auth.UserID,
		deviceID:    auth.DeviceID,
	}
}

// SessionFromToken creates a Session from a previously saved access
// token (resume-from-prior-run). This does NOT validate the token;
// the first API call will fail if it has expired. Use WhoAmI to check
// eagerly.
func (c *Client) SessionFromToken(userID UserID, accessToken string) *Session {
	return &Session{
		client:      c,
		accessToken: accessToken,
		userID:      userID,
	}
}

// UserID returns the fully-qualified Matrix user ID (e.g., "@alice:example.org").
func (s *Session) UserID() UserID {
	return s.userID
}

// AccessToken returns the access token for persistence by the driver.
func (s *Session) AccessToken() string {
	return s.accessToken
}

// DeviceID returns the device ID for this session. Empty for sessions
// resumed from a saved token.
func (s *Session) DeviceID() string {
	return s.deviceID
}

// WhoAmI validates the access token and returns the user ID.
// Useful for checking whether a stored token is still valid.
func (s *Session) WhoAmI(ctx context.Context) (UserID, error) {
	body, err := s.client.doRequest(ctx, http.MethodGet, s.client.clientPrefix+"/account/whoami", s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: whoami failed: %w", err)
	}

	var response WhoAmIResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse whoami response: %w", err)
	}
	return response.UserID, nil
}

// Logout invalidates the session's access token on the server.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.client.doRequest(ctx, http.MethodPost, s.client.clientPrefix+"/logout", s.accessToken, struct{}{})
	if err != nil {
		return fmt.Errorf("messaging: logout failed: %w", err)
	}
	return nil
}

// CreateRoom creates a new Matrix room.
func (s *Session) CreateRoom(ctx context.Context, request CreateRoomRequest) (RoomID, error) {
	body, err := s.client.doRequest(ctx, http.MethodPost, s.client.clientPrefix+"/createRoom", s.accessToken, request)
	if err != nil {
		return "", fmt.Errorf("messaging: create room failed: %w", err)
	}

	var response CreateRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse createRoom response: %w", err)
	}
	return response.RoomID, nil
}

// JoinRoom joins a room by ID. Returns the room ID echoed by the server.
func (s *Session) JoinRoom(ctx context.Context, roomID RoomID) (RoomID, error) {
	path := s.client.clientPrefix + "/rooms/" + url.PathEscape(string(roomID)) + "/join"
	body, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, struct{}{})
	if err != nil {
		return "", fmt.Errorf("messaging: join room %s failed: %w", roomID, err)
	}

	var response JoinRoomResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse join response: %w", err)
	}
	return response.RoomID, nil
}

// SendMessage sends an m.room.message event to a room. Returns the
// event ID of the sent message.
func (s *Session) SendMessage(ctx context.Context, roomID RoomID, content MessageContent) (EventID, error) {
	return s.SendEvent(ctx, roomID, "m.room.message", content)
}

// SendReaction sends an m.reaction annotation to a room.
func (s *Session) SendReaction(ctx context.Context, roomID RoomID, content ReactionContent) (EventID, error) {
	return s.SendEvent(ctx, roomID, "m.reaction", content)
}

// SendEvent sends an event of any type to a room.
// Uses Matrix's idempotent PUT with a transaction ID.
// Returns the event ID.
func (s *Session) SendEvent(ctx context.Context, roomID RoomID, eventType string, content any) (EventID, error) {
	transactionID := s.nextTransactionID()
	path := fmt.Sprintf("%s/rooms/%s/send/%s/%s",
		s.client.clientPrefix,
		url.PathEscape(string(roomID)),
		url.PathEscape(eventType),
		url.PathEscape(transactionID),
	)

	body, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, content)
	if err != nil {
		return "", fmt.Errorf("messaging: send event to %q failed: %w", roomID, err)
	}

	var response SendEventResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse send response: %w", err)
	}
	return response.EventID, nil
}

// SetTyping starts or stops the user's typing notification in a room.
// timeout is how long the server should keep the indicator alive.
func (s *Session) SetTyping(ctx context.Context, roomID RoomID, typing bool, timeout time.Duration) error {
	path := fmt.Sprintf("%s/rooms/%s/typing/%s",
		s.client.clientPrefix,
		url.PathEscape(string(roomID)),
		url.PathEscape(string(s.userID)),
	)
	request := typingRequest{Typing: typing}
	if typing {
		request.TimeoutMS = timeout.Milliseconds()
	}
	_, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, request)
	if err != nil {
		return fmt.Errorf("messaging: set typing in %q failed: %w", roomID, err)
	}
	return nil
}

// SendReadReceipt marks the given event as read on the main timeline.
func (s *Session) SendReadReceipt(ctx context.Context, roomID RoomID, eventID EventID) error {
	path := fmt.Sprintf("%s/rooms/%s/receipt/m.read/%s",
		s.client.clientPrefix,
		url.PathEscape(string(roomID)),
		url.PathEscape(string(eventID)),
	)
	_, err := s.client.doRequest(ctx, http.MethodPost, path, s.accessToken, receiptRequest{ThreadID: "main"})
	if err != nil {
		return fmt.Errorf("messaging: read receipt in %q failed: %w", roomID, err)
	}
	return nil
}

// SetDisplayName sets this user's profile display name.
func (s *Session) SetDisplayName(ctx context.Context, displayName string) error {
	path := s.client.clientPrefix + "/profile/" + url.PathEscape(string(s.userID)) + "/displayname"
	_, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, displayNameBody{DisplayName: displayName})
	if err != nil {
		return fmt.Errorf("messaging: set display name failed: %w", err)
	}
	return nil
}

// GetDisplayName fetches the display name for a Matrix user from their
// profile. Returns an empty string (not an error) if the user has no
// display name set.
func (s *Session) GetDisplayName(ctx context.Context, userID UserID) (string, error) {
	path := s.client.clientPrefix + "/profile/" + url.PathEscape(string(userID)) + "/displayname"
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: get display name for %q failed: %w", userID, err)
	}

	var response displayNameBody
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse display name response: %w", err)
	}
	return response.DisplayName, nil
}

// SetAvatarURL sets this user's profile avatar to the given mxc URI.
func (s *Session) SetAvatarURL(ctx context.Context, mxcURI string) error {
	path := s.client.clientPrefix + "/profile/" + url.PathEscape(string(s.userID)) + "/avatar_url"
	_, err := s.client.doRequest(ctx, http.MethodPut, path, s.accessToken, avatarURLBody{AvatarURL: mxcURI})
	if err != nil {
		return fmt.Errorf("messaging: set avatar url failed: %w", err)
	}
	return nil
}

// GetAvatarURL fetches the avatar mxc URI for a Matrix user. Returns
// an empty string (not an error) if the user has no avatar set.
func (s *Session) GetAvatarURL(ctx context.Context, userID UserID) (string, error) {
	path := s.client.clientPrefix + "/profile/" + url.PathEscape(string(userID)) + "/avatar_url"
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return "", fmt.Errorf("messaging: get avatar url for %q failed: %w", userID, err)
	}

	var response avatarURLBody
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse avatar url response: %w", err)
	}
	return response.AvatarURL, nil
}

// UploadMedia uploads content to the homeserver's media repository.
// Returns the mxc URI (e.g., "mxc://example.org/abc123").
func (s *Session) UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error) {
	responseBody, err := s.client.doRequestRaw(ctx, http.MethodPost,
		s.client.mediaPrefix+"/upload", s.accessToken, contentType, body)
	if err != nil {
		return "", fmt.Errorf("messaging: media upload failed: %w", err)
	}

	var response UploadResponse
	if err := json.Unmarshal(responseBody, &response); err != nil {
		return "", fmt.Errorf("messaging: failed to parse upload response: %w", err)
	}
	return response.ContentURI, nil
}

// DownloadMedia fetches a media blob by server name and media ID. The
// content is read and discarded; the load generator exercises the
// media path without keeping the bytes.
func (s *Session) DownloadMedia(ctx context.Context, serverName, mediaID string) error {
	path := fmt.Sprintf("%s/download/%s/%s",
		s.client.mediaPrefix,
		url.PathEscape(serverName),
		url.PathEscape(mediaID),
	)
	_, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil)
	if err != nil {
		return fmt.Errorf("messaging: media download %s/%s failed: %w", serverName, mediaID, err)
	}
	return nil
}

// RoomMessages fetches messages from a room with pagination.
func (s *Session) RoomMessages(ctx context.Context, roomID RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	path := s.client.clientPrefix + "/rooms/" + url.PathEscape(string(roomID)) + "/messages"

	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	direction := options.Direction
	if direction == "" {
		direction = "b" // backward (newest first) by default
	}
	query.Set("dir", direction)
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: room messages for %q failed: %w", roomID, err)
	}

	var response RoomMessagesResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse messages response: %w", err)
	}
	return &response, nil
}

// Sync performs an incremental sync with the homeserver.
// For initial sync, leave options.Since empty.
// For long-polling, set options.Timeout to the desired wait in milliseconds.
func (s *Session) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}

	body, err := s.client.doRequest(ctx, http.MethodGet, s.client.clientPrefix+"/sync", s.accessToken, nil, query)
	if err != nil {
		return nil, fmt.Errorf("messaging: sync failed: %w", err)
	}

	var response SyncResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("messaging: failed to parse sync response: %w", err)
	}
	return &response, nil
}

// nextTransactionID generates a unique transaction ID for idempotent
// event sending. Format: "stampede-<timestamp_ms>-<counter>" to ensure
// uniqueness across restarts.
func (s *Session) nextTransactionID() string {
	counter := s.transactionCounter.Add(1)
	return fmt.Sprintf("stampede-%d-%d", time.Now().UnixMilli(), counter)
}
