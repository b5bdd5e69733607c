// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import "strings"

// UserID is a fully-qualified Matrix user ID (e.g., "@alice:example.org").
type UserID string

// Domain returns the server portion of the user ID: the suffix after
// the last ':'. Returns "" if the ID has no ':'.
func (u UserID) Domain() string {
	index := strings.LastIndexByte(string(u), ':')
	if index < 0 {
		return ""
	}
	return string(u[index+1:])
}

// RoomID is an opaque Matrix room ID (e.g., "!abc123:example.org").
// Room IDs are server-assigned; the client never constructs them.
type RoomID string

// EventID is an opaque Matrix event ID (e.g., "$0123abcd").
type EventID string

// AuthResponse is the decoded body of a successful /register or
// /login response.
type AuthResponse struct {
	UserID      UserID `json:"user_id"`
	AccessToken string `json:"access_token"`
	DeviceID    string `json:"device_id"`
}

// RegisterOptions configures the registration negotiation.
type RegisterOptions struct {
	// RetryInteractiveAuth controls whether a second 401 after the
	// dummy stage is renegotiated. Multi-round negotiation is not
	// implemented; setting this is rejected at call time so the
	// limitation is explicit rather than silent.
	RetryInteractiveAuth bool
}

// uiaaResponse is the 401 body of a User-Interactive Authentication
// challenge during registration.
type uiaaResponse struct {
	Session   string     `json:"session"`
	Flows     []uiaaFlow `json:"flows"`
	Completed []string   `json:"completed"`
}

// uiaaFlow is one acceptable stage sequence advertised by the server.
type uiaaFlow struct {
	Stages []string `json:"stages"`
}

// registerRequest is the body for POST /register. Auth is nil on the
// first attempt and carries the dummy stage on the second.
type registerRequest struct {
	Username     string        `json:"username"`
	Password     string        `json:"password"`
	InhibitLogin bool          `json:"inhibit_login"`
	Auth         *registerAuth `json:"auth,omitempty"`
}

// registerAuth is the UIAA stage submission attached to the second
// registration attempt.
type registerAuth struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
}

// loginRequest is the body for POST /login (password login).
type loginRequest struct {
	Type       string          `json:"type"`
	Identifier loginIdentifier `json:"identifier"`
	Password   string          `json:"password"`
}

// loginIdentifier names the account being logged into.
type loginIdentifier struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// CreateRoomRequest holds parameters for creating a Matrix room.
type CreateRoomRequest struct {
	Name   string   `json:"name,omitempty"`
	Topic  string   `json:"topic,omitempty"`
	Alias  string   `json:"room_alias_name,omitempty"` // local alias without # or :server
	Preset string   `json:"preset,omitempty"`          // "private_chat", "public_chat", "trusted_private_chat"
	Invite []UserID `json:"invite,omitempty"`
}

// CreateRoomResponse is returned by CreateRoom.
type CreateRoomResponse struct {
	RoomID RoomID `json:"room_id"`
}

// JoinRoomResponse is returned by JoinRoom.
type JoinRoomResponse struct {
	RoomID RoomID `json:"room_id"`
}

// MessageContent is the content body of an m.room.message event.
type MessageContent struct {
	MsgType      string `json:"msgtype"`
	Body         string `json:"body"`
	URL          string `json:"url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// NewTextMessage creates a plain m.text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// ReactionContent is the content body of an m.reaction event.
type ReactionContent struct {
	RelatesTo ReactionRelatesTo `json:"m.relates_to"`
}

// ReactionRelatesTo annotates the reacted-to event with a key (the
// emoji).
type ReactionRelatesTo struct {
	RelType string  `json:"rel_type"`
	EventID EventID `json:"event_id"`
	Key     string  `json:"key"`
}

// NewReaction creates an m.annotation reaction to the given event.
func NewReaction(eventID EventID, key string) ReactionContent {
	return ReactionContent{
		RelatesTo: ReactionRelatesTo{
			RelType: "m.annotation",
			EventID: eventID,
			Key:     key,
		},
	}
}

// Event represents a Matrix event from the server.
type Event struct {
	EventID        EventID        `json:"event_id"`
	Type           string         `json:"type"`
	Sender         UserID         `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        MessageContent `json:"content"`
}

// SendEventResponse is returned by SendMessage and SendEvent.
type SendEventResponse struct {
	EventID EventID `json:"event_id"`
}

// typingRequest is the body for PUT /rooms/{id}/typing/{user}.
type typingRequest struct {
	Typing    bool  `json:"typing"`
	TimeoutMS int64 `json:"timeout,omitempty"`
}

// receiptRequest is the body for POST /rooms/{id}/receipt/m.read/{event}.
type receiptRequest struct {
	ThreadID string `json:"thread_id"`
}

// displayNameBody is both the PUT request and GET response for
// /profile/{user}/displayname.
type displayNameBody struct {
	DisplayName string `json:"displayname"`
}

// avatarURLBody is both the PUT request and GET response for
// /profile/{user}/avatar_url.
type avatarURLBody struct {
	AvatarURL string `json:"avatar_url"`
}

// UploadResponse is returned by UploadMedia.
type UploadResponse struct {
	ContentURI string `json:"content_uri"`
}

// RoomMessagesOptions controls pagination for room message fetching.
type RoomMessagesOptions struct {
	From      string // pagination token; empty means "from now"
	Direction string // "b" (backward/older) or "f" (forward/newer)
	Limit     int    // max events to return; 0 uses server default
}

// RoomMessagesResponse is returned by RoomMessages.
type RoomMessagesResponse struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Chunk []Event `json:"chunk"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data grouped by membership state.
type RoomsSection struct {
	Join   map[RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[RoomID]InvitedRoom `json:"invite,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
}

// InvitedRoom contains sync data for a room the user was invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   UserID `json:"user_id"`
	DeviceID string `json:"device_id,omitempty"`
}
