// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"

	"github.com/stampede-labs/stampede/messaging"
)

// isAttachment reports whether a message type carries media that a
// client would render a thumbnail for.
func isAttachment(msgType string) bool {
	switch msgType {
	case "m.image", "m.video", "m.file":
		return true
	}
	return false
}

// LoadRoomData simulates a client opening a room view: it resolves
// and downloads the avatars of everyone who sent a recent message,
// resolves their display names, and downloads the thumbnails of any
// image, video, or file attachments. All fetches go through the
// memoized profile maps and the media cache, so revisiting a room is
// nearly free.
//
// The two passes are independent. A failed profile lookup never stops
// the thumbnail pass, and any individual failure is logged and
// skipped, the way a client degrades when one resource is missing.
func (u *User) LoadRoomData(ctx context.Context, roomID messaging.RoomID) {
	if u.session == nil {
		return
	}
	messages := u.RecentMessages(roomID)

	// Sender profiles first: avatar locators, avatar blobs, names.
	for _, message := range messages {
		if message.Sender == "" {
			continue
		}
		avatarURL, err := u.GetUserAvatarURL(ctx, message.Sender)
		if err == nil && avatarURL != "" {
			u.DownloadMedia(ctx, avatarURL)
		}
		u.GetUserDisplayName(ctx, message.Sender)
	}

	// Then attachment thumbnails.
	for _, message := range messages {
		if !isAttachment(message.Content.MsgType) {
			continue
		}
		if message.Content.ThumbnailURL != "" {
			u.DownloadMedia(ctx, message.Content.ThumbnailURL)
		}
	}
}

// Paginate fetches one page of older history for the room, walking
// backwards from the earliest position seen so far. A room paginated
// for the first time starts from the first sync's batch token, so the
// walk begins where the user's view of the timeline began; before any
// sync it starts from the room's current edge. The returned count is
// the number of events in the page; zero means the start of history.
func (u *User) Paginate(ctx context.Context, roomID messaging.RoomID, limit int) (int, error) {
	session, err := u.authed()
	if err != nil {
		return 0, err
	}

	from := u.earliestTokens[roomID]
	if from == "" {
		from = u.firstSyncToken()
	}
	response, err := session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{
		From:  from,
		Limit: limit,
	})
	u.stats.Record("paginate", err)
	if err != nil {
		u.logger.Warn("failed to paginate room", "room_id", roomID, "error", err)
		return 0, err
	}

	if response.End != "" {
		u.earliestTokens[roomID] = response.End
	}
	return len(response.Chunk), nil
}
