// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/stampede-labs/stampede/messaging"
)

// longPollTimeout is the /sync long-poll window for the background
// loop. It must stay below the client's request timeout or every poll
// would be cut off locally.
const longPollTimeout = 30 * time.Second

// syncRetryDelay is how long the background loop waits after a failed
// sync before polling again.
const syncRetryDelay = 5 * time.Second

// isTimelineMessage reports whether an event belongs in the recent
// message buffer.
func isTimelineMessage(event messaging.Event) bool {
	return event.Type == "m.room.message" || event.Type == "m.room.encrypted"
}

// SyncOnce performs a single immediate /sync call (no long-poll) and
// folds the response into the user's local state: invitations are
// recorded, joined rooms are marked, new timeline messages are
// buffered, and the advanced sync token is published to the credential
// store. Do not call it while a background sync loop is running.
func (u *User) SyncOnce(ctx context.Context) error {
	return u.syncOnce(ctx, 0)
}

func (u *User) syncOnce(ctx context.Context, timeout time.Duration) error {
	session, err := u.authed()
	if err != nil {
		return err
	}

	response, err := session.Sync(ctx, messaging.SyncOptions{
		Since:      u.syncToken,
		Timeout:    int(timeout.Milliseconds()),
		SetTimeout: true,
	})
	u.stats.Record("sync", err)
	if err != nil {
		return err
	}

	u.applySync(response)
	return nil
}

// applySync folds one /sync response into local state.
func (u *User) applySync(response *messaging.SyncResponse) {
	for roomID := range response.Rooms.Invite {
		u.membership.MarkInvited(roomID)
	}

	for roomID, room := range response.Rooms.Join {
		u.membership.MarkJoined(roomID)
		u.bufferMessages(roomID, room.Timeline.Events)
	}

	if response.NextBatch != "" {
		u.messagesMu.Lock()
		if u.initialSyncToken == "" {
			u.initialSyncToken = response.NextBatch
		}
		u.messagesMu.Unlock()
		u.syncToken = response.NextBatch
		u.store.UpdateSyncToken(u.username, response.NextBatch)
	}
}

// firstSyncToken returns the batch token of the first sync this run,
// or "" before any sync has completed. Pagination starts here for
// rooms that have never been paginated.
func (u *User) firstSyncToken() string {
	u.messagesMu.Lock()
	defer u.messagesMu.Unlock()
	return u.initialSyncToken
}

// bufferMessages appends new timeline messages to the room's recent
// buffer, keeping only the newest recentMessageLimit entries.
func (u *User) bufferMessages(roomID messaging.RoomID, events []messaging.Event) {
	var incoming []messaging.Event
	for _, event := range events {
		if isTimelineMessage(event) {
			incoming = append(incoming, event)
		}
	}
	if len(incoming) == 0 {
		return
	}

	u.messagesMu.Lock()
	defer u.messagesMu.Unlock()
	buffer := append(u.recentMessages[roomID], incoming...)
	if excess := len(buffer) - recentMessageLimit; excess > 0 {
		buffer = buffer[excess:]
	}
	u.recentMessages[roomID] = buffer
}

// StartSync launches the background sync loop: a long-polling /sync
// goroutine that keeps membership, invitations, and recent messages
// current while the workload goroutine acts on them. Calling StartSync
// while a loop is already running is a no-op.
func (u *User) StartSync(ctx context.Context) error {
	if _, err := u.authed(); err != nil {
		return err
	}
	if u.syncCancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	u.syncCancel = cancel
	u.syncDone = make(chan struct{})
	go u.syncLoop(loopCtx)
	return nil
}

// StopSync stops the background sync loop and waits for it to exit.
// Safe to call when no loop is running.
func (u *User) StopSync() {
	if u.syncCancel == nil {
		return
	}
	u.syncCancel()
	<-u.syncDone
	u.syncCancel = nil
	u.syncDone = nil
}

func (u *User) syncLoop(ctx context.Context) {
	defer close(u.syncDone)
	for ctx.Err() == nil {
		err := u.syncOnce(ctx, longPollTimeout)
		if err == nil || ctx.Err() != nil {
			continue
		}

		delay := syncRetryDelay
		var matrixErr *messaging.MatrixError
		if errors.As(err, &matrixErr) && matrixErr.StatusCode == http.StatusTooManyRequests {
			delay = 2 * syncRetryDelay
		}
		u.logger.Warn("sync failed", "error", err, "retry_in", delay)

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}
