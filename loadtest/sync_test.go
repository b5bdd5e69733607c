// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"testing"
)

func TestSyncOnce(t *testing.T) {
	t.Run("merges membership and buffers messages", func(t *testing.T) {
		var timeline []map[string]any
		// More messages than the buffer holds, with state noise mixed in.
		for i := range 12 {
			timeline = append(timeline, map[string]any{
				"event_id": fmt.Sprintf("$m%d", i),
				"type":     "m.room.message",
				"sender":   "@bob:example.com",
				"content":  map[string]any{"msgtype": "m.text", "body": fmt.Sprintf("msg %d", i)},
			})
		}
		timeline = append(timeline, map[string]any{
			"event_id": "$state1",
			"type":     "m.room.member",
			"sender":   "@bob:example.com",
		})

		server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {
			writeJSONBody(writer, map[string]any{
				"next_batch": "s1",
				"rooms": map[string]any{
					"join": map[string]any{
						"!joined:example.com": map[string]any{
							"timeline": map[string]any{"events": timeline},
						},
					},
					"invite": map[string]any{
						"!pending:example.com": map[string]any{},
					},
				},
			})
		})
		user, store := newAuthenticatedUser(t, server.URL)

		if err := user.SyncOnce(context.Background()); err != nil {
			t.Fatalf("SyncOnce failed: %v", err)
		}

		if !user.Membership().IsJoined("!joined:example.com") {
			t.Error("joined room not marked")
		}
		if !user.Membership().IsInvited("!pending:example.com") {
			t.Error("invitation not recorded")
		}

		messages := user.RecentMessages("!joined:example.com")
		if len(messages) != 10 {
			t.Fatalf("buffered %d messages, want 10", len(messages))
		}
		// The oldest messages fall off; the newest survives at the end.
		if messages[0].EventID != "$m2" {
			t.Errorf("oldest buffered = %s, want $m2", messages[0].EventID)
		}
		if messages[len(messages)-1].EventID != "$m11" {
			t.Errorf("newest buffered = %s, want $m11", messages[len(messages)-1].EventID)
		}
		for _, message := range messages {
			if message.Type == "m.room.member" {
				t.Error("state events must not be buffered")
			}
		}

		credential, _ := store.Get("user.0007")
		if credential.SyncToken != "s1" {
			t.Errorf("store sync token = %q, want s1", credential.SyncToken)
		}
	})

	t.Run("second sync resumes from next_batch", func(t *testing.T) {
		var tokens []string
		batch := 0
		server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {
			tokens = append(tokens, request.URL.Query().Get("since"))
			batch++
			writeJSONBody(writer, map[string]any{"next_batch": fmt.Sprintf("s%d", batch)})
		})
		user, _ := newAuthenticatedUser(t, server.URL)

		ctx := context.Background()
		if err := user.SyncOnce(ctx); err != nil {
			t.Fatalf("first SyncOnce failed: %v", err)
		}
		if err := user.SyncOnce(ctx); err != nil {
			t.Fatalf("second SyncOnce failed: %v", err)
		}

		if tokens[0] != "" {
			t.Errorf("initial sync carried since=%q", tokens[0])
		}
		if tokens[1] != "s1" {
			t.Errorf("second sync since = %q, want s1", tokens[1])
		}
	})

	t.Run("resumed sync token is used", func(t *testing.T) {
		var since string
		server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {
			since = request.URL.Query().Get("since")
			writeJSONBody(writer, map[string]any{"next_batch": "s100"})
		})

		user, store := newAuthenticatedUser(t, server.URL)
		store.UpdateSyncToken("user.0007", "s99")

		// Rebuild the user so it resumes with the stored position.
		resumed, err := NewUser(user.client, store, UserConfig{Username: "user.0007"})
		if err != nil {
			t.Fatalf("NewUser failed: %v", err)
		}
		if err := resumed.SyncOnce(context.Background()); err != nil {
			t.Fatalf("SyncOnce failed: %v", err)
		}
		if since != "s99" {
			t.Errorf("resumed sync since = %q, want s99", since)
		}
	})
}

func TestStartStopSync(t *testing.T) {
	server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {
		writeJSONBody(writer, map[string]any{"next_batch": "s1"})
	})
	user, _ := newAuthenticatedUser(t, server.URL)

	ctx := context.Background()
	if err := user.StartSync(ctx); err != nil {
		t.Fatalf("StartSync failed: %v", err)
	}
	// Second start is a no-op, not a second loop.
	if err := user.StartSync(ctx); err != nil {
		t.Fatalf("repeat StartSync failed: %v", err)
	}
	user.StopSync()
	// Stopping again must not panic or block.
	user.StopSync()
}
