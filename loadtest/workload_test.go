// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewWorkload(t *testing.T) {
	t.Run("requires a user", func(t *testing.T) {
		if _, err := NewWorkload(nil, WorkloadConfig{}); err == nil {
			t.Fatal("expected error for nil user")
		}
	})

	t.Run("zero weights fall back to defaults", func(t *testing.T) {
		server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {})
		user, _ := newAuthenticatedUser(t, server.URL)

		workload, err := NewWorkload(user, WorkloadConfig{})
		if err != nil {
			t.Fatalf("NewWorkload failed: %v", err)
		}
		if workload.weights != DefaultTaskWeights() {
			t.Errorf("weights = %+v, want defaults", workload.weights)
		}
	})

	t.Run("missing avatar dir disables the avatar task", func(t *testing.T) {
		server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {})
		user, _ := newAuthenticatedUser(t, server.URL)

		workload, err := NewWorkload(user, WorkloadConfig{
			AvatarDir: t.TempDir(), // exists but empty
		})
		if err != nil {
			t.Fatalf("NewWorkload failed: %v", err)
		}
		if workload.weights.ChangeAvatar != 0 {
			t.Error("empty avatar dir should zero the change-avatar weight")
		}
	})
}

func TestWorkloadAcceptInvite(t *testing.T) {
	server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/join") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSONBody(writer, map[string]any{"room_id": "!pending:example.com"})
	})
	user, _ := newAuthenticatedUser(t, server.URL)
	user.Membership().MarkInvited("!pending:example.com")

	workload, err := NewWorkload(user, WorkloadConfig{
		Weights: TaskWeights{AcceptInvite: 1},
	})
	if err != nil {
		t.Fatalf("NewWorkload failed: %v", err)
	}

	workload.runTask(context.Background())
	if !user.Membership().IsJoined("!pending:example.com") {
		t.Error("accept-invite task should join the pending room")
	}
	if user.Membership().InvitedCount() != 0 {
		t.Error("accepted invitation should be cleared")
	}
}

func TestWorkloadRunStopsOnCancel(t *testing.T) {
	server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {})
	user, _ := newAuthenticatedUser(t, server.URL)

	workload, err := NewWorkload(user, WorkloadConfig{
		Weights:   TaskWeights{DoNothing: 1},
		ThinkTime: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewWorkload failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		workload.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("workload did not stop after cancellation")
	}
}

func TestLoremText(t *testing.T) {
	server := newCountingServer(t, func(writer http.ResponseWriter, request *http.Request) {})
	user, _ := newAuthenticatedUser(t, server.URL)
	workload, err := NewWorkload(user, WorkloadConfig{})
	if err != nil {
		t.Fatalf("NewWorkload failed: %v", err)
	}

	for range 200 {
		text := workload.loremText()
		words := strings.Fields(text)
		if len(words) < 1 || len(words) > 60 {
			t.Fatalf("message has %d words, want 1..60", len(words))
		}
	}
}
