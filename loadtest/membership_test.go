// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"math/rand/v2"
	"testing"

	"github.com/stampede-labs/stampede/messaging"
)

func testRand() *rand.Rand {
	return rand.New(rand.NewPCG(1, 2))
}

func TestMembership(t *testing.T) {
	t.Run("join clears invitation", func(t *testing.T) {
		membership := NewMembership()
		membership.MarkInvited("!a:example.com")
		if !membership.IsInvited("!a:example.com") {
			t.Fatal("expected pending invitation")
		}

		membership.MarkJoined("!a:example.com")
		if membership.IsInvited("!a:example.com") {
			t.Error("join must clear the invitation")
		}
		if !membership.IsJoined("!a:example.com") {
			t.Error("expected joined")
		}
		if membership.InvitedCount() != 0 || membership.JoinedCount() != 1 {
			t.Errorf("counts = %d invited, %d joined", membership.InvitedCount(), membership.JoinedCount())
		}
	})

	t.Run("joined room is not demoted by a late invite", func(t *testing.T) {
		membership := NewMembership()
		membership.MarkJoined("!a:example.com")
		membership.MarkInvited("!a:example.com")
		if membership.IsInvited("!a:example.com") {
			t.Error("invite must not demote a joined room")
		}
		if !membership.IsJoined("!a:example.com") {
			t.Error("expected still joined")
		}
	})

	t.Run("empty room ID is ignored", func(t *testing.T) {
		membership := NewMembership()
		membership.MarkInvited("")
		membership.MarkJoined("")
		if membership.InvitedCount() != 0 || membership.JoinedCount() != 0 {
			t.Error("empty room IDs must not be recorded")
		}
	})

	t.Run("random selection", func(t *testing.T) {
		membership := NewMembership()
		rng := testRand()
		if membership.RandomJoinedRoom(rng) != "" {
			t.Error("empty set should select nothing")
		}

		rooms := map[messaging.RoomID]bool{
			"!a:example.com": false,
			"!b:example.com": false,
			"!c:example.com": false,
		}
		for roomID := range rooms {
			membership.MarkJoined(roomID)
		}
		for range 100 {
			selected := membership.RandomJoinedRoom(rng)
			if _, ok := rooms[selected]; !ok {
				t.Fatalf("selected room %q not in set", selected)
			}
			rooms[selected] = true
		}
		for roomID, seen := range rooms {
			if !seen {
				t.Errorf("room %q never selected in 100 draws", roomID)
			}
		}
	})
}
