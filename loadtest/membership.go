// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"math/rand/v2"
	"sync"

	"github.com/stampede-labs/stampede/messaging"
)

// Membership tracks the rooms one simulated user has been invited to
// or has joined. The two sets are disjoint: joining a room removes it
// from the invited set. Membership is safe for concurrent use: the
// background sync loop updates it while the workload goroutine reads.
type Membership struct {
	mu      sync.RWMutex
	invited map[messaging.RoomID]struct{}
	joined  map[messaging.RoomID]struct{}
}

// NewMembership creates an empty tracker.
func NewMembership() *Membership {
	return &Membership{
		invited: make(map[messaging.RoomID]struct{}),
		joined:  make(map[messaging.RoomID]struct{}),
	}
}

// MarkInvited records a pending invitation. Rooms the user already
// joined are not demoted back to invited.
func (m *Membership) MarkInvited(roomID messaging.RoomID) {
	if roomID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.joined[roomID]; ok {
		return
	}
	m.invited[roomID] = struct{}{}
}

// MarkJoined records a successful join, clearing any pending
// invitation for the room.
func (m *Membership) MarkJoined(roomID messaging.RoomID) {
	if roomID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.invited, roomID)
	m.joined[roomID] = struct{}{}
}

// IsJoined reports whether the room is in the joined set.
func (m *Membership) IsJoined(roomID messaging.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.joined[roomID]
	return ok
}

// IsInvited reports whether the room has a pending invitation.
func (m *Membership) IsInvited(roomID messaging.RoomID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.invited[roomID]
	return ok
}

// JoinedCount returns the number of joined rooms.
func (m *Membership) JoinedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.joined)
}

// InvitedCount returns the number of pending invitations.
func (m *Membership) InvitedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.invited)
}

// RandomJoinedRoom returns a uniformly selected joined room, or ""
// when the user has joined nothing yet.
func (m *Membership) RandomJoinedRoom(rng *rand.Rand) messaging.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return randomRoom(m.joined, rng)
}

// RandomInvitedRoom returns a uniformly selected pending invitation,
// or "" when there is none.
func (m *Membership) RandomInvitedRoom(rng *rand.Rand) messaging.RoomID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return randomRoom(m.invited, rng)
}

func randomRoom(set map[messaging.RoomID]struct{}, rng *rand.Rand) messaging.RoomID {
	if len(set) == 0 {
		return ""
	}
	index := rng.IntN(len(set))
	for roomID := range set {
		if index == 0 {
			return roomID
		}
		index--
	}
	// Unreachable: the loop always returns within len(set) iterations.
	return ""
}
