// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package loadtest

import (
	"sort"
	"sync"

	"github.com/stampede-labs/stampede/messaging"
)

// Credential is one user's discovered session state. An empty
// AccessToken means the user is unauthenticated. Invariant: a
// non-empty AccessToken implies a non-empty UserID.
type Credential struct {
	UserID      messaging.UserID
	AccessToken string
	DeviceID    string
	// Domain is the homeserver domain derived from the user ID (the
	// suffix after the last ':'). Useful for inviting other local users.
	Domain string
	// SyncToken is the last /sync position, carried across runs so a
	// resumed user does not replay the full timeline.
	SyncToken string
}

// Authenticated reports whether the credential carries an access token.
func (c Credential) Authenticated() bool {
	return c.AccessToken != ""
}

// Sink receives credentials after each successful authentication.
// The driver wires one up to persist tokens for later runs; the store
// itself has no file-format knowledge.
type Sink interface {
	Publish(username string, credential Credential)
}

// CredentialStore maps usernames to their session credentials. It is
// the one structure shared across concurrently running users (two
// goroutines could in principle authenticate the same username), so
// all access is mutex-guarded. Entries are created on first successful
// authentication, overwritten on each subsequent one, and never
// deleted during a run.
type CredentialStore struct {
	mu      sync.RWMutex
	entries map[string]Credential
	sink    Sink
}

// NewCredentialStore creates an empty store. sink may be nil.
func NewCredentialStore(sink Sink) *CredentialStore {
	return &CredentialStore{
		entries: make(map[string]Credential),
		sink:    sink,
	}
}

// Put records the credential for a username, overwriting any prior
// entry, and forwards it to the sink if one is configured.
func (s *CredentialStore) Put(username string, credential Credential) {
	s.mu.Lock()
	s.entries[username] = credential
	s.mu.Unlock()

	if s.sink != nil {
		s.sink.Publish(username, credential)
	}
}

// Get returns the credential for a username, if present.
func (s *CredentialStore) Get(username string) (Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	credential, ok := s.entries[username]
	return credential, ok
}

// UpdateSyncToken records a user's latest /sync position without
// touching the rest of the credential. No-op for unknown usernames.
func (s *CredentialStore) UpdateSyncToken(username, syncToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	credential, ok := s.entries[username]
	if !ok {
		return
	}
	credential.SyncToken = syncToken
	s.entries[username] = credential
}

// Len returns the number of stored credentials.
func (s *CredentialStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Entry pairs a username with its credential for snapshots.
type Entry struct {
	Username   string
	Credential Credential
}

// Snapshot returns all entries sorted by username, for deterministic
// persistence at the end of a run.
func (s *CredentialStore) Snapshot() []Entry {
	s.mu.RLock()
	entries := make([]Entry, 0, len(s.entries))
	for username, credential := range s.entries {
		entries = append(entries, Entry{Username: username, Credential: credential})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Username < entries[j].Username
	})
	return entries
}
