// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stampede-labs/stampede/loadtest"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadAccounts(t *testing.T) {
	t.Run("with header", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "users.csv",
			"username,password\nuser.0001,hunter2\nuser.0002,swordfish\n")

		accounts, err := LoadAccounts(path)
		if err != nil {
			t.Fatalf("LoadAccounts failed: %v", err)
		}
		if len(accounts) != 2 {
			t.Fatalf("got %d accounts, want 2", len(accounts))
		}
		if accounts[0].Username != "user.0001" || accounts[0].Password != "hunter2" {
			t.Errorf("unexpected first account: %+v", accounts[0])
		}
	})

	t.Run("without header", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "users.csv",
			"user.0001,hunter2\n")

		accounts, err := LoadAccounts(path)
		if err != nil {
			t.Fatalf("LoadAccounts failed: %v", err)
		}
		if len(accounts) != 1 {
			t.Fatalf("got %d accounts, want 1", len(accounts))
		}
	})

	t.Run("short row", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "users.csv", "lonely\n")
		if _, err := LoadAccounts(path); err == nil {
			t.Fatal("expected error for row without password")
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadAccounts(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
			t.Fatal("expected error for missing roster")
		}
	})
}

func TestTokensRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tokens.csv")

	store := loadtest.NewCredentialStore(nil)
	store.Put("user.0002", loadtest.Credential{
		UserID:      "@user.0002:example.com",
		AccessToken: "syt_2",
		Domain:      "example.com",
		SyncToken:   "s200",
	})
	store.Put("user.0001", loadtest.Credential{
		UserID:      "@user.0001:example.com",
		AccessToken: "syt_1",
		Domain:      "example.com",
	})
	// Unauthenticated entries are not persisted.
	store.Put("user.0003", loadtest.Credential{UserID: "@user.0003:example.com"})

	if err := SaveTokens(path, store); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}

	reloaded := loadtest.NewCredentialStore(nil)
	if err := LoadTokens(path, reloaded); err != nil {
		t.Fatalf("LoadTokens failed: %v", err)
	}
	if reloaded.Len() != 2 {
		t.Fatalf("reloaded %d entries, want 2", reloaded.Len())
	}

	credential, ok := reloaded.Get("user.0002")
	if !ok {
		t.Fatal("missing user.0002")
	}
	if credential.AccessToken != "syt_2" {
		t.Errorf("token = %q", credential.AccessToken)
	}
	if credential.SyncToken != "s200" {
		t.Errorf("sync token = %q", credential.SyncToken)
	}
	if credential.Domain != "example.com" {
		t.Errorf("domain = %q, want derived from user ID", credential.Domain)
	}

	// Saved files are sorted by username for diffable runs.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading tokens: %v", err)
	}
	want := "username,user_id,access_token,sync_token\n" +
		"user.0001,@user.0001:example.com,syt_1,\n" +
		"user.0002,@user.0002:example.com,syt_2,s200\n"
	if string(data) != want {
		t.Errorf("tokens file:\n%s\nwant:\n%s", data, want)
	}
}

func TestLoadTokensMissingFile(t *testing.T) {
	store := loadtest.NewCredentialStore(nil)
	if err := LoadTokens(filepath.Join(t.TempDir(), "tokens.csv"), store); err != nil {
		t.Fatalf("missing token file should not be an error, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries, want 0", store.Len())
	}
}
