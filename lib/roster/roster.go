// Copyright 2026 The Stampede Authors
// SPDX-License-Identifier: Apache-2.0

// Package roster reads and writes the CSV files a stampede run lives
// by: the user roster (accounts to simulate) and the token file
// (credentials persisted between runs so users resume their sessions
// instead of logging in again).
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/stampede-labs/stampede/loadtest"
	"github.com/stampede-labs/stampede/messaging"
)

// Account is one roster entry: the credentials a simulated user
// authenticates with.
type Account struct {
	Username string
	Password string
}

// LoadAccounts reads a user roster CSV with "username,password" rows.
// A header row whose first field is literally "username" is skipped.
func LoadAccounts(path string) ([]Account, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var accounts []Account
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("roster: reading %s: %w", path, err)
		}
		line++
		if len(record) < 2 {
			return nil, fmt.Errorf("roster: %s line %d: expected username,password", path, line)
		}
		if line == 1 && record[0] == "username" {
			continue
		}
		accounts = append(accounts, Account{
			Username: record[0],
			Password: record[1],
		})
	}
	return accounts, nil
}

// tokenHeader is the column layout of the token file.
var tokenHeader = []string{"username", "user_id", "access_token", "sync_token"}

// LoadTokens reads a token file from a previous run and seeds the
// credential store with its entries. A missing file is not an error:
// the first run has nothing to resume.
func LoadTokens(path string, store *loadtest.CredentialStore) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("roster: reading %s: %w", path, err)
		}
		line++
		if len(record) < 3 {
			return fmt.Errorf("roster: %s line %d: expected username,user_id,access_token[,sync_token]", path, line)
		}
		if line == 1 && record[0] == "username" {
			continue
		}

		userID := messaging.UserID(record[1])
		syncToken := ""
		if len(record) > 3 {
			syncToken = record[3]
		}
		store.Put(record[0], loadtest.Credential{
			UserID:      userID,
			AccessToken: record[2],
			Domain:      userID.Domain(),
			SyncToken:   syncToken,
		})
	}
}

// SaveTokens writes the store's current credentials to the token file,
// sorted by username so successive runs produce diffable files. The
// file is written atomically via a rename.
func SaveTokens(path string, store *loadtest.CredentialStore) error {
	entries := store.Snapshot()

	tmp, err := os.CreateTemp(filepath.Dir(path), "tokens-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write(tokenHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, entry := range entries {
		if !entry.Credential.Authenticated() {
			continue
		}
		record := []string{
			entry.Username,
			string(entry.Credential.UserID),
			entry.Credential.AccessToken,
			entry.Credential.SyncToken,
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
