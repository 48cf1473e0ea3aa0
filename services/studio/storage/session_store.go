// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianStudio/services/studio/history"
)

// Key layout. Sessions are scoped by the prompt fingerprint; selections by
// the provider task id.
const (
	sessionKeyPrefix   = "studio:session:"
	selectionKeyPrefix = "studio:selection:"
	currentKey         = "studio:current"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("storage: not found")

// SessionStore round-trips version history and primary selections through
// BadgerDB. JSON encoding preserves timestamps (RFC 3339 with nanoseconds)
// and boolean flags exactly across a save/load cycle.
//
// # Thread Safety
//
// SessionStore is safe for concurrent use; BadgerDB transactions provide
// the isolation.
type SessionStore struct {
	db *DB
}

// NewSessionStore creates a store over an open database.
func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

// SaveSession persists a history snapshot under its prompt fingerprint.
func (s *SessionStore) SaveSession(ctx context.Context, fingerprint string, snap history.Snapshot) error {
	if fingerprint == "" {
		return errors.New("storage: fingerprint must not be empty")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session snapshot: %w", err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionKeyPrefix+fingerprint), data)
	})
}

// LoadSession retrieves the snapshot stored for a fingerprint.
//
// Outputs:
//
//	history.Snapshot - Deep-equal to the snapshot originally saved.
//	error - ErrNotFound when no session exists for the fingerprint.
func (s *SessionStore) LoadSession(ctx context.Context, fingerprint string) (history.Snapshot, error) {
	var snap history.Snapshot
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionKeyPrefix + fingerprint))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &snap)
		})
	})
	if err != nil {
		return history.Snapshot{}, err
	}
	return snap, nil
}

// DeleteSession removes a fingerprint's stored history, e.g. after a reset.
func (s *SessionStore) DeleteSession(ctx context.Context, fingerprint string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionKeyPrefix + fingerprint))
	})
}

// SaveCurrentFingerprint records which fingerprint the studio was last
// working on, so a restart resumes the same session.
func (s *SessionStore) SaveCurrentFingerprint(ctx context.Context, fingerprint string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(currentKey), []byte(fingerprint))
	})
}

// LoadCurrentFingerprint returns the last active fingerprint, or "" when
// the studio has never generated anything.
func (s *SessionStore) LoadCurrentFingerprint(ctx context.Context) (string, error) {
	var fingerprint string
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get current fingerprint: %w", err)
		}
		return item.Value(func(val []byte) error {
			fingerprint = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return fingerprint, nil
}

// SavePrimarySelection persists one task's primary variation index.
// Implements the variation selector's write-through store.
func (s *SessionStore) SavePrimarySelection(ctx context.Context, taskID string, index int) error {
	if taskID == "" {
		return errors.New("storage: task id must not be empty")
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(selectionKeyPrefix+taskID), []byte(strconv.Itoa(index)))
	})
}

// LoadPrimarySelection reads one task's persisted primary index.
// Missing entries default to 0 (the first variation) without error.
func (s *SessionStore) LoadPrimarySelection(ctx context.Context, taskID string) (int, error) {
	index := 0
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(selectionKeyPrefix + taskID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get selection: %w", err)
		}
		return item.Value(func(val []byte) error {
			index, err = strconv.Atoi(string(val))
			return err
		})
	})
	if err != nil {
		return 0, err
	}
	return index, nil
}

// LoadSelections returns the full persisted taskID -> primary index map.
func (s *SessionStore) LoadSelections(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int)
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(selectionKeyPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			taskID := string(item.Key()[len(selectionKeyPrefix):])
			if err := item.Value(func(val []byte) error {
				index, err := strconv.Atoi(string(val))
				if err != nil {
					return err
				}
				out[taskID] = index
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
