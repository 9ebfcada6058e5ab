// Package storage provides the persistent user-state backend.
package storage

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tidwall/buntdb"

	"github.com/solvirx/tokenwatch/core"
)

const userKeyPrefix = "user:"

// BuntStorage implements core.UserStorage using BuntDB. Each user's state is
// one JSON document under "user:<id>".
type BuntStorage struct {
	db *buntdb.DB
}

// NewFromMemory creates an in-memory storage, used in tests.
func NewFromMemory() (*BuntStorage, error) {
	return NewBuntStorage(":memory:")
}

// NewFromFile creates a file-based storage.
func NewFromFile(file string) (*BuntStorage, error) {
	return NewBuntStorage(file)
}

// NewBuntStorage opens a BuntDB database at the given path.
func NewBuntStorage(sourceFile string) (*BuntStorage, error) {
	db, err := buntdb.Open(sourceFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open buntdb: %w", err)
	}

	if err := db.SetConfig(buntdb.Config{
		SyncPolicy: buntdb.Never,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure buntdb: %w", err)
	}

	return &BuntStorage{db: db}, nil
}

func userKey(userID int64) string {
	return userKeyPrefix + strconv.FormatInt(userID, 10)
}

// SaveUserState writes the user's full state document.
func (b *BuntStorage) SaveUserState(userID int64, state *core.UserState) error {
	content, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal user state: %w", err)
	}

	return b.db.Update(func(tx *buntdb.Tx) error {
		if _, _, err := tx.Set(userKey(userID), string(content), nil); err != nil {
			return fmt.Errorf("failed to store user state: %w", err)
		}
		return nil
	})
}

// LoadUserState reads the user's state document. Returns (nil, nil) when the
// user has no stored state.
func (b *BuntStorage) LoadUserState(userID int64) (*core.UserState, error) {
	var state *core.UserState

	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(userKey(userID))
		if err != nil {
			if err == buntdb.ErrNotFound {
				return nil
			}
			return fmt.Errorf("failed to read user state: %w", err)
		}

		var decoded core.UserState
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			return fmt.Errorf("failed to unmarshal user state: %w", err)
		}

		state = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}

// UserIDs lists every user with stored state.
func (b *BuntStorage) UserIDs() ([]int64, error) {
	ids := make([]int64, 0)

	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.AscendKeys(userKeyPrefix+"*", func(key, _ string) bool {
			id, err := strconv.ParseInt(key[len(userKeyPrefix):], 10, 64)
			if err != nil {
				return true
			}
			ids = append(ids, id)
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return ids, nil
}

// Close closes the database.
func (b *BuntStorage) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
