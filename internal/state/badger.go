package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v3"

	"device-protect/agent/internal/localdb"
	"device-protect/agent/internal/state/domain"
)

var stateKey = []byte("device_state")

// BadgerStore persists DeviceState as a single JSON value in the embedded
// database.
type BadgerStore struct {
	db *localdb.DB
}

// NewBadgerStore returns a Store backed by db.
func NewBadgerStore(db *localdb.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Load returns the persisted state, or ErrNotFound if the key is absent.
func (b *BadgerStore) Load(ctx context.Context) (domain.DeviceState, error) {
	var s domain.DeviceState
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(stateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &s)
		})
	})
	if err == badger.ErrKeyNotFound {
		return domain.DeviceState{}, ErrNotFound
	}
	if err != nil {
		return domain.DeviceState{}, fmt.Errorf("state: load: %w", err)
	}
	return s, nil
}

// Save replaces the persisted state. Badger defaults to synchronous writes,
// so a crash after Save cannot lose the confirmed state.
func (b *BadgerStore) Save(ctx context.Context, s domain.DeviceState) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(stateKey, raw)
	})
	if err != nil {
		return fmt.Errorf("state: save: %w", err)
	}
	return nil
}

// Clear removes the persisted state.
func (b *BadgerStore) Clear(ctx context.Context) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete(stateKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("state: clear: %w", err)
	}
	return nil
}
