package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var snapshotPrefix = []byte("snapshot/")

// BadgerRepository keeps snapshots in a badger key-value store.
type BadgerRepository struct {
	db *badger.DB
}

// OpenBadger opens a badger store at dir. With inMemory set, dir is ignored
// and nothing is written to disk.
func OpenBadger(dir string, inMemory bool) (*BadgerRepository, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil // badger logs are noisy at info

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerRepository{db: db}, nil
}

func snapshotKey(name string) []byte {
	return append(append([]byte(nil), snapshotPrefix...), name...)
}

// Save stores the snapshot under its name.
func (r *BadgerRepository) Save(ctx context.Context, snapshot *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ValidateName(snapshot.Name); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	snapshot.SavedAt = time.Now().UTC()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snapshot.Name), data)
	})
}

// Load reads a snapshot.
func (r *BadgerRepository) Load(ctx context.Context, name string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := ValidateName(name); err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(snapshotKey(name))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot %s: %w", name, err)
	}
	return &snapshot, nil
}

// Delete removes a snapshot.
func (r *BadgerRepository) Delete(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(snapshotKey(name))
	})
}

// List returns the names of all snapshots in key order.
func (r *BadgerRepository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = snapshotPrefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			names = append(names, string(it.Item().Key()[len(snapshotPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return names, nil
}

// Close closes the underlying store.
func (r *BadgerRepository) Close() error {
	return r.db.Close()
}
