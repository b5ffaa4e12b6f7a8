// Package badger provides a Badger-based implementation of the storage interface.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goclaw/hyperagent/pkg/goal"
	"github.com/goclaw/hyperagent/pkg/kg"
	"github.com/goclaw/hyperagent/pkg/memory"
	"github.com/goclaw/hyperagent/pkg/storage"
)

// Config holds configuration for BadgerStorage.
type Config struct {
	Path              string
	InMemory          bool
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// BadgerStorage implements the Storage interface using Badger.
type BadgerStorage struct {
	db     *badger.DB
	config *Config
}

// NewBadgerStorage creates a new Badger storage instance.
func NewBadgerStorage(config *Config) (*BadgerStorage, error) {
	opts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &storage.StorageUnavailableError{Cause: err}
	}

	return &BadgerStorage{
		db:     db,
		config: config,
	}, nil
}

const (
	goalPrefix       = "goal:"
	cyclePrefix      = "cycle:"
	provenancePrefix = "prov:"
	episodePrefix    = "episode:"
	snapshotKey      = "graph:snapshot"
)

// Numeric ids are zero-padded so key order matches numeric order.
func goalKey(id kg.SymbolID) []byte {
	return []byte(fmt.Sprintf("%s%020d", goalPrefix, uint64(id)))
}

func cycleKey(cycle uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", cyclePrefix, cycle))
}

func provenanceKey(cycle uint64, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", provenancePrefix, cycle, id))
}

func episodeKey(id memory.EntryID) []byte {
	return []byte(episodePrefix + string(id))
}

// Serialization helpers
func serialize(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &storage.SerializationError{
			Operation: "marshal",
			Cause:     err,
		}
	}
	return data, nil
}

func deserialize(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &storage.SerializationError{
			Operation: "unmarshal",
			Cause:     err,
		}
	}
	return nil
}

func (b *BadgerStorage) put(key []byte, v any) error {
	data, err := serialize(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

func (b *BadgerStorage) get(key []byte, entity, id string, v any) error {
	return b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &storage.NotFoundError{EntityType: entity, ID: id}
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return deserialize(val, v)
		})
	})
}

// scan visits values under prefix. With reverse set it walks newest keys
// first. visit returns false to stop.
func (b *BadgerStorage) scan(prefix string, reverse bool, visit func(val []byte) (bool, error)) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.Reverse = reverse

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			seek = append([]byte(prefix), 0xff)
		}
		for it.Seek(seek); it.Valid(); it.Next() {
			var more bool
			err := it.Item().Value(func(val []byte) error {
				var err error
				more, err = visit(val)
				return err
			})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}

// SaveGoal saves a goal.
func (b *BadgerStorage) SaveGoal(ctx context.Context, g *goal.Goal) error {
	return b.put(goalKey(g.ID), g)
}

// GetGoal retrieves a goal by ID.
func (b *BadgerStorage) GetGoal(ctx context.Context, id kg.SymbolID) (*goal.Goal, error) {
	var g goal.Goal
	if err := b.get(goalKey(id), "goal", fmt.Sprint(id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// ListGoals returns all goals ordered by ID.
func (b *BadgerStorage) ListGoals(ctx context.Context) ([]*goal.Goal, error) {
	var goals []*goal.Goal
	err := b.scan(goalPrefix, false, func(val []byte) (bool, error) {
		var g goal.Goal
		if err := deserialize(val, &g); err != nil {
			return false, err
		}
		goals = append(goals, &g)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return goals, nil
}

// SaveCycle saves a cycle record.
func (b *BadgerStorage) SaveCycle(ctx context.Context, rec *storage.CycleRecord) error {
	return b.put(cycleKey(rec.Cycle), rec)
}

// GetCycle retrieves a cycle record.
func (b *BadgerStorage) GetCycle(ctx context.Context, cycle uint64) (*storage.CycleRecord, error) {
	var rec storage.CycleRecord
	if err := b.get(cycleKey(cycle), "cycle", fmt.Sprint(cycle), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListCycles returns up to limit records, newest first. Zero means all.
func (b *BadgerStorage) ListCycles(ctx context.Context, limit int) ([]*storage.CycleRecord, error) {
	var recs []*storage.CycleRecord
	err := b.scan(cyclePrefix, true, func(val []byte) (bool, error) {
		var rec storage.CycleRecord
		if err := deserialize(val, &rec); err != nil {
			return false, err
		}
		recs = append(recs, &rec)
		return limit <= 0 || len(recs) < limit, nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// SaveProvenance saves a provenance record.
func (b *BadgerStorage) SaveProvenance(ctx context.Context, rec *storage.ProvenanceRecord) error {
	return b.put(provenanceKey(rec.Cycle, rec.ID), rec)
}

// ListProvenance returns matching records, newest first.
func (b *BadgerStorage) ListProvenance(ctx context.Context, filter *storage.ProvenanceFilter) ([]*storage.ProvenanceRecord, error) {
	var recs []*storage.ProvenanceRecord
	err := b.scan(provenancePrefix, true, func(val []byte) (bool, error) {
		var rec storage.ProvenanceRecord
		if err := deserialize(val, &rec); err != nil {
			return false, err
		}
		if filter != nil && filter.GoalID != 0 && rec.GoalID != filter.GoalID {
			return true, nil
		}
		recs = append(recs, &rec)
		return filter == nil || filter.Limit <= 0 || len(recs) < filter.Limit, nil
	})
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// SaveEpisode saves an episode.
func (b *BadgerStorage) SaveEpisode(ctx context.Context, ep *memory.Episode) error {
	return b.put(episodeKey(ep.ID), ep)
}

// DeleteEpisode removes an episode. Deleting a missing episode is not an error.
func (b *BadgerStorage) DeleteEpisode(ctx context.Context, id memory.EntryID) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(episodeKey(id))
	})
}

// ListEpisodes returns all episodes.
func (b *BadgerStorage) ListEpisodes(ctx context.Context) ([]*memory.Episode, error) {
	var eps []*memory.Episode
	err := b.scan(episodePrefix, false, func(val []byte) (bool, error) {
		var ep memory.Episode
		if err := deserialize(val, &ep); err != nil {
			return false, err
		}
		eps = append(eps, &ep)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return eps, nil
}

// SaveSnapshot replaces the stored graph snapshot.
func (b *BadgerStorage) SaveSnapshot(ctx context.Context, snap *kg.Snapshot) error {
	return b.put([]byte(snapshotKey), snap)
}

// LoadSnapshot returns the stored graph snapshot.
func (b *BadgerStorage) LoadSnapshot(ctx context.Context) (*kg.Snapshot, error) {
	var snap kg.Snapshot
	if err := b.get([]byte(snapshotKey), "snapshot", "graph", &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Close closes the Badger database.
func (b *BadgerStorage) Close() error {
	if !b.config.InMemory {
		// Best effort; ErrNoRewrite just means there was nothing to collect.
		_ = b.db.RunValueLogGC(0.5)
	}
	return b.db.Close()
}
