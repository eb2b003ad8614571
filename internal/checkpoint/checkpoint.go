// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package checkpoint persists finished candidate evaluations in BadgerDB
// so an interrupted search resumes without re-solving them. Entries are
// keyed by run key (network fingerprint and evaluation settings) and
// candidate key, so a changed model or method never reuses stale results.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/pdiddy/knockout-engine/pkg/types"
)

const keyPrefix = "eval/"

// Config holds settings for opening a Store.
type Config struct {
	// Dir is the badger directory. Ignored when InMemory is set.
	Dir string

	InMemory bool

	// Logger receives badger's internal messages. Nil silences them.
	Logger *slog.Logger
}

// FromConfig converts the file configuration.
func FromConfig(c types.CheckpointConfig, log *slog.Logger) Config {
	return Config{Dir: c.Dir, InMemory: c.InMemory, Logger: log}
}

// Store is a badger-backed evaluation cache. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens or creates a Store.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("checkpoint: directory is required")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating checkpoint directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{log: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(runKey, candidateKey string) []byte {
	return []byte(keyPrefix + runKey + "/" + candidateKey)
}

// Get returns the stored result for a candidate, if any.
func (s *Store) Get(runKey, candidateKey string) (types.EvaluationResult, bool, error) {
	var r types.EvaluationResult
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(runKey, candidateKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &r)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.EvaluationResult{}, false, nil
	}
	if err != nil {
		return types.EvaluationResult{}, false, fmt.Errorf("reading checkpoint %s: %w", candidateKey, err)
	}
	return r, true, nil
}

// Put stores a result. Only deterministic outcomes are kept; timeouts and
// errors are evaluated again on the next run.
func (s *Store) Put(runKey string, r types.EvaluationResult) error {
	if !r.Status.Deterministic() {
		return nil
	}
	val, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %s: %w", r.Candidate.Key(), err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key(runKey, r.Candidate.Key()), val)
	})
}

// Count returns the number of results stored for runKey. An empty runKey
// counts every entry.
func (s *Store) Count(runKey string) (int, error) {
	prefix := []byte(keyPrefix)
	if runKey != "" {
		prefix = []byte(keyPrefix + runKey + "/")
	}
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Clear drops the results of runKey, or every result when runKey is empty.
func (s *Store) Clear(runKey string) error {
	if runKey == "" {
		return s.db.DropPrefix([]byte(keyPrefix))
	}
	return s.db.DropPrefix([]byte(keyPrefix + runKey + "/"))
}

// badgerLogger routes badger's logging through slog.
type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...), "component", "checkpoint")
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...), "component", "checkpoint")
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...), "component", "checkpoint")
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...), "component", "checkpoint")
}
