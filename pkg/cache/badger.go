package cache

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/azybler/roadnet/pkg/graph"
)

// BadgerConfig configures an embedded badger store.
type BadgerConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string
	// InMemory keeps everything in memory; used by tests.
	InMemory bool
	Logger   *slog.Logger
}

// badgerLogger routes badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// BadgerStore keeps one encoded graph per key in a badger database.
type BadgerStore struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenBadger opens (or creates) a badger-backed store.
func OpenBadger(cfg BadgerConfig) (*BadgerStore, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(&badgerLogger{logger: logger})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Save encodes g and stores it under key.
func (s *BadgerStore) Save(key string, g *graph.Graph) bool {
	var buf bytes.Buffer
	err := graph.Encode(&buf, g)
	if err == nil {
		err = s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(key), buf.Bytes())
		})
	}
	if err != nil {
		s.logger.Warn("cache save failed", "key", key, "error", err)
		record("badger", "save", false)
		return false
	}
	s.logger.Debug("cache saved", "key", key, "bytes", buf.Len())
	record("badger", "save", true)
	return true
}

// Load decodes the graph stored under key.
func (s *BadgerStore) Load(key string) (*graph.Graph, bool) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	var g *graph.Graph
	if err == nil {
		g, err = decode(func() (*graph.Graph, error) {
			return graph.Decode(bytes.NewReader(data))
		})
	}
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			s.logger.Debug("cache miss", "key", key)
		} else {
			s.logger.Warn("cache load failed", "key", key, "error", err)
		}
		record("badger", "load", false)
		return nil, false
	}
	s.logger.Debug("cache hit", "key", key, "nodes", g.NumNodes, "edges", g.NumEdges)
	record("badger", "load", true)
	return g, true
}

// Delete removes key; a missing key is not an error.
func (s *BadgerStore) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}
