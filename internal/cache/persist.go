package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/sayantanmandal1/function-dependency-warner/internal/model"
)

// Store persists extraction results across runs in BadgerDB.
// Keys are "loc/<hash>/<path>", values the JSON-encoded locations.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog.Logger to BadgerDB's logger interface.
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

// OpenStore opens or creates a store in dir. A nil logger disables
// BadgerDB's own logging.
func OpenStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory %s: %w", dir, err)
	}
	return openStore(badger.DefaultOptions(dir), logger)
}

func openStore(opts badger.Options, logger *slog.Logger) (*Store, error) {
	opts = opts.WithNumVersionsToKeep(1).WithSyncWrites(false)
	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	return &Store{db: db}, nil
}

func storeKey(hash, path string) []byte {
	return []byte("loc/" + hash + "/" + path)
}

// Get returns the locations stored for (hash, path).
func (s *Store) Get(hash, path string) ([]model.FunctionLocation, bool, error) {
	var locs []model.FunctionLocation
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(storeKey(hash, path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &locs)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", path, err)
	}
	return locs, true, nil
}

// Put records the locations for (hash, path).
func (s *Store) Put(hash, path string, locs []model.FunctionLocation) error {
	if locs == nil {
		locs = []model.FunctionLocation{}
	}
	val, err := json.Marshal(locs)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(storeKey(hash, path), val)
	})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
