// Package kv is the embedded key-value store of the LMS, backed by badger.
// Records are JSON encoded under "<collection>/<id>" keys.
package kv

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/classhub/lms/core"
)

const maxTxnRetries = 50

type Config struct {
	Path           string // ignored when InMemory
	InMemory       bool
	SyncWrites     bool
	Logger         core.Logger // nil disables badger's own logs
	GCInterval     time.Duration
	GCDiscardRatio float64
}

func NewConfig(conf *core.Config, logger core.Logger) Config {
	return Config{
		Path:           conf.Database.Path,
		InMemory:       conf.Database.InMemory,
		SyncWrites:     !conf.Debug,
		Logger:         logger,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// badgerLogger adapts core.Logger to badger's Logger interface.
type badgerLogger struct {
	logger core.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

type Store struct {
	db     *badger.DB
	logger core.Logger

	stopGC    chan struct{}
	gcDone    chan struct{}
	closeOnce sync.Once
}

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for a persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, errors.Wrapf(err, "creating store directory %s", cfg.Path)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "opening badger")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = core.NewNopLogger()
	}
	s := &Store{db: db, logger: logger}
	if !cfg.InMemory && cfg.GCInterval > 0 {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	return s, nil
}

// OpenInMemory opens a throwaway store, mostly for tests.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.stopGC != nil {
			close(s.stopGC)
			<-s.gcDone
		}
		err = s.db.Close()
	})
	return err
}

// Reset drops every record.
func (s *Store) Reset() error {
	return errors.Wrap(s.db.DropAll(), "dropping all")
}

func (s *Store) runGC(interval time.Duration, ratio float64) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite only means there was nothing to collect
			if err := s.db.RunValueLogGC(ratio); err != nil && errors.Cause(err) != badger.ErrNoRewrite {
				s.logger.Warn("badger value log GC failed", err)
			}
		}
	}
}

// view runs fn in a read-only transaction.
func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, retried when it conflicts with a concurrent one.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for i := 0; i < maxTxnRetries; i++ {
		err = s.db.Update(fn)
		if errors.Cause(err) != badger.ErrConflict {
			return err
		}
	}
	return err
}

func key(parts ...string) []byte {
	var k []byte
	for i, p := range parts {
		if i > 0 {
			k = append(k, '/')
		}
		k = append(k, p...)
	}
	return k
}

func prefix(parts ...string) []byte {
	return append(key(parts...), '/')
}

// get decodes the record at k into v. Returns badger.ErrKeyNotFound when missing.
func get(txn *badger.Txn, k []byte, v interface{}) error {
	item, err := txn.Get(k)
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func exists(txn *badger.Txn, k []byte) (bool, error) {
	_, err := txn.Get(k)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}

func set(txn *badger.Txn, k []byte, v interface{}) error {
	val, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding record")
	}
	return txn.Set(k, val)
}

// scan calls fn with the value of every key under p.
func scan(txn *badger.Txn, p []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

// scanAll decodes every record under p and keeps the ones accepted by keep.
func scanAll[T any](txn *badger.Txn, p []byte, keep func(T) bool) ([]T, error) {
	var res []T
	err := scan(txn, p, func(val []byte) error {
		var rec T
		if err := json.Unmarshal(val, &rec); err != nil {
			return errors.Wrap(err, "decoding record")
		}
		if keep == nil || keep(rec) {
			res = append(res, rec)
		}
		return nil
	})
	return res, err
}

// deletePrefix deletes every key under p whose value is accepted by match (all keys when match is nil).
func deletePrefix(txn *badger.Txn, p []byte, match func(val []byte) bool) error {
	var keys [][]byte
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		item := it.Item()
		if match != nil {
			var ok bool
			if err := item.Value(func(val []byte) error { ok = match(val); return nil }); err != nil {
				it.Close()
				return err
			}
			if !ok {
				continue
			}
		}
		keys = append(keys, item.KeyCopy(nil))
	}
	it.Close()

	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// fieldIn returns a match func for deletePrefix checking that the JSON field fld of a record is one of ids.
func fieldIn(fld string, ids ...string) func(val []byte) bool {
	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	return func(val []byte) bool {
		var rec map[string]interface{}
		if err := json.Unmarshal(val, &rec); err != nil {
			return false
		}
		v, _ := rec[fld].(string)
		_, ok := wanted[v]
		return ok
	}
}
