// Package store composes the value tree, process lock, WAL, schema
// validator, secondary indexes, transaction log, and query engine into
// the embeddable database's single public handle.
package store

import (
	"os"
	"sync"
	"time"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/index"
	"github.com/bobboyms/jsondb/pkg/lock"
	"github.com/bobboyms/jsondb/pkg/schema"
	"github.com/bobboyms/jsondb/pkg/txlog"
	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bobboyms/jsondb/pkg/wal"
)

// Config selects how Open behaves: where the data file lives, what
// process-lock discipline to use, and which durability preset drives
// the WAL.
type Config struct {
	Path       string
	LockMode   lock.Mode
	Durability wal.Durability

	// BatchSize and FlushInterval override the durability preset's
	// values when non-zero; both are usually left at zero.
	BatchSize     int
	FlushInterval time.Duration
}

// Store is the embeddable database handle. The zero value is not
// usable; construct one with Open.
type Store struct {
	mu   sync.RWMutex
	root *value.Value

	// writeMu serializes the full mutating pipeline (schema validation,
	// undo logging, WAL append, tree mutation, index update), Save and
	// rollbacks, so WAL LSN order, undo-log order, and in-memory
	// mutation order never diverge between concurrent callers.
	writeMu sync.Mutex

	path    string
	walPath string

	processLock *lock.ProcessLock
	walWriter   *wal.Writer
	walOpts     wal.Options

	indexMu sync.Mutex
	indexes map[string]*index.Index

	schemaMu sync.Mutex
	schemas  map[string]*schema.Schema

	tx *txlog.Log
}

// Open arbitrates cross-process access per cfg.LockMode: Exclusive
// acquires the process lock outright; Shared only checks liveness via
// lock.IsLocked and fails if a live exclusive holder exists, without
// itself taking the lock; None skips the check entirely. It then loads
// the data file if present, replays the WAL over it up to the last
// CRC-valid record, and starts the group-commit writer per
// cfg.Durability.
func Open(cfg Config) (*Store, error) {
	var pl *lock.ProcessLock
	switch cfg.LockMode {
	case lock.Exclusive:
		var err error
		pl, err = lock.Acquire(cfg.Path)
		if err != nil {
			return nil, err
		}
	case lock.Shared:
		held, err := lock.IsLocked(cfg.Path)
		if err != nil {
			return nil, err
		}
		if held {
			return nil, &jsonerr.AlreadyLockedError{Path: cfg.Path}
		}
	case lock.None:
		// no cross-process coordination at all
	}

	root := value.NewEmptyObject()
	if data, err := os.ReadFile(cfg.Path); err == nil {
		if err := value.Unmarshal(data, root); err != nil {
			releaseOnError(pl)
			return nil, &jsonerr.ParseError{Context: "data file", Err: err}
		}
	} else if !os.IsNotExist(err) {
		releaseOnError(pl)
		return nil, &jsonerr.IOError{Op: "read data file", Err: err}
	}

	walPath := cfg.Path + ".wal"
	if _, err := wal.Recover(walPath, root); err != nil {
		releaseOnError(pl)
		return nil, err
	}

	s := &Store{
		root:        root,
		path:        cfg.Path,
		walPath:     walPath,
		processLock: pl,
		indexes:     make(map[string]*index.Index),
		schemas:     make(map[string]*schema.Schema),
		tx:          txlog.New(),
	}

	if opts, ok := cfg.Durability.ToOptions(); ok {
		if cfg.BatchSize > 0 {
			opts.BatchSize = cfg.BatchSize
		}
		if cfg.FlushInterval > 0 {
			opts.FlushInterval = cfg.FlushInterval
		}
		w, err := wal.Open(walPath, opts)
		if err != nil {
			releaseOnError(pl)
			return nil, err
		}
		s.walWriter = w
		s.walOpts = opts
	}

	return s, nil
}

func releaseOnError(pl *lock.ProcessLock) {
	if pl != nil {
		pl.Release()
	}
}

// Close stops the WAL writer and releases the process lock. It does
// not implicitly Save; callers that want a durable data file on close
// must call Save first.
func (s *Store) Close() error {
	var err error
	if s.walWriter != nil {
		if cErr := s.walWriter.Close(); cErr != nil {
			err = cErr
		}
	}
	if s.processLock != nil {
		if rErr := s.processLock.Release(); rErr != nil && err == nil {
			err = rErr
		}
	}
	return err
}
