package store

import (
	"bytes"
	"encoding/json"
	"os"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bobboyms/jsondb/pkg/wal"
	natomic "github.com/natefinch/atomic"
)

// WalInfo reports the WAL's enablement and durability progress.
type WalInfo struct {
	Enabled      bool
	CommittedLSN uint64
}

// WalStatus reports whether the WAL is enabled and, if so, the highest
// LSN flushed to disk so far.
func (s *Store) WalStatus() WalInfo {
	if s.walWriter == nil {
		return WalInfo{Enabled: false}
	}
	return WalInfo{Enabled: true, CommittedLSN: s.walWriter.CommittedLSN()}
}

// Sync blocks until every mutation appended so far is flushed (and
// fsynced, per the durability preset) to the WAL. It is a no-op when
// the WAL is disabled.
func (s *Store) Sync() error {
	if s.walWriter == nil {
		return nil
	}
	return s.walWriter.Sync()
}

// Save flushes the WAL, writes the whole tree as pretty-printed JSON to
// a temp file and renames it over the data file, truncates the now-
// superseded WAL, and persists every dirty index.
func (s *Store) Save() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.Sync(); err != nil {
		return err
	}

	s.mu.RLock()
	compact, err := value.Marshal(s.root)
	s.mu.RUnlock()
	if err != nil {
		return &jsonerr.ParseError{Context: "data file", Err: err}
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, compact, "", "  "); err != nil {
		return &jsonerr.ParseError{Context: "data file", Err: err}
	}

	if err := natomic.WriteFile(s.path, bytes.NewReader(pretty.Bytes())); err != nil {
		return &jsonerr.IOError{Op: "write data file", Err: err}
	}

	if s.walWriter != nil {
		if err := s.truncateWAL(); err != nil {
			return err
		}
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()
	for _, idx := range s.indexes {
		if err := idx.Save(); err != nil {
			return err
		}
	}
	return nil
}

// truncateWAL restarts the group-commit writer against an empty WAL
// file, since save() just made the data file the authoritative state
// the WAL's records were superseding.
func (s *Store) truncateWAL() error {
	if err := s.walWriter.Close(); err != nil {
		return err
	}
	if err := os.Truncate(s.walPath, 0); err != nil && !os.IsNotExist(err) {
		return &jsonerr.IOError{Op: "truncate wal file", Err: err}
	}
	w, err := wal.Open(s.walPath, s.walOpts)
	if err != nil {
		return err
	}
	s.walWriter = w
	return nil
}
