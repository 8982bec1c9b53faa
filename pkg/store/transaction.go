package store

import (
	"time"

	"github.com/bobboyms/jsondb/pkg/txlog"
	"github.com/bobboyms/jsondb/pkg/wal"
)

// Begin starts a transaction. Only one may be active at a time.
func (s *Store) Begin() error {
	return s.tx.Begin()
}

// Commit discards the undo log; the mutations made during the
// transaction stand.
func (s *Store) Commit() error {
	return s.tx.Commit()
}

// CreateSavepoint names the current point in the active transaction's
// undo log for a later partial rollback.
func (s *Store) CreateSavepoint(name string) error {
	return s.tx.Savepoint(name)
}

// Rollback undoes every mutation made during the active transaction, in
// reverse order, and closes the transaction.
func (s *Store) Rollback() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.tx.Rollback()
	if err != nil {
		return err
	}
	return s.applyUndo(entries)
}

// RollbackToSavepoint undoes every mutation recorded since name's
// savepoint, leaving the transaction active.
func (s *Store) RollbackToSavepoint(name string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	entries, err := s.tx.RollbackTo(name)
	if err != nil {
		return err
	}
	return s.applyUndo(entries)
}

// applyUndo replays undo entries as compensating WAL records (so a
// crash after rollback doesn't resurrect the undone mutations on
// replay), then applies them to the tree and its indexes.
func (s *Store) applyUndo(entries []txlog.Entry) error {
	if s.walWriter != nil {
		for _, e := range entries {
			op := wal.Operation{Timestamp: time.Now().UnixNano(), Path: e.Path}
			if e.HadPrior {
				op.Type = wal.OpSet
				op.Value = e.Prior
			} else {
				op.Type = wal.OpDelete
			}
			if _, err := s.walWriter.Append(op); err != nil {
				return err
			}
		}
	}

	s.mu.Lock()
	err := txlog.Apply(s.root, entries)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.HadPrior {
			s.applyIndexUpdates(e.Path, e.Prior, false)
		} else {
			s.applyIndexUpdates(e.Path, nil, true)
		}
	}
	return nil
}
