package store

import (
	"time"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bobboyms/jsondb/pkg/wal"
)

// Get returns the value at path, or Null if absent.
func (s *Store) Get(path string) (*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return value.Get(s.root, path)
}

// Has reports whether a value exists at path.
func (s *Store) Has(path string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return value.Has(s.root, path)
}

// Set validates v against any schema bound to path, records an undo
// entry if a transaction is active, appends the mutation to the WAL,
// then applies it to the tree and any indexes covering path. No step
// after a failure has run takes effect.
func (s *Store) Set(path string, v *value.Value) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.validateForPath(path, v); err != nil {
		return err
	}

	prior, hadPrior, err := s.snapshot(path)
	if err != nil {
		return err
	}
	if s.tx.Active() {
		if err := s.tx.Record(path, hadPrior, prior); err != nil {
			return err
		}
	}

	if s.walWriter != nil {
		if _, err := s.walWriter.Append(wal.Operation{Timestamp: time.Now().UnixNano(), Type: wal.OpSet, Path: path, Value: v}); err != nil {
			return err
		}
	}

	s.mu.Lock()
	err = value.Set(s.root, path, v)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.applyIndexUpdates(path, v, false)
	return nil
}

// Delete removes the value at path, recording an undo entry and WAL
// append the same way Set does.
func (s *Store) Delete(path string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prior, hadPrior, err := s.snapshot(path)
	if err != nil {
		return err
	}
	if s.tx.Active() {
		if err := s.tx.Record(path, hadPrior, prior); err != nil {
			return err
		}
	}

	if s.walWriter != nil {
		if _, err := s.walWriter.Append(wal.Operation{Timestamp: time.Now().UnixNano(), Type: wal.OpDelete, Path: path}); err != nil {
			return err
		}
	}

	s.mu.Lock()
	err = value.Delete(s.root, path)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.applyIndexUpdates(path, nil, true)
	return nil
}

// Push appends v to the array at path, skipping the append if an equal
// element is already present. It is lowered to a WAL Set of the whole
// resulting array, so recovery never needs push-specific replay logic.
func (s *Store) Push(path string, v *value.Value) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	prior, hadPrior, err := s.snapshot(path)
	if err != nil {
		return err
	}
	if !hadPrior || prior.Kind != value.KindArray {
		return &jsonerr.TypeError{Path: path, Reason: "push target is not an existing array"}
	}

	next, err := appendDedup(prior, v)
	if err != nil {
		return err
	}
	if err := s.validateForPath(path, next); err != nil {
		return err
	}

	if s.tx.Active() {
		if err := s.tx.Record(path, true, prior); err != nil {
			return err
		}
	}

	if s.walWriter != nil {
		if _, err := s.walWriter.Append(wal.Operation{Timestamp: time.Now().UnixNano(), Type: wal.OpSet, Path: path, Value: next}); err != nil {
			return err
		}
	}

	s.mu.Lock()
	err = value.Set(s.root, path, next)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.applyIndexUpdates(path, next, false)
	return nil
}

// snapshot captures the value currently at path (or hadPrior=false if
// absent), under the tree read lock, for undo logging.
func (s *Store) snapshot(path string) (*value.Value, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	has, err := value.Has(s.root, path)
	if err != nil {
		return nil, false, err
	}
	if !has {
		return nil, false, nil
	}
	v, err := value.Get(s.root, path)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// appendDedup mirrors value.Push's set-semantics dedup against a
// detached clone of arr, so Push can compute the post-mutation array
// before the WAL append that must precede the real tree mutation.
func appendDedup(arr *value.Value, v *value.Value) (*value.Value, error) {
	h, err := v.Hash()
	if err != nil {
		return nil, err
	}
	for _, existing := range arr.Arr {
		eh, err := existing.Hash()
		if err == nil && eh == h && existing.Equal(v) {
			return arr, nil
		}
	}
	next := arr.Clone()
	next.Arr = append(next.Arr, v.Clone())
	return next, nil
}
