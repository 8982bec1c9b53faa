package store

import (
	"strings"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/index"
	"github.com/bobboyms/jsondb/pkg/value"
)

// RegisterIndex loads (or creates) a persistent index named name over
// field, a dotted field name covering both a direct write to that field
// (path ending in "."+field) and a whole-document write whose value
// carries field as one of its own properties. Re-registering an
// already-registered name is a no-op. Registration does not backfill
// existing documents; only subsequent mutations to covered paths
// populate the index, the same as the reference implementation's
// incremental-on-write indexes.
func (s *Store) RegisterIndex(name, field string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if _, exists := s.indexes[name]; exists {
		return nil
	}
	idx, err := index.LoadOrCreate(name, field, s.path+"."+name+".idx")
	if err != nil {
		return err
	}
	s.indexes[name] = idx
	return nil
}

// FindIndexPaths returns the document paths currently associated with
// key in the named index.
func (s *Store) FindIndexPaths(name string, key *value.Value) ([]string, error) {
	s.indexMu.Lock()
	idx, ok := s.indexes[name]
	s.indexMu.Unlock()

	if !ok {
		return nil, &jsonerr.IndexNotFoundError{Name: name}
	}
	return idx.Find(key), nil
}

// applyIndexUpdates updates every registered index covering path.
// A mutation covers an index two ways: path itself ends in "."+Field
// (the field was written/removed directly, e.g. "users.1.email"), or
// path is a whole document that carries Field as one of its own
// properties (e.g. a Set of "users.1" to an object with an "email"
// key) — the latter is detected by walking into v for Field rather
// than by string-matching path. deleted indicates path was removed
// rather than set to v; v is ignored when deleted is true.
func (s *Store) applyIndexUpdates(path string, v *value.Value, deleted bool) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	for _, idx := range s.indexes {
		suffix := "." + idx.Field
		switch {
		case strings.HasSuffix(path, suffix):
			docPath := strings.TrimSuffix(path, suffix)
			if deleted {
				idx.Remove(docPath)
			} else {
				idx.Insert(v, docPath)
			}
		case deleted:
			// Whichever of path's own coverage applied last time (a
			// direct field write, or a whole-document write carrying
			// Field) left docPath == path in the reverse map; Remove is
			// a no-op if path was never indexed this way.
			idx.Remove(path)
		case v != nil && v.Kind == value.KindObject:
			if has, _ := value.Has(v, idx.Field); has {
				fieldVal, err := value.Get(v, idx.Field)
				if err == nil {
					idx.Insert(fieldVal, path)
				}
			} else {
				// The new document no longer carries Field; drop any
				// stale entry left by a previous whole-document write.
				idx.Remove(path)
			}
		}
	}
}
