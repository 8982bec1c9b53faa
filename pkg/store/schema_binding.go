package store

import (
	"strings"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/schema"
	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bytedance/sonic"
)

// RegisterSchema binds schemaJSON to every path at or under pathPrefix.
// A later Set at a covered path is rejected, with no change made, if
// the incoming value fails validation.
func (s *Store) RegisterSchema(pathPrefix string, schemaJSON []byte) error {
	var sc schema.Schema
	if err := sonic.Unmarshal(schemaJSON, &sc); err != nil {
		return &jsonerr.ParseError{Context: "schema", Err: err}
	}

	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	s.schemas[pathPrefix] = &sc
	return nil
}

// ValidatePath validates v against whatever schema covers path, without
// mutating the tree. It is a no-op returning nil if no schema covers
// path.
func (s *Store) ValidatePath(path string, v *value.Value) error {
	return s.validateForPath(path, v)
}

func (s *Store) validateForPath(path string, v *value.Value) error {
	s.schemaMu.Lock()
	sc := s.longestSchemaMatch(path)
	s.schemaMu.Unlock()

	if sc == nil {
		return nil
	}
	if err := schema.Validate(v, sc); err != nil {
		return &jsonerr.SchemaError{Reason: err.Error()}
	}
	return nil
}

// longestSchemaMatch returns the schema bound to the longest registered
// prefix covering path (path equals the prefix, or starts with
// prefix+"."), so a narrower binding takes precedence over a broader
// one covering the same path. The empty prefix is a root binding and
// always matches, acting as a catch-all beneath any narrower schema.
func (s *Store) longestSchemaMatch(path string) *schema.Schema {
	var best *schema.Schema
	bestLen := -1
	for prefix, sc := range s.schemas {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+".") {
			if len(prefix) > bestLen {
				best = sc
				bestLen = len(prefix)
			}
		}
	}
	return best
}
