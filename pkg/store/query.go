package store

import (
	"github.com/bobboyms/jsondb/pkg/query"
	"github.com/bobboyms/jsondb/pkg/value"
)

// ParallelQuery resolves the collection at path and returns every
// member matching every predicate (AND-combined), sequentially or in a
// data-parallel fashion per the engine's size/core threshold.
func (s *Store) ParallelQuery(path string, predicates []query.Predicate) ([]*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.ParallelQuery(s.root, path, predicates)
}

// ParallelAggregate reduces the collection at path with op, projecting
// field to a number for sum/avg/min/max.
func (s *Store) ParallelAggregate(path string, op query.AggregateOp, field string) (*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.ParallelAggregate(s.root, path, op, field)
}

// ParallelLookup performs a left outer hash join from the collection at
// leftPath to the collection at rightPath on leftField = rightField,
// attaching matches under asField.
func (s *Store) ParallelLookup(leftPath, rightPath, leftField, rightField, asField string) ([]*value.Value, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return query.ParallelLookup(s.root, leftPath, rightPath, leftField, rightField, asField)
}
