// Package txlog implements the undo-log transaction layer: a single
// active transaction records the prior state touched by each mutation
// so it (or any of its savepoints) can be rolled back in memory,
// without the WAL or the document tree knowing a transaction is open.
package txlog

import (
	"sync"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
)

// Entry is one undone-able mutation: the path touched, and the value
// that was there before (or HadPrior=false if the path was absent).
type Entry struct {
	Path     string
	HadPrior bool
	Prior    *value.Value
}

// Log tracks the single active transaction's undo entries and named
// savepoints. The zero value is ready to use.
type Log struct {
	mu         sync.Mutex
	active     bool
	entries    []Entry
	savepoints map[string]int
}

func New() *Log {
	return &Log{savepoints: make(map[string]int)}
}

// Begin starts a transaction. Only one transaction may be active at a
// time per Log.
func (l *Log) Begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active {
		return &jsonerr.TransactionActiveError{}
	}
	l.active = true
	l.entries = l.entries[:0]
	for k := range l.savepoints {
		delete(l.savepoints, k)
	}
	return nil
}

// Active reports whether a transaction is currently open.
func (l *Log) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Record appends an undo entry for a mutation about to be applied.
// Callers must have already captured prior under the active
// transaction before mutating the document tree.
func (l *Log) Record(path string, hadPrior bool, prior *value.Value) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return &jsonerr.NoTransactionError{}
	}
	l.entries = append(l.entries, Entry{Path: path, HadPrior: hadPrior, Prior: prior})
	return nil
}

// Savepoint names the current position in the undo log so RollbackTo
// can later unwind back to exactly this point.
func (l *Log) Savepoint(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return &jsonerr.NoTransactionError{}
	}
	if l.savepoints == nil {
		l.savepoints = make(map[string]int)
	}
	l.savepoints[name] = len(l.entries)
	return nil
}

// RollbackTo returns the entries recorded since name's savepoint, in
// reverse (most recent first) application order, and truncates the log
// back to that position. Any savepoint whose position lies past name's
// is dropped; name itself, and any savepoint at the same position, stay.
func (l *Log) RollbackTo(name string) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil, &jsonerr.NoTransactionError{}
	}
	pos, ok := l.savepoints[name]
	if !ok {
		return nil, &jsonerr.UnknownSavepointError{Name: name}
	}

	undo := reversed(l.entries[pos:])
	l.entries = l.entries[:pos]
	for spName, spPos := range l.savepoints {
		if spPos > pos {
			delete(l.savepoints, spName)
		}
	}
	return undo, nil
}

// Commit discards the undo log; the mutations already applied to the
// document tree stand.
func (l *Log) Commit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return &jsonerr.NoTransactionError{}
	}
	l.active = false
	l.entries = nil
	l.savepoints = make(map[string]int)
	return nil
}

// Rollback returns every entry recorded in the transaction, in reverse
// order, and closes the transaction.
func (l *Log) Rollback() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.active {
		return nil, &jsonerr.NoTransactionError{}
	}
	undo := reversed(l.entries)
	l.active = false
	l.entries = nil
	l.savepoints = make(map[string]int)
	return undo, nil
}

func reversed(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// Apply replays undo entries onto root: a present Prior is written back
// with value.Set, an absent one is removed with value.Delete.
func Apply(root *value.Value, entries []Entry) error {
	for _, e := range entries {
		if e.HadPrior {
			if err := value.Set(root, e.Path, e.Prior); err != nil {
				return err
			}
		} else {
			if err := value.Delete(root, e.Path); err != nil {
				return err
			}
		}
	}
	return nil
}
