package wal

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobboyms/jsondb/pkg/value"
)

func tempWALPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "test.wal")
}

func TestWriter_AppendAssignsIncreasingLSNs(t *testing.T) {
	w, err := Open(tempWALPath(t), Options{BatchSize: 1000, FlushInterval: 50 * time.Millisecond, Fsync: false, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	lsn1, err := w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewNumber(1)})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	lsn2, err := w.Append(Operation{Type: OpSet, Path: "b", Value: value.NewNumber(2)})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if lsn2 <= lsn1 {
		t.Fatalf("expected increasing LSNs, got %d then %d", lsn1, lsn2)
	}
}

func TestWriter_SyncPersistsToDisk(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, Options{BatchSize: 1000, FlushInterval: time.Second, Fsync: true, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	if _, err := w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewString("x")}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected non-empty wal file after sync")
	}
}

func TestWriter_SyncReflectsCommittedLSN(t *testing.T) {
	w, err := Open(tempWALPath(t), Options{BatchSize: 1000, FlushInterval: time.Second, Fsync: true, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	lsn, err := w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewNumber(1)})
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := w.Sync(); err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if got := w.CommittedLSN(); got != lsn {
		t.Fatalf("committed lsn = %d, want %d", got, lsn)
	}
}

func TestWriter_BackgroundFlushOnInterval(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, Options{BatchSize: 1000, FlushInterval: 10 * time.Millisecond, Fsync: true, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	if _, err := w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewBool(true)}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected background flush to have written data")
	}
}

func TestWriter_FlushOnBatchSize(t *testing.T) {
	path := tempWALPath(t)
	w, err := Open(path, Options{BatchSize: 2, FlushInterval: time.Hour, Fsync: false, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer w.Close()

	w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewNumber(1)})
	w.Append(Operation{Type: OpSet, Path: "b", Value: value.NewNumber(2)})

	// Give the goroutine a moment to process and flush the full batch.
	time.Sleep(20 * time.Millisecond)

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("expected batch-size flush to have written data")
	}
}

func TestWriter_CloseIsIdempotent(t *testing.T) {
	w, err := Open(tempWALPath(t), Options{BatchSize: 1000, FlushInterval: time.Second, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("first close failed: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}

func TestWriter_AppendAfterCloseFails(t *testing.T) {
	w, err := Open(tempWALPath(t), Options{BatchSize: 1000, FlushInterval: time.Second, QueueCapacity: 100})
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	w.Close()

	if _, err := w.Append(Operation{Type: OpSet, Path: "a", Value: value.NewNumber(1)}); err == nil {
		t.Fatal("expected append after close to fail")
	}
}

func TestOpen_FailsOnDirectoryPath(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir, Options{}); err == nil {
		t.Fatal("expected error opening a directory as a wal file")
	}
}
