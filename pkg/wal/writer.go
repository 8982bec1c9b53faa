package wal

import (
	"bufio"
	"os"
	"sync/atomic"
	"time"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
)

type writeCmd struct {
	lsn uint64
	op  Operation
}

type syncCmd struct {
	reply chan struct{}
}

type shutdownCmd struct {
	reply chan struct{}
}

// Writer owns the background goroutine that batches appended operations
// into group-committed, CRC-framed records. All mutating methods are
// safe for concurrent use; the goroutine never touches the caller's
// value tree, only the file and the channel.
type Writer struct {
	cmds chan any

	nextLSN      atomic.Uint64
	committedLSN atomic.Uint64

	stopped atomic.Bool
	done    chan struct{}
}

// Open starts a Writer appending to path. opts comes from a
// Durability preset via ToOptions.
func Open(path string, opts Options) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return nil, &jsonerr.IOError{Op: "open wal file", Err: err}
	}

	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = 1000
	}

	w := &Writer{
		cmds: make(chan any, capacity),
		done: make(chan struct{}),
	}
	w.nextLSN.Store(1)

	go w.run(f, opts)

	return w, nil
}

// Append assigns the next LSN and enqueues op for the background
// goroutine to persist. It does not block on I/O, only on channel
// capacity (backpressure) if the goroutine has fallen behind.
func (w *Writer) Append(op Operation) (uint64, error) {
	if w.stopped.Load() {
		return 0, &jsonerr.WalStoppedError{}
	}
	lsn := w.nextLSN.Add(1) - 1

	select {
	case w.cmds <- writeCmd{lsn: lsn, op: op}:
		return lsn, nil
	case <-w.done:
		return 0, &jsonerr.WalStoppedError{}
	}
}

// Sync blocks until every operation appended before this call has been
// flushed (and fsynced, if the durability preset requires it) to disk.
func (w *Writer) Sync() error {
	reply := make(chan struct{})
	select {
	case w.cmds <- syncCmd{reply: reply}:
	case <-w.done:
		return &jsonerr.WalStoppedError{}
	}

	select {
	case <-reply:
		return nil
	case <-time.After(5 * time.Second):
		return &jsonerr.TimeoutError{Op: "wal sync"}
	}
}

// CommittedLSN returns the highest LSN flushed to disk so far.
func (w *Writer) CommittedLSN() uint64 {
	return w.committedLSN.Load()
}

// Close flushes any pending batch and stops the background goroutine.
func (w *Writer) Close() error {
	if w.stopped.Swap(true) {
		return nil
	}
	reply := make(chan struct{})
	w.cmds <- shutdownCmd{reply: reply}
	<-reply
	return nil
}

func (w *Writer) run(f *os.File, opts Options) {
	defer close(w.done)
	defer f.Close()

	bw := bufio.NewWriterSize(f, 64*1024)
	batch := make([]writeCmd, 0, opts.BatchSize)

	flushInterval := opts.FlushInterval
	if flushInterval <= 0 {
		flushInterval = time.Millisecond
	}
	timer := time.NewTimer(flushInterval)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.flushBatch(bw, f, batch, opts.Fsync)
		batch = batch[:0]
	}

	for {
		select {
		case cmd, ok := <-w.cmds:
			if !ok {
				flush()
				return
			}
			switch c := cmd.(type) {
			case writeCmd:
				batch = append(batch, c)
				if len(batch) >= opts.BatchSize {
					flush()
					resetTimer(timer, flushInterval)
				}
			case syncCmd:
				flush()
				close(c.reply)
				resetTimer(timer, flushInterval)
			case shutdownCmd:
				flush()
				if err := bw.Flush(); err == nil {
					f.Sync()
				}
				close(c.reply)
				return
			}
		case <-timer.C:
			flush()
			timer.Reset(flushInterval)
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

// flushBatch serializes and writes an entire batch with a single
// write_all-equivalent call and at most one fsync, publishing the
// highest LSN in the batch as committed once durable.
func (w *Writer) flushBatch(bw *bufio.Writer, f *os.File, batch []writeCmd, fsync bool) {
	bufPtr := acquireBuffer()
	defer releaseBuffer(bufPtr)
	buf := *bufPtr

	var maxLSN uint64
	var header [HeaderSize]byte

	for _, c := range batch {
		data, err := encodeOperation(c.op)
		if err != nil {
			continue
		}
		crc := CalculateCRC32(data)
		encodeHeader(header[:], c.lsn, crc, uint32(len(data)))
		buf = append(buf, header[:]...)
		buf = append(buf, data...)
		if c.lsn > maxLSN {
			maxLSN = c.lsn
		}
	}
	*bufPtr = buf

	if _, err := bw.Write(buf); err != nil {
		return
	}
	if err := bw.Flush(); err != nil {
		return
	}
	if fsync {
		if err := f.Sync(); err != nil {
			return
		}
	}

	if maxLSN > w.committedLSN.Load() {
		w.committedLSN.Store(maxLSN)
	}
}
