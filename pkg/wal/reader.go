package wal

import (
	"io"
	"os"

	jsonerr "github.com/bobboyms/jsondb/pkg/errors"
	"github.com/bobboyms/jsondb/pkg/value"
)

const maxPayloadLen = 1 << 30 // 1GB guard against a corrupt length field

// Recover replays path against root, applying every well-formed record
// in order. It stops at the first short read, checksum mismatch, or
// undecodable payload — prefix-recoverable semantics: a record is only
// ever applied if every record before it was intact. It returns the
// highest LSN actually applied; if path does not exist, that is 0 and
// not an error.
func Recover(path string, root *value.Value) (uint64, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, &jsonerr.IOError{Op: "open wal file", Err: err}
	}
	defer f.Close()

	var lastGood uint64
	header := make([]byte, HeaderSize)

	for {
		if _, err := io.ReadFull(f, header); err != nil {
			break
		}
		lsn, crc, length := decodeHeader(header)
		if length > maxPayloadLen {
			break
		}

		payload := make([]byte, length)
		if _, err := io.ReadFull(f, payload); err != nil {
			break
		}
		if !ValidateCRC32(payload, crc) {
			break
		}

		op, err := decodeOperation(payload)
		if err != nil {
			break
		}

		applyOperation(root, op)
		lastGood = lsn
	}

	return lastGood, nil
}

func applyOperation(root *value.Value, op Operation) {
	switch op.Type {
	case OpSet:
		if op.Value != nil {
			value.Set(root, op.Path, op.Value)
		}
	case OpDelete:
		value.Delete(root, op.Path)
	}
}
