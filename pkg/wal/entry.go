package wal

import (
	"encoding/binary"

	"github.com/bobboyms/jsondb/pkg/value"
	"github.com/bytedance/sonic"
)

// HeaderSize is the fixed size of the on-disk record header:
// [LSN:8][CRC32:4][LEN:4].
const HeaderSize = 16

// OpType identifies what kind of mutation an Operation records.
type OpType uint8

const (
	OpSet OpType = iota
	OpDelete
)

func (t OpType) String() string {
	if t == OpDelete {
		return "delete"
	}
	return "set"
}

// Operation is one logical mutation appended to the log. Value is nil
// for deletes.
type Operation struct {
	Timestamp int64         `json:"timestamp"`
	Type      OpType        `json:"type"`
	Path      string        `json:"path"`
	Value     *value.Value  `json:"value,omitempty"`
}

// Record is a decoded on-disk entry: an LSN paired with its operation
// payload. Neither Recover nor the writer uses this type.
type Record struct {
	LSN     uint64
	Payload []byte
}

func encodeHeader(buf []byte, lsn uint64, crc uint32, length uint32) {
	binary.LittleEndian.PutUint64(buf[0:8], lsn)
	binary.LittleEndian.PutUint32(buf[8:12], crc)
	binary.LittleEndian.PutUint32(buf[12:16], length)
}

func decodeHeader(buf []byte) (lsn uint64, crc uint32, length uint32) {
	lsn = binary.LittleEndian.Uint64(buf[0:8])
	crc = binary.LittleEndian.Uint32(buf[8:12])
	length = binary.LittleEndian.Uint32(buf[12:16])
	return
}

func encodeOperation(op Operation) ([]byte, error) {
	return sonic.Marshal(op)
}

func decodeOperation(data []byte) (Operation, error) {
	var op Operation
	err := sonic.Unmarshal(data, &op)
	return op, err
}
