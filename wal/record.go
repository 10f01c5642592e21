/*
WAL (write-ahead log) is append-only log of changes.
A change is logged before it is acknowledged, so commit record is synced to disk
before the commit is reported to the client.

Record layout (little endian):

	+--------+-----------+------+-----+-----+-----------+---------+
	| crc u32| total u32 | type | lsn | xid | timestamp | payload |
	|        |           |  u8  | u32 | u32 | u64 (µs)  |         |
	+--------+-----------+------+-----+-----+-----------+---------+

crc is CRC32 (IEEE) over bytes [4, total).
total is the length of the whole record including header.

Postgres has redo records per resource manager and replays them from the last checkpoint.
mini-pg writes the records but does not replay them. The log is read when the writer
is opened (to find the torn tail) and by the dump command.

see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/access/xlogrecord.h#L41
*/
package wal

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// RecordType is the type of wal record
type RecordType uint8

const (
	RecordBegin       RecordType = 0x00
	RecordInsert      RecordType = 0x01
	RecordUpdate      RecordType = 0x02
	RecordDelete      RecordType = 0x03
	RecordCreateTable RecordType = 0x10
	RecordCommit      RecordType = 0x20
	RecordAbort       RecordType = 0x21
	RecordCheckpoint  RecordType = 0x30
)

var recordTypeNames = map[RecordType]string{
	RecordBegin:       "begin",
	RecordInsert:      "insert",
	RecordUpdate:      "update",
	RecordDelete:      "delete",
	RecordCreateTable: "create_table",
	RecordCommit:      "commit",
	RecordAbort:       "abort",
	RecordCheckpoint:  "checkpoint",
}

func (t RecordType) String() string {
	if s, ok := recordTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("unknown(0x%02x)", uint8(t))
}

// IsValid checks whether the record type is known
func (t RecordType) IsValid() bool {
	_, ok := recordTypeNames[t]
	return ok
}

type offset int

const (
	offsetCRC       offset = 0
	offsetTotalLen  offset = 4
	offsetType      offset = 8
	offsetLSN       offset = 9
	offsetXID       offset = 13
	offsetTimestamp offset = 17

	// HeaderSize is the size of record header
	HeaderSize = 25
	// MaxRecordSize is the upper bound of one record. larger length means the log is broken
	MaxRecordSize = 1 << 20
)

// ErrCorruptRecord is returned when the record is torn or its checksum does not match.
// the record and everything after it is not part of the valid log
var ErrCorruptRecord = common.NewError(common.KindEncoding, "corrupt wal record")

// Header is record header
type Header struct {
	CRC       uint32
	TotalLen  uint32
	Type      RecordType
	LSN       common.LSN
	XID       txid.TxID
	Timestamp uint64
}

// Record is wal record
type Record struct {
	Header
	Payload []byte
}

// NewRecord initializes record. lsn and timestamp are set by writer
func NewRecord(typ RecordType, xid txid.TxID, payload []byte) *Record {
	return &Record{
		Header: Header{
			Type: typ,
			XID:  xid,
		},
		Payload: payload,
	}
}

// Size returns the size of encoded record
func (r *Record) Size() int {
	return HeaderSize + len(r.Payload)
}

// Marshal encodes the record and fills in total length and crc
func (r *Record) Marshal() []byte {
	b := make([]byte, r.Size())
	r.TotalLen = uint32(len(b))
	binary.LittleEndian.PutUint32(b[offsetTotalLen:], r.TotalLen)
	b[offsetType] = byte(r.Type)
	binary.LittleEndian.PutUint32(b[offsetLSN:], uint32(r.LSN))
	binary.LittleEndian.PutUint32(b[offsetXID:], uint32(r.XID))
	binary.LittleEndian.PutUint64(b[offsetTimestamp:], r.Timestamp)
	copy(b[HeaderSize:], r.Payload)

	r.CRC = crc32.ChecksumIEEE(b[offsetTotalLen:])
	binary.LittleEndian.PutUint32(b[offsetCRC:], r.CRC)
	return b
}

// unmarshalHeader decodes header. b must be at least HeaderSize bytes
func unmarshalHeader(b []byte) Header {
	return Header{
		CRC:       binary.LittleEndian.Uint32(b[offsetCRC:]),
		TotalLen:  binary.LittleEndian.Uint32(b[offsetTotalLen:]),
		Type:      RecordType(b[offsetType]),
		LSN:       common.LSN(binary.LittleEndian.Uint32(b[offsetLSN:])),
		XID:       txid.TxID(binary.LittleEndian.Uint32(b[offsetXID:])),
		Timestamp: binary.LittleEndian.Uint64(b[offsetTimestamp:]),
	}
}

// Unmarshal decodes the whole record and verifies its checksum
func Unmarshal(b []byte) (*Record, error) {
	if len(b) < HeaderSize {
		return nil, ErrCorruptRecord
	}
	h := unmarshalHeader(b)
	if int(h.TotalLen) != len(b) {
		return nil, ErrCorruptRecord
	}
	if crc32.ChecksumIEEE(b[offsetTotalLen:]) != h.CRC {
		return nil, ErrCorruptRecord
	}
	if !h.Type.IsValid() {
		return nil, ErrCorruptRecord
	}
	payload := make([]byte, len(b)-HeaderSize)
	copy(payload, b[HeaderSize:])
	return &Record{Header: h, Payload: payload}, nil
}
