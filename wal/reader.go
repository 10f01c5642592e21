package wal

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/jimingkang/mini-pg/common"
	"github.com/pkg/errors"
)

// Reader reads wal records sequentially
type Reader struct {
	r *bufio.Reader
	// offset is the end of the last valid record
	offset int64
}

// NewReader initializes reader
func NewReader(r io.Reader) *Reader {
	return &Reader{
		r: bufio.NewReader(r),
	}
}

// Offset returns the byte offset right after the last record returned by Next
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next reads the next record.
// io.EOF is returned at the clean end of log, ErrCorruptRecord when the record is torn or broken
func (r *Reader) Next() (*Record, error) {
	head := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r.r, head); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrCorruptRecord, "short record header")
		}
		return nil, common.WrapIO(err, "read wal record header failed")
	}

	total := binary.LittleEndian.Uint32(head[offsetTotalLen:])
	if total < HeaderSize || total > MaxRecordSize {
		return nil, errors.Wrapf(ErrCorruptRecord, "invalid record length %d", total)
	}
	b := make([]byte, total)
	copy(b, head)
	if _, err := io.ReadFull(r.r, b[HeaderSize:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errors.Wrap(ErrCorruptRecord, "short record payload")
		}
		return nil, common.WrapIO(err, "read wal record payload failed")
	}

	rec, err := Unmarshal(b)
	if err != nil {
		return nil, errors.Wrapf(err, "record at offset %d", r.offset)
	}
	r.offset += int64(total)
	return rec, nil
}

// ReadAll reads records until the end of valid log.
// when the log ends with corrupt record, the valid records are returned with ErrCorruptRecord
func ReadAll(rd io.Reader) ([]*Record, error) {
	r := NewReader(rd)
	recs := []*Record{}
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}

// ReadFile reads all valid records of the wal file
func ReadFile(path string) ([]*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*Record{}, nil
		}
		return nil, common.WrapIO(err, "open wal file failed")
	}
	defer f.Close()
	return ReadAll(f)
}
