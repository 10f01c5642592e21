package wal

import (
	"io"
	"os"
	"time"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/metrics"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// FileName is the default name of wal file in data directory
const FileName = "pg_wal.log"

// FirstLSN is the lsn of the first record. 0 is invalid lsn
const FirstLSN common.LSN = 1

// Writer appends records to wal file
type Writer struct {
	// latch serializes appends so that lsn order equals file order
	latch lock.LWLock
	f     *os.File
	// size is the end of the valid log
	size    int64
	nextLSN common.LSN
	metrics *metrics.Metrics
}

// Open opens the wal file and positions the writer after the last valid record.
// the torn tail left by crash is truncated
func Open(path string, mt *metrics.Metrics) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, common.WrapIO(err, "open wal file failed")
	}

	w := &Writer{
		f:       f,
		nextLSN: FirstLSN,
		metrics: mt,
	}
	if err := w.recover(); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// recover scans the existing log to continue lsn and drops the torn tail
func (w *Writer) recover() error {
	fi, err := w.f.Stat()
	if err != nil {
		return common.WrapIO(err, "stat wal file failed")
	}

	r := NewReader(io.NewSectionReader(w.f, 0, fi.Size()))
	n := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if common.KindOf(err) != common.KindEncoding {
				return err
			}
			log.WithFields(log.Fields{
				"offset": r.Offset(),
				"size":   fi.Size(),
			}).Warn("wal ends with torn record, truncating")
			break
		}
		n++
		if rec.LSN >= w.nextLSN {
			w.nextLSN = rec.LSN + 1
		}
	}

	w.size = r.Offset()
	if w.size < fi.Size() {
		if err := w.f.Truncate(w.size); err != nil {
			return common.WrapIO(err, "truncate wal file failed")
		}
		if err := w.f.Sync(); err != nil {
			return common.WrapIO(err, "sync wal file failed")
		}
	}
	log.WithFields(log.Fields{
		"records":  n,
		"next_lsn": w.nextLSN,
	}).Debug("wal opened")
	return nil
}

// Append assigns lsn to the record and writes it. the record is not synced
func (w *Writer) Append(rec *Record) (common.LSN, error) {
	w.latch.Acquire()
	defer w.latch.Release()
	return w.append(rec)
}

// AppendSync appends the record and syncs the file.
// this is used for the records which must be durable before acknowledged (commit, checkpoint)
func (w *Writer) AppendSync(rec *Record) (common.LSN, error) {
	w.latch.Acquire()
	defer w.latch.Release()
	lsn, err := w.append(rec)
	if err != nil {
		return 0, err
	}
	if err := w.f.Sync(); err != nil {
		return 0, common.WrapIO(err, "sync wal file failed")
	}
	return lsn, nil
}

func (w *Writer) append(rec *Record) (common.LSN, error) {
	if w.f == nil {
		return 0, errors.Wrap(common.ErrEngineClosed, "wal writer is closed")
	}
	rec.LSN = w.nextLSN
	rec.Timestamp = uint64(time.Now().UnixMicro())
	b := rec.Marshal()
	if len(b) > MaxRecordSize {
		return 0, errors.Errorf("wal record is too large: %d", len(b))
	}
	if _, err := w.f.WriteAt(b, w.size); err != nil {
		return 0, common.WrapIO(err, "write wal record failed")
	}
	w.size += int64(len(b))
	w.nextLSN++

	if w.metrics != nil {
		w.metrics.WALRecords.WithLabelValues(rec.Type.String()).Inc()
		w.metrics.WALBytes.Add(float64(len(b)))
	}
	return rec.LSN, nil
}

// Sync syncs the wal file
func (w *Writer) Sync() error {
	w.latch.Acquire()
	defer w.latch.Release()
	if w.f == nil {
		return nil
	}
	return common.WrapIO(w.f.Sync(), "sync wal file failed")
}

// NextLSN returns the lsn which is assigned to the next record
func (w *Writer) NextLSN() common.LSN {
	w.latch.Acquire()
	defer w.latch.Release()
	return w.nextLSN
}

// Size returns the size of the valid log
func (w *Writer) Size() int64 {
	w.latch.Acquire()
	defer w.latch.Release()
	return w.size
}

// Close syncs and closes the wal file
func (w *Writer) Close() error {
	w.latch.Acquire()
	defer w.latch.Release()
	if w.f == nil {
		return nil
	}
	f := w.f
	w.f = nil
	if err := f.Sync(); err != nil {
		f.Close()
		return common.WrapIO(err, "sync wal file failed")
	}
	return common.WrapIO(f.Close(), "close wal file failed")
}
