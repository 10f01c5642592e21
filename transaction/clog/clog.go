/*
Clog (commit log) stores commit status of transactions.
Simply put, the visibility of tuples cannot be determined without clog.

Postgres stores 2 bits per transaction in SLRU pages under pg_xact directory.
mini-pg keeps only the committed transactions in a compressed bitmap (roaring bitmap).
the transaction which is not in the bitmap is in progress or aborted, and both are invisible to others.

The bitmap is persisted in transaction state file by transaction manager on every commit/abort.

see https://github.com/postgres/postgres/blob/75f49221c22286104f032827359783aa5f4e6646/src/backend/access/transam/clog.c#L3
*/
package clog

import (
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
)

// Bitmap is commit bitmap
type Bitmap struct {
	mu sync.RWMutex
	bm *roaring.Bitmap
}

// NewBitmap initializes empty commit bitmap
func NewBitmap() *Bitmap {
	return &Bitmap{
		bm: roaring.New(),
	}
}

// SetCommitted records the transaction as committed
func (b *Bitmap) SetCommitted(xid txid.TxID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bm.Add(uint32(xid))
}

// ClearCommitted removes the transaction from committed
// this is called when the transaction aborts
func (b *Bitmap) ClearCommitted(xid txid.TxID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bm.Remove(uint32(xid))
}

// IsCommitted checks whether the transaction has been committed
func (b *Bitmap) IsCommitted(xid txid.TxID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bm.Contains(uint32(xid))
}

// Count returns the number of committed transactions
func (b *Bitmap) Count() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bm.GetCardinality()
}

// MarshalBinary encodes the bitmap with roaring portable format
func (b *Bitmap) MarshalBinary() ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	data, err := b.bm.ToBytes()
	if err != nil {
		return nil, errors.Wrap(err, "bitmap.ToBytes failed")
	}
	return data, nil
}

// UnmarshalBinary replaces the bitmap with the encoded one
func (b *Bitmap) UnmarshalBinary(data []byte) error {
	bm := roaring.New()
	if len(data) > 0 {
		if err := bm.UnmarshalBinary(data); err != nil {
			return errors.Wrapf(common.ErrCorrupted, "commit bitmap: %v", err)
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bm = bm
	return nil
}
