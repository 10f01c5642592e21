package snapshot

import (
	"testing"

	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/stretchr/testify/assert"
)

// commitLog is committed transactions for test
type commitLog map[txid.TxID]bool

func (c commitLog) IsCommitted(xid txid.TxID) bool {
	return c[xid]
}

func TestIsVisible(t *testing.T) {
	// reader is 10, and the oldest active transaction was 8 at the beginning of reader
	snap := NewSnapshot(10, 8)
	clog := commitLog{3: true, 5: true, 12: true, 9: true}

	tests := []struct {
		name     string
		xmin     txid.TxID
		xmax     txid.TxID
		expected bool
	}{
		{name: "inserted by reader", xmin: 10, xmax: txid.InvalidTxID, expected: true},
		{name: "inserted and deleted by reader", xmin: 10, xmax: 10, expected: false},
		{name: "inserted by reader and deleted by other", xmin: 10, xmax: 12, expected: true},
		{name: "committed before snapshot", xmin: 3, xmax: txid.InvalidTxID, expected: true},
		{name: "aborted before snapshot", xmin: 4, xmax: txid.InvalidTxID, expected: false},
		{name: "invalid xmin", xmin: txid.InvalidTxID, xmax: txid.InvalidTxID, expected: false},
		{name: "inserted by transaction active at snapshot", xmin: 8, xmax: txid.InvalidTxID, expected: false},
		{name: "inserted by committed transaction at or after snapshot", xmin: 9, xmax: txid.InvalidTxID, expected: false},
		{name: "inserted by later transaction", xmin: 12, xmax: txid.InvalidTxID, expected: false},
		{name: "deleted by reader", xmin: 3, xmax: 10, expected: false},
		{name: "deleted by uncommitted transaction", xmin: 3, xmax: 11, expected: true},
		{name: "deleted by aborted transaction", xmin: 3, xmax: 4, expected: true},
		{name: "deleted by committed older transaction", xmin: 3, xmax: 5, expected: false},
		{name: "deleted by committed later transaction", xmin: 3, xmax: 12, expected: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := snap.IsVisible(tt.xmin, tt.xmax, clog)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSelfVisibility(t *testing.T) {
	// the row inserted by the transaction is always visible to itself before commit,
	// and never visible after it deletes the row
	clog := commitLog{}
	for reader := txid.FirstTxID; reader < 20; reader++ {
		snap := NewSnapshot(reader, reader)
		assert.True(t, snap.IsVisible(reader, txid.InvalidTxID, clog))
		assert.False(t, snap.IsVisible(reader, reader, clog))
	}
	assert.Equal(t, txid.TxID(3), NewSnapshot(3, 1).Reader())
	assert.Equal(t, txid.TxID(1), NewSnapshot(3, 1).Xmin())
}
