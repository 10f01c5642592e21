package txid

// TxID is transaction id
// transaction id is allocated monotonically and never wraps around in mini-pg
type TxID uint32

const (
	// invalid transaction id. this is stored in xmax of tuple which has not been updated/deleted
	InvalidTxID TxID = 0
	// first transaction id allocated by transaction id manager
	FirstTxID TxID = 1
)

// IsValid checks whether the transaction id is valid
func (id TxID) IsValid() bool {
	return id != InvalidTxID
}

// Precedes checks whether id is older than compared (id < compared)
func (id TxID) Precedes(compared TxID) bool {
	return id < compared
}

// advanceTxID advances transaction id
// InvalidTxID is skipped
func advanceTxID(txID TxID) TxID {
	txID++
	if !txID.IsValid() {
		return FirstTxID
	}
	return txID
}
