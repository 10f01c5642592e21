package tuple

import (
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/txid"
)

// TestingNewTuple returns marshaled users(id int, name text, age int) tuple
func TestingNewTuple(oid common.RowOid, xmin, xmax txid.TxID) TupleByte {
	tup := NewTuple(oid, xmin, []Value{Int4(int32(oid)), Text("Tom"), Int4(20)})
	tup.Xmax = xmax
	b, err := tup.Marshal()
	if err != nil {
		panic(err)
	}
	return b
}
