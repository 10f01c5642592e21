/*
Simple implementation of heap tuple.
Postgres has a lot, like null bitmap, various hint bits...
mini-pg tuple has the fields below.

- oid: the row id. this stays the same across versions of the row
- xmin: in what transaction the tuple is inserted
- xmax: in what transaction the tuple is updated or deleted
- deleted: the tuple is deleted logically
- columns: typed values

xmin and xmax are necessary for MVCC. see comment at /transaction/manager.go

TupleByte layout (little endian)

- tuple header: 14 byte
  - oid: 4 byte
  - xmin: 4 byte
  - xmax: 4 byte
  - deleted: 1 byte
  - column count: 1 byte

- columns: one-byte type tag followed by the value
  - int4/date: 4 byte
  - float: 4 byte
  - bool: 1 byte
  - text: 2 byte length + bytes
*/
package tuple

import (
	"encoding/binary"
	"math"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
)

const (
	oidOffset      = 0
	xminOffset     = 4
	xmaxOffset     = 8
	deletedOffset  = 12
	colCountOffset = 13

	// HeaderSize is the byte size of tuple header
	HeaderSize = 14

	// OidPrefixSize is the byte size of oid prefix. see OidPrefix()
	OidPrefixSize = 4
)

const (
	// MaxColumns is the max number of columns in tuple
	MaxColumns = 32
	// MaxTupleSize is the max byte size of tuple. this is the largest item an empty page can take
	MaxTupleSize = page.MaxItemSize
)

// Tuple is in-memory structure for tuple
type Tuple struct {
	Oid     common.RowOid
	Xmin    txid.TxID
	Xmax    txid.TxID
	Deleted bool
	Values  []Value
}

// NewTuple initializes tuple which is inserted by the transaction
func NewTuple(oid common.RowOid, xmin txid.TxID, values []Value) *Tuple {
	return &Tuple{
		Oid:    oid,
		Xmin:   xmin,
		Xmax:   txid.InvalidTxID,
		Values: values,
	}
}

// Size returns the byte size of marshaled tuple
func (t *Tuple) Size() int {
	size := HeaderSize
	for _, v := range t.Values {
		size += 1 + valueSize(v)
	}
	return size
}

func valueSize(v Value) int {
	switch v.typ {
	case TypeBool:
		return 1
	case TypeText:
		return 2 + len(v.s)
	}
	return 4
}

// Marshal marshals tuple
func (t *Tuple) Marshal() (TupleByte, error) {
	if len(t.Values) > MaxColumns {
		return nil, errors.Wrapf(common.ErrTooManyColumns, "%d columns", len(t.Values))
	}
	size := t.Size()
	if size > MaxTupleSize {
		return nil, errors.Wrapf(common.ErrPageFull, "tuple size %d exceeds %d", size, MaxTupleSize)
	}

	b := make([]byte, 0, size)
	b = binary.LittleEndian.AppendUint32(b, uint32(t.Oid))
	b = binary.LittleEndian.AppendUint32(b, uint32(t.Xmin))
	b = binary.LittleEndian.AppendUint32(b, uint32(t.Xmax))
	if t.Deleted {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = append(b, uint8(len(t.Values)))
	for _, v := range t.Values {
		b = append(b, uint8(v.typ))
		switch v.typ {
		case TypeInt4, TypeDate:
			b = binary.LittleEndian.AppendUint32(b, uint32(v.i))
		case TypeFloat:
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(v.f))
		case TypeBool:
			if v.b {
				b = append(b, 1)
			} else {
				b = append(b, 0)
			}
		case TypeText:
			b = binary.LittleEndian.AppendUint16(b, uint16(len(v.s)))
			b = append(b, v.s...)
		default:
			return nil, errors.Wrapf(common.ErrTypeMismatch, "unknown type %d", v.typ)
		}
	}
	if len(b) != size {
		return nil, errors.Wrapf(common.ErrCorrupted, "marshaled %d bytes, expected %d", len(b), size)
	}
	return TupleByte(b), nil
}

// Unmarshal unmarshals tuple
// the bytes are copied so that the tuple does not point to page
func Unmarshal(b []byte) (*Tuple, error) {
	if len(b) < HeaderSize {
		return nil, errors.Wrapf(common.ErrCorrupted, "tuple is %d bytes", len(b))
	}
	tb := TupleByte(b)
	t := &Tuple{
		Oid:     tb.Oid(),
		Xmin:    tb.Xmin(),
		Xmax:    tb.Xmax(),
		Deleted: tb.Deleted(),
	}
	n := int(b[colCountOffset])
	if n > MaxColumns {
		return nil, errors.Wrapf(common.ErrCorrupted, "column count %d", n)
	}
	t.Values = make([]Value, 0, n)

	pos := HeaderSize
	need := func(size int) error {
		if pos+size > len(b) {
			return errors.Wrapf(common.ErrCorrupted, "tuple is truncated at %d (%d bytes)", pos, len(b))
		}
		return nil
	}
	for i := 0; i < n; i++ {
		if err := need(1); err != nil {
			return nil, err
		}
		typ := Type(b[pos])
		pos++
		switch typ {
		case TypeInt4, TypeDate:
			if err := need(4); err != nil {
				return nil, err
			}
			t.Values = append(t.Values, Value{typ: typ, i: int32(binary.LittleEndian.Uint32(b[pos:]))})
			pos += 4
		case TypeFloat:
			if err := need(4); err != nil {
				return nil, err
			}
			t.Values = append(t.Values, Float(math.Float32frombits(binary.LittleEndian.Uint32(b[pos:]))))
			pos += 4
		case TypeBool:
			if err := need(1); err != nil {
				return nil, err
			}
			t.Values = append(t.Values, Bool(b[pos] != 0))
			pos++
		case TypeText:
			if err := need(2); err != nil {
				return nil, err
			}
			l := int(binary.LittleEndian.Uint16(b[pos:]))
			pos += 2
			if err := need(l); err != nil {
				return nil, err
			}
			t.Values = append(t.Values, Text(string(b[pos:pos+l])))
			pos += l
		default:
			return nil, errors.Wrapf(common.ErrCorrupted, "unknown type tag %d in column %d", typ, i)
		}
	}
	if pos != len(b) {
		return nil, errors.Wrapf(common.ErrCorrupted, "%d trailing bytes", len(b)-pos)
	}
	return t, nil
}

// Clone returns the copy of the tuple with new values
// this is used to create new version of the row
func (t *Tuple) Clone() *Tuple {
	values := make([]Value, len(t.Values))
	copy(values, t.Values)
	return &Tuple{
		Oid:     t.Oid,
		Xmin:    t.Xmin,
		Xmax:    t.Xmax,
		Deleted: t.Deleted,
		Values:  values,
	}
}

// TupleByte is on-disk byte slice for tuple
// header fields can be read/updated without unmarshaling
type TupleByte []byte

// Oid returns oid
func (t TupleByte) Oid() common.RowOid {
	return common.RowOid(binary.LittleEndian.Uint32(t[oidOffset : oidOffset+4]))
}

// Xmin returns xmin
func (t TupleByte) Xmin() txid.TxID {
	return txid.TxID(binary.LittleEndian.Uint32(t[xminOffset : xminOffset+4]))
}

// Xmax returns xmax
func (t TupleByte) Xmax() txid.TxID {
	return txid.TxID(binary.LittleEndian.Uint32(t[xmaxOffset : xmaxOffset+4]))
}

// SetXmax sets xmax
func (t TupleByte) SetXmax(txID txid.TxID) {
	binary.LittleEndian.PutUint32(t[xmaxOffset:xmaxOffset+4], uint32(txID))
}

// Deleted returns deleted flag
func (t TupleByte) Deleted() bool {
	return t[deletedOffset] != 0
}

// SetDeleted sets deleted flag
func (t TupleByte) SetDeleted(deleted bool) {
	if deleted {
		t[deletedOffset] = 1
		return
	}
	t[deletedOffset] = 0
}

// OidPrefix returns the leading bytes of the tuple with the oid
// the tuple of the row can be found in page with page.FindItemByPrefix()
func OidPrefix(oid common.RowOid) []byte {
	return binary.LittleEndian.AppendUint32(make([]byte, 0, OidPrefixSize), uint32(oid))
}
