package wal

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
)

// InsertPayload is the payload of insert record
type InsertPayload struct {
	Table common.Relation
	Page  page.PageID
	Slot  page.SlotIndex
	Tuple []byte
}

const insertFixedSize = 4 + 4 + 2 + 2

// Marshal encodes payload
func (p InsertPayload) Marshal() []byte {
	b := make([]byte, insertFixedSize+len(p.Tuple))
	binary.LittleEndian.PutUint32(b[0:], uint32(p.Table))
	binary.LittleEndian.PutUint32(b[4:], uint32(p.Page))
	binary.LittleEndian.PutUint16(b[8:], uint16(p.Slot))
	binary.LittleEndian.PutUint16(b[10:], uint16(len(p.Tuple)))
	copy(b[insertFixedSize:], p.Tuple)
	return b
}

// UnmarshalInsert decodes insert payload
func UnmarshalInsert(b []byte) (InsertPayload, error) {
	if len(b) < insertFixedSize {
		return InsertPayload{}, ErrCorruptRecord
	}
	n := int(binary.LittleEndian.Uint16(b[10:]))
	if len(b) != insertFixedSize+n {
		return InsertPayload{}, ErrCorruptRecord
	}
	return InsertPayload{
		Table: common.Relation(binary.LittleEndian.Uint32(b[0:])),
		Page:  page.PageID(binary.LittleEndian.Uint32(b[4:])),
		Slot:  page.SlotIndex(binary.LittleEndian.Uint16(b[8:])),
		Tuple: append([]byte(nil), b[insertFixedSize:]...),
	}, nil
}

// UpdatePayload is the payload of update record
type UpdatePayload struct {
	Table   common.Relation
	OldPage page.PageID
	OldSlot page.SlotIndex
	NewPage page.PageID
	NewSlot page.SlotIndex
	Tuple   []byte
}

const updateFixedSize = 4 + 4 + 2 + 4 + 2 + 2

// Marshal encodes payload
func (p UpdatePayload) Marshal() []byte {
	b := make([]byte, updateFixedSize+len(p.Tuple))
	binary.LittleEndian.PutUint32(b[0:], uint32(p.Table))
	binary.LittleEndian.PutUint32(b[4:], uint32(p.OldPage))
	binary.LittleEndian.PutUint16(b[8:], uint16(p.OldSlot))
	binary.LittleEndian.PutUint32(b[10:], uint32(p.NewPage))
	binary.LittleEndian.PutUint16(b[14:], uint16(p.NewSlot))
	binary.LittleEndian.PutUint16(b[16:], uint16(len(p.Tuple)))
	copy(b[updateFixedSize:], p.Tuple)
	return b
}

// UnmarshalUpdate decodes update payload
func UnmarshalUpdate(b []byte) (UpdatePayload, error) {
	if len(b) < updateFixedSize {
		return UpdatePayload{}, ErrCorruptRecord
	}
	n := int(binary.LittleEndian.Uint16(b[16:]))
	if len(b) != updateFixedSize+n {
		return UpdatePayload{}, ErrCorruptRecord
	}
	return UpdatePayload{
		Table:   common.Relation(binary.LittleEndian.Uint32(b[0:])),
		OldPage: page.PageID(binary.LittleEndian.Uint32(b[4:])),
		OldSlot: page.SlotIndex(binary.LittleEndian.Uint16(b[8:])),
		NewPage: page.PageID(binary.LittleEndian.Uint32(b[10:])),
		NewSlot: page.SlotIndex(binary.LittleEndian.Uint16(b[14:])),
		Tuple:   append([]byte(nil), b[updateFixedSize:]...),
	}, nil
}

// DeletePayload is the payload of delete record
type DeletePayload struct {
	Table common.Relation
	Page  page.PageID
	Slot  page.SlotIndex
	Row   common.RowOid
}

const deleteSize = 4 + 4 + 2 + 4

// Marshal encodes payload
func (p DeletePayload) Marshal() []byte {
	b := make([]byte, deleteSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(p.Table))
	binary.LittleEndian.PutUint32(b[4:], uint32(p.Page))
	binary.LittleEndian.PutUint16(b[8:], uint16(p.Slot))
	binary.LittleEndian.PutUint32(b[10:], uint32(p.Row))
	return b
}

// UnmarshalDelete decodes delete payload
func UnmarshalDelete(b []byte) (DeletePayload, error) {
	if len(b) != deleteSize {
		return DeletePayload{}, ErrCorruptRecord
	}
	return DeletePayload{
		Table: common.Relation(binary.LittleEndian.Uint32(b[0:])),
		Page:  page.PageID(binary.LittleEndian.Uint32(b[4:])),
		Slot:  page.SlotIndex(binary.LittleEndian.Uint16(b[8:])),
		Row:   common.RowOid(binary.LittleEndian.Uint32(b[10:])),
	}, nil
}

// ColumnDef is column definition in create table record
type ColumnDef struct {
	Name string
	Type tuple.Type
}

// CreateTablePayload is the payload of create table record
type CreateTablePayload struct {
	Table   common.Relation
	Name    string
	Columns []ColumnDef
}

// Marshal encodes payload. names longer than 255 bytes are rejected by catalog before logging
func (p CreateTablePayload) Marshal() []byte {
	b := make([]byte, 4, 4+1+len(p.Name)+1+len(p.Columns)*8)
	binary.LittleEndian.PutUint32(b[0:], uint32(p.Table))
	b = append(b, byte(len(p.Name)))
	b = append(b, p.Name...)
	b = append(b, byte(len(p.Columns)))
	for _, c := range p.Columns {
		b = append(b, byte(len(c.Name)))
		b = append(b, c.Name...)
		b = append(b, byte(c.Type))
	}
	return b
}

// UnmarshalCreateTable decodes create table payload
func UnmarshalCreateTable(b []byte) (CreateTablePayload, error) {
	var p CreateTablePayload
	if len(b) < 5 {
		return p, ErrCorruptRecord
	}
	p.Table = common.Relation(binary.LittleEndian.Uint32(b[0:]))
	pos := 4
	name, pos, ok := readShortString(b, pos)
	if !ok {
		return p, ErrCorruptRecord
	}
	p.Name = name
	if pos >= len(b) {
		return p, ErrCorruptRecord
	}
	n := int(b[pos])
	pos++
	for i := 0; i < n; i++ {
		var cname string
		cname, pos, ok = readShortString(b, pos)
		if !ok || pos >= len(b) {
			return p, ErrCorruptRecord
		}
		p.Columns = append(p.Columns, ColumnDef{Name: cname, Type: tuple.Type(b[pos])})
		pos++
	}
	if pos != len(b) {
		return p, ErrCorruptRecord
	}
	return p, nil
}

// readShortString reads u8 length prefixed string
func readShortString(b []byte, pos int) (string, int, bool) {
	if pos >= len(b) {
		return "", pos, false
	}
	n := int(b[pos])
	pos++
	if pos+n > len(b) {
		return "", pos, false
	}
	return string(b[pos : pos+n]), pos + n, true
}

// Describe returns human readable summary of the payload
func (r *Record) Describe() string {
	switch r.Type {
	case RecordInsert:
		p, err := UnmarshalInsert(r.Payload)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("table=%d tid=(%d,%d) len=%d", p.Table, p.Page, p.Slot, len(p.Tuple))
	case RecordUpdate:
		p, err := UnmarshalUpdate(r.Payload)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("table=%d old=(%d,%d) new=(%d,%d) len=%d", p.Table, p.OldPage, p.OldSlot, p.NewPage, p.NewSlot, len(p.Tuple))
	case RecordDelete:
		p, err := UnmarshalDelete(r.Payload)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("table=%d tid=(%d,%d) row=%d", p.Table, p.Page, p.Slot, p.Row)
	case RecordCreateTable:
		p, err := UnmarshalCreateTable(r.Payload)
		if err != nil {
			return err.Error()
		}
		cols := make([]string, 0, len(p.Columns))
		for _, c := range p.Columns {
			cols = append(cols, c.Name+" "+c.Type.String())
		}
		return fmt.Sprintf("table=%d name=%s columns=(%s)", p.Table, p.Name, strings.Join(cols, ", "))
	}
	return ""
}
