package catalog

import (
	"encoding/binary"
	"hash/crc32"
	"os"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/storage/page"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/pkg/errors"
)

/*
meta file layout (little endian)

	magic u32 | version u8 | oid u32 | name (u8 len + bytes) | filename (u8 len + bytes)
	| column count u8 | (name (u8 len + bytes), type u8) x count
	| first_page u32 | last_page u32 | max_row_oid u32 | crc32 u32
*/

// MetaFileSuffix is the suffix of meta file
const MetaFileSuffix = ".meta"

const (
	metaMagic   uint32 = 0x4D50474D
	metaVersion uint8  = 1
)

func marshalMeta(meta *TableMeta) []byte {
	b := make([]byte, 0, 64)
	b = binary.LittleEndian.AppendUint32(b, metaMagic)
	b = append(b, metaVersion)
	b = binary.LittleEndian.AppendUint32(b, uint32(meta.Oid))
	b = appendShortString(b, meta.Name)
	b = appendShortString(b, meta.Filename)
	b = append(b, byte(len(meta.Columns)))
	for _, col := range meta.Columns {
		b = appendShortString(b, col.Name)
		b = append(b, byte(col.Type))
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(meta.FirstPage))
	b = binary.LittleEndian.AppendUint32(b, uint32(meta.LastPage()))
	b = binary.LittleEndian.AppendUint32(b, uint32(meta.MaxRowOid()))
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

func appendShortString(b []byte, s string) []byte {
	b = append(b, byte(len(s)))
	return append(b, s...)
}

// metaDecoder reads fields in order and remembers the first failure
type metaDecoder struct {
	b   []byte
	pos int
	err error
}

func (d *metaDecoder) need(n int) bool {
	if d.err != nil {
		return false
	}
	if d.pos+n > len(d.b) {
		d.err = errors.Wrap(common.ErrCorrupted, "meta file is truncated")
		return false
	}
	return true
}

func (d *metaDecoder) u8() uint8 {
	if !d.need(1) {
		return 0
	}
	v := d.b[d.pos]
	d.pos++
	return v
}

func (d *metaDecoder) u32() uint32 {
	if !d.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(d.b[d.pos:])
	d.pos += 4
	return v
}

func (d *metaDecoder) shortString() string {
	n := int(d.u8())
	if !d.need(n) {
		return ""
	}
	s := string(d.b[d.pos : d.pos+n])
	d.pos += n
	return s
}

func unmarshalMeta(b []byte) (*TableMeta, error) {
	if len(b) < 4 {
		return nil, errors.Wrap(common.ErrCorrupted, "meta file is too short")
	}
	body := b[:len(b)-4]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(b[len(b)-4:]) {
		return nil, errors.Wrap(common.ErrCorrupted, "meta file checksum mismatch")
	}

	d := &metaDecoder{b: body}
	if d.u32() != metaMagic {
		return nil, errors.Wrap(common.ErrCorrupted, "meta file magic mismatch")
	}
	if v := d.u8(); v != metaVersion {
		return nil, errors.Wrapf(common.ErrCorrupted, "unsupported meta file version %d", v)
	}
	oid := common.Relation(d.u32())
	name := d.shortString()
	filename := d.shortString()
	cols := make([]Column, d.u8())
	for i := range cols {
		cols[i].Name = d.shortString()
		cols[i].Type = tuple.Type(d.u8())
	}
	first := page.PageID(d.u32())
	last := page.PageID(d.u32())
	maxRow := d.u32()
	if d.err != nil {
		return nil, d.err
	}
	if d.pos != len(body) {
		return nil, errors.Wrap(common.ErrCorrupted, "meta file has trailing bytes")
	}

	meta := newTableMeta(oid, name, cols)
	meta.Filename = filename
	meta.FirstPage = first
	meta.lastPage.Store(uint32(last))
	meta.maxRowOid.Store(maxRow)
	return meta, nil
}

// writeMetaFile writes the meta file atomically
func writeMetaFile(path string, meta *TableMeta) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, marshalMeta(meta), 0600); err != nil {
		return common.WrapIO(err, "write meta file failed")
	}
	f, err := os.Open(tmp)
	if err != nil {
		return common.WrapIO(err, "open meta file failed")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return common.WrapIO(err, "sync meta file failed")
	}
	f.Close()
	if err := os.Rename(tmp, path); err != nil {
		return common.WrapIO(err, "rename meta file failed")
	}
	return nil
}

func readMetaFile(path string) (*TableMeta, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, common.WrapIO(err, "read meta file failed")
	}
	return unmarshalMeta(b)
}
