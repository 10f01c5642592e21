package transaction

import (
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/transaction/txid"
	"github.com/pkg/errors"
)

/*
State file keeps the transaction manager state across restart.

	+-------+---------+---------+-----------+--------+---------------------+------------+--------+-------+
	| magic | version | next_xid| oldest_xid| nslots | (xid u32, state u8) | bitmap len | bitmap | crc32 |
	|  u32  |   u16   |   u32   |    u32    |  u16   |      x nslots       |    u32     |        |  u32  |
	+-------+---------+---------+-----------+--------+---------------------+------------+--------+-------+

the file is written to temporary file, synced and renamed, so that the old state survives
the crash during the write.
*/

// StateFileName is the name of state file in data directory
const StateFileName = "tx_state.tx"

const (
	stateMagic   uint32 = 0x4D504754
	stateVersion uint16 = 1

	stateFixedSize = 4 + 2 + 4 + 4 + 2
	slotEntrySize  = 4 + 1
)

// slotEntry is a slot of the slot table
type slotEntry struct {
	xid   txid.TxID
	state State
}

// isFree checks whether the slot can be used by new transaction
func (s slotEntry) isFree() bool {
	return s.state != StateInProgress && !s.xid.IsValid()
}

// stateImage is the persisted state
type stateImage struct {
	nextXID   txid.TxID
	oldestXID txid.TxID
	slots     []slotEntry
	bitmap    []byte
}

func (img stateImage) marshal() []byte {
	size := stateFixedSize + len(img.slots)*slotEntrySize + 4 + len(img.bitmap) + 4
	b := make([]byte, 0, size)
	b = binary.LittleEndian.AppendUint32(b, stateMagic)
	b = binary.LittleEndian.AppendUint16(b, stateVersion)
	b = binary.LittleEndian.AppendUint32(b, uint32(img.nextXID))
	b = binary.LittleEndian.AppendUint32(b, uint32(img.oldestXID))
	b = binary.LittleEndian.AppendUint16(b, uint16(len(img.slots)))
	for _, s := range img.slots {
		b = binary.LittleEndian.AppendUint32(b, uint32(s.xid))
		b = append(b, byte(s.state))
	}
	b = binary.LittleEndian.AppendUint32(b, uint32(len(img.bitmap)))
	b = append(b, img.bitmap...)
	return binary.LittleEndian.AppendUint32(b, crc32.ChecksumIEEE(b))
}

func unmarshalStateImage(b []byte) (stateImage, error) {
	var img stateImage
	if len(b) < stateFixedSize+4+4 {
		return img, errors.Wrap(common.ErrCorrupted, "state file is too short")
	}
	body := b[:len(b)-4]
	if crc32.ChecksumIEEE(body) != binary.LittleEndian.Uint32(b[len(b)-4:]) {
		return img, errors.Wrap(common.ErrCorrupted, "state file checksum mismatch")
	}
	if binary.LittleEndian.Uint32(body[0:]) != stateMagic {
		return img, errors.Wrap(common.ErrCorrupted, "state file magic mismatch")
	}
	if v := binary.LittleEndian.Uint16(body[4:]); v != stateVersion {
		return img, errors.Wrapf(common.ErrCorrupted, "unsupported state file version %d", v)
	}
	img.nextXID = txid.TxID(binary.LittleEndian.Uint32(body[6:]))
	img.oldestXID = txid.TxID(binary.LittleEndian.Uint32(body[10:]))
	n := int(binary.LittleEndian.Uint16(body[14:]))

	pos := stateFixedSize
	if len(body) < pos+n*slotEntrySize+4 {
		return img, errors.Wrap(common.ErrCorrupted, "state file slot table is truncated")
	}
	img.slots = make([]slotEntry, n)
	for i := range img.slots {
		img.slots[i] = slotEntry{
			xid:   txid.TxID(binary.LittleEndian.Uint32(body[pos:])),
			state: State(body[pos+4]),
		}
		pos += slotEntrySize
	}
	bl := int(binary.LittleEndian.Uint32(body[pos:]))
	pos += 4
	if len(body) != pos+bl {
		return img, errors.Wrap(common.ErrCorrupted, "state file bitmap length mismatch")
	}
	img.bitmap = append([]byte(nil), body[pos:]...)
	return img, nil
}

// writeStateFile writes the state atomically
func writeStateFile(path string, img stateImage) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return common.WrapIO(err, "create state file failed")
	}
	if _, err := f.Write(img.marshal()); err != nil {
		f.Close()
		return common.WrapIO(err, "write state file failed")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return common.WrapIO(err, "sync state file failed")
	}
	if err := f.Close(); err != nil {
		return common.WrapIO(err, "close state file failed")
	}
	if err := os.Rename(tmp, path); err != nil {
		return common.WrapIO(err, "rename state file failed")
	}
	return syncDir(filepath.Dir(path))
}

// readStateFile reads the state. ok is false when the file does not exist
func readStateFile(path string) (img stateImage, ok bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return img, false, nil
		}
		return img, false, common.WrapIO(err, "read state file failed")
	}
	img, err = unmarshalStateImage(b)
	if err != nil {
		return img, false, err
	}
	return img, true, nil
}

// syncDir syncs the directory so that rename is durable
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return common.WrapIO(err, "open directory failed")
	}
	defer d.Close()
	// some file systems do not support fsync on directory
	_ = d.Sync()
	return nil
}
