package wal

import (
	"bytes"
	"testing"

	"github.com/jimingkang/mini-pg/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadAll(t *testing.T) {
	rec1 := NewRecord(RecordBegin, 7, nil)
	rec1.LSN = 1
	rec2 := NewRecord(RecordDelete, 7, DeletePayload{Table: 2, Page: 1, Slot: 4, Row: 9}.Marshal())
	rec2.LSN = 2
	b1 := rec1.Marshal()
	b2 := rec2.Marshal()

	tests := []struct {
		name      string
		log       []byte
		expected  int
		corrupted bool
	}{
		{
			name:     "empty log",
			log:      []byte{},
			expected: 0,
		},
		{
			name:     "two records",
			log:      append(append([]byte{}, b1...), b2...),
			expected: 2,
		},
		{
			name:      "torn payload",
			log:       append(append([]byte{}, b1...), b2[:len(b2)-1]...),
			expected:  1,
			corrupted: true,
		},
		{
			name:      "invalid length",
			log:       append(append([]byte{}, b1...), make([]byte, HeaderSize)...),
			expected:  1,
			corrupted: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := ReadAll(bytes.NewReader(tt.log))
			assert.Len(t, recs, tt.expected)
			if tt.corrupted {
				assert.ErrorIs(t, err, ErrCorruptRecord)
				assert.Equal(t, common.KindEncoding, common.KindOf(err))
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestUnmarshalRejectsChecksumMismatch(t *testing.T) {
	rec := NewRecord(RecordCommit, 3, nil)
	b := rec.Marshal()
	_, err := Unmarshal(b)
	require.Nil(t, err)

	b[offsetType] = byte(RecordAbort)
	_, err = Unmarshal(b)
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestCreateTablePayload(t *testing.T) {
	p := CreateTablePayload{
		Table: 3,
		Name:  "users",
		Columns: []ColumnDef{
			{Name: "id", Type: 1},
			{Name: "name", Type: 4},
		},
	}
	got, err := UnmarshalCreateTable(p.Marshal())
	require.Nil(t, err)
	assert.Equal(t, p, got)

	_, err = UnmarshalCreateTable(p.Marshal()[:8])
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestDescribe(t *testing.T) {
	rec := NewRecord(RecordUpdate, 2, UpdatePayload{Table: 1, OldPage: 0, OldSlot: 1, NewPage: 2, NewSlot: 0, Tuple: []byte{9}}.Marshal())
	assert.Equal(t, "table=1 old=(0,1) new=(2,0) len=1", rec.Describe())
	assert.Equal(t, "", NewRecord(RecordCommit, 2, nil).Describe())
}
