package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/jimingkang/mini-pg/catalog"
	"github.com/jimingkang/mini-pg/engine"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/jimingkang/mini-pg/wal"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetHeader(header)
	return tw
}

func printTuples(w io.Writer, cols []catalog.Column, tuples []tuple.Tuple) {
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Name
	}
	tw := newTable(w, header...)
	row := make([]string, len(cols))
	for _, tup := range tuples {
		for i := range row {
			row[i] = ""
			if i < len(tup.Values) {
				row[i] = tup.Values[i].String()
			}
		}
		tw.Append(row)
	}
	tw.Render()
	fmt.Fprintf(w, "(%d rows)\n", tw.NumLines())
}

func printStatus(w io.Writer, st engine.Status) {
	fmt.Fprintf(w, "data directory: %s\n", st.DataDir)

	tw := newTable(w, "oid", "table", "columns", "last page", "max row oid")
	for _, t := range st.Tables {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name + " " + c.Type.String()
		}
		tw.Append([]string{
			strconv.FormatUint(uint64(t.Oid), 10),
			t.Name,
			strings.Join(cols, ", "),
			strconv.FormatUint(uint64(t.LastPage), 10),
			strconv.FormatUint(uint64(t.MaxRowOid), 10),
		})
	}
	tw.Render()

	tx := st.Transactions
	active := make([]string, len(tx.Active))
	for i, xid := range tx.Active {
		active[i] = strconv.FormatUint(uint64(xid), 10)
	}
	fmt.Fprintf(w, "transactions: next xid %d, oldest xid %d, active [%s] of %d slots, %d committed\n",
		tx.NextTxID, tx.OldestTxID, strings.Join(active, " "), tx.Slots, tx.Committed)
	fmt.Fprintf(w, "page cache: %d frames, %d valid, %d dirty, %d pinned\n",
		st.Cache.Buffers, st.Cache.Valid, st.Cache.Dirty, st.Cache.Pinned)
	fmt.Fprintf(w, "wal: %d bytes, next lsn %d\n", st.WALSize, st.NextLSN)

	tw = newTable(w, "metric", "labels", "value")
	for _, s := range st.Metrics {
		tw.Append([]string{s.Name, s.Labels, strconv.FormatFloat(s.Value, 'f', -1, 64)})
	}
	tw.Render()
}

func printRecords(w io.Writer, recs []*wal.Record) {
	tw := newTable(w, "lsn", "xid", "type", "time", "size", "detail")
	for _, rec := range recs {
		tw.Append([]string{
			strconv.FormatUint(uint64(rec.LSN), 10),
			strconv.FormatUint(uint64(rec.XID), 10),
			rec.Type.String(),
			time.UnixMicro(int64(rec.Timestamp)).UTC().Format(time.RFC3339Nano),
			strconv.FormatUint(uint64(rec.TotalLen), 10),
			rec.Describe(),
		})
	}
	tw.Render()
	fmt.Fprintf(w, "(%d records)\n", tw.NumLines())
}
