package common

// oid is object id
// in mini-pg, oid identifies both tables and rows
// see https://github.com/postgres/postgres/blob/2f47715cc8649f854b1df28dfc338af9801db217/src/include/postgres_ext.h#L28-L31
type oid uint32

// Relation is table oid
// table information is stored in catalog (see /catalog)
// the oid is uniquely allocated to each table when created
// the logic to access table is described below
// - get the table meta by name from catalog
// - identify the data file with the table meta's filename
type Relation oid

// InvalidRelation is never allocated to any table
const InvalidRelation Relation = 0

// RowOid is the identity of a row.
// every version of the row (the original and every updated copy) carries the same row oid,
// so row locks are keyed by (table, row oid), not by the physical location.
type RowOid oid

// InvalidRowOid is never allocated to any row
const InvalidRowOid RowOid = 0

// LSN is log sequence number. this is assigned to each wal record monotonically.
// page header stores the lsn of the last record which modified the page
type LSN uint32

// InvalidLSN indicates no wal record
const InvalidLSN LSN = 0
