package expr

import "github.com/jimingkang/mini-pg/common"

// TestingSchema is schema of the column names
type TestingSchema []string

// ColumnIndex returns the index of the column
func (s TestingSchema) ColumnIndex(name string) (int, error) {
	for i, n := range s {
		if n == name {
			return i, nil
		}
	}
	return -1, common.ErrColumnNotFound
}
