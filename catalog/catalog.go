/*
Catalog keeps the metadata of tables in memory and persists each table as a sidecar file (<name>.meta)
next to its data file (<name>.tbl).

Tables are indexed by name with btree, so they are listed in name order.
Postgres stores the catalog in the system tables (pg_class, pg_attribute...),
mini-pg keeps it out of the heap because the number of tables is small.

see https://github.com/postgres/postgres/blob/a448e49bcbe40fb72e1ed85af910dd216d45bad8/src/include/catalog/pg_class.h#L1
*/
package catalog

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/btree"
	"github.com/jimingkang/mini-pg/common"
	"github.com/jimingkang/mini-pg/lock"
	"github.com/jimingkang/mini-pg/storage/tuple"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	// MaxTables is the max number of tables
	MaxTables = 100
	// MaxNameLen is the max length of table and column name
	MaxNameLen = 50
	// MaxColumns is the max number of columns of table
	MaxColumns = tuple.MaxColumns
	// FirstTableOid is the oid of the first table
	FirstTableOid common.Relation = 1000

	btreeDegree = 16
)

// tableItem is btree item ordered by table name
type tableItem struct {
	name string
	meta *TableMeta
}

func (ti tableItem) Less(item btree.Item) bool {
	return ti.name < item.(tableItem).name
}

// Catalog is table catalog
type Catalog struct {
	latch lock.LWLock
	dir   string
	// tables is indexed by name
	tables  *btree.BTree
	byOid   map[common.Relation]*TableMeta
	nextOid common.Relation
}

// Open loads the catalog from the meta files in the directory.
// dir can be empty, then the catalog is kept only in memory
func Open(dir string) (*Catalog, error) {
	c := &Catalog{
		dir:     dir,
		tables:  btree.New(btreeDegree),
		byOid:   make(map[common.Relation]*TableMeta),
		nextOid: FirstTableOid,
	}
	if dir == "" {
		return c, nil
	}

	paths, err := filepath.Glob(filepath.Join(dir, "*"+MetaFileSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "filepath.Glob failed")
	}
	for _, path := range paths {
		meta, err := readMetaFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s failed", filepath.Base(path))
		}
		c.add(meta)
		log.WithFields(log.Fields{
			"table":     meta.Name,
			"oid":       meta.Oid,
			"last_page": meta.LastPage(),
		}).Debug("table loaded")
	}
	return c, nil
}

func (c *Catalog) add(meta *TableMeta) {
	c.tables.ReplaceOrInsert(tableItem{name: meta.Name, meta: meta})
	c.byOid[meta.Oid] = meta
	if meta.Oid >= c.nextOid {
		c.nextOid = meta.Oid + 1
	}
}

// validate checks the table definition
func validate(name string, cols []Column) error {
	if err := validateName(name); err != nil {
		return errors.Wrap(err, "table name")
	}
	if len(cols) == 0 {
		return errors.New("table needs at least one column")
	}
	if len(cols) > MaxColumns {
		return errors.Wrapf(common.ErrTooManyColumns, "%d columns", len(cols))
	}
	seen := make(map[string]struct{}, len(cols))
	for _, col := range cols {
		if err := validateName(col.Name); err != nil {
			return errors.Wrap(err, "column name")
		}
		if !col.Type.IsValid() {
			return errors.Wrapf(common.ErrTypeMismatch, "column %s has unknown type", col.Name)
		}
		if _, ok := seen[col.Name]; ok {
			return errors.Wrapf(common.ErrDuplicateName, "column %s", col.Name)
		}
		seen[col.Name] = struct{}{}
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New("name is empty")
	}
	if len(name) > MaxNameLen {
		return errors.Wrapf(common.ErrNameTooLong, "%q", name)
	}
	if strings.ContainsAny(name, `/\.`) {
		return errors.Errorf("name %q contains invalid character", name)
	}
	return nil
}

// Create registers new table and persists its meta file
func (c *Catalog) Create(name string, cols []Column) (*TableMeta, error) {
	if err := validate(name, cols); err != nil {
		return nil, err
	}

	c.latch.Acquire()
	defer c.latch.Release()
	if c.tables.Has(tableItem{name: name}) {
		return nil, errors.Wrapf(common.ErrDuplicateName, "table %s", name)
	}
	if c.tables.Len() >= MaxTables {
		return nil, errors.WithStack(common.ErrCatalogFull)
	}

	meta := newTableMeta(c.nextOid, name, cols)
	if err := c.save(meta); err != nil {
		return nil, err
	}
	c.add(meta)
	return meta, nil
}

// Drop removes the table from the catalog with its meta file.
// this is used to undo create table when the rest of creation fails
func (c *Catalog) Drop(name string) error {
	c.latch.Acquire()
	defer c.latch.Release()
	item := c.tables.Delete(tableItem{name: name})
	if item == nil {
		return errors.Wrapf(common.ErrTableNotFound, "table %s", name)
	}
	delete(c.byOid, item.(tableItem).meta.Oid)
	if c.dir == "" {
		return nil
	}
	err := os.Remove(c.metaPath(name))
	if err != nil && !os.IsNotExist(err) {
		return common.WrapIO(err, "remove meta file failed")
	}
	return nil
}

// Find finds the table by name
func (c *Catalog) Find(name string) (*TableMeta, error) {
	c.latch.Acquire()
	defer c.latch.Release()
	item := c.tables.Get(tableItem{name: name})
	if item == nil {
		return nil, errors.Wrapf(common.ErrTableNotFound, "table %s", name)
	}
	return item.(tableItem).meta, nil
}

// FindByOid finds the table by oid
func (c *Catalog) FindByOid(oid common.Relation) (*TableMeta, error) {
	c.latch.Acquire()
	defer c.latch.Release()
	meta, ok := c.byOid[oid]
	if !ok {
		return nil, errors.Wrapf(common.ErrTableNotFound, "table oid %d", oid)
	}
	return meta, nil
}

// List returns the tables in name order
func (c *Catalog) List() []*TableMeta {
	c.latch.Acquire()
	defer c.latch.Release()
	metas := make([]*TableMeta, 0, c.tables.Len())
	c.tables.Ascend(func(item btree.Item) bool {
		metas = append(metas, item.(tableItem).meta)
		return true
	})
	return metas
}

// Len returns the number of tables
func (c *Catalog) Len() int {
	c.latch.Acquire()
	defer c.latch.Release()
	return c.tables.Len()
}

// Save persists the meta file of the table
func (c *Catalog) Save(meta *TableMeta) error {
	c.latch.Acquire()
	defer c.latch.Release()
	return c.save(meta)
}

// SaveAll persists the meta files of all tables
func (c *Catalog) SaveAll() error {
	for _, meta := range c.List() {
		if err := c.Save(meta); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) save(meta *TableMeta) error {
	if c.dir == "" {
		return nil
	}
	return writeMetaFile(c.metaPath(meta.Name), meta)
}

func (c *Catalog) metaPath(name string) string {
	return filepath.Join(c.dir, name+MetaFileSuffix)
}
