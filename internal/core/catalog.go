package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"
)

// ColumnSchema describes one reflected column.
type ColumnSchema struct {
	Name     string `json:"name"`
	DataType string `json:"type"`
	Nullable bool   `json:"nullable"`
	Position int    `json:"position"`
}

// TableSchema describes one reflected table.
type TableSchema struct {
	Name       string         `json:"name"`
	Columns    []ColumnSchema `json:"columns"`
	PrimaryKey []string       `json:"primary_key"`
}

// Column returns the named column. Lookup is exact first, then
// case-insensitive.
func (t *TableSchema) Column(name string) (ColumnSchema, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// IDColumn returns the single primary key column, if the table has one.
func (t *TableSchema) IDColumn() (ColumnSchema, bool) {
	if len(t.PrimaryKey) != 1 {
		return ColumnSchema{}, false
	}
	return t.Column(t.PrimaryKey[0])
}

// Catalog is the in-memory snapshot of reflected tables. The REST API
// serves only what the catalog holds.
type Catalog struct {
	mu        sync.RWMutex
	tables    map[string]*TableSchema
	refreshed time.Time
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*TableSchema)}
}

// Replace swaps in a new snapshot.
func (c *Catalog) Replace(tables map[string]*TableSchema) {
	if tables == nil {
		tables = make(map[string]*TableSchema)
	}
	c.mu.Lock()
	c.tables = tables
	c.refreshed = time.Now()
	c.mu.Unlock()
}

// Table returns the schema for name.
func (c *Catalog) Table(name string) (*TableSchema, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

// Tables returns every table, sorted by name.
func (c *Catalog) Tables() []*TableSchema {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*TableSchema, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b *TableSchema) int {
		return strings.Compare(a.Name, b.Name)
	})
	return out
}

// Names returns the sorted table names.
func (c *Catalog) Names() []string {
	tables := c.Tables()
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names
}

// RefreshedAt returns when the snapshot was last replaced.
func (c *Catalog) RefreshedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshed
}

// Reflection reads information_schema for base tables in the current schema.
// Domain-typed columns are cast so they scan as plain Go values.
const (
	reflectColumnsSQL = `
SELECT c.table_name::text, c.column_name::text, c.data_type::text,
       c.is_nullable::text = 'YES', c.ordinal_position::int
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.table_schema = current_schema() AND t.table_type = 'BASE TABLE'
ORDER BY c.table_name, c.ordinal_position`

	reflectPrimaryKeysSQL = `
SELECT kcu.table_name::text, kcu.column_name::text
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON kcu.constraint_schema = tc.constraint_schema
 AND kcu.constraint_name = tc.constraint_name
 AND kcu.table_name = tc.table_name
WHERE tc.table_schema = current_schema() AND tc.constraint_type = 'PRIMARY KEY'
ORDER BY kcu.table_name, kcu.ordinal_position`

	listTablesSQL = `
SELECT table_name::text
FROM information_schema.tables
WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'
ORDER BY table_name`
)

type columnRow struct {
	table string
	ColumnSchema
}

type keyRow struct {
	table  string
	column string
}

// reflectTables reads every base table with its columns and primary key.
func reflectTables(ctx context.Context, db DB) (map[string]*TableSchema, error) {
	rows, err := db.Query(ctx, reflectColumnsSQL)
	if err != nil {
		return nil, fmt.Errorf("reflect columns: %w", err)
	}
	var columns []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.table, &r.Name, &r.DataType, &r.Nullable, &r.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reflect columns: %w", err)
	}

	rows, err = db.Query(ctx, reflectPrimaryKeysSQL)
	if err != nil {
		return nil, fmt.Errorf("reflect primary keys: %w", err)
	}
	var keys []keyRow
	for rows.Next() {
		var r keyRow
		if err := rows.Scan(&r.table, &r.column); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan primary key: %w", err)
		}
		keys = append(keys, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reflect primary keys: %w", err)
	}

	return buildCatalog(columns, keys), nil
}

// buildCatalog groups reflected rows into table schemas. Columns keep
// ordinal order; keys for unknown tables are dropped.
func buildCatalog(columns []columnRow, keys []keyRow) map[string]*TableSchema {
	tables := make(map[string]*TableSchema)
	for _, c := range columns {
		t, ok := tables[c.table]
		if !ok {
			t = &TableSchema{Name: c.table}
			tables[c.table] = t
		}
		t.Columns = append(t.Columns, c.ColumnSchema)
	}
	for _, t := range tables {
		slices.SortStableFunc(t.Columns, func(a, b ColumnSchema) int {
			return a.Position - b.Position
		})
	}
	for _, k := range keys {
		if t, ok := tables[k.table]; ok {
			t.PrimaryKey = append(t.PrimaryKey, k.column)
		}
	}
	return tables
}
