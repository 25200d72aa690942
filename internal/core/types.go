package core

import (
	"errors"
	"time"
)

var (
	// ErrUnknownTable is returned for tables missing from the catalog.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a sort or filter names a column the
	// table does not have.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrRowNotFound is returned when no row has the requested id.
	ErrRowNotFound = errors.New("row not found")

	// ErrInvalidTableName is returned for empty or oversized table names.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidFilter is returned for malformed filter expressions.
	ErrInvalidFilter = errors.New("invalid filter")
)

// MaxIdentifierLength is the PostgreSQL limit on identifier bytes.
const MaxIdentifierLength = 63

// IndexColumn is the row index column added to every loaded table.
const IndexColumn = "index"

// LoadOptions controls a single bulk load.
type LoadOptions struct {
	// Table is the target table. Empty means the file base name.
	Table string

	// InferSize is the number of leading rows sampled for type inference.
	InferSize int

	// ChunkSize is the number of rows per COPY transaction.
	ChunkSize int

	// Index creates per-column indexes after the load.
	Index bool

	// CaseInsensitive adds upper() indexes on text columns. Only used with Index.
	CaseInsensitive bool
}

// LoadResult summarizes a finished load.
type LoadResult struct {
	LoadID     string        `json:"load_id"`
	Table      string        `json:"table"`
	Rows       int64         `json:"rows"`
	Chunks     int           `json:"chunks"`
	Columns    []ColumnDef   `json:"columns"`
	Created    bool          `json:"created"`
	FirstIndex int64         `json:"first_index"`
	LastIndex  int64         `json:"last_index"`
	Indexes    []string      `json:"indexes,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// ColumnDef is a loaded column and the type it was written as.
type ColumnDef struct {
	Name string     `json:"name"`
	Type ColumnType `json:"type"`
}

// FilterOperator represents a comparison operator for column filters.
type FilterOperator string

const (
	OpContains   FilterOperator = "contains"
	OpEquals     FilterOperator = "eq"
	OpStartsWith FilterOperator = "starts"
	OpEndsWith   FilterOperator = "ends"
	OpGreaterEq  FilterOperator = "gte"
	OpLessEq     FilterOperator = "lte"
	OpGreater    FilterOperator = "gt"
	OpLess       FilterOperator = "lt"
	OpIn         FilterOperator = "in"
)

// ParseFilterOperator returns the operator named by s.
func ParseFilterOperator(s string) (FilterOperator, bool) {
	switch op := FilterOperator(s); op {
	case OpContains, OpEquals, OpStartsWith, OpEndsWith,
		OpGreaterEq, OpLessEq, OpGreater, OpLess, OpIn:
		return op, true
	}
	return "", false
}

// ColumnFilter represents a single filter condition on a column.
type ColumnFilter struct {
	Column   string
	Operator FilterOperator
	Value    string // comma-separated for OpIn
}

// FilterSet represents all active filters (combined with AND logic).
type FilterSet struct {
	Filters []ColumnFilter
}

// MaxSorts is the number of sort levels honoured by ListRows.
const MaxSorts = 2

// SortSpec represents a single sort column and direction.
type SortSpec struct {
	Column string
	Desc   bool
}

// RowsQuery selects a page of a table.
type RowsQuery struct {
	Page    int // 1-based
	Limit   int
	Sorts   []SortSpec
	Filters FilterSet
}

// TableRow represents a single row of data as column/value pairs.
type TableRow map[string]any

// RowsPage is one page of a table.
type RowsPage struct {
	Rows  []TableRow
	Total int64
	Page  int
	Limit int
}
