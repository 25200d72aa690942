package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeDB is an in-memory stand-in for the pool. It answers the catalog and
// load queries from fixtures and records every statement.
type fakeDB struct {
	mu sync.Mutex

	// existing is returned for the column lookup of the load target.
	existing map[string]string

	// catalogColumns and catalogKeys answer reflection.
	catalogColumns []columnRow
	catalogKeys    []keyRow

	nextIndex int64
	count     int64

	// selectFields and selectRows answer SELECT * queries.
	selectFields []string
	selectRows   [][]any

	execErr  func(sql string) error
	queryErr error

	// copyErrAt fails the CopyFrom of that 1-based chunk.
	copyErrAt int

	execs     []string
	queries   []string
	queryArgs [][]any
	committed [][][]any
	rollbacks int
	copyCalls int
}

func (f *fakeDB) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.execs = append(f.execs, sql)
	if f.execErr != nil {
		if err := f.execErr(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("OK"), nil
}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, sql)
	f.queryArgs = append(f.queryArgs, args)

	switch sql {
	case tableColumnsSQL:
		var rows [][]any
		for name, dataType := range f.existing {
			rows = append(rows, []any{name, dataType})
		}
		return &fakeRows{rows: rows}, nil

	case reflectColumnsSQL:
		var rows [][]any
		for _, c := range f.catalogColumns {
			rows = append(rows, []any{c.table, c.Name, c.DataType, c.Nullable, c.Position})
		}
		return &fakeRows{rows: rows}, nil

	case reflectPrimaryKeysSQL:
		var rows [][]any
		for _, k := range f.catalogKeys {
			rows = append(rows, []any{k.table, k.column})
		}
		return &fakeRows{rows: rows}, nil

	case listTablesSQL:
		var names []string
		for _, c := range f.catalogColumns {
			if !slices.Contains(names, c.table) {
				names = append(names, c.table)
			}
		}
		slices.Sort(names)
		var rows [][]any
		for _, name := range names {
			rows = append(rows, []any{name})
		}
		return &fakeRows{rows: rows}, nil
	}

	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{fields: f.selectFields, rows: f.selectRows}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, sql)
	f.queryArgs = append(f.queryArgs, args)

	if strings.HasPrefix(sql, "SELECT COUNT(*)") {
		if f.queryErr != nil {
			return fakeRow{err: f.queryErr}
		}
		return fakeRow{values: []any{f.count}}
	}
	return fakeRow{values: []any{f.nextIndex}}
}

func (f *fakeDB) Begin(context.Context) (pgx.Tx, error) {
	return &fakeTx{db: f}, nil
}

func (f *fakeDB) Ping(context.Context) error { return nil }

// copiedRows flattens every committed chunk.
func (f *fakeDB) copiedRows() [][]any {
	f.mu.Lock()
	defer f.mu.Unlock()

	var all [][]any
	for _, chunk := range f.committed {
		all = append(all, chunk...)
	}
	return all
}

type fakeTx struct {
	pgx.Tx
	db      *fakeDB
	pending [][]any
	done    bool
}

func (tx *fakeTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, src pgx.CopyFromSource) (int64, error) {
	tx.db.mu.Lock()
	tx.db.copyCalls++
	call := tx.db.copyCalls
	fail := tx.db.copyErrAt
	tx.db.mu.Unlock()

	if call == fail {
		return 0, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
	}

	var n int64
	for src.Next() {
		values, err := src.Values()
		if err != nil {
			return n, err
		}
		tx.pending = append(tx.pending, append([]any(nil), values...))
		n++
	}
	return n, src.Err()
}

func (tx *fakeTx) Commit(context.Context) error {
	tx.db.mu.Lock()
	defer tx.db.mu.Unlock()
	tx.db.committed = append(tx.db.committed, tx.pending)
	tx.done = true
	return nil
}

func (tx *fakeTx) Rollback(context.Context) error {
	if tx.done {
		return pgx.ErrTxClosed
	}
	tx.db.mu.Lock()
	tx.db.rollbacks++
	tx.db.mu.Unlock()
	tx.done = true
	return nil
}

type fakeRows struct {
	pgx.Rows
	fields []string
	rows   [][]any
	pos    int
	closed bool
}

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	return scanValues(r.rows[r.pos-1], dest)
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription {
	fds := make([]pgconn.FieldDescription, len(r.fields))
	for i, name := range r.fields {
		fds[i] = pgconn.FieldDescription{Name: name}
	}
	return fds
}

func (r *fakeRows) Err() error { return nil }
func (r *fakeRows) Close()     { r.closed = true }

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return scanValues(r.values, dest)
}

func scanValues(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		case *int:
			*d = v.(int)
		case *int64:
			*d = v.(int64)
		default:
			return fmt.Errorf("scan: unsupported target %T", dest[i])
		}
	}
	return nil
}
