package web

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/JonMunkholm/tabload/internal/config"
	"github.com/JonMunkholm/tabload/internal/core"
)

// fakeService serves a fixed catalog from memory and records admin calls.
type fakeService struct {
	catalog *core.Catalog
	writer  *core.WriterLock
	rows    map[string][]core.TableRow

	pingErr error
	listErr error
	loadErr error

	lastQuery core.RowsQuery
	refreshes int
	indexed   []string
	indexCI   bool
	dropped   []string
	loads     []loadCall
}

type loadCall struct {
	path    string
	ext     string
	content string
	opts    core.LoadOptions
}

var peopleSchema = &core.TableSchema{
	Name: "people",
	Columns: []core.ColumnSchema{
		{Name: "index", DataType: "bigint", Position: 1},
		{Name: "name", DataType: "text", Nullable: true, Position: 2},
		{Name: "age", DataType: "bigint", Nullable: true, Position: 3},
		{Name: "joined", DataType: "timestamp without time zone", Nullable: true, Position: 4},
	},
	PrimaryKey: []string{"index"},
}

var auditSchema = &core.TableSchema{
	Name: "audit log",
	Columns: []core.ColumnSchema{
		{Name: "event", DataType: "text", Nullable: true, Position: 1},
	},
}

func newFakeService() *fakeService {
	catalog := core.NewCatalog()
	catalog.Replace(map[string]*core.TableSchema{
		peopleSchema.Name: peopleSchema,
		auditSchema.Name:  auditSchema,
	})
	return &fakeService{
		catalog: catalog,
		writer:  core.NewWriterLock(0),
		rows: map[string][]core.TableRow{
			"people": {
				{"index": int64(0), "name": "Ada", "age": int64(36), "joined": nil},
				{"index": int64(1), "name": "<b>Bob</b>", "age": nil, "joined": nil},
				{"index": int64(2), "name": "Cy", "age": int64(51), "joined": nil},
			},
		},
	}
}

func (f *fakeService) Catalog() *core.Catalog         { return f.catalog }
func (f *fakeService) Writer() *core.WriterLock       { return f.writer }
func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeService) ListRows(ctx context.Context, table string, q core.RowsQuery) (*core.RowsPage, error) {
	f.lastQuery = q
	if f.listErr != nil {
		return nil, f.listErr
	}
	if _, ok := f.catalog.Table(table); !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTable, table)
	}

	page, limit := max(q.Page, 1), q.Limit
	if limit <= 0 {
		limit = 20
	}
	all := f.rows[table]
	start := min((page-1)*limit, len(all))
	end := min(start+limit, len(all))

	return &core.RowsPage{
		Rows:  all[start:end],
		Total: int64(len(all)),
		Page:  page,
		Limit: limit,
	}, nil
}

func (f *fakeService) GetRow(ctx context.Context, table, id string) (core.TableRow, error) {
	for _, row := range f.rows[table] {
		if fmt.Sprint(row["index"]) == id {
			return row, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", core.ErrRowNotFound, table, id)
}

func (f *fakeService) GetTables(ctx context.Context) ([]string, error) {
	return f.catalog.Names(), nil
}

func (f *fakeService) RefreshTables(ctx context.Context) error {
	f.refreshes++
	return nil
}

func (f *fakeService) IndexTable(ctx context.Context, table string, caseInsensitive bool) ([]string, error) {
	if _, ok := f.catalog.Table(table); !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownTable, table)
	}
	f.indexed = append(f.indexed, table)
	f.indexCI = caseInsensitive
	return []string{"ix_" + table + "_name"}, nil
}

func (f *fakeService) DropTable(ctx context.Context, table string) error {
	f.dropped = append(f.dropped, table)
	return nil
}

func (f *fakeService) LoadTable(ctx context.Context, path string, opts core.LoadOptions) (*core.LoadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f.loads = append(f.loads, loadCall{
		path:    path,
		ext:     filepath.Ext(path),
		content: string(content),
		opts:    opts,
	})
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return &core.LoadResult{
		LoadID: "load-1",
		Table:  opts.Table,
		Rows:   2,
		Chunks: 1,
	}, nil
}

// testConfig returns defaults with rate limiting off so tests can fire
// requests freely.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.LoadFrom(func(name string) (string, bool) {
		switch name {
		case "DATABASE_URL":
			return "postgres://localhost/test", true
		case "RATE_LIMIT_ENABLED":
			return "false", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, svc *fakeService, cfg *config.Config) *Server {
	t.Helper()
	s := NewServer(svc, cfg, nil)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}
