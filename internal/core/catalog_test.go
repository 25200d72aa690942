package core

import (
	"context"
	"reflect"
	"testing"
)

func peopleColumns() []columnRow {
	return []columnRow{
		{"people", ColumnSchema{Name: "name", DataType: "text", Nullable: true, Position: 3}},
		{"people", ColumnSchema{Name: "index", DataType: "bigint", Position: 1}},
		{"people", ColumnSchema{Name: "age", DataType: "bigint", Nullable: true, Position: 2}},
		{"audit", ColumnSchema{Name: "event", DataType: "text", Nullable: true, Position: 1}},
	}
}

func TestBuildCatalog(t *testing.T) {
	tables := buildCatalog(peopleColumns(), []keyRow{
		{"people", "index"},
		{"ghost", "id"},
	})

	if len(tables) != 2 {
		t.Fatalf("got %d tables, want 2", len(tables))
	}

	people := tables["people"]
	var names []string
	for _, c := range people.Columns {
		names = append(names, c.Name)
	}
	if want := []string{"index", "age", "name"}; !reflect.DeepEqual(names, want) {
		t.Errorf("people columns = %q, want %q", names, want)
	}
	if want := []string{"index"}; !reflect.DeepEqual(people.PrimaryKey, want) {
		t.Errorf("people primary key = %q, want %q", people.PrimaryKey, want)
	}

	if audit := tables["audit"]; len(audit.PrimaryKey) != 0 {
		t.Errorf("audit primary key = %q, want none", audit.PrimaryKey)
	}
	if _, ok := tables["ghost"]; ok {
		t.Error("key for unknown table created a table")
	}
}

func TestTableSchema_Column(t *testing.T) {
	schema := buildCatalog(peopleColumns(), nil)["people"]

	if c, ok := schema.Column("age"); !ok || c.DataType != "bigint" {
		t.Errorf("Column(age) = %+v, %v", c, ok)
	}
	if c, ok := schema.Column("NAME"); !ok || c.Name != "name" {
		t.Errorf("Column(NAME) = %+v, %v, want case-insensitive match", c, ok)
	}
	if _, ok := schema.Column("missing"); ok {
		t.Error("Column(missing) found a column")
	}
}

func TestTableSchema_IDColumn(t *testing.T) {
	tests := []struct {
		name string
		keys []string
		want bool
	}{
		{"single key", []string{"index"}, true},
		{"no key", nil, false},
		{"composite key", []string{"index", "age"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := buildCatalog(peopleColumns(), nil)["people"]
			schema.PrimaryKey = tt.keys
			if _, ok := schema.IDColumn(); ok != tt.want {
				t.Errorf("IDColumn() ok = %v, want %v", ok, tt.want)
			}
		})
	}
}

func TestCatalog_Replace(t *testing.T) {
	c := NewCatalog()
	if len(c.Tables()) != 0 || !c.RefreshedAt().IsZero() {
		t.Fatal("new catalog not empty")
	}

	c.Replace(buildCatalog(peopleColumns(), nil))

	if got, want := c.Names(), []string{"audit", "people"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %q, want %q", got, want)
	}
	if _, ok := c.Table("people"); !ok {
		t.Error("Table(people) missing")
	}
	if c.RefreshedAt().IsZero() {
		t.Error("RefreshedAt not set")
	}

	c.Replace(nil)
	if len(c.Tables()) != 0 {
		t.Error("Replace(nil) kept tables")
	}
}

func TestRefreshTables(t *testing.T) {
	db := &fakeDB{
		catalogColumns: peopleColumns(),
		catalogKeys:    []keyRow{{"people", "index"}},
	}
	svc := NewService(db, Options{})

	if err := svc.RefreshTables(context.Background()); err != nil {
		t.Fatalf("RefreshTables: %v", err)
	}

	people, ok := svc.Catalog().Table("people")
	if !ok {
		t.Fatal("people not in catalog")
	}
	if len(people.Columns) != 3 || len(people.PrimaryKey) != 1 {
		t.Errorf("people = %+v", people)
	}
}

func TestGetTables(t *testing.T) {
	db := &fakeDB{catalogColumns: peopleColumns()}
	svc := NewService(db, Options{})

	got, err := svc.GetTables(context.Background())
	if err != nil {
		t.Fatalf("GetTables: %v", err)
	}
	if want := []string{"audit", "people"}; !reflect.DeepEqual(got, want) {
		t.Errorf("GetTables() = %q, want %q", got, want)
	}
}
