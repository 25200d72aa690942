package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/tabload/internal/source"
)

func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const peopleCSV = "id,name,score\n1,Ada,9.5\n2,Grace,8\n3,Alan,\n4,Barbara,7.25\n5,Edsger,6\n"

func TestLoadTable_NewTable(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	res, err := svc.LoadTable(context.Background(), path, LoadOptions{InferSize: 3, ChunkSize: 2})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	if res.Table != "people" {
		t.Errorf("Table = %q, want file base name", res.Table)
	}
	if !res.Created || res.Rows != 5 || res.Chunks != 3 {
		t.Errorf("result = %+v, want created, 5 rows, 3 chunks", res)
	}
	if res.FirstIndex != 0 || res.LastIndex != 4 {
		t.Errorf("index range = %d..%d, want 0..4", res.FirstIndex, res.LastIndex)
	}
	if res.LoadID == "" {
		t.Error("LoadID not set")
	}

	wantDDL := `CREATE TABLE IF NOT EXISTS "people" ("index" BIGINT PRIMARY KEY, "id" bigint, "name" text, "score" double precision)`
	if len(db.execs) == 0 || db.execs[0] != wantDDL {
		t.Errorf("DDL = %q, want %q", db.execs, wantDDL)
	}

	if len(db.committed) != 3 {
		t.Fatalf("committed %d chunks, want 3", len(db.committed))
	}
	for i, want := range []int{2, 2, 1} {
		if len(db.committed[i]) != want {
			t.Errorf("chunk %d has %d rows, want %d", i+1, len(db.committed[i]), want)
		}
	}

	rows := db.copiedRows()
	for i, row := range rows {
		if row[0] != int64(i) {
			t.Errorf("row %d index = %v, want %d", i, row[0], i)
		}
	}
	if rows[2][3] != nil {
		t.Errorf("empty score = %#v, want nil", rows[2][3])
	}
	if rows[1][3] != 8.0 {
		t.Errorf("score of row 2 = %#v, want 8.0", rows[1][3])
	}
}

func TestLoadTable_AppendContinuesIndex(t *testing.T) {
	db := &fakeDB{
		existing: map[string]string{
			"index": "bigint",
			"id":    "bigint",
			"name":  "text",
			"score": "double precision",
		},
		nextIndex: 10,
	}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	res, err := svc.LoadTable(context.Background(), path, LoadOptions{ChunkSize: 2})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	if res.Created {
		t.Error("Created = true for existing table")
	}
	for _, sql := range db.execs {
		if strings.HasPrefix(sql, "CREATE TABLE") {
			t.Errorf("unexpected DDL for existing table: %s", sql)
		}
	}
	if res.FirstIndex != 10 || res.LastIndex != 14 {
		t.Errorf("index range = %d..%d, want 10..14", res.FirstIndex, res.LastIndex)
	}
	for i, row := range db.copiedRows() {
		if row[0] != int64(10+i) {
			t.Errorf("row %d index = %v, want %d", i, row[0], 10+i)
		}
	}
}

func TestLoadTable_ExistingTypesWin(t *testing.T) {
	db := &fakeDB{
		existing: map[string]string{
			"index": "bigint",
			"id":    "text",
			"name":  "text",
			"score": "text",
		},
	}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	if _, err := svc.LoadTable(context.Background(), path, LoadOptions{}); err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if got := db.copiedRows()[0][1]; got != "1" {
		t.Errorf("id written as %#v, want text \"1\"", got)
	}
}

func TestLoadTable_UnknownColumnInExistingTable(t *testing.T) {
	db := &fakeDB{existing: map[string]string{"index": "bigint", "id": "bigint"}}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{})
	if !errors.Is(err, ErrUnknownColumn) {
		t.Errorf("err = %v, want ErrUnknownColumn", err)
	}
	if len(db.committed) != 0 {
		t.Errorf("committed %d chunks, want none", len(db.committed))
	}
}

func TestLoadTable_TypeMismatchAfterSample(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "nums.csv", "n\n1\n2\n3\nfour\n5\n")

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{InferSize: 2, ChunkSize: 2})

	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *TypeMismatchError", err)
	}
	if mismatch.Column != "n" || mismatch.Line != 5 || mismatch.Value != "four" {
		t.Errorf("mismatch = %+v, want column n line 5 value four", mismatch)
	}
	if len(db.committed) != 1 {
		t.Errorf("committed %d chunks, want the 1 written before the bad row", len(db.committed))
	}
}

func TestLoadTable_TypeMismatchReportsFileLine(t *testing.T) {
	svc := NewService(&fakeDB{}, Options{})
	path := writeCSV(t, "notes.csv", "id,note\n1,\"a\nb\"\n\n2,x\noops,y\n")

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{InferSize: 2, ChunkSize: 10})

	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("err = %v, want *TypeMismatchError", err)
	}
	if mismatch.Column != "id" || mismatch.Line != 6 || mismatch.Value != "oops" {
		t.Errorf("mismatch = %+v, want column id line 6 value oops", mismatch)
	}
}

func TestLoadTable_TooManyFields(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", "id,name\n1,Ada,LOST_VALUE,ALSO_LOST\n")

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{})
	if !errors.Is(err, source.ErrTooManyFields) {
		t.Fatalf("err = %v, want ErrTooManyFields", err)
	}
	if len(db.execs) != 0 || len(db.committed) != 0 {
		t.Errorf("execs = %q, committed = %d chunks, want nothing written", db.execs, len(db.committed))
	}
}

func TestLoadTable_ChunkFailureKeepsEarlierChunks(t *testing.T) {
	db := &fakeDB{copyErrAt: 2}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{ChunkSize: 2})
	if err == nil || !strings.Contains(err.Error(), "chunk 2") {
		t.Fatalf("err = %v, want chunk 2 failure", err)
	}
	if len(db.committed) != 1 {
		t.Errorf("committed %d chunks, want 1", len(db.committed))
	}
	if db.rollbacks != 1 {
		t.Errorf("rollbacks = %d, want 1", db.rollbacks)
	}
}

func TestLoadTable_HeaderOnly(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "empty_rows.csv", "a,b\n")

	res, err := svc.LoadTable(context.Background(), path, LoadOptions{})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if !res.Created || res.Rows != 0 || res.Chunks != 0 {
		t.Errorf("result = %+v, want created table with no rows", res)
	}
	if !strings.Contains(db.execs[0], `"a" text, "b" text`) {
		t.Errorf("DDL = %q, want text columns", db.execs[0])
	}
}

func TestLoadTable_EmptyFile(t *testing.T) {
	svc := NewService(&fakeDB{}, Options{})
	path := writeCSV(t, "nothing.csv", "")

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{})
	if !errors.Is(err, source.ErrEmptyFile) {
		t.Errorf("err = %v, want ErrEmptyFile", err)
	}
}

func TestLoadTable_ExplicitTableName(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	res, err := svc.LoadTable(context.Background(), path, LoadOptions{Table: "staff"})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if res.Table != "staff" || !strings.Contains(db.execs[0], `"staff"`) {
		t.Errorf("loaded into %q with DDL %q, want staff", res.Table, db.execs[0])
	}
}

func TestLoadTable_InvalidTableName(t *testing.T) {
	svc := NewService(&fakeDB{}, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{Table: strings.Repeat("x", 64)})
	if !errors.Is(err, ErrInvalidTableName) {
		t.Errorf("err = %v, want ErrInvalidTableName", err)
	}
}

func TestLoadTable_WriterBusy(t *testing.T) {
	svc := NewService(&fakeDB{}, Options{WriterWait: 20 * time.Millisecond})
	path := writeCSV(t, "people.csv", peopleCSV)

	if !svc.Writer().TryAcquire("drop") {
		t.Fatal("TryAcquire failed")
	}
	defer svc.Writer().Release()

	_, err := svc.LoadTable(context.Background(), path, LoadOptions{})
	if !errors.Is(err, ErrWriterBusy) {
		t.Errorf("err = %v, want ErrWriterBusy", err)
	}
}

func TestLoadTable_Cancelled(t *testing.T) {
	db := &fakeDB{}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", peopleCSV)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LoadTable(ctx, path, LoadOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(db.committed) != 0 {
		t.Errorf("committed %d chunks after cancel", len(db.committed))
	}
}

func TestLoadTable_WithIndex(t *testing.T) {
	db := &fakeDB{
		catalogColumns: []columnRow{
			{"people", ColumnSchema{Name: "index", DataType: "bigint", Position: 1}},
			{"people", ColumnSchema{Name: "id", DataType: "bigint", Position: 2}},
			{"people", ColumnSchema{Name: "name", DataType: "text", Position: 3}},
		},
		catalogKeys: []keyRow{{"people", "index"}},
	}
	svc := NewService(db, Options{})
	path := writeCSV(t, "people.csv", "id,name\n1,Ada\n")

	res, err := svc.LoadTable(context.Background(), path, LoadOptions{Index: true, CaseInsensitive: true})
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}

	want := []string{"ix_people_id", "ix_people_name", "ix_people_name_upper"}
	if strings.Join(res.Indexes, ",") != strings.Join(want, ",") {
		t.Errorf("Indexes = %q, want %q", res.Indexes, want)
	}
	if _, ok := svc.Catalog().Table("people"); !ok {
		t.Error("catalog not refreshed after load")
	}
}
