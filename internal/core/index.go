package core

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/metrics"
)

const upperIndexSuffix = "_upper"

// IndexTable creates one index per column of table, except the row index.
// With caseInsensitive, text columns also get an index on upper(column).
// Existing indexes of the same name are replaced. It returns the names of
// the indexes created.
func (s *Service) IndexTable(ctx context.Context, table string, caseInsensitive bool) ([]string, error) {
	if err := validateTableName(table); err != nil {
		return nil, err
	}
	if err := s.writer.Acquire(ctx, "index"); err != nil {
		return nil, err
	}
	defer s.writer.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	return s.indexTable(ctx, table, caseInsensitive)
}

// columnIndex is one index to (re)build.
type columnIndex struct {
	name string
	ddl  string
}

// indexTable does the work of IndexTable; the caller holds the writer lock.
func (s *Service) indexTable(ctx context.Context, table string, caseInsensitive bool) ([]string, error) {
	schema, err := s.tableSchema(ctx, table)
	if err != nil {
		return nil, err
	}

	log := logging.WithFields(ctx, "table", table)
	log.Info("indexing table", "case_insensitive", caseInsensitive)

	var created []string
	for _, idx := range planIndexes(schema, caseInsensitive) {
		ok, err := s.rebuildIndex(ctx, idx)
		if err != nil {
			return created, err
		}
		if ok {
			created = append(created, idx.name)
		}
	}

	metrics.IndexesCreated.WithLabelValues(table).Add(float64(len(created)))
	log.Info("indexing complete", "created", len(created))
	return created, nil
}

// planIndexes lists the indexes for every non-index column of schema.
func planIndexes(schema *TableSchema, caseInsensitive bool) []columnIndex {
	table := quoteIdentifier(schema.Name)

	var plan []columnIndex
	for _, col := range schema.Columns {
		if col.Name == IndexColumn {
			continue
		}
		column := quoteIdentifier(col.Name)

		name := indexName(schema.Name, col.Name, "")
		plan = append(plan, columnIndex{
			name: name,
			ddl:  fmt.Sprintf("CREATE INDEX %s ON %s (%s)", quoteIdentifier(name), table, column),
		})

		if caseInsensitive && isTextType(col.DataType) {
			name := indexName(schema.Name, col.Name, upperIndexSuffix)
			plan = append(plan, columnIndex{
				name: name,
				ddl:  fmt.Sprintf("CREATE INDEX %s ON %s (upper(%s))", quoteIdentifier(name), table, column),
			})
		}
	}
	return plan
}

// rebuildIndex drops and recreates one index. Server errors are logged and
// skipped, reported as ok=false; anything else is returned.
func (s *Service) rebuildIndex(ctx context.Context, idx columnIndex) (bool, error) {
	log := logging.WithFields(ctx, "index", idx.name)

	if _, err := s.db.Exec(ctx, "DROP INDEX IF EXISTS "+quoteIdentifier(idx.name)); err != nil {
		if !isPgError(err) {
			return false, fmt.Errorf("drop index %s: %w", idx.name, err)
		}
		log.Debug("drop index failed", "error", err)
	}

	if _, err := s.db.Exec(ctx, idx.ddl); err != nil {
		if !isPgError(err) {
			return false, fmt.Errorf("create index %s: %w", idx.name, err)
		}
		log.Debug("create index failed", "error", err)
		return false, nil
	}
	return true, nil
}

// indexName builds ix_<table>_<column><suffix>, lowercased and cut to the
// identifier limit without splitting a rune. The suffix is always kept.
func indexName(table, column, suffix string) string {
	base := strings.ToLower("ix_" + table + "_" + column)
	limit := MaxIdentifierLength - len(suffix)
	if len(base) > limit {
		base = base[:limit]
		for len(base) > 0 {
			if r, size := utf8.DecodeLastRuneInString(base); r != utf8.RuneError || size > 1 {
				break
			}
			base = base[:len(base)-1]
		}
	}
	return base + suffix
}

func isTextType(dataType string) bool {
	switch strings.ToLower(dataType) {
	case "text", "character varying", "character", "citext":
		return true
	}
	return false
}
