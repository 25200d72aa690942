package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/tabload/internal/logging"
	"github.com/JonMunkholm/tabload/internal/metrics"
)

// GetTables returns the sorted base-table names in the current schema,
// read directly from the database.
func (s *Service) GetTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.Query(ctx, listTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	return names, nil
}

// RefreshTables re-reads every table, column and primary key and replaces
// the catalog snapshot.
func (s *Service) RefreshTables(ctx context.Context) error {
	tables, err := reflectTables(ctx, s.db)
	if err != nil {
		return err
	}
	s.catalog.Replace(tables)
	metrics.CatalogTables.Set(float64(len(tables)))

	logging.FromContext(ctx).Debug("catalog refreshed", "tables", len(tables))
	return nil
}

// DropTable drops table. A missing table is not an error. The catalog is
// refreshed either way.
func (s *Service) DropTable(ctx context.Context, table string) error {
	if err := validateTableName(table); err != nil {
		return err
	}
	if err := s.writer.Acquire(ctx, "drop"); err != nil {
		return err
	}
	defer s.writer.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.LoadTimeout)
	defer cancel()

	log := logging.WithFields(ctx, "table", table)
	log.Info("dropping table")

	_, err := s.db.Exec(ctx, "DROP TABLE "+quoteIdentifier(table))
	switch {
	case err == nil:
		metrics.TablesDropped.Inc()
	case isPgError(err, codeUndefinedTable):
		log.Debug("table does not exist")
	default:
		return fmt.Errorf("drop table %s: %w", table, err)
	}

	return s.RefreshTables(ctx)
}
