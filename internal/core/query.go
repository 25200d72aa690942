package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ListRows returns one page of table, filtered and sorted.
//
// Sorts beyond MaxSorts are ignored. Without a sort the rows are ordered by
// primary key, or by the first column when the table has none. Limit is
// clamped to the configured maximum; a page past the end is empty.
func (s *Service) ListRows(ctx context.Context, table string, q RowsQuery) (*RowsPage, error) {
	schema, ok := s.catalog.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	page, limit := s.pageBounds(q.Page, q.Limit)

	wb := NewWhereBuilder()
	for _, f := range q.Filters.Filters {
		col, ok := schema.Column(f.Column)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, f.Column)
		}
		if err := wb.AddFilter(col, f); err != nil {
			return nil, err
		}
	}
	whereClause, args := wb.Build()

	orderBy, err := orderClause(schema, q.Sorts)
	if err != nil {
		return nil, err
	}

	from := quoteIdentifier(schema.Name)

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", from, whereClause)
	if err := s.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, classifyQueryError(fmt.Errorf("count rows: %w", err))
	}

	argIndex := wb.NextArgIndex()
	query := fmt.Sprintf("SELECT * FROM %s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		from, whereClause, orderBy, argIndex, argIndex+1)
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyQueryError(fmt.Errorf("query rows: %w", err))
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, classifyQueryError(err)
	}

	return &RowsPage{
		Rows:  result,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

// GetRow returns the row of table whose primary key equals id. Tables
// without a single-column primary key have no addressable rows.
func (s *Service) GetRow(ctx context.Context, table, id string) (TableRow, error) {
	schema, ok := s.catalog.Table(table)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	col, ok := schema.IDColumn()
	if !ok {
		return nil, fmt.Errorf("%w: %s has no primary key", ErrRowNotFound, table)
	}

	dataType := strings.ToLower(col.DataType)
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s LIMIT 1",
		quoteIdentifier(schema.Name), comparand(quoteIdentifier(col.Name), dataType), typedParam("$1", dataType))

	rows, err := s.db.Query(ctx, query, id)
	if err != nil {
		return nil, rowLookupError(table, id, err)
	}
	result, err := collectRows(rows)
	if err != nil {
		return nil, rowLookupError(table, id, err)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrRowNotFound, table, id)
	}
	return result[0], nil
}

// rowLookupError turns an id the column type cannot hold into a miss.
func rowLookupError(table, id string, err error) error {
	if isPgError(err, codeInvalidTextRep, codeInvalidDatetime, codeDatetimeOverflow, codeNumericOutOfRange) {
		return fmt.Errorf("%w: %s/%s", ErrRowNotFound, table, id)
	}
	return fmt.Errorf("get row: %w", err)
}

// classifyQueryError marks filter values the column type rejects.
func classifyQueryError(err error) error {
	if isPgError(err, codeInvalidTextRep, codeInvalidDatetime, codeDatetimeOverflow, codeNumericOutOfRange) {
		return fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	return err
}

func (s *Service) pageBounds(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.opts.PageSize
	}
	if limit > s.opts.MaxPageSize {
		limit = s.opts.MaxPageSize
	}
	return page, limit
}

// orderClause validates sorts against schema and renders ORDER BY.
func orderClause(schema *TableSchema, sorts []SortSpec) (string, error) {
	var parts []string
	for _, sort := range sorts {
		if len(parts) >= MaxSorts {
			break
		}
		col, ok := schema.Column(sort.Column)
		if !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownColumn, sort.Column)
		}
		dir := "ASC"
		if sort.Desc {
			dir = "DESC"
		}
		parts = append(parts, quoteIdentifier(col.Name)+" "+dir)
	}

	if len(parts) == 0 {
		keys := schema.PrimaryKey
		if len(keys) == 0 && len(schema.Columns) > 0 {
			keys = []string{schema.Columns[0].Name}
		}
		for _, k := range keys {
			parts = append(parts, quoteIdentifier(k)+" ASC")
		}
	}
	if len(parts) == 0 {
		return "1", nil
	}
	return strings.Join(parts, ", "), nil
}

// collectRows reads every row into column/value maps and closes rows.
func collectRows(rows pgx.Rows) ([]TableRow, error) {
	defer rows.Close()

	result := make([]TableRow, 0)
	for rows.Next() {
		fields := rows.FieldDescriptions()
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(TableRow, len(fields))
		for i, fd := range fields {
			row[fd.Name] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
