package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Defaults applied by NewService for zero Options fields.
const (
	DefaultInferSize   = 100
	DefaultChunkSize   = 1000
	DefaultPageSize    = 20
	DefaultMaxPageSize = 1000
	DefaultLoadTimeout = 30 * time.Minute
)

// Options configures a Service.
type Options struct {
	InferSize   int
	ChunkSize   int
	LoadTimeout time.Duration
	WriterWait  time.Duration
	PageSize    int
	MaxPageSize int
}

func (o Options) withDefaults() Options {
	if o.InferSize <= 0 {
		o.InferSize = DefaultInferSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.LoadTimeout <= 0 {
		o.LoadTimeout = DefaultLoadTimeout
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPageSize <= 0 {
		o.MaxPageSize = DefaultMaxPageSize
	}
	if o.PageSize > o.MaxPageSize {
		o.PageSize = o.MaxPageSize
	}
	return o
}

// Service provides loading, maintenance and read access to tables.
type Service struct {
	db      DB
	opts    Options
	catalog *Catalog
	writer  *WriterLock
}

// NewService creates a new Service. Call RefreshTables before serving reads.
func NewService(db DB, opts Options) *Service {
	opts = opts.withDefaults()
	return &Service{
		db:      db,
		opts:    opts,
		catalog: NewCatalog(),
		writer:  NewWriterLock(opts.WriterWait),
	}
}

// Options returns the effective options.
func (s *Service) Options() Options { return s.opts }

// Catalog returns the reflected table snapshot.
func (s *Service) Catalog() *Catalog { return s.catalog }

// Writer returns the single-writer lock.
func (s *Service) Writer() *WriterLock { return s.writer }

// Ping checks database connectivity.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// tableSchema returns a catalog entry, refreshing once on a miss so that
// tables created outside this process are found.
func (s *Service) tableSchema(ctx context.Context, name string) (*TableSchema, error) {
	if t, ok := s.catalog.Table(name); ok {
		return t, nil
	}
	if err := s.RefreshTables(ctx); err != nil {
		return nil, err
	}
	if t, ok := s.catalog.Table(name); ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownTable, name)
}

// validateTableName rejects names PostgreSQL would truncate or refuse.
func validateTableName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: empty", ErrInvalidTableName)
	case len(name) > MaxIdentifierLength:
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrInvalidTableName, name, MaxIdentifierLength)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: contains NUL", ErrInvalidTableName)
	}
	return nil
}
