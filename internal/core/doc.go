// Package core loads tabular files into PostgreSQL and serves the loaded
// tables back.
//
// This package holds all domain logic independent of any transport. It is
// used by the HTTP server and the tabload CLI without modification.
//
// # Loading
//
// [Service.LoadTable] streams a file in fixed-size chunks, each written with
// COPY in its own transaction. Column types are inferred once from the first
// rows and pinned for the rest of the file, so every chunk is written with
// the same types:
//
//	svc := core.NewService(pool, core.Options{})
//	res, err := svc.LoadTable(ctx, "people.csv", core.LoadOptions{Index: true})
//
// Every table gets an "index" BIGINT primary key. Appending to an existing
// table continues after its highest index, so indexes stay contiguous.
//
// # Writers and readers
//
// Loads, index rebuilds and drops share a single writer slot
// ([WriterLock]); a writer that waits too long fails with [ErrWriterBusy].
// Reads go through the [Catalog], a snapshot of information_schema replaced
// by [Service.RefreshTables] after every write.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with support codes by
// [MapError].
package core
