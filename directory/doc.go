// Package directory holds the principal model and lookup backends used by
// the wmsauth engine.
//
// [Memory] is a concurrency-safe map suited to tests, demos and the
// seeded development server. SQL-backed lookups over Postgres or SQLite
// live in the sqlstore subpackage.
//
// Backends report absence with [ErrNotFound]. They do not filter inactive
// or deleted principals; the engine decides what an unusable principal
// means for each operation.
package directory
