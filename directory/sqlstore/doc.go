// Package sqlstore is a principal directory over a SQL users table.
//
// Postgres is reached through the pgx stdlib driver and SQLite through the
// pure-Go modernc driver, so development and tests need no server. Schema
// migrations are embedded and applied with goose on [Open].
package sqlstore
