package db

import "database/sql"

// DBProvider is an interface for database clients that expose a sql.DB handle.
// Both PostgresClient and SupabaseClient satisfy it, so the store and the
// advisory lock work against either a plain Postgres or a Supabase project.
type DBProvider interface {
	DB() *sql.DB
}
