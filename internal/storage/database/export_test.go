package database

import "context"

// DBPool is the interface for the database connection pool, exported for tests.
type DBPool = dbPool

// WithNewPool overrides the default function used to create the connection pool.
func WithNewPool(newPool func(ctx context.Context, dsn string) (DBPool, error)) Options {
	return func(o *options) {
		o.newPool = newPool
	}
}
