package core

import "context"

// DB is the database handle as seen by the health check.
type DB interface {
	PingContext(ctx context.Context) error
}
