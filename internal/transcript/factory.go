package transcript

import (
	"context"
	"strings"
)

type Options struct {
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
}

// NewStore prefers mongo, then postgres, then memory.
func NewStore(ctx context.Context, opts Options) (Store, error) {
	if strings.TrimSpace(opts.MongoURI) != "" {
		db := strings.TrimSpace(opts.MongoDatabase)
		if db == "" {
			db = "intervue"
		}
		return NewMongoStore(ctx, opts.MongoURI, db)
	}
	if strings.TrimSpace(opts.DatabaseURL) != "" {
		return NewPostgresStore(ctx, opts.DatabaseURL)
	}
	return NewInMemoryStore(), nil
}
