package catalog

import (
	"context"
	"strings"
)

// NewCatalog reads from postgres when configured, otherwise returns an empty
// in-memory catalog.
func NewCatalog(ctx context.Context, databaseURL string) (Catalog, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return NewInMemoryCatalog(), nil
	}
	return NewPostgresCatalog(ctx, databaseURL)
}
