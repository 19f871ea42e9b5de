package lifeevents

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/refund-explainer/internal/gcs"
)

// Fetcher downloads an object from remote storage.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// LoadCatalog reads a catalog from source, which may be empty for the built-in
// presets, a gs:// URI or a local file path.
func LoadCatalog(ctx context.Context, source string, fetcher Fetcher) (*Catalog, error) {
	if source == "" {
		return DefaultCatalog(), nil
	}

	var (
		data []byte
		err  error
	)
	if gcs.IsURI(source) {
		if fetcher == nil {
			return nil, fmt.Errorf("LoadCatalog: no fetcher configured for %s", source)
		}
		data, err = fetcher.Fetch(ctx, source)
	} else {
		data, err = os.ReadFile(source)
	}
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: read %s: %w", source, err)
	}

	c, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("LoadCatalog: %s: %w", source, err)
	}
	return c, nil
}
