package pipeline

import (
	"context"
	"fmt"

	"github.com/krish9495/documind-ai-hackrx/pkg/config"
	"github.com/krish9495/documind-ai-hackrx/pkg/index"
	"github.com/krish9495/documind-ai-hackrx/pkg/store"
)

// OpenStore returns the index store for the configured backend. The close
// function releases any connection it holds.
func OpenStore(ctx context.Context, settings *config.Config) (index.Store, func(), error) {
	switch settings.Index.Backend {
	case config.BackendMemory:
		return index.NewMemoryStore(settings.Index.Directory), func() {}, nil
	case config.BackendDisk:
		return index.NewDiskStore(settings.Index.Directory), func() {}, nil
	case config.BackendPgvector:
		vs, err := store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: settings.Index.DatabaseURL,
			TableName:  settings.Index.TableName,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
		return vs, vs.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown index backend %q", settings.Index.Backend)
}
