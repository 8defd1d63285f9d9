package sync

import (
	"context"

	"github.com/open-feature/assignd/pkg/store"
)

// ISync keeps a store.Holder populated from some source.
type ISync interface {
	// Fetch reads the source once and builds a Configuration from it.
	Fetch(ctx context.Context) (*store.Configuration, error)
	// Sync installs the first Configuration and then keeps it current until ctx
	// is cancelled.
	Sync(ctx context.Context, holder *store.Holder) error
}
