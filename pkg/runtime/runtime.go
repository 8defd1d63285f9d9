package runtime

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/open-feature/assignd/pkg/service"
	"github.com/open-feature/assignd/pkg/store"
	"github.com/open-feature/assignd/pkg/sync"
)

type Runtime struct {
	Service service.IService
	Sync    sync.ISync
	Holder  *store.Holder
	Logger  *log.Entry
}

// Start runs the sync and the service until ctx is cancelled or either of them
// fails, in which case the other is stopped too.
func (r *Runtime) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.Sync.Sync(gCtx, r.Holder)
	})
	g.Go(func() error {
		return r.Service.Serve(gCtx)
	})
	err := g.Wait()
	if r.Logger != nil {
		r.Logger.Info("runtime stopped")
	}
	return err
}
