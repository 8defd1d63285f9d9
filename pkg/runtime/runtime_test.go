package runtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/open-feature/assignd/pkg/store"
)

type blockingSync struct {
	stopped chan struct{}
}

func (s *blockingSync) Fetch(context.Context) (*store.Configuration, error) { return nil, nil }

func (s *blockingSync) Sync(ctx context.Context, _ *store.Holder) error {
	<-ctx.Done()
	close(s.stopped)
	return nil
}

type failingService struct{ err error }

func (s failingService) Serve(context.Context) error { return s.err }

type blockingService struct{}

func (blockingService) Serve(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func TestStart_ServiceFails_StopsSync(t *testing.T) {
	sync := &blockingSync{stopped: make(chan struct{})}
	boom := errors.New("address in use")
	rt := Runtime{Service: failingService{err: boom}, Sync: sync, Holder: store.NewHolder(nil)}

	err := rt.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	select {
	case <-sync.stopped:
	case <-time.After(time.Second):
		t.Fatal("sync kept running after the service failed")
	}
}

func TestStart_Cancelled_StopsCleanly(t *testing.T) {
	sync := &blockingSync{stopped: make(chan struct{})}
	rt := Runtime{Service: blockingService{}, Sync: sync, Holder: store.NewHolder(nil)}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runtime did not stop")
	}
}
