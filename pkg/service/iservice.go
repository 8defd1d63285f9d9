package service

import "context"

// IService exposes evaluations to callers until ctx is cancelled.
type IService interface {
	Serve(ctx context.Context) error
}
