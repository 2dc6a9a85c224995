package workers

import (
	"context"

	"condor-raat/core/store"
)

// Service is the read surface over the HR worker directory the rest of the
// application consumes. It satisfies the registry's directory interface.
type Service struct {
	store store.WorkersStore
}

func NewService(workers store.WorkersStore) *Service {
	return &Service{store: workers}
}

func (s *Service) ResolveWorker(ctx context.Context, tenantID, workerID int64) (*store.Worker, error) {
	return s.store.Get(ctx, tenantID, workerID)
}

func (s *Service) ActiveHeadcount(ctx context.Context, tenantID int64) (int64, error) {
	return s.store.ActiveHeadcount(ctx, tenantID)
}

func (s *Service) List(ctx context.Context, tenantID int64, activeOnly bool) ([]store.Worker, error) {
	return s.store.List(ctx, tenantID, activeOnly)
}

func (s *Service) Get(ctx context.Context, tenantID, workerID int64) (*store.Worker, error) {
	return s.store.Get(ctx, tenantID, workerID)
}
