package policy

import (
	"context"
	"time"

	"go.uber.org/zap"

	"hrdesk/internal/platform/cache"
)

// Service fronts the policy store with a read-through cache of active policies.
type Service struct {
	Store  StoreAPI
	Cache  *cache.JSON
	TTL    time.Duration
	Logger *zap.Logger
}

func NewService(store StoreAPI, c *cache.JSON, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Store: store, Cache: c, TTL: ttl, Logger: logger}
}

func activeKey(category string) string {
	return "policy:active:" + category
}

func (s *Service) Active(ctx context.Context, category string) (Policy, error) {
	if category == "" {
		category = DefaultCategory
	}
	return cache.Remember(ctx, s.Cache, activeKey(category), s.TTL, func(ctx context.Context) (Policy, error) {
		return s.Store.GetActive(ctx, category)
	})
}

func (s *Service) Get(ctx context.Context, id string) (Policy, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Policy, error) {
	return s.Store.List(ctx)
}

func (s *Service) Create(ctx context.Context, p Policy) (Policy, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	created, err := s.Store.Create(ctx, p)
	if err != nil {
		return Policy{}, err
	}
	s.Logger.Info("policy created", zap.String("policyId", created.ID), zap.String("category", created.Category))
	return created, nil
}

func (s *Service) Activate(ctx context.Context, id string) (Policy, error) {
	p, err := s.Store.Activate(ctx, id)
	if err != nil {
		return Policy{}, err
	}
	if err := s.Cache.Delete(ctx, activeKey(p.Category)); err != nil {
		s.Logger.Warn("active policy cache invalidation failed", zap.String("category", p.Category), zap.Error(err))
	}
	s.Logger.Info("policy activated", zap.String("policyId", p.ID), zap.String("category", p.Category))
	return p, nil
}
