package policy

import "context"

// StoreAPI persists policy versions. At most one policy per category is active.
type StoreAPI interface {
	GetActive(ctx context.Context, category string) (Policy, error)
	Get(ctx context.Context, id string) (Policy, error)
	List(ctx context.Context) ([]Policy, error)
	Create(ctx context.Context, p Policy) (Policy, error)
	Activate(ctx context.Context, id string) (Policy, error)
}
