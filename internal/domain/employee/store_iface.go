package employee

import "context"

type StoreAPI interface {
	Get(ctx context.Context, id string) (Employee, error)
	ListActive(ctx context.Context) ([]Employee, error)
	Create(ctx context.Context, emp Employee) (Employee, error)
}
