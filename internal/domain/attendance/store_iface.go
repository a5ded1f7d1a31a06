package attendance

import (
	"context"

	"cloud.google.com/go/civil"
)

// UpdateFunc mutates a record loaded under the store's per-day lock.
type UpdateFunc func(rec *Record) error

type Store interface {
	// Update serializes writers on (employeeID, day). With create set a
	// missing record is created first; otherwise a missing record is not-found.
	// Nothing is saved when fn fails.
	Update(ctx context.Context, employeeID string, day civil.Date, create bool, fn UpdateFunc) (Record, error)
	Get(ctx context.Context, employeeID string, day civil.Date) (Record, error)
	// List returns one employee's records in [from, to], newest first.
	List(ctx context.Context, employeeID string, from, to civil.Date) ([]Record, error)
	// ListRange returns every employee's records in [from, to].
	ListRange(ctx context.Context, from, to civil.Date) ([]Record, error)
}
