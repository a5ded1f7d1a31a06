package leave

import (
	"context"

	"cloud.google.com/go/civil"
)

// Tx is the set of ledger and application operations available inside a
// storage transaction. Every method that changes state validates the prior
// state in the same statement or under the same lock.
type Tx interface {
	ListBalances(ctx context.Context, employeeID string) ([]Balance, error)
	GetBalance(ctx context.Context, employeeID, leaveType string) (Balance, error)
	ReplaceBalances(ctx context.Context, employeeID string, balances []Balance) error
	// AdjustUsed adds delta to used and fails without writing when the
	// result would leave used or available negative.
	AdjustUsed(ctx context.Context, employeeID, leaveType string, delta int) (Balance, error)
	SetBalance(ctx context.Context, b Balance) (Balance, error)

	// LockEmployee serializes application writes for one employee until the
	// surrounding transaction ends.
	LockEmployee(ctx context.Context, employeeID string) error
	CreateApplication(ctx context.Context, app Application) error
	GetApplication(ctx context.Context, id string) (Application, error)
	HasOverlap(ctx context.Context, employeeID string, from, to civil.Date) (bool, error)
	// TransitionApplication moves id from one status to another, failing
	// with a state conflict when the stored status is not from.
	TransitionApplication(ctx context.Context, id, from, to string, t Transition) (Application, error)
	DeleteApplication(ctx context.Context, id, from string) error
	AppendComment(ctx context.Context, id string, c Comment) (Application, error)
	ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error)
	ApprovedDaysByType(ctx context.Context, employeeID string, year int) (map[string]int, error)
}

type Store interface {
	Tx
	WithTx(ctx context.Context, fn func(Tx) error) error
}
