package leave

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/domain/audit"
	"hrdesk/internal/domain/auth"
)

func TestCasualLeaveApproveThenCancelRestoresBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	start := f.balance(t, alice.EmployeeID, "casual")
	assert.Equal(t, 12, start.Total)
	assert.Zero(t, start.Used)
	assert.Zero(t, start.CarriedForward)

	app := f.apply(t, alice, "casual", "2025-03-10", "2025-03-12")
	assert.Equal(t, 3, app.NumberOfDays)
	assert.Equal(t, StatusPending, app.Status)
	assert.Equal(t, 12, f.balance(t, alice.EmployeeID, "casual").Available(), "pending leave does not deduct")

	approved, err := f.lifecycle.Approve(ctx, hr, app.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, approved.Status)
	assert.Equal(t, hr.EmployeeID, approved.ApprovedBy)
	require.NotNil(t, approved.DecidedAt)

	b := f.balance(t, alice.EmployeeID, "casual")
	assert.Equal(t, 3, b.Used)
	assert.Equal(t, 9, b.Available())

	res, err := f.lifecycle.Cancel(ctx, alice, app.ID)
	require.NoError(t, err)
	assert.False(t, res.Deleted)
	require.NotNil(t, res.Application)
	assert.Equal(t, StatusCancelled, res.Application.Status)

	b = f.balance(t, alice.EmployeeID, "casual")
	assert.Equal(t, 0, b.Used)
	assert.Equal(t, 12, b.Available())

	_, err = f.lifecycle.Cancel(ctx, alice, app.ID)
	assert.ErrorIs(t, err, apperr.ErrStateConflict, "cancelled is terminal")

	events, _, err := audit.NewRecorder(f.audit, nil).List(ctx, audit.Filter{EntityID: app.ID}, 10, 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, audit.ActionLeaveCancel, events[0].Action)
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.lifecycle.Apply(ctx, alice, ApplyInput{LeaveType: "casual", FromDate: date("2025-03-12"), ToDate: date("2025-03-10"), Reason: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.lifecycle.Apply(ctx, alice, ApplyInput{LeaveType: "casual", FromDate: date("2025-03-10"), ToDate: date("2025-03-10")})
	assert.ErrorIs(t, err, apperr.ErrValidation, "reason required")

	_, err = f.lifecycle.Apply(ctx, alice, ApplyInput{LeaveType: "sabbatical", FromDate: date("2025-03-10"), ToDate: date("2025-03-10"), Reason: "x"})
	assert.ErrorIs(t, err, apperr.ErrUnknownLeaveType)
	assert.Equal(t, apperr.KindUnknownLeaveType, apperr.KindOf(err))
}

func TestApplyBlockedWhenBalanceInsufficient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.lifecycle.Apply(ctx, alice, ApplyInput{LeaveType: "casual", FromDate: date("2025-04-01"), ToDate: date("2025-04-13"), Reason: "trip"})
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	var insufficient *InsufficientBalanceError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 12, insufficient.Available)
	assert.Equal(t, 13, insufficient.Requested)

	mine, err := f.lifecycle.MyApplications(ctx, alice, "", 0)
	require.NoError(t, err)
	assert.Empty(t, mine, "nothing persisted")
}

func TestApplyRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	f.apply(t, alice, "casual", "2025-03-10", "2025-03-12")

	_, err := f.lifecycle.Apply(context.Background(), alice, ApplyInput{LeaveType: "sick", FromDate: date("2025-03-12"), ToDate: date("2025-03-13"), Reason: "flu"})
	assert.ErrorIs(t, err, apperr.ErrStateConflict)

	f.apply(t, bob, "casual", "2025-03-10", "2025-03-12")
}

func TestApproveAndRejectAreExclusive(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	approved := f.apply(t, alice, "casual", "2025-03-10", "2025-03-11")
	_, err := f.lifecycle.Approve(ctx, hr, approved.ID)
	require.NoError(t, err)
	before := f.balance(t, alice.EmployeeID, "casual")

	_, err = f.lifecycle.Approve(ctx, hr, approved.ID)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	_, err = f.lifecycle.Reject(ctx, hr, approved.ID, "late")
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Equal(t, before.Used, f.balance(t, alice.EmployeeID, "casual").Used)

	rejected := f.apply(t, alice, "casual", "2025-05-01", "2025-05-01")
	_, err = f.lifecycle.Reject(ctx, hr, rejected.ID, "  ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	got, err := f.lifecycle.Reject(ctx, hr, rejected.ID, "team offsite")
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Status)
	assert.Equal(t, "team offsite", got.RejectionReason)

	_, err = f.lifecycle.Approve(ctx, hr, rejected.ID)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	_, err = f.lifecycle.Cancel(ctx, alice, rejected.ID)
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.Equal(t, before.Used, f.balance(t, alice.EmployeeID, "casual").Used)
}

func TestApprovalAuthorization(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.apply(t, alice, "casual", "2025-03-10", "2025-03-10")

	_, err := f.lifecycle.Approve(ctx, bob, app.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.lifecycle.Approve(ctx, auth.Actor{EmployeeID: "mgr", Role: auth.RoleManager}, app.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	own := f.apply(t, hr, "casual", "2025-03-10", "2025-03-10")
	_, err = f.lifecycle.Approve(ctx, hr, own.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden, "no self approval")
	_, err = f.lifecycle.Approve(ctx, auth.Actor{EmployeeID: "admin-1", Role: auth.RoleAdmin}, own.ID)
	assert.NoError(t, err)

	_, err = f.lifecycle.Approve(ctx, hr, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestApproveRollsBackWhenBalanceOverdrawn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first := f.apply(t, alice, "casual", "2025-03-03", "2025-03-10")
	second := f.apply(t, alice, "casual", "2025-04-01", "2025-04-08")

	_, err := f.lifecycle.Approve(ctx, hr, first.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Approve(ctx, hr, second.ID)
	require.ErrorIs(t, err, apperr.ErrInsufficientBalance)

	still, err := f.lifecycle.Get(ctx, hr, second.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, still.Status, "status change rolled back with the failed deduction")
	assert.Equal(t, 8, f.balance(t, alice.EmployeeID, "casual").Used)
}

func TestCancelPendingDeletesApplication(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.apply(t, alice, "sick", "2025-03-10", "2025-03-10")

	_, err := f.lifecycle.Cancel(ctx, bob, app.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	res, err := f.lifecycle.Cancel(ctx, hr, app.ID)
	require.NoError(t, err)
	assert.True(t, res.Deleted)
	assert.Nil(t, res.Application)

	_, err = f.lifecycle.Get(ctx, alice, app.ID)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 8, f.balance(t, alice.EmployeeID, "sick").Available())
}

func TestConcurrentApprovalsDeductOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.apply(t, alice, "casual", "2025-03-10", "2025-03-14")

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.lifecycle.Approve(ctx, hr, app.ID)
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, apperr.ErrStateConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 5, f.balance(t, alice.EmployeeID, "casual").Used)
}

func TestCommentsAppendInOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	app := f.apply(t, alice, "casual", "2025-03-10", "2025-03-10")

	_, err := f.lifecycle.AddComment(ctx, alice, app.ID, "covering with Bob")
	require.NoError(t, err)
	_, err = f.lifecycle.Reject(ctx, hr, app.ID, "release week")
	require.NoError(t, err)
	got, err := f.lifecycle.AddComment(ctx, hr, app.ID, "sorry")
	require.NoError(t, err, "comments allowed in any status")

	require.Len(t, got.Comments, 2)
	assert.Equal(t, "emp-1", got.Comments[0].AuthorID)
	assert.Equal(t, "sorry", got.Comments[1].Text)

	_, err = f.lifecycle.AddComment(ctx, bob, app.ID, "hi")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	_, err = f.lifecycle.AddComment(ctx, alice, app.ID, " ")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestListingAndSummary(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.apply(t, alice, "casual", "2025-03-10", "2025-03-11")
	f.apply(t, alice, "sick", "2025-06-02", "2025-06-02")
	f.apply(t, bob, "casual", "2025-03-10", "2025-03-10")
	_, err := f.lifecycle.Approve(ctx, hr, a.ID)
	require.NoError(t, err)

	mine, err := f.lifecycle.MyApplications(ctx, alice, StatusPending, 2025)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "sick", mine[0].LeaveType)

	_, err = f.lifecycle.MyApplications(ctx, alice, "archived", 0)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.lifecycle.List(ctx, alice, ApplicationFilter{})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	all, err := f.lifecycle.List(ctx, hr, ApplicationFilter{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)
	assert.Len(t, all.Items, 2)

	_, err = f.lifecycle.Get(ctx, bob, a.ID)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	summary, err := f.ledger.Summary(ctx, alice.EmployeeID, 2025)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"casual": 2, "sick": 0}, summary.UsedThisYear)
	assert.Len(t, summary.Balances, 2)
}

// TestLedgerInvariantsUnderRandomOperations drives random apply, approve,
// reject and cancel calls and checks the ledger after every step.
func TestLedgerInvariantsUnderRandomOperations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	rng := rand.New(rand.NewSource(42))
	actors := []auth.Actor{alice, bob}
	types := []string{"casual", "sick"}
	var ids []string

	for step := 0; step < 400; step++ {
		var err error
		switch op := rng.Intn(4); {
		case op == 0 || len(ids) == 0:
			actor := actors[rng.Intn(len(actors))]
			day := 1 + rng.Intn(300)
			from := date("2025-01-01").AddDays(day)
			var app Application
			app, err = f.lifecycle.Apply(ctx, actor, ApplyInput{
				LeaveType: types[rng.Intn(len(types))],
				FromDate:  from,
				ToDate:    from.AddDays(rng.Intn(4)),
				Reason:    "random",
			})
			if err == nil {
				ids = append(ids, app.ID)
			}
		case op == 1:
			_, err = f.lifecycle.Approve(ctx, hr, ids[rng.Intn(len(ids))])
		case op == 2:
			_, err = f.lifecycle.Reject(ctx, hr, ids[rng.Intn(len(ids))], "no")
		default:
			_, err = f.lifecycle.Cancel(ctx, hr, ids[rng.Intn(len(ids))])
		}
		if err != nil {
			require.NotEqual(t, apperr.KindInternal, apperr.KindOf(err), "step %d: %v", step, err)
		}

		for _, actor := range actors {
			balances, err := f.ledger.Balances(ctx, actor.EmployeeID)
			require.NoError(t, err)
			approved, err := f.store.ApprovedDaysByType(ctx, actor.EmployeeID, 2025)
			require.NoError(t, err)
			for _, b := range balances {
				require.Equal(t, b.Total+b.CarriedForward-b.Used, b.Available())
				require.GreaterOrEqual(t, b.Used, 0)
				require.LessOrEqual(t, b.Used, b.Total+b.CarriedForward)
				require.Equal(t, approved[b.LeaveType], b.Used, "used tracks approved days")
			}
		}
	}
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) LeaveEvent(_ context.Context, event string, app Application) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event+":"+app.Status)
}

func TestDecisionsNotifyApplicant(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	n := &recordingNotifier{}
	f.lifecycle.Notifier = n

	first := f.apply(t, alice, "casual", "2025-03-10", "2025-03-10")
	_, err := f.lifecycle.Approve(ctx, hr, first.ID)
	require.NoError(t, err)
	_, err = f.lifecycle.Cancel(ctx, alice, first.ID)
	require.NoError(t, err)

	second := f.apply(t, alice, "casual", "2025-03-20", "2025-03-20")
	_, err = f.lifecycle.Reject(ctx, hr, second.ID, "coverage")
	require.NoError(t, err)

	third := f.apply(t, alice, "casual", "2025-04-01", "2025-04-01")
	_, err = f.lifecycle.Cancel(ctx, alice, third.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		EventApproved + ":" + StatusApproved,
		EventCancelled + ":" + StatusCancelled,
		EventRejected + ":" + StatusRejected,
	}, n.events, "withdrawing a pending application sends nothing")
}

type orderedTx struct {
	Tx
	mu    *sync.Mutex
	calls *[]string
}

func (o orderedTx) note(call string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.calls = append(*o.calls, call)
}

func (o orderedTx) LockEmployee(ctx context.Context, employeeID string) error {
	o.note("lock:" + employeeID)
	return o.Tx.LockEmployee(ctx, employeeID)
}

func (o orderedTx) HasOverlap(ctx context.Context, employeeID string, from, to civil.Date) (bool, error) {
	o.note("overlap")
	return o.Tx.HasOverlap(ctx, employeeID, from, to)
}

func (o orderedTx) CreateApplication(ctx context.Context, app Application) error {
	o.note("create")
	return o.Tx.CreateApplication(ctx, app)
}

type orderedStore struct {
	*MemoryStore
	mu    sync.Mutex
	calls []string
}

func (o *orderedStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return o.MemoryStore.WithTx(ctx, func(tx Tx) error {
		return fn(orderedTx{Tx: tx, mu: &o.mu, calls: &o.calls})
	})
}

func TestApplyLocksEmployeeBeforeOverlapCheck(t *testing.T) {
	f := newFixture(t)
	store := &orderedStore{MemoryStore: f.store}
	lc := NewLifecycle(store, f.lifecycle.Clock, f.lifecycle.Audit, f.lifecycle.Metrics, nil)

	_, err := lc.Apply(context.Background(), alice, ApplyInput{
		LeaveType: "casual",
		FromDate:  date("2025-05-05"),
		ToDate:    date("2025-05-06"),
		Reason:    "trip",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lock:" + alice.EmployeeID, "overlap", "create"}, store.calls)
}

func TestConcurrentOverlappingAppliesCreateOne(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(day int) {
			defer wg.Done()
			_, err := f.lifecycle.Apply(ctx, alice, ApplyInput{
				LeaveType: "casual",
				FromDate:  date("2025-06-10"),
				ToDate:    date("2025-06-10").AddDays(day % 2),
				Reason:    "overlap",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, apperr.ErrStateConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, n-1, conflicts)
}
