package leave

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/platform/querier"
)

// PGStore is the postgres Store. Inside WithTx it is rebound to the pgx.Tx.
type PGStore struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		return fn(&PGStore{DB: tx})
	})
}

func pgDate(d civil.Date) time.Time {
	return d.In(time.UTC)
}

const balanceColumns = `employee_id, leave_type, total, used, carried_forward, updated_at`

func scanBalance(row pgx.Row) (Balance, error) {
	var b Balance
	err := row.Scan(&b.EmployeeID, &b.LeaveType, &b.Total, &b.Used, &b.CarriedForward, &b.UpdatedAt)
	return b, err
}

func (s *PGStore) ListBalances(ctx context.Context, employeeID string) ([]Balance, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1
    ORDER BY leave_type
  `, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list balances: %w", err)
	}
	defer rows.Close()

	out := make([]Balance, 0)
	for rows.Next() {
		b, err := scanBalance(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *PGStore) GetBalance(ctx context.Context, employeeID, leaveType string) (Balance, error) {
	b, err := scanBalance(s.DB.QueryRow(ctx, `
    SELECT `+balanceColumns+`
    FROM leave_balances
    WHERE employee_id = $1 AND leave_type = $2
  `, employeeID, leaveType))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, unknownLeaveType(leaveType)
	}
	if err != nil {
		return Balance{}, fmt.Errorf("get balance: %w", err)
	}
	return b, nil
}

func (s *PGStore) ReplaceBalances(ctx context.Context, employeeID string, balances []Balance) error {
	if _, err := s.DB.Exec(ctx, `DELETE FROM leave_balances WHERE employee_id = $1`, employeeID); err != nil {
		return fmt.Errorf("clear balances: %w", err)
	}
	for _, b := range balances {
		if _, err := s.DB.Exec(ctx, `
      INSERT INTO leave_balances (employee_id, leave_type, total, used, carried_forward)
      VALUES ($1,$2,$3,$4,$5)
    `, employeeID, b.LeaveType, b.Total, b.Used, b.CarriedForward); err != nil {
			return fmt.Errorf("insert balance %s: %w", b.LeaveType, err)
		}
	}
	return nil
}

func (s *PGStore) AdjustUsed(ctx context.Context, employeeID, leaveType string, delta int) (Balance, error) {
	b, err := scanBalance(s.DB.QueryRow(ctx, `
    UPDATE leave_balances
    SET used = used + $3, updated_at = now()
    WHERE employee_id = $1 AND leave_type = $2
      AND used + $3 >= 0
      AND total + carried_forward - (used + $3) >= 0
    RETURNING `+balanceColumns+`
  `, employeeID, leaveType, delta))
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, fmt.Errorf("adjust balance: %w", err)
	}
	current, err := s.GetBalance(ctx, employeeID, leaveType)
	if err != nil {
		return Balance{}, err
	}
	return Balance{}, &InsufficientBalanceError{
		EmployeeID: employeeID,
		LeaveType:  leaveType,
		Available:  current.Available(),
		Requested:  delta,
	}
}

func (s *PGStore) SetBalance(ctx context.Context, b Balance) (Balance, error) {
	out, err := scanBalance(s.DB.QueryRow(ctx, `
    UPDATE leave_balances
    SET total = $3, used = $4, carried_forward = $5, updated_at = now()
    WHERE employee_id = $1 AND leave_type = $2
    RETURNING `+balanceColumns+`
  `, b.EmployeeID, b.LeaveType, b.Total, b.Used, b.CarriedForward))
	if errors.Is(err, pgx.ErrNoRows) {
		return Balance{}, unknownLeaveType(b.LeaveType)
	}
	if err != nil {
		return Balance{}, fmt.Errorf("set balance: %w", err)
	}
	return out, nil
}

const applicationColumns = `id, employee_id, leave_type, from_date, to_date, number_of_days, reason, status,
    applied_on, COALESCE(approved_by, ''), decided_at, COALESCE(rejection_reason, '')`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	var from, to time.Time
	err := row.Scan(&a.ID, &a.EmployeeID, &a.LeaveType, &from, &to, &a.NumberOfDays, &a.Reason, &a.Status,
		&a.AppliedOn, &a.ApprovedBy, &a.DecidedAt, &a.RejectionReason)
	if err != nil {
		return Application{}, err
	}
	a.FromDate = civil.DateOf(from)
	a.ToDate = civil.DateOf(to)
	a.Comments = []Comment{}
	return a, nil
}

func (s *PGStore) loadComments(ctx context.Context, apps []Application) error {
	if len(apps) == 0 {
		return nil
	}
	ids := make([]string, len(apps))
	index := make(map[string]int, len(apps))
	for i, a := range apps {
		ids[i] = a.ID
		index[a.ID] = i
	}
	rows, err := s.DB.Query(ctx, `
    SELECT application_id, author_id, body, created_at
    FROM leave_comments
    WHERE application_id = ANY($1::uuid[])
    ORDER BY created_at, id
  `, ids)
	if err != nil {
		return fmt.Errorf("load comments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var appID string
		var c Comment
		if err := rows.Scan(&appID, &c.AuthorID, &c.Text, &c.CreatedAt); err != nil {
			return err
		}
		if i, ok := index[appID]; ok {
			apps[i].Comments = append(apps[i].Comments, c)
		}
	}
	return rows.Err()
}

func (s *PGStore) CreateApplication(ctx context.Context, app Application) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO leave_applications (id, employee_id, leave_type, from_date, to_date, number_of_days, reason, status, applied_on)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
  `, app.ID, app.EmployeeID, app.LeaveType, pgDate(app.FromDate), pgDate(app.ToDate), app.NumberOfDays, app.Reason, app.Status, app.AppliedOn)
	if err != nil {
		return fmt.Errorf("create leave application: %w", err)
	}
	return nil
}

func (s *PGStore) GetApplication(ctx context.Context, id string) (Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	a, err := scanApplication(s.DB.QueryRow(ctx, `SELECT `+applicationColumns+` FROM leave_applications WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	if err != nil {
		return Application{}, fmt.Errorf("get leave application: %w", err)
	}
	apps := []Application{a}
	if err := s.loadComments(ctx, apps); err != nil {
		return Application{}, err
	}
	return apps[0], nil
}

// LockEmployee takes a transaction-scoped advisory lock; outside WithTx it
// is released as soon as the statement commits.
func (s *PGStore) LockEmployee(ctx context.Context, employeeID string) error {
	if _, err := s.DB.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "leave:"+employeeID); err != nil {
		return fmt.Errorf("lock employee applications: %w", err)
	}
	return nil
}

func (s *PGStore) HasOverlap(ctx context.Context, employeeID string, from, to civil.Date) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM leave_applications
      WHERE employee_id = $1 AND status IN ($2, $3)
        AND from_date <= $5 AND to_date >= $4
    )
  `, employeeID, StatusPending, StatusApproved, pgDate(from), pgDate(to)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check overlapping leave: %w", err)
	}
	return exists, nil
}

// conflictOrMissing explains why a conditional write matched no row.
func (s *PGStore) conflictOrMissing(ctx context.Context, id, from string) error {
	var status string
	err := s.DB.QueryRow(ctx, `SELECT status FROM leave_applications WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("leave application %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("read leave application status: %w", err)
	}
	return apperr.Conflict("leave application is %s, expected %s", status, from)
}

func (s *PGStore) TransitionApplication(ctx context.Context, id, from, to string, t Transition) (Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	var decidedAt *time.Time
	if !t.At.IsZero() {
		decidedAt = &t.At
	}
	a, err := scanApplication(s.DB.QueryRow(ctx, `
    UPDATE leave_applications
    SET status = $3,
        approved_by = COALESCE(NULLIF($4, ''), approved_by),
        decided_at = COALESCE($5, decided_at),
        rejection_reason = COALESCE(NULLIF($6, ''), rejection_reason),
        updated_at = now()
    WHERE id = $1 AND status = $2
    RETURNING `+applicationColumns+`
  `, id, from, to, t.ActorID, decidedAt, t.RejectionReason))
	if errors.Is(err, pgx.ErrNoRows) {
		return Application{}, s.conflictOrMissing(ctx, id, from)
	}
	if err != nil {
		return Application{}, fmt.Errorf("transition leave application: %w", err)
	}
	apps := []Application{a}
	if err := s.loadComments(ctx, apps); err != nil {
		return Application{}, err
	}
	return apps[0], nil
}

func (s *PGStore) DeleteApplication(ctx context.Context, id, from string) error {
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("leave application %s not found", id)
	}
	tag, err := s.DB.Exec(ctx, `DELETE FROM leave_applications WHERE id = $1 AND status = $2`, id, from)
	if err != nil {
		return fmt.Errorf("delete leave application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.conflictOrMissing(ctx, id, from)
	}
	return nil
}

func (s *PGStore) AppendComment(ctx context.Context, id string, c Comment) (Application, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	tag, err := s.DB.Exec(ctx, `
    INSERT INTO leave_comments (application_id, author_id, body, created_at)
    SELECT id, $2, $3, $4 FROM leave_applications WHERE id = $1
  `, id, c.AuthorID, c.Text, c.CreatedAt)
	if err != nil {
		return Application{}, fmt.Errorf("append comment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Application{}, apperr.NotFound("leave application %s not found", id)
	}
	return s.GetApplication(ctx, id)
}

func buildApplicationQuery(prefix string, filter ApplicationFilter) (string, []any) {
	query := prefix + " FROM leave_applications WHERE 1=1"
	var args []any
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(" AND employee_id = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		query += fmt.Sprintf(" AND EXTRACT(YEAR FROM from_date) = $%d", len(args))
	}
	return query, args
}

func (s *PGStore) ListApplications(ctx context.Context, filter ApplicationFilter) (ApplicationList, error) {
	countQuery, countArgs := buildApplicationQuery("SELECT COUNT(1)", filter)
	var total int
	if err := s.DB.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return ApplicationList{}, fmt.Errorf("count leave applications: %w", err)
	}

	query, args := buildApplicationQuery("SELECT "+applicationColumns, filter)
	query += " ORDER BY applied_on DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	rows, err := s.DB.Query(ctx, strings.TrimSpace(query), args...)
	if err != nil {
		return ApplicationList{}, fmt.Errorf("list leave applications: %w", err)
	}
	items := make([]Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			rows.Close()
			return ApplicationList{}, err
		}
		items = append(items, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ApplicationList{}, err
	}
	if err := s.loadComments(ctx, items); err != nil {
		return ApplicationList{}, err
	}
	return ApplicationList{Items: items, Total: total}, nil
}

func (s *PGStore) ApprovedDaysByType(ctx context.Context, employeeID string, year int) (map[string]int, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT leave_type, COALESCE(SUM(number_of_days), 0)
    FROM leave_applications
    WHERE employee_id = $1 AND status = $2 AND EXTRACT(YEAR FROM from_date) = $3
    GROUP BY leave_type
  `, employeeID, StatusApproved, year)
	if err != nil {
		return nil, fmt.Errorf("sum approved leave: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var leaveType string
		var days int
		if err := rows.Scan(&leaveType, &days); err != nil {
			return nil, err
		}
		out[leaveType] = days
	}
	return out, rows.Err()
}
