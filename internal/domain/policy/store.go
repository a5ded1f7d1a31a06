package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/platform/querier"
)

type Store struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *Store {
	return &Store{DB: db}
}

const policyColumns = `id, name, category, is_active, working_hours_per_day, half_day_threshold_hours, grace_time_minutes, workday_start, created_at`

func scanPolicy(row pgx.Row) (Policy, error) {
	var p Policy
	err := row.Scan(&p.ID, &p.Name, &p.Category, &p.IsActive, &p.WorkingHoursPerDay, &p.HalfDayThresholdHours, &p.GraceTimeMinutes, &p.WorkdayStart, &p.CreatedAt)
	return p, err
}

func (s *Store) loadLeaveTypes(ctx context.Context, q querier.Querier, p *Policy) error {
	rows, err := q.Query(ctx, `
    SELECT leave_type, annual_quota, carry_forward, max_carry_forward
    FROM policy_leave_types
    WHERE policy_id = $1
    ORDER BY position
  `, p.ID)
	if err != nil {
		return fmt.Errorf("load policy leave types: %w", err)
	}
	defer rows.Close()

	p.LeaveTypes = p.LeaveTypes[:0]
	for rows.Next() {
		var q LeaveTypeQuota
		if err := rows.Scan(&q.LeaveType, &q.AnnualQuota, &q.CarryForward, &q.MaxCarryForward); err != nil {
			return err
		}
		p.LeaveTypes = append(p.LeaveTypes, q)
	}
	return rows.Err()
}

func (s *Store) getOne(ctx context.Context, q querier.Querier, where string, arg any) (Policy, error) {
	p, err := scanPolicy(q.QueryRow(ctx, `SELECT `+policyColumns+` FROM policies WHERE `+where, arg))
	if err != nil {
		return Policy{}, err
	}
	if err := s.loadLeaveTypes(ctx, q, &p); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (s *Store) GetActive(ctx context.Context, category string) (Policy, error) {
	p, err := s.getOne(ctx, s.DB, "category = $1 AND is_active", category)
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, apperr.NotFound("no active policy for category %q", category)
	}
	if err != nil {
		return Policy{}, fmt.Errorf("get active policy: %w", err)
	}
	return p, nil
}

func (s *Store) Get(ctx context.Context, id string) (Policy, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Policy{}, apperr.NotFound("policy %s not found", id)
	}
	p, err := s.getOne(ctx, s.DB, "id = $1", id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Policy{}, apperr.NotFound("policy %s not found", id)
	}
	if err != nil {
		return Policy{}, fmt.Errorf("get policy: %w", err)
	}
	return p, nil
}

func (s *Store) List(ctx context.Context) ([]Policy, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+policyColumns+` FROM policies ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	var out []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.loadLeaveTypes(ctx, s.DB, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Create stores a new, inactive policy version.
func (s *Store) Create(ctx context.Context, p Policy) (Policy, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.IsActive = false
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
      INSERT INTO policies (id, name, category, is_active, working_hours_per_day, half_day_threshold_hours, grace_time_minutes, workday_start)
      VALUES ($1,$2,$3,false,$4,$5,$6,$7)
      RETURNING created_at
    `, p.ID, p.Name, p.Category, p.WorkingHoursPerDay, p.HalfDayThresholdHours, p.GraceTimeMinutes, p.WorkdayStart).Scan(&p.CreatedAt); err != nil {
			return err
		}
		for i, q := range p.LeaveTypes {
			if _, err := tx.Exec(ctx, `
        INSERT INTO policy_leave_types (policy_id, position, leave_type, annual_quota, carry_forward, max_carry_forward)
        VALUES ($1,$2,$3,$4,$5,$6)
      `, p.ID, i, q.LeaveType, q.AnnualQuota, q.CarryForward, q.MaxCarryForward); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return Policy{}, fmt.Errorf("create policy: %w", err)
	}
	return p, nil
}

// Activate makes id the active policy of its category, deactivating the previous one.
func (s *Store) Activate(ctx context.Context, id string) (Policy, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Policy{}, apperr.NotFound("policy %s not found", id)
	}
	var out Policy
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var category string
		if err := tx.QueryRow(ctx, `SELECT category FROM policies WHERE id = $1 FOR UPDATE`, id).Scan(&category); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return apperr.NotFound("policy %s not found", id)
			}
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE policies SET is_active = false WHERE category = $1 AND is_active AND id <> $2`, category, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE policies SET is_active = true WHERE id = $1`, id); err != nil {
			return err
		}
		p, err := s.getOne(ctx, tx, "id = $1", id)
		out = p
		return err
	})
	if err != nil {
		return Policy{}, activateError(id, err)
	}
	return out, nil
}

// activateError maps a lost race on the one-active-per-category index to a
// conflict the caller can retry.
func activateError(id string, err error) error {
	switch {
	case apperr.KindOf(err) == apperr.KindNotFound:
		return err
	case querier.IsUniqueViolation(err):
		return apperr.Conflict("policy %s was activated concurrently with another policy of its category", id)
	default:
		return fmt.Errorf("activate policy: %w", err)
	}
}
