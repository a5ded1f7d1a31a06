package employee

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
	DB querier.Querier
}

func NewStore(db querier.Querier) *Store {
	return &Store{DB: db}
}

const employeeColumns = `id, COALESCE(employee_code, ''), full_name, COALESCE(email, ''), COALESCE(department, ''), status, created_at`

func scanEmployee(row pgx.Row) (Employee, error) {
	var e Employee
	err := row.Scan(&e.ID, &e.Code, &e.FullName, &e.Email, &e.Department, &e.Status, &e.CreatedAt)
	return e, err
}

func (s *Store) Get(ctx context.Context, id string) (Employee, error) {
	e, err := scanEmployee(s.DB.QueryRow(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, apperr.NotFound("employee %s not found", id)
	}
	if err != nil {
		return Employee{}, fmt.Errorf("get employee: %w", err)
	}
	return e, nil
}

func (s *Store) ListActive(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+employeeColumns+`
    FROM employees
    WHERE status = $1
    ORDER BY full_name, id
  `, StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active employees: %w", err)
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) Create(ctx context.Context, emp Employee) (Employee, error) {
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}
	if emp.Status == "" {
		emp.Status = StatusActive
	}
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (id, employee_code, full_name, email, department, status)
    VALUES ($1,$2,$3,$4,$5,$6)
    RETURNING created_at
  `, emp.ID, emp.Code, emp.FullName, emp.Email, emp.Department, emp.Status).Scan(&emp.CreatedAt)
	if err != nil {
		return Employee{}, fmt.Errorf("create employee: %w", err)
	}
	return emp, nil
}
