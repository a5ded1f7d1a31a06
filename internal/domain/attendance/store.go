package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"hrdesk/internal/domain/apperr"
	"hrdesk/internal/platform/querier"
)

type PGStore struct {
	DB querier.TxBeginner
}

func NewStore(db querier.TxBeginner) *PGStore {
	return &PGStore{DB: db}
}

const recordColumns = `id, employee_id, work_date, total_work_minutes, status, late, COALESCE(notes, ''), updated_at`

func scanRecord(row pgx.Row) (Record, error) {
	var r Record
	var day time.Time
	if err := row.Scan(&r.ID, &r.EmployeeID, &day, &r.TotalWorkMinutes, &r.Status, &r.Late, &r.Notes, &r.UpdatedAt); err != nil {
		return Record{}, err
	}
	r.Date = civil.DateOf(day)
	r.Sessions = []Session{}
	return r, nil
}

func loadSessions(ctx context.Context, q querier.Querier, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	ids := make([]string, len(records))
	index := make(map[string]int, len(records))
	for i, r := range records {
		ids[i] = r.ID
		index[r.ID] = i
	}
	rows, err := q.Query(ctx, `
    SELECT record_id, id, check_in, check_out
    FROM attendance_sessions
    WHERE record_id = ANY($1::uuid[])
    ORDER BY check_in
  `, ids)
	if err != nil {
		return fmt.Errorf("load attendance sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var recordID string
		var s Session
		if err := rows.Scan(&recordID, &s.ID, &s.CheckIn, &s.CheckOut); err != nil {
			return err
		}
		if i, ok := index[recordID]; ok {
			records[i].Sessions = append(records[i].Sessions, s)
		}
	}
	return rows.Err()
}

func (s *PGStore) Update(ctx context.Context, employeeID string, day civil.Date, create bool, fn UpdateFunc) (Record, error) {
	var out Record
	err := querier.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		if create {
			if _, err := tx.Exec(ctx, `
        INSERT INTO attendance_records (id, employee_id, work_date, status)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (employee_id, work_date) DO NOTHING
      `, uuid.NewString(), employeeID, day.In(time.UTC), StatusPresent); err != nil {
				return fmt.Errorf("create attendance record: %w", err)
			}
		}
		rec, err := scanRecord(tx.QueryRow(ctx, `
      SELECT `+recordColumns+`
      FROM attendance_records
      WHERE employee_id = $1 AND work_date = $2
      FOR UPDATE
    `, employeeID, day.In(time.UTC)))
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("no attendance record for %s on %s", employeeID, day)
		}
		if err != nil {
			return fmt.Errorf("lock attendance record: %w", err)
		}
		records := []Record{rec}
		if err := loadSessions(ctx, tx, records); err != nil {
			return err
		}
		before := records[0].clone()
		next := records[0]
		if err := fn(&next); err != nil {
			return err
		}
		if err := saveSessions(ctx, tx, next.ID, before.Sessions, next.Sessions); err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
      UPDATE attendance_records
      SET total_work_minutes = $2, status = $3, late = $4, notes = NULLIF($5, ''), updated_at = now()
      WHERE id = $1
      RETURNING updated_at
    `, next.ID, next.TotalWorkMinutes, next.Status, next.Late, next.Notes).Scan(&next.UpdatedAt); err != nil {
			return fmt.Errorf("save attendance record: %w", err)
		}
		out = next
		return nil
	})
	if err != nil {
		return Record{}, err
	}
	return out, nil
}

// saveSessions inserts sessions appended by the update and closes those it
// checked out. Sessions are never removed.
func saveSessions(ctx context.Context, tx pgx.Tx, recordID string, before, after []Session) error {
	for i, sess := range after {
		if i >= len(before) {
			if _, err := tx.Exec(ctx, `
        INSERT INTO attendance_sessions (id, record_id, check_in, check_out)
        VALUES ($1,$2,$3,$4)
      `, sess.ID, recordID, sess.CheckIn, sess.CheckOut); err != nil {
				return fmt.Errorf("insert attendance session: %w", err)
			}
			continue
		}
		if before[i].CheckOut == nil && sess.CheckOut != nil {
			if _, err := tx.Exec(ctx, `
        UPDATE attendance_sessions SET check_out = $2 WHERE id = $1 AND check_out IS NULL
      `, sess.ID, sess.CheckOut); err != nil {
				return fmt.Errorf("close attendance session: %w", err)
			}
		}
	}
	return nil
}

func (s *PGStore) Get(ctx context.Context, employeeID string, day civil.Date) (Record, error) {
	rec, err := scanRecord(s.DB.QueryRow(ctx, `
    SELECT `+recordColumns+`
    FROM attendance_records
    WHERE employee_id = $1 AND work_date = $2
  `, employeeID, day.In(time.UTC)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, apperr.NotFound("no attendance record for %s on %s", employeeID, day)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get attendance record: %w", err)
	}
	records := []Record{rec}
	if err := loadSessions(ctx, s.DB, records); err != nil {
		return Record{}, err
	}
	return records[0], nil
}

func (s *PGStore) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := s.DB.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	out := make([]Record, 0)
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadSessions(ctx, s.DB, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGStore) List(ctx context.Context, employeeID string, from, to civil.Date) ([]Record, error) {
	return s.query(ctx, `
    SELECT `+recordColumns+`
    FROM attendance_records
    WHERE employee_id = $1 AND work_date BETWEEN $2 AND $3
    ORDER BY work_date DESC
  `, employeeID, from.In(time.UTC), to.In(time.UTC))
}

func (s *PGStore) ListRange(ctx context.Context, from, to civil.Date) ([]Record, error) {
	return s.query(ctx, `
    SELECT `+recordColumns+`
    FROM attendance_records
    WHERE work_date BETWEEN $1 AND $2
    ORDER BY work_date DESC, employee_id
  `, from.In(time.UTC), to.In(time.UTC))
}
