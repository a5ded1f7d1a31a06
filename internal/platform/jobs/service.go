package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hrdesk/internal/platform/querier"
)

const (
	JobPolicyApply    = "policy_apply"
	JobPolicyRollover = "policy_rollover"

	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID          string          `json:"id"`
	JobType     string          `json:"jobType"`
	Status      string          `json:"status"`
	Details     json.RawMessage `json:"details,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
}

// RunStore persists job_runs rows.
type RunStore interface {
	Start(ctx context.Context, jobType string) (string, error)
	Finish(ctx context.Context, id, status string, details []byte) error
}

// Service wraps synchronous batch work so every run leaves a job_runs row
// with its JSON tally. Bookkeeping failures are logged and never change the
// outcome of the run itself.
type Service struct {
	Runs   RunStore
	Logger *zap.Logger
}

func New(runs RunStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{Runs: runs, Logger: logger}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	runID, err := s.Runs.Start(ctx, jobType)
	if err != nil {
		s.Logger.Warn("job run insert failed", zap.String("job_type", jobType), zap.Error(err))
	}

	details, err := run(ctx)
	status := StatusCompleted
	if err != nil {
		status = StatusFailed
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		s.Logger.Warn("job details marshal failed", zap.Error(marshalErr))
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if updErr := s.Runs.Finish(ctx, runID, status, detailsJSON); updErr != nil {
			s.Logger.Warn("job run update failed", zap.String("run_id", runID), zap.Error(updErr))
		}
	}
	s.Logger.Info("job run finished",
		zap.String("job_type", jobType),
		zap.String("run_id", runID),
		zap.String("status", status),
	)
	return details, err
}

type PGStore struct {
	DB querier.Querier
}

func NewPGStore(db querier.Querier) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) Start(ctx context.Context, jobType string) (string, error) {
	id := uuid.NewString()
	_, err := s.DB.Exec(ctx, `
    INSERT INTO job_runs (id, job_type, status)
    VALUES ($1,$2,$3)
  `, id, jobType, StatusRunning)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) Finish(ctx context.Context, id, status string, details []byte) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, details, id)
	return err
}

type MemoryStore struct {
	mu   sync.Mutex
	runs []Run
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Start(_ context.Context, jobType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.NewString()
	m.runs = append(m.runs, Run{ID: id, JobType: jobType, Status: StatusRunning, StartedAt: time.Now().UTC()})
	return id, nil
}

func (m *MemoryStore) Finish(_ context.Context, id, status string, details []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == id {
			now := time.Now().UTC()
			m.runs[i].Status = status
			m.runs[i].Details = append(json.RawMessage(nil), details...)
			m.runs[i].CompletedAt = &now
			return nil
		}
	}
	return nil
}

// Runs returns a copy of the recorded runs, oldest first.
func (m *MemoryStore) Runs() []Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Run(nil), m.runs...)
}
