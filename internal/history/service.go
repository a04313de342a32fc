package history

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for call history.
//
// It MUST be append-only. No Update/Delete methods are provided.

type Repository interface {
	Append(ctx context.Context, rec Record) error
	ListByExecutor(ctx context.Context, executorID string, limit int) ([]Record, error)
}

// Service archives finished call sessions.
//
// Callers treat archiving as best-effort: a storage failure never blocks
// call completion.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidRecord = errors.New("history: invalid record")

func (s *Service) Archive(ctx context.Context, rec Record) error {
	if s.repo == nil {
		return errors.New("history: repository not configured")
	}
	if rec.SessionID == "" || rec.ExecutorID == "" {
		return ErrInvalidRecord
	}
	if rec.Result == "" {
		return ErrInvalidRecord
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, rec)
}

func (s *Service) ListByExecutor(ctx context.Context, executorID string, limit int) ([]Record, error) {
	if s.repo == nil {
		return nil, errors.New("history: repository not configured")
	}
	return s.repo.ListByExecutor(ctx, executorID, limit)
}
