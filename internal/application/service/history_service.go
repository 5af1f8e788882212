package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

// HistoryService keeps a local audit trail of status transitions. The ledger
// remains the system of record; a failed audit write never fails the event.
type HistoryService interface {
	Record(ctx context.Context, history *entity.StatusHistory)
	List(ctx context.Context, requestID string) ([]*entity.StatusHistory, error)
}

type historyServiceImpl struct {
	repo   port.HistoryRepository
	logger Logger
}

// NewHistoryService creates a new HistoryService. A nil repository disables recording.
func NewHistoryService(repo port.HistoryRepository, logger Logger) HistoryService {
	return &historyServiceImpl{repo: repo, logger: loggerOrNop(logger)}
}

func (s *historyServiceImpl) Record(ctx context.Context, history *entity.StatusHistory) {
	if s.repo == nil || history == nil {
		return
	}
	if history.Timestamp.IsZero() {
		history.Timestamp = time.Now()
	}
	if err := s.repo.Create(ctx, history); err != nil {
		s.logger.Error("Failed to record status history",
			"error", err, "request_id", history.RequestID, "new_status", history.NewStatus)
	}
}

func (s *historyServiceImpl) List(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	if s.repo == nil {
		return []*entity.StatusHistory{}, nil
	}
	items, err := s.repo.ListByRequestID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("list history for %s: %w", requestID, err)
	}
	return items, nil
}
