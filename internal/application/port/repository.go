package port

import (
	"context"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

// HistoryRepository persists the status audit trail of requests
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.StatusHistory) error
	ListByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error)
}
