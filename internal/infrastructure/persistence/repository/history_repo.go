package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"go.uber.org/zap"
)

// HistoryRepository implements port.HistoryRepository
type HistoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *sql.DB, logger *zap.Logger) port.HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a history record and sets its ID
func (r *HistoryRepository) Create(ctx context.Context, history *entity.StatusHistory) error {
	query := `
		INSERT INTO status_history (
			request_id, thread_id, actor_id, previous_status, new_status,
			trigger_name, detail, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		history.RequestID,
		history.ThreadID,
		history.ActorID,
		history.PreviousStatus,
		history.NewStatus,
		history.Trigger,
		history.Detail,
		history.Timestamp.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create history record",
			zap.String("request_id", history.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to create history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	history.ID = id
	return nil
}

// ListByRequestID returns the trail of a request, oldest first
func (r *HistoryRepository) ListByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	query := `
		SELECT id, request_id, thread_id, actor_id, previous_status, new_status,
			trigger_name, detail, created_at
		FROM status_history
		WHERE request_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to get history by request ID", zap.String("request_id", requestID), zap.Error(err))
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	defer rows.Close()

	records := []*entity.StatusHistory{}
	for rows.Next() {
		var record entity.StatusHistory
		err := rows.Scan(
			&record.ID,
			&record.RequestID,
			&record.ThreadID,
			&record.ActorID,
			&record.PreviousStatus,
			&record.NewStatus,
			&record.Trigger,
			&record.Detail,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		records = append(records, &record)
	}

	return records, rows.Err()
}

// Verify interface compliance
var _ port.HistoryRepository = (*HistoryRepository)(nil)
