package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHistoryRepo struct {
	createFunc func(ctx context.Context, history *entity.StatusHistory) error
	created    []*entity.StatusHistory
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.StatusHistory) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, history)
	}
	m.created = append(m.created, history)
	return nil
}

func (m *mockHistoryRepo) ListByRequestID(ctx context.Context, requestID string) ([]*entity.StatusHistory, error) {
	var out []*entity.StatusHistory
	for _, h := range m.created {
		if h.RequestID == requestID {
			out = append(out, h)
		}
	}
	return out, nil
}

func TestHistoryService_RecordAndList(t *testing.T) {
	repo := &mockHistoryRepo{}
	svc := NewHistoryService(repo, nil)

	svc.Record(context.Background(), &entity.StatusHistory{RequestID: "EXP-1", NewStatus: "pending"})
	svc.Record(context.Background(), &entity.StatusHistory{RequestID: "EXP-2", NewStatus: "pending"})

	items, err := svc.List(context.Background(), "EXP-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.False(t, items[0].Timestamp.IsZero())
}

func TestHistoryService_RecordSwallowsErrors(t *testing.T) {
	repo := &mockHistoryRepo{createFunc: func(ctx context.Context, history *entity.StatusHistory) error {
		return errors.New("disk full")
	}}
	svc := NewHistoryService(repo, nil)

	assert.NotPanics(t, func() {
		svc.Record(context.Background(), &entity.StatusHistory{RequestID: "EXP-1"})
	})
}

func TestHistoryService_NilRepository(t *testing.T) {
	svc := NewHistoryService(nil, nil)
	svc.Record(context.Background(), &entity.StatusHistory{RequestID: "EXP-1"})

	items, err := svc.List(context.Background(), "EXP-1")
	require.NoError(t, err)
	assert.Empty(t, items)
}
