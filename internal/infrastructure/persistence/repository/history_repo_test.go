package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "history.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunEmbedded())
	return db
}

func TestHistoryRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	repo := NewHistoryRepository(newTestDB(t).DB, zap.NewNop())

	base := time.Date(2025, 9, 12, 1, 0, 0, 0, time.UTC)
	entries := []*entity.StatusHistory{
		{RequestID: "EXP-1", ThreadID: "om_1", ActorID: "ou_taro", NewStatus: "pending", Trigger: "SUBMIT", Timestamp: base},
		{RequestID: "EXP-2", ThreadID: "om_2", ActorID: "ou_hanako", NewStatus: "pending", Trigger: "SUBMIT", Timestamp: base},
		{RequestID: "EXP-1", ThreadID: "om_1", ActorID: "ou_acc", PreviousStatus: "pending", NewStatus: "approved",
			Trigger: "APPROVE", Detail: "DONE", Timestamp: base.Add(time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, repo.Create(ctx, e))
		assert.NotZero(t, e.ID)
	}

	got, err := repo.ListByRequestID(ctx, "EXP-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "pending", got[0].NewStatus)
	assert.Equal(t, "approved", got[1].NewStatus)
	assert.Equal(t, "pending", got[1].PreviousStatus)
	assert.Equal(t, "DONE", got[1].Detail)
	assert.True(t, got[1].Timestamp.Equal(base.Add(time.Minute)))
}

func TestHistoryRepository_ListUnknownRequest(t *testing.T) {
	repo := NewHistoryRepository(newTestDB(t).DB, zap.NewNop())

	got, err := repo.ListByRequestID(context.Background(), "EXP-404")
	require.NoError(t, err)
	assert.Empty(t, got)
}
