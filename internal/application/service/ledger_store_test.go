package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
	"github.com/bestat/tatekae-seisan-bot/internal/infrastructure/spreadsheet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testTokyo         = time.FixedZone("JST", 9*60*60)
	testDefaultTarget = entity.SheetTarget{SpreadsheetID: "sheet-main", TabName: "Requests", GID: "0"}
	testHanakoTarget  = entity.SheetTarget{SpreadsheetID: "sheet-hanako", TabName: "Hanako"}
)

func newTestLedger(t *testing.T) (*ledgerStoreImpl, *spreadsheet.MemoryValues) {
	t.Helper()
	values := spreadsheet.NewMemoryValues()
	values.AddTab(testDefaultTarget.SpreadsheetID, testDefaultTarget.TabName, LedgerHeader)
	values.AddTab(testHanakoTarget.SpreadsheetID, testHanakoTarget.TabName, LedgerHeader)

	store := NewLedgerStore(values, LedgerConfig{
		Targets: SheetTargets{
			Default: testDefaultTarget,
			PerUser: map[string]entity.SheetTarget{"ou_hanako": testHanakoTarget},
		},
		DefaultCurrency: "JPY",
		Location:        testTokyo,
		Remote:          RemotePolicy{Timeout: time.Second, ReadAttempts: 1},
	}, nil).(*ledgerStoreImpl)
	store.now = func() time.Time { return time.Date(2025, 9, 12, 1, 0, 0, 0, time.UTC) }
	return store, values
}

func newTestRecord(requestID, threadID string) *entity.RequestRecord {
	return &entity.RequestRecord{
		RequestID:     requestID,
		ThreadID:      threadID,
		ChannelID:     "oc_finance",
		ApplicantID:   "ou_taro",
		ApplicantName: "Taro",
		Title:         "Lunch",
		Amount:        decimal.NewFromInt(3500),
		Currency:      "JPY",
		UsageDate:     "2025-09-12",
	}
}

func TestLedgerStore_AppendThenFindByRequestID(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestLedger(t)

	appended, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-20250912-AAAA", "om_1"))
	require.NoError(t, err)
	assert.Equal(t, 2, appended.RowNumber)
	assert.Equal(t, workflow.StatePending, appended.Status)
	assert.Equal(t, "2025-09-12T10:00:00+09:00", appended.CreatedAt)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-main/edit#gid=0&range=A2", appended.RowLink)

	second, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-20250912-BBBB", "om_2"))
	require.NoError(t, err)
	assert.Equal(t, 3, second.RowNumber)

	found, err := store.FindByRequestID(ctx, "EXP-20250912-AAAA")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(3500).Equal(found.Amount))
	assert.Equal(t, "JPY", found.Currency)
	assert.Equal(t, "ou_taro", found.ApplicantID)
	assert.Equal(t, "om_1", found.ThreadID)
	assert.Equal(t, 2, found.RowNumber)
}

func TestLedgerStore_FindMissing(t *testing.T) {
	store, _ := newTestLedger(t)

	_, err := store.FindByRequestID(context.Background(), "EXP-NOPE")
	assert.ErrorIs(t, err, ErrRequestNotFound)

	_, err = store.FindByThread(context.Background(), "")
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestLedgerStore_FindByThreadScansPerUserTargets(t *testing.T) {
	ctx := context.Background()
	store, values := newTestLedger(t)

	// written by another process, so the index has never seen it
	_, err := values.Append(ctx, testHanakoTarget.SpreadsheetID, "Hanako!A1:R1", [][]string{
		EncodeRow(Row{RequestID: "EXP-H", ThreadID: "om_h", ApplicantID: "ou_hanako", Amount: "800", Status: "received"}),
	})
	require.NoError(t, err)

	found, err := store.FindByThread(ctx, "om_h")
	require.NoError(t, err)
	assert.Equal(t, "EXP-H", found.RequestID)
	assert.Equal(t, testHanakoTarget.SpreadsheetID, found.SpreadsheetID)
	assert.Equal(t, workflow.StateReceived, found.Status)
	assert.Equal(t, 2, found.RowNumber)
}

type unparsableRangeValues struct {
	*spreadsheet.MemoryValues
}

func (u unparsableRangeValues) Append(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) (string, error) {
	if _, err := u.MemoryValues.Append(ctx, spreadsheetID, a1Range, rows); err != nil {
		return "", err
	}
	return "garbled", nil
}

func TestLedgerStore_AppendWithUnparsableRange(t *testing.T) {
	store, values := newTestLedger(t)
	store.values = unparsableRangeValues{values}

	rec, err := store.Append(context.Background(), testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)
	assert.Zero(t, rec.RowNumber)
	assert.False(t, rec.HasRow())
	assert.Empty(t, rec.RowLink)

	err = store.Update(context.Background(), testDefaultTarget, rec.RowNumber, entity.StatusPatch(workflow.StateApproved))
	assert.ErrorIs(t, err, ErrUnknownRow)
}

func TestLedgerStore_UpdateAppliesOnlyPresentColumns(t *testing.T) {
	ctx := context.Background()
	store, values := newTestLedger(t)

	rec, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)

	// a row link written by hand must survive updates
	require.NoError(t, values.Update(ctx, testDefaultTarget.SpreadsheetID, "Requests!P2:P2", [][]string{{"https://custom/link"}}))

	patch := entity.ArchivePatch("folder-1", "receipt.png", "https://drive/view", "file-1", workflow.StateReceived)
	patch.UpdatedAt = "2025-09-13T09:00:00+09:00"
	require.NoError(t, store.Update(ctx, testDefaultTarget, rec.RowNumber, patch))

	rows, err := values.Get(ctx, testDefaultTarget.SpreadsheetID, "Requests!A2:R2")
	require.NoError(t, err)
	row := DecodeRow(rows[0])
	assert.Equal(t, "EXP-1", row.RequestID)
	assert.Equal(t, "3500", row.Amount)
	assert.Equal(t, "folder-1", row.FolderID)
	assert.Equal(t, "receipt.png", row.FileName)
	assert.Equal(t, "file-1", row.FileID)
	assert.Equal(t, "received", row.Status)
	assert.Equal(t, "https://custom/link", row.RowLink)
	assert.Equal(t, "2025-09-13T09:00:00+09:00", row.UpdatedAt)
	assert.Equal(t, rec.CreatedAt, row.CreatedAt)
}

func TestLedgerStore_UpdateFillsEmptyRowLinkAndTimestamp(t *testing.T) {
	ctx := context.Background()
	store, values := newTestLedger(t)

	_, err := values.Append(ctx, testDefaultTarget.SpreadsheetID, "Requests!A1:R1", [][]string{{"EXP-9", "om_9"}})
	require.NoError(t, err)

	require.NoError(t, store.Update(ctx, testDefaultTarget, 2, entity.StatusPatch(workflow.StateApproved)))

	found, err := store.FindByRequestID(ctx, "EXP-9")
	require.NoError(t, err)
	assert.Equal(t, workflow.StateApproved, found.Status)
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-main/edit#gid=0&range=A2", found.RowLink)
	assert.Equal(t, "2025-09-12T10:00:00+09:00", found.UpdatedAt)
}

func TestLedgerStore_UpdateEmptyRow(t *testing.T) {
	store, _ := newTestLedger(t)

	err := store.Update(context.Background(), testDefaultTarget, 40, entity.StatusPatch(workflow.StateApproved))
	assert.ErrorIs(t, err, ErrRowNotFound)
}

func TestLedgerStore_StaleIndexFallsBackToScan(t *testing.T) {
	ctx := context.Background()
	store, values := newTestLedger(t)

	_, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)
	_, err = store.Append(ctx, testDefaultTarget, newTestRecord("EXP-2", "om_2"))
	require.NoError(t, err)

	// rows swapped out of band
	require.NoError(t, values.Update(ctx, testDefaultTarget.SpreadsheetID, "Requests!A2:B3", [][]string{{"EXP-2", "om_2"}, {"EXP-1", "om_1"}}))

	found, err := store.FindByRequestID(ctx, "EXP-1")
	require.NoError(t, err)
	assert.Equal(t, 3, found.RowNumber)

	loc, ok := store.index.lookup(keyRequestID, "EXP-1")
	require.True(t, ok)
	assert.Equal(t, 3, loc.row)
}

func TestLedgerStore_ConcurrentUpdatesKeepAllColumns(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestLedger(t)

	rec, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)

	remarks := "late receipt"
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Update(ctx, testDefaultTarget, rec.RowNumber,
			entity.ArchivePatch("folder-1", "r.png", "link", "file-1", workflow.StateReceived)))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, store.Update(ctx, testDefaultTarget, rec.RowNumber, entity.RecordPatch{Remarks: &remarks}))
	}()
	wg.Wait()

	found, err := store.FindByRequestID(ctx, "EXP-1")
	require.NoError(t, err)
	assert.Equal(t, "file-1", found.FileID)
	assert.Equal(t, "late receipt", found.Remarks)
	assert.Zero(t, store.locks.size())
}

func TestLedgerStore_Reindex(t *testing.T) {
	ctx := context.Background()
	store, values := newTestLedger(t)

	_, err := values.Append(ctx, testDefaultTarget.SpreadsheetID, "Requests!A1:R1", [][]string{{"EXP-1", "om_1"}, {"EXP-2", "om_2"}})
	require.NoError(t, err)
	_, err = values.Append(ctx, testHanakoTarget.SpreadsheetID, "Hanako!A1:R1", [][]string{{"EXP-3", "om_3"}})
	require.NoError(t, err)

	n, err := store.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loc, ok := store.index.lookup(keyThreadID, "om_3")
	require.True(t, ok)
	assert.Equal(t, testHanakoTarget, loc.target)
}

func TestLedgerStore_ReindexReportsTargetErrors(t *testing.T) {
	store, _ := newTestLedger(t)
	store.cfg.Targets.PerUser["ou_ghost"] = entity.SheetTarget{SpreadsheetID: "missing", TabName: "Nope"}

	_, err := store.Reindex(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRequestNotFound))
}

func TestLedgerStore_MutateSeesStoredState(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestLedger(t)

	rec, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)
	require.NoError(t, store.Update(ctx, testDefaultTarget, rec.RowNumber, entity.StatusPatch(workflow.StateApproved)))

	var seen workflow.State
	updated, err := store.Mutate(ctx, testDefaultTarget, rec.RowNumber, func(current *entity.RequestRecord) (entity.RecordPatch, error) {
		seen = current.Status
		return entity.ArchivePatch("folder-1", "r.png", "https://drive/view", "file-1", current.Status), nil
	})
	require.NoError(t, err)
	assert.Equal(t, workflow.StateApproved, seen)
	assert.Equal(t, workflow.StateApproved, updated.Status)
	assert.Equal(t, "file-1", updated.FileID)
	assert.Equal(t, rec.RowNumber, updated.RowNumber)
}

func TestLedgerStore_MutateAbortDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestLedger(t)

	rec, err := store.Append(ctx, testDefaultTarget, newTestRecord("EXP-1", "om_1"))
	require.NoError(t, err)

	abort := errors.New("closed")
	_, err = store.Mutate(ctx, testDefaultTarget, rec.RowNumber, func(current *entity.RequestRecord) (entity.RecordPatch, error) {
		return entity.RecordPatch{}, abort
	})
	assert.ErrorIs(t, err, abort)

	found, err := store.FindByRequestID(ctx, "EXP-1")
	require.NoError(t, err)
	assert.Equal(t, rec.UpdatedAt, found.UpdatedAt)
	assert.Equal(t, workflow.StatePending, found.Status)
}
