package service

import (
	"testing"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRowNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Requests!A7:R7", 7},
		{"'経費'!A12:R12", 12},
		{"Requests!AB100:AC100", 100},
		{"Requests!A7", 0},
		{"", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseRowNumber(tt.in))
		})
	}
}

func TestBuildRowLink(t *testing.T) {
	withGID := entity.SheetTarget{SpreadsheetID: "sheet-1", TabName: "Requests", GID: "42"}
	withoutGID := entity.SheetTarget{SpreadsheetID: "sheet-1", TabName: "Requests"}

	assert.Equal(t,
		"https://docs.google.com/spreadsheets/d/sheet-1/edit#gid=42&range=A5",
		BuildRowLink("", withGID, 5))
	assert.Equal(t,
		"https://docs.google.com/spreadsheets/d/sheet-1/edit#range=A5",
		BuildRowLink(DefaultSheetBaseURL+"/", withoutGID, 5))
	assert.Empty(t, BuildRowLink("", withGID, 0))
}

func TestA1Range_QuotesTabsWithSpaces(t *testing.T) {
	assert.Equal(t, "Requests!A1:R1", appendRange("Requests"))
	assert.Equal(t, "'My Tab'!A3:R3", rowRange("My Tab", 3))
	assert.Equal(t, "'O''Brien'!A:R", fullRange("O'Brien"))
}

func TestEncodeRow_HasFixedWidth(t *testing.T) {
	assert.Len(t, EncodeRow(Row{}), ColumnCount)
}

func TestDecodeRow_PadsShortRows(t *testing.T) {
	row := DecodeRow([]string{"EXP-1", "t1"})
	assert.Equal(t, "EXP-1", row.RequestID)
	assert.Equal(t, "t1", row.ThreadID)
	assert.Empty(t, row.UpdatedAt)

	long := make([]string, ColumnCount+3)
	long[17] = "updated"
	long[18] = "ignored"
	assert.Equal(t, "updated", DecodeRow(long).UpdatedAt)
}

func TestRowCodec_RoundTrip(t *testing.T) {
	codec := RowCodec{DefaultCurrency: "JPY"}
	target := entity.SheetTarget{SpreadsheetID: "sheet-1", TabName: "Requests", GID: "7"}

	base := entity.RequestRecord{
		RequestID:     "EXP-20250912-AB12",
		ThreadID:      "om_thread",
		ChannelID:     "oc_channel",
		ApplicantID:   "ou_taro",
		ApplicantName: "Taro",
		Title:         "Lunch",
		Amount:        decimal.NewFromInt(3500),
		Currency:      "JPY",
		UsageDate:     "2025-09-12",
		Status:        workflow.StatePending,
		RowLink:       BuildRowLink("", target, 4),
		SpreadsheetID: "sheet-1",
		TabName:       "Requests",
		RowNumber:     4,
		CreatedAt:     "2025-09-12T10:00:00+09:00",
		UpdatedAt:     "2025-09-12T10:00:00+09:00",
	}

	withReceipt := base
	withReceipt.Remarks = "client meeting"
	withReceipt.FolderID = "folder-09"
	withReceipt.FileName = "20250912_Taro_3,500JPY_Lunch.png"
	withReceipt.FileLink = "https://drive.example/view"
	withReceipt.FileID = "file-1"
	withReceipt.Status = workflow.StateReceived
	withReceipt.Amount = decimal.RequireFromString("1234.5")

	for name, rec := range map[string]entity.RequestRecord{"optional absent": base, "optional present": withReceipt} {
		t.Run(name, func(t *testing.T) {
			in := rec
			got := codec.RowToRecord(DecodeRow(EncodeRow(RecordToRow(&in))), target, in.RowNumber)
			assertRecordEqual(t, &in, got)
		})
	}
}

func TestRowCodec_Defaults(t *testing.T) {
	codec := RowCodec{DefaultCurrency: "JPY"}
	target := entity.SheetTarget{SpreadsheetID: "sheet-1", TabName: "Requests"}

	rec := codec.RowToRecord(DecodeRow([]string{"EXP-1", "t1", "c1", "u1", "Taro", "Lunch", "3,500"}), target, 9)

	assert.Equal(t, workflow.StatePending, rec.Status)
	assert.Equal(t, "JPY", rec.Currency)
	assert.True(t, decimal.NewFromInt(3500).Equal(rec.Amount))
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/sheet-1/edit#range=A9", rec.RowLink)
	assert.False(t, rec.HasReceipt())
}

func TestRowCodec_LegacyStatusLabels(t *testing.T) {
	row := Row{RequestID: "EXP-1", Status: "承認"}
	rec := RowCodec{}.RowToRecord(row, entity.SheetTarget{SpreadsheetID: "s"}, 2)
	assert.Equal(t, workflow.StateApproved, rec.Status)
}

// assertRecordEqual compares amounts numerically; decimal values with the
// same value may differ in their internal representation
func assertRecordEqual(t *testing.T, want, got *entity.RequestRecord) {
	t.Helper()
	require.NotNil(t, got)
	assert.True(t, want.Amount.Equal(got.Amount), "amount: want %s, got %s", want.Amount, got.Amount)
	w, g := *want, *got
	w.Amount, g.Amount = decimal.Zero, decimal.Zero
	assert.Equal(t, w, g)
}
