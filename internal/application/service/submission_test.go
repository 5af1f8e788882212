package service

import (
	"testing"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/event"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"3500", "3500", false},
		{"3,500", "3500", false},
		{"¥1,000", "1000", false},
		{"1000円", "1000", false},
		{" 12.5 ", "12.5", false},
		{"0", "", true},
		{"-5", "", true},
		{"5-", "", true},
		{"", "", true},
		{"abc", "", true},
		{"1.2.3", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseUsageDate(t *testing.T) {
	_, err := ParseUsageDate("2025-09-12")
	assert.NoError(t, err)

	for _, raw := range []string{"2025-02-30", "2025/09/12", "20250912", "", "2025-13-01"} {
		_, err := ParseUsageDate(raw)
		assert.Error(t, err, raw)
	}
}

func TestParseStoredUsageDate(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	for _, raw := range []string{"2025-09-03", "2025/09/03", " 2025/09/03 "} {
		got, err := ParseStoredUsageDate(raw, jst)
		require.NoError(t, err, raw)
		assert.Equal(t, time.Date(2025, 9, 3, 0, 0, 0, 0, jst), got)
	}

	_, err := ParseStoredUsageDate("9月3日", jst)
	assert.ErrorIs(t, err, ErrInvalidUsageDate)
	_, err = ParseStoredUsageDate("", nil)
	assert.ErrorIs(t, err, ErrInvalidUsageDate)
}

func TestParseSubmission_Valid(t *testing.T) {
	parsed, err := ParseSubmission(event.Submission{
		Title:     " Lunch ",
		Amount:    "3,500",
		UsageDate: "2025-09-12",
	})
	require.NoError(t, err)
	assert.Equal(t, "Lunch", parsed.Title)
	assert.True(t, decimal.NewFromInt(3500).Equal(parsed.Amount))
	assert.Equal(t, "2025-09-12", parsed.UsageDateString())
	assert.Empty(t, parsed.Remarks)
}

func TestParseSubmission_CollectsEveryFieldError(t *testing.T) {
	_, err := ParseSubmission(event.Submission{Title: "  ", Amount: "-5", UsageDate: "2025-02-30"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Fields, 3)
	assert.Equal(t, "経費内容を入力してください", verr.Fields[BlockTitle])
	assert.Equal(t, "金額は半角の数値で入力してください", verr.Fields[BlockAmount])
	assert.Equal(t, "利用日は YYYY-MM-DD 形式で入力してください", verr.Fields[BlockUsageDate])
	assert.Contains(t, verr.Error(), BlockAmount)
}

func TestParseSubmission_SingleFieldError(t *testing.T) {
	_, err := ParseSubmission(event.Submission{Title: "Taxi", Amount: "0", UsageDate: "2025-09-12"})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, map[string]string{BlockAmount: "金額は半角の数値で入力してください"}, verr.Fields)
}
