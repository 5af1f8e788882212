package google

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/sheets/v4"
)

func TestSheetsValues_Append(t *testing.T) {
	var got sheets.ValueRange
	opts := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, ":append"), r.URL.Path)
		assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
		assert.Equal(t, "INSERT_ROWS", r.URL.Query().Get("insertDataOption"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"updates": map[string]interface{}{"updatedRange": "Ledger!A7:R7"},
		})
	})
	values, err := NewSheetsValues(context.Background(), Config{}, zap.NewNop(), opts...)
	require.NoError(t, err)

	rng, err := values.Append(context.Background(), "sheet-1", "Ledger!A:R", [][]string{{"EXP-1", "pending"}})

	require.NoError(t, err)
	assert.Equal(t, "Ledger!A7:R7", rng)
	require.Len(t, got.Values, 1)
	assert.Equal(t, []interface{}{"EXP-1", "pending"}, got.Values[0])
}

func TestSheetsValues_Get(t *testing.T) {
	opts := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"range":  "Ledger!A2:R3",
			"values": [][]interface{}{{"EXP-1", "3500"}, {"EXP-2"}},
		})
	})
	values, err := NewSheetsValues(context.Background(), Config{}, zap.NewNop(), opts...)
	require.NoError(t, err)

	rows, err := values.Get(context.Background(), "sheet-1", "Ledger!A2:R3")

	require.NoError(t, err)
	assert.Equal(t, [][]string{{"EXP-1", "3500"}, {"EXP-2"}}, rows)
}

func TestSheetsValues_Update(t *testing.T) {
	called := false
	opts := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "USER_ENTERED", r.URL.Query().Get("valueInputOption"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"updatedRows": 1})
	})
	values, err := NewSheetsValues(context.Background(), Config{}, zap.NewNop(), opts...)
	require.NoError(t, err)

	require.NoError(t, values.Update(context.Background(), "sheet-1", "Ledger!A5:R5", [][]string{{"EXP-1"}}))
	assert.True(t, called)
}

func TestSheetsValues_NotFoundIsPermanent(t *testing.T) {
	opts := fakeAPI(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, apiErrorBody(http.StatusNotFound, "Requested entity was not found.", "notFound"))
	})
	values, err := NewSheetsValues(context.Background(), Config{}, zap.NewNop(), opts...)
	require.NoError(t, err)

	_, err = values.Get(context.Background(), "sheet-1", "Ledger!A1:R1")

	require.Error(t, err)
	assert.True(t, port.IsPermanent(err))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"not found", &googleapi.Error{Code: http.StatusNotFound}, true},
		{"bad request", &googleapi.Error{Code: http.StatusBadRequest}, true},
		{"forbidden", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, true},
		{"user rate limit", &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, false},
		{"too many requests", &googleapi.Error{Code: http.StatusTooManyRequests}, false},
		{"server error", &googleapi.Error{Code: http.StatusInternalServerError}, false},
		{"network", errors.New("connection reset"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.permanent, port.IsPermanent(classify(tt.err)))
		})
	}
}
