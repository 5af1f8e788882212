package google

import (
	"context"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	valueInputUserEntered = "USER_ENTERED"
	insertDataInsertRows  = "INSERT_ROWS"
)

// SheetsValues implements port.SheetValues with the Sheets API
type SheetsValues struct {
	svc    *sheets.Service
	logger *zap.Logger
}

var _ port.SheetValues = (*SheetsValues)(nil)

// NewSheetsValues creates a Sheets client. extra options are appended after
// the credential options.
func NewSheetsValues(ctx context.Context, cfg Config, logger *zap.Logger, extra ...option.ClientOption) (*SheetsValues, error) {
	svc, err := sheets.NewService(ctx, ClientOptions(cfg, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &SheetsValues{svc: svc, logger: logger}, nil
}

// Append inserts rows below the table and returns the updated range
func (s *SheetsValues) Append(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) (string, error) {
	resp, err := s.svc.Spreadsheets.Values.Append(spreadsheetID, a1Range, toValueRange(rows)).
		ValueInputOption(valueInputUserEntered).
		InsertDataOption(insertDataInsertRows).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("append %s: %w", a1Range, classify(err))
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return "", fmt.Errorf("append %s: response has no updated range", a1Range)
	}

	s.logger.Debug("Appended rows",
		zap.String("spreadsheet_id", spreadsheetID),
		zap.String("updated_range", resp.Updates.UpdatedRange))
	return resp.Updates.UpdatedRange, nil
}

// Get reads a range as formatted strings
func (s *SheetsValues) Get(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.Get(spreadsheetID, a1Range).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", a1Range, classify(err))
	}
	return fromValues(resp.Values), nil
}

// Update overwrites a range
func (s *SheetsValues) Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) error {
	_, err := s.svc.Spreadsheets.Values.Update(spreadsheetID, a1Range, toValueRange(rows)).
		ValueInputOption(valueInputUserEntered).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", a1Range, classify(err))
	}
	return nil
}

func toValueRange(rows [][]string) *sheets.ValueRange {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, c := range row {
			cells[j] = c
		}
		values[i] = cells
	}
	return &sheets.ValueRange{Values: values}
}

func fromValues(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, c := range row {
			if c != nil {
				cells[j] = fmt.Sprint(c)
			}
		}
		rows[i] = cells
	}
	return rows
}
