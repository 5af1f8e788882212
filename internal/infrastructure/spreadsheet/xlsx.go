package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// XLSXValues stores each spreadsheet as {dir}/{spreadsheetID}.xlsx. It gives
// a local ledger the same A1 contract as the Sheets API.
type XLSXValues struct {
	dir    string
	mu     sync.Mutex
	logger *zap.Logger
}

var _ port.SheetValues = (*XLSXValues)(nil)

// NewXLSXValues creates the backend, creating dir if needed
func NewXLSXValues(dir string, logger *zap.Logger) (*XLSXValues, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &XLSXValues{dir: dir, logger: logger}, nil
}

// EnsureTab creates the workbook and tab if missing and writes the header
// row into an empty tab
func (x *XLSXValues) EnsureTab(spreadsheetID, tab string, header []string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open(spreadsheetID, true)
	if err != nil {
		return err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(tab)
	if err != nil {
		return fmt.Errorf("failed to look up tab %q: %w", tab, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(tab); err != nil {
			return fmt.Errorf("failed to create tab %q: %w", tab, err)
		}
	}

	rows, err := f.GetRows(tab)
	if err != nil {
		return fmt.Errorf("failed to read tab %q: %w", tab, err)
	}
	if len(trimRows(rows)) == 0 {
		if err := f.SetSheetRow(tab, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		x.logger.Info("Initialized ledger tab",
			zap.String("spreadsheet_id", spreadsheetID),
			zap.String("tab", tab))
	}
	return x.save(f, spreadsheetID)
}

func (x *XLSXValues) Append(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) (string, error) {
	var written A1
	err := x.modify(spreadsheetID, a1Range, func(f *excelize.File, a A1, grid [][]string) error {
		_, written = appendRows(grid, a, rows)
		return writeRows(f, a.Tab, written.StartCol, written.StartRow, rows)
	})
	if err != nil {
		return "", err
	}
	return written.String(), nil
}

func (x *XLSXValues) Get(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	a, err := ParseA1(a1Range)
	if err != nil {
		return nil, port.Permanent(err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open(spreadsheetID, false)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	grid, err := f.GetRows(a.Tab)
	if err != nil {
		return nil, port.Permanent(fmt.Errorf("failed to read tab %q: %w", a.Tab, err))
	}
	return readRange(grid, a), nil
}

func (x *XLSXValues) Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) error {
	return x.modify(spreadsheetID, a1Range, func(f *excelize.File, a A1, grid [][]string) error {
		startRow := a.StartRow
		if startRow == 0 {
			startRow = 1
		}
		return writeRows(f, a.Tab, a.StartCol, startRow, rows)
	})
}

func (x *XLSXValues) modify(spreadsheetID, a1Range string, fn func(f *excelize.File, a A1, grid [][]string) error) error {
	a, err := ParseA1(a1Range)
	if err != nil {
		return port.Permanent(err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	f, err := x.open(spreadsheetID, false)
	if err != nil {
		return err
	}
	defer f.Close()

	grid, err := f.GetRows(a.Tab)
	if err != nil {
		return port.Permanent(fmt.Errorf("failed to read tab %q: %w", a.Tab, err))
	}
	if err := fn(f, a, grid); err != nil {
		return err
	}
	return x.save(f, spreadsheetID)
}

func writeRows(f *excelize.File, tab string, startCol, startRow int, rows [][]string) error {
	for i, row := range rows {
		cells := append([]string(nil), row...)
		cell := fmt.Sprintf("%s%d", ColumnName(startCol), startRow+i)
		if err := f.SetSheetRow(tab, cell, &cells); err != nil {
			return fmt.Errorf("failed to write %s!%s: %w", tab, cell, err)
		}
	}
	return nil
}

func (x *XLSXValues) open(spreadsheetID string, create bool) (*excelize.File, error) {
	path := x.path(spreadsheetID)
	f, err := excelize.OpenFile(path)
	if err == nil {
		return f, nil
	}
	if create && errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, port.Permanent(fmt.Errorf("spreadsheet %s does not exist", spreadsheetID))
	}
	return nil, fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
}

func (x *XLSXValues) save(f *excelize.File, spreadsheetID string) error {
	if err := f.SaveAs(x.path(spreadsheetID)); err != nil {
		return fmt.Errorf("failed to save spreadsheet %s: %w", spreadsheetID, err)
	}
	return nil
}

func (x *XLSXValues) path(spreadsheetID string) string {
	return filepath.Join(x.dir, filepath.Base(spreadsheetID)+".xlsx")
}
