package spreadsheet

import (
	"context"
	"fmt"
	"sync"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
)

// MemoryValues is an in-process SheetValues backend. It keeps every
// spreadsheet in memory and is meant for local runs and tests.
type MemoryValues struct {
	mu     sync.Mutex
	sheets map[string]map[string][][]string
}

var _ port.SheetValues = (*MemoryValues)(nil)

// NewMemoryValues creates an empty in-memory backend
func NewMemoryValues() *MemoryValues {
	return &MemoryValues{sheets: make(map[string]map[string][][]string)}
}

// AddTab creates a tab with a header row
func (m *MemoryValues) AddTab(spreadsheetID, tab string, header []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tabs(spreadsheetID)[tab] = [][]string{append([]string(nil), header...)}
}

func (m *MemoryValues) Append(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, grid, err := m.locate(spreadsheetID, a1Range)
	if err != nil {
		return "", err
	}
	grid, written := appendRows(grid, a, rows)
	m.tabs(spreadsheetID)[a.Tab] = grid
	return written.String(), nil
}

func (m *MemoryValues) Get(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, grid, err := m.locate(spreadsheetID, a1Range)
	if err != nil {
		return nil, err
	}
	return copyRows(readRange(grid, a)), nil
}

func (m *MemoryValues) Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, grid, err := m.locate(spreadsheetID, a1Range)
	if err != nil {
		return err
	}
	m.tabs(spreadsheetID)[a.Tab] = updateRange(grid, a, rows)
	return nil
}

// locate must be called with mu held
func (m *MemoryValues) locate(spreadsheetID, a1Range string) (A1, [][]string, error) {
	a, err := ParseA1(a1Range)
	if err != nil {
		return A1{}, nil, port.Permanent(err)
	}
	grid, ok := m.tabs(spreadsheetID)[a.Tab]
	if !ok {
		return A1{}, nil, port.Permanent(fmt.Errorf("spreadsheet %s has no tab %q", spreadsheetID, a.Tab))
	}
	return a, grid, nil
}

func (m *MemoryValues) tabs(spreadsheetID string) map[string][][]string {
	t, ok := m.sheets[spreadsheetID]
	if !ok {
		t = make(map[string][][]string)
		m.sheets[spreadsheetID] = t
	}
	return t
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
