package spreadsheet

import "strings"

// grid holds the cells of one tab. Row 1 is grid[0].

// appendRows writes rows after the last non-empty row and returns the
// range that was written
func appendRows(grid [][]string, a A1, rows [][]string) ([][]string, A1) {
	grid = trimRows(grid)
	start := len(grid) + 1
	for _, row := range rows {
		grid = append(grid, placeRow(nil, a.StartCol, row))
	}
	written := A1{
		Tab:      a.Tab,
		StartCol: a.StartCol,
		StartRow: start,
		EndCol:   a.StartCol + maxWidth(rows) - 1,
		EndRow:   start + len(rows) - 1,
	}
	if written.EndCol < written.StartCol {
		written.EndCol = written.StartCol
	}
	return grid, written
}

// readRange returns the addressed cells with trailing empty cells and rows
// removed, the way the Sheets API reports values
func readRange(grid [][]string, a A1) [][]string {
	startRow := a.StartRow
	if startRow == 0 {
		startRow = 1
	}
	endRow := a.EndRow
	if endRow == 0 || endRow > len(grid) {
		endRow = len(grid)
	}

	var out [][]string
	for r := startRow; r <= endRow; r++ {
		src := grid[r-1]
		var row []string
		for c := a.StartCol; c <= a.EndCol && c <= len(src); c++ {
			row = append(row, src[c-1])
		}
		out = append(out, trimCells(row))
	}
	return trimRows(out)
}

// updateRange overwrites cells starting at the range's top-left corner
func updateRange(grid [][]string, a A1, rows [][]string) [][]string {
	startRow := a.StartRow
	if startRow == 0 {
		startRow = 1
	}
	for i, row := range rows {
		r := startRow + i
		for len(grid) < r {
			grid = append(grid, nil)
		}
		grid[r-1] = placeRow(grid[r-1], a.StartCol, row)
	}
	return grid
}

func placeRow(dst []string, startCol int, cells []string) []string {
	need := startCol - 1 + len(cells)
	for len(dst) < need {
		dst = append(dst, "")
	}
	copy(dst[startCol-1:], cells)
	return dst
}

func trimCells(row []string) []string {
	end := len(row)
	for end > 0 && strings.TrimSpace(row[end-1]) == "" {
		end--
	}
	return row[:end]
}

func trimRows(rows [][]string) [][]string {
	end := len(rows)
	for end > 0 && len(trimCells(rows[end-1])) == 0 {
		end--
	}
	return rows[:end]
}

func maxWidth(rows [][]string) int {
	w := 0
	for _, r := range rows {
		if len(r) > w {
			w = len(r)
		}
	}
	return w
}
