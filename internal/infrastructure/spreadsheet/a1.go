package spreadsheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidRange is returned for A1 references this package cannot address
var ErrInvalidRange = errors.New("invalid A1 range")

// A1 is a parsed range such as "Sheet1!A2:R2" or "'My Tab'!A:R".
// Columns and rows are 1-based; a zero row means the range is open-ended.
type A1 struct {
	Tab      string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

// ParseA1 parses a tab-qualified A1 range
func ParseA1(rng string) (A1, error) {
	idx := strings.LastIndex(rng, "!")
	if idx <= 0 {
		return A1{}, fmt.Errorf("%w: %q has no tab", ErrInvalidRange, rng)
	}
	tab := unquoteTab(rng[:idx])
	ref := rng[idx+1:]

	startRef, endRef, hasEnd := strings.Cut(ref, ":")
	startCol, startRow, err := parseCell(startRef)
	if err != nil {
		return A1{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, rng, err)
	}
	endCol, endRow := startCol, startRow
	if hasEnd {
		endCol, endRow, err = parseCell(endRef)
		if err != nil {
			return A1{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, rng, err)
		}
	}
	if endCol < startCol || (endRow != 0 && endRow < startRow) {
		return A1{}, fmt.Errorf("%w: %q is reversed", ErrInvalidRange, rng)
	}
	return A1{Tab: tab, StartCol: startCol, StartRow: startRow, EndCol: endCol, EndRow: endRow}, nil
}

// String formats the range back into A1 notation
func (a A1) String() string {
	start := ColumnName(a.StartCol)
	end := ColumnName(a.EndCol)
	if a.StartRow > 0 {
		start += strconv.Itoa(a.StartRow)
	}
	if a.EndRow > 0 {
		end += strconv.Itoa(a.EndRow)
	}
	return quoteTab(a.Tab) + "!" + start + ":" + end
}

// Width is the number of columns covered
func (a A1) Width() int {
	return a.EndCol - a.StartCol + 1
}

func parseCell(ref string) (col, row int, err error) {
	i := 0
	for i < len(ref) && ref[i] >= 'A' && ref[i] <= 'Z' {
		col = col*26 + int(ref[i]-'A'+1)
		i++
	}
	if i == 0 {
		return 0, 0, fmt.Errorf("missing column in %q", ref)
	}
	if i == len(ref) {
		return col, 0, nil
	}
	row, err = strconv.Atoi(ref[i:])
	if err != nil || row <= 0 {
		return 0, 0, fmt.Errorf("bad row in %q", ref)
	}
	return col, row, nil
}

// ColumnName converts a 1-based column index into letters (1 -> A, 27 -> AA)
func ColumnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}

func unquoteTab(tab string) string {
	if len(tab) >= 2 && strings.HasPrefix(tab, "'") && strings.HasSuffix(tab, "'") {
		return strings.ReplaceAll(tab[1:len(tab)-1], "''", "'")
	}
	return tab
}

func quoteTab(tab string) string {
	for _, r := range tab {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
		}
	}
	return tab
}
