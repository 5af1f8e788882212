package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// ColumnCount is the fixed width of a ledger row (columns A..R)
const ColumnCount = 18

const lastColumn = "R"

// DefaultSheetBaseURL is the prefix of spreadsheet deep links
const DefaultSheetBaseURL = "https://docs.google.com/spreadsheets/d"

// Row is the positional ledger layout with named columns. Column order must
// never change; existing sheets depend on it.
type Row struct {
	RequestID     string // A
	ThreadID      string // B
	ChannelID     string // C
	ApplicantID   string // D
	ApplicantName string // E
	Title         string // F
	Amount        string // G
	Currency      string // H
	UsageDate     string // I
	Remarks       string // J
	FolderID      string // K
	FileName      string // L
	FileLink      string // M
	FileID        string // N
	Status        string // O
	RowLink       string // P
	CreatedAt     string // Q
	UpdatedAt     string // R
}

// LedgerHeader is written to row 1 of tabs this service initializes
var LedgerHeader = []string{
	"request_id", "thread_id", "channel_id", "applicant_id", "applicant_name", "title",
	"amount", "currency", "usage_date", "remarks", "folder_id", "file_name",
	"file_link", "file_id", "status", "row_link", "created_at", "updated_at",
}

// EncodeRow returns exactly ColumnCount cells
func EncodeRow(r Row) []string {
	return []string{
		r.RequestID,
		r.ThreadID,
		r.ChannelID,
		r.ApplicantID,
		r.ApplicantName,
		r.Title,
		r.Amount,
		r.Currency,
		r.UsageDate,
		r.Remarks,
		r.FolderID,
		r.FileName,
		r.FileLink,
		r.FileID,
		r.Status,
		r.RowLink,
		r.CreatedAt,
		r.UpdatedAt,
	}
}

// DecodeRow reads cells positionally. Short rows are padded with empty
// cells; cells past column R are ignored.
func DecodeRow(cells []string) Row {
	padded := make([]string, ColumnCount)
	copy(padded, cells)
	return Row{
		RequestID:     padded[0],
		ThreadID:      padded[1],
		ChannelID:     padded[2],
		ApplicantID:   padded[3],
		ApplicantName: padded[4],
		Title:         padded[5],
		Amount:        padded[6],
		Currency:      padded[7],
		UsageDate:     padded[8],
		Remarks:       padded[9],
		FolderID:      padded[10],
		FileName:      padded[11],
		FileLink:      padded[12],
		FileID:        padded[13],
		Status:        padded[14],
		RowLink:       padded[15],
		CreatedAt:     padded[16],
		UpdatedAt:     padded[17],
	}
}

// IsEmpty reports whether every cell is blank
func (r Row) IsEmpty() bool {
	for _, c := range EncodeRow(r) {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RecordToRow converts a record into its ledger row
func RecordToRow(rec *entity.RequestRecord) Row {
	return Row{
		RequestID:     rec.RequestID,
		ThreadID:      rec.ThreadID,
		ChannelID:     rec.ChannelID,
		ApplicantID:   rec.ApplicantID,
		ApplicantName: rec.ApplicantName,
		Title:         rec.Title,
		Amount:        rec.Amount.String(),
		Currency:      rec.Currency,
		UsageDate:     rec.UsageDate,
		Remarks:       rec.Remarks,
		FolderID:      rec.FolderID,
		FileName:      rec.FileName,
		FileLink:      rec.FileLink,
		FileID:        rec.FileID,
		Status:        rec.Status.String(),
		RowLink:       rec.RowLink,
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
}

// RowCodec converts rows to records, filling defaults for missing cells
type RowCodec struct {
	BaseURL         string
	DefaultCurrency string
}

// RowToRecord builds the record stored at rowNumber of target
func (c RowCodec) RowToRecord(row Row, target entity.SheetTarget, rowNumber int) *entity.RequestRecord {
	currency := row.Currency
	if currency == "" {
		currency = c.DefaultCurrency
	}
	rowLink := row.RowLink
	if rowLink == "" {
		rowLink = BuildRowLink(c.BaseURL, target, rowNumber)
	}
	return &entity.RequestRecord{
		RequestID:     row.RequestID,
		ThreadID:      row.ThreadID,
		ChannelID:     row.ChannelID,
		ApplicantID:   row.ApplicantID,
		ApplicantName: row.ApplicantName,
		Title:         row.Title,
		Amount:        parseStoredAmount(row.Amount),
		Currency:      currency,
		UsageDate:     row.UsageDate,
		Remarks:       row.Remarks,
		FolderID:      row.FolderID,
		FileName:      row.FileName,
		FileLink:      row.FileLink,
		FileID:        row.FileID,
		Status:        workflow.ParseState(row.Status),
		RowLink:       rowLink,
		SpreadsheetID: target.SpreadsheetID,
		TabName:       target.TabName,
		RowNumber:     rowNumber,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}

// parseStoredAmount tolerates the grouping a sheet may apply when displaying numbers
func parseStoredAmount(cell string) decimal.Decimal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(cell), ",", "")
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

var updatedRowPattern = regexp.MustCompile(`!(?:[A-Z]+)(\d+):`)

// ParseRowNumber extracts the first row number of a reported range such as
// "Sheet1!A7:R7". It returns 0 when the range cannot be parsed.
func ParseRowNumber(updatedRange string) int {
	m := updatedRowPattern.FindStringSubmatch(updatedRange)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// BuildRowLink returns a deep link to column A of rowNumber, or "" when the row is unknown
func BuildRowLink(baseURL string, target entity.SheetTarget, rowNumber int) string {
	if rowNumber <= 0 || target.SpreadsheetID == "" {
		return ""
	}
	if baseURL == "" {
		baseURL = DefaultSheetBaseURL
	}
	base := fmt.Sprintf("%s/%s/edit", strings.TrimRight(baseURL, "/"), target.SpreadsheetID)
	if target.GID != "" {
		return fmt.Sprintf("%s#gid=%s&range=A%d", base, target.GID, rowNumber)
	}
	return fmt.Sprintf("%s#range=A%d", base, rowNumber)
}

// A1Range joins a tab name and a cell reference, quoting the tab when needed
func A1Range(tab, ref string) string {
	return quoteTab(tab) + "!" + ref
}

func quoteTab(tab string) string {
	for _, r := range tab {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z') {
			return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
		}
	}
	return tab
}

func appendRange(tab string) string {
	return A1Range(tab, "A1:"+lastColumn+"1")
}

func rowRange(tab string, row int) string {
	return A1Range(tab, fmt.Sprintf("A%d:%s%d", row, lastColumn, row))
}

func fullRange(tab string) string {
	return A1Range(tab, "A:"+lastColumn)
}
