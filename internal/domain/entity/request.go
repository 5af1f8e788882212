package entity

import (
	"github.com/bestat/tatekae-seisan-bot/internal/domain/workflow"
	"github.com/shopspring/decimal"
)

// RequestRecord is one ledger row representing a reimbursement request
type RequestRecord struct {
	RequestID     string          `json:"request_id"`
	ThreadID      string          `json:"thread_id"`
	ChannelID     string          `json:"channel_id"`
	ApplicantID   string          `json:"applicant_id"`
	ApplicantName string          `json:"applicant_name"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	UsageDate     string          `json:"usage_date"` // YYYY-MM-DD
	Remarks       string          `json:"remarks"`
	FolderID      string          `json:"folder_id"`
	FileName      string          `json:"file_name"`
	FileLink      string          `json:"file_link"`
	FileID        string          `json:"file_id"`
	Status        workflow.State  `json:"status"`
	RowLink       string          `json:"row_link"`
	SpreadsheetID string          `json:"spreadsheet_id"`
	TabName       string          `json:"tab_name"`
	// RowNumber is 1-based; 0 means the store did not report where the row landed
	RowNumber int    `json:"row_number"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// HasReceipt reports whether a receipt has been archived for the request
func (r *RequestRecord) HasReceipt() bool {
	return r.FileID != ""
}

// HasRow reports whether the record's row location is known
func (r *RequestRecord) HasRow() bool {
	return r.RowNumber > 0
}

// SheetTarget identifies a spreadsheet tab. GID is the numeric sub-sheet id used
// only for deep links and may be empty.
type SheetTarget struct {
	SpreadsheetID string `json:"spreadsheet_id" mapstructure:"spreadsheet_id"`
	TabName       string `json:"tab_name" mapstructure:"tab_name"`
	GID           string `json:"gid" mapstructure:"gid"`
}

// IsZero reports whether the target is unset
func (t SheetTarget) IsZero() bool {
	return t.SpreadsheetID == "" && t.TabName == ""
}

// RecordPatch is a column-scoped update. Nil fields are left untouched.
type RecordPatch struct {
	Remarks   *string
	FolderID  *string
	FileName  *string
	FileLink  *string
	FileID    *string
	Status    *workflow.State
	UpdatedAt string
}

// ArchivePatch builds the update applied after a receipt has been archived
func ArchivePatch(folderID, fileName, fileLink, fileID string, status workflow.State) RecordPatch {
	return RecordPatch{
		FolderID: &folderID,
		FileName: &fileName,
		FileLink: &fileLink,
		FileID:   &fileID,
		Status:   &status,
	}
}

// StatusPatch builds an update that only changes the status column
func StatusPatch(status workflow.State) RecordPatch {
	return RecordPatch{Status: &status}
}

// Apply copies the present fields of the patch onto the record
func (p RecordPatch) Apply(r *RequestRecord) {
	if p.Remarks != nil {
		r.Remarks = *p.Remarks
	}
	if p.FolderID != nil {
		r.FolderID = *p.FolderID
	}
	if p.FileName != nil {
		r.FileName = *p.FileName
	}
	if p.FileLink != nil {
		r.FileLink = *p.FileLink
	}
	if p.FileID != nil {
		r.FileID = *p.FileID
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.UpdatedAt != "" {
		r.UpdatedAt = p.UpdatedAt
	}
}
