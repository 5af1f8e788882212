package port

import (
	"context"
	"errors"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

// SheetValues addresses a spreadsheet by A1 ranges such as "Sheet1!A1:R1".
// Cells are exchanged as strings.
type SheetValues interface {
	// Append inserts rows after the used range and returns the range written
	Append(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) (string, error)
	// Get reads a range. Trailing empty rows and cells may be omitted.
	Get(ctx context.Context, spreadsheetID, a1Range string) ([][]string, error)
	// Update overwrites a range
	Update(ctx context.Context, spreadsheetID, a1Range string, rows [][]string) error
}

// FileUpload is a file to create under a parent folder
type FileUpload struct {
	ParentID string
	Name     string
	MimeType string
	Data     []byte
}

// FileStore defines the file store operations used for receipt archiving
type FileStore interface {
	// FindFolder looks for a non-trashed folder with the exact name directly under parentID
	FindFolder(ctx context.Context, parentID, name string) (id string, found bool, err error)
	CreateFolder(ctx context.Context, parentID, name string) (string, error)
	CreateFile(ctx context.Context, upload FileUpload) (*entity.ArchivedFile, error)
	// GrantDomainRead gives everyone in the domain read access without making the file discoverable
	GrantDomainRead(ctx context.Context, fileID, domain string) error
}

// PermissionConflict enumerates permission failures that mean the desired access already exists
type PermissionConflict string

const (
	ConflictAlreadyShared         PermissionConflict = "alreadyShared"
	ConflictDuplicate             PermissionConflict = "duplicate"
	ConflictLessThanInherited     PermissionConflict = "lessThanInheritedAccess"
	ConflictCannotChangeInherited PermissionConflict = "cannotChangeInheritedAccess"
)

// PermissionConflictError is returned by FileStore.GrantDomainRead when the
// store rejects the grant for one of the enumerated benign conditions
type PermissionConflictError struct {
	Kind PermissionConflict
	Err  error
}

func (e *PermissionConflictError) Error() string {
	return fmt.Sprintf("permission conflict (%s): %v", e.Kind, e.Err)
}

func (e *PermissionConflictError) Unwrap() error {
	return e.Err
}

// IsPermissionConflict reports whether err carries a benign permission conflict
func IsPermissionConflict(err error) bool {
	var pc *PermissionConflictError
	return errors.As(err, &pc)
}

// ErrPermanent marks remote failures that must not be retried (auth, not found, bad request)
var ErrPermanent = errors.New("permanent remote failure")

// Permanent wraps err so that IsPermanent reports true
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsPermanent reports whether err was marked permanent
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}
