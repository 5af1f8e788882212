package google

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

// DriveConfig selects where the archive lives
type DriveConfig struct {
	// SharedDriveID scopes folder lookups to a shared drive
	SharedDriveID string
}

// DriveStore implements port.FileStore with the Drive API
type DriveStore struct {
	svc    *drive.Service
	cfg    DriveConfig
	logger *zap.Logger
}

var _ port.FileStore = (*DriveStore)(nil)

// NewDriveStore creates a Drive client
func NewDriveStore(ctx context.Context, cfg Config, driveCfg DriveConfig, logger *zap.Logger, extra ...option.ClientOption) (*DriveStore, error) {
	svc, err := drive.NewService(ctx, ClientOptions(cfg, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &DriveStore{svc: svc, cfg: driveCfg, logger: logger}, nil
}

func (d *DriveStore) sharedDrive() bool {
	return d.cfg.SharedDriveID != ""
}

// FindFolder returns the first matching folder
func (d *DriveStore) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	call := d.svc.Files.List().
		Q(folderQuery(parentID, name)).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(d.sharedDrive()).
		IncludeItemsFromAllDrives(d.sharedDrive())
	if d.sharedDrive() {
		call = call.DriveId(d.cfg.SharedDriveID).Corpora("drive").Spaces("drive")
	}

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return "", false, fmt.Errorf("find folder %s: %w", name, classify(err))
	}
	if len(resp.Files) == 0 {
		return "", false, nil
	}
	return resp.Files[0].Id, true, nil
}

func (d *DriveStore) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	folder := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
		Parents:  []string{parentID},
	}
	created, err := d.svc.Files.Create(folder).
		Fields("id").
		SupportsAllDrives(d.sharedDrive()).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("create folder %s: %w", name, classify(err))
	}
	return created.Id, nil
}

func (d *DriveStore) CreateFile(ctx context.Context, upload port.FileUpload) (*entity.ArchivedFile, error) {
	meta := &drive.File{
		Name:     upload.Name,
		MimeType: upload.MimeType,
		Parents:  []string{upload.ParentID},
	}
	created, err := d.svc.Files.Create(meta).
		Media(bytes.NewReader(upload.Data)).
		Fields("id, name, webViewLink, webContentLink").
		SupportsAllDrives(d.sharedDrive()).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", upload.Name, classify(err))
	}

	name := created.Name
	if name == "" {
		name = upload.Name
	}
	d.logger.Info("Uploaded file to drive",
		zap.String("file_id", created.Id),
		zap.String("name", name),
		zap.String("folder_id", upload.ParentID))

	return &entity.ArchivedFile{
		FileID:       created.Id,
		Name:         name,
		ViewLink:     created.WebViewLink,
		DownloadLink: created.WebContentLink,
		FolderID:     upload.ParentID,
	}, nil
}

// GrantDomainRead adds an undiscoverable domain reader permission
func (d *DriveStore) GrantDomainRead(ctx context.Context, fileID, domain string) error {
	perm := &drive.Permission{
		Type:               "domain",
		Role:               "reader",
		Domain:             domain,
		AllowFileDiscovery: false,
		ForceSendFields:    []string{"AllowFileDiscovery"},
	}
	_, err := d.svc.Permissions.Create(fileID, perm).
		SupportsAllDrives(d.sharedDrive()).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("grant %s read on %s: %w", domain, fileID, classifyPermission(err))
	}
	return nil
}

func folderQuery(parentID, name string) string {
	return fmt.Sprintf("name = '%s' and mimeType = '%s' and '%s' in parents and trashed = false",
		escapeQuery(name), folderMimeType, escapeQuery(parentID))
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
