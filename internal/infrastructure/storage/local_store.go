package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"go.uber.org/zap"
)

// LocalFileStore implements port.FileStore on the local filesystem. Folder
// and file ids are slash-separated paths relative to baseDir; the empty id
// and "root" both address baseDir itself.
type LocalFileStore struct {
	baseDir string
	logger  *zap.Logger
}

var _ port.FileStore = (*LocalFileStore)(nil)

// NewLocalFileStore creates a new LocalFileStore rooted at baseDir
func NewLocalFileStore(baseDir string, logger *zap.Logger) (*LocalFileStore, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("local file store: empty base directory")
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &LocalFileStore{baseDir: baseDir, logger: logger}, nil
}

// FindFolder reports whether parentID/name exists as a directory
func (s *LocalFileStore) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	id := s.childID(parentID, name)
	fullPath, err := s.resolve(id)
	if err != nil {
		return "", false, err
	}

	info, err := os.Stat(fullPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to stat folder: %w", err)
	}
	if !info.IsDir() {
		return "", false, nil
	}
	return id, true, nil
}

// CreateFolder creates parentID/name; an existing folder is returned as is
func (s *LocalFileStore) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	if SanitizeName(name) == "" {
		return "", port.Permanent(fmt.Errorf("cannot create folder: empty name"))
	}

	id := s.childID(parentID, name)
	fullPath, err := s.resolve(id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(fullPath, 0755); err != nil {
		s.logger.Error("Failed to create folder",
			zap.String("name", name),
			zap.String("folder_path", fullPath),
			zap.Error(err))
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	s.logger.Debug("Created folder",
		zap.String("name", name),
		zap.String("folder_path", fullPath))
	return id, nil
}

// CreateFile writes the upload; a file with the same name is replaced
func (s *LocalFileStore) CreateFile(ctx context.Context, upload port.FileUpload) (*entity.ArchivedFile, error) {
	if SanitizeName(upload.Name) == "" {
		return nil, port.Permanent(fmt.Errorf("cannot create file: empty name"))
	}

	parentPath, err := s.resolve(upload.ParentID)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(parentPath); err != nil || !info.IsDir() {
		return nil, port.Permanent(fmt.Errorf("parent folder %q does not exist", upload.ParentID))
	}

	id := s.childID(upload.ParentID, upload.Name)
	fullPath, err := s.resolve(id)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(fullPath, upload.Data, 0644); err != nil {
		s.logger.Error("Failed to write file",
			zap.String("path", fullPath),
			zap.Error(err))
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("File saved successfully",
		zap.String("path", fullPath),
		zap.Int("size", len(upload.Data)))

	link := "file://" + filepath.ToSlash(fullPath)
	return &entity.ArchivedFile{
		FileID:       id,
		Name:         SanitizeName(upload.Name),
		ViewLink:     link,
		DownloadLink: link,
		FolderID:     upload.ParentID,
	}, nil
}

// GrantDomainRead is a no-op; local files are shared through the filesystem
func (s *LocalFileStore) GrantDomainRead(ctx context.Context, fileID, domain string) error {
	s.logger.Debug("Skipping domain permission for local file",
		zap.String("file_id", fileID),
		zap.String("domain", domain))
	return nil
}

// Path returns the absolute path of an id
func (s *LocalFileStore) Path(id string) (string, error) {
	return s.resolve(id)
}

func (s *LocalFileStore) childID(parentID, name string) string {
	parent := strings.Trim(parentID, "/")
	if parent == "root" {
		parent = ""
	}
	if parent == "" {
		return SanitizeName(name)
	}
	return parent + "/" + SanitizeName(name)
}

// resolve maps an id to a path and checks it stays inside baseDir
func (s *LocalFileStore) resolve(id string) (string, error) {
	if id == "root" {
		id = ""
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(id))

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve base path: %w", err)
	}
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) && absPath != absBase {
		return "", port.Permanent(fmt.Errorf("path escapes base directory: %s", id))
	}
	return absPath, nil
}

// SanitizeName strips path separators and parent references from a single
// path element. Other characters, including Japanese text, are kept.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, "\\", "")
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}
