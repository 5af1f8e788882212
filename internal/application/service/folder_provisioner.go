package service

import (
	"context"
	"fmt"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"golang.org/x/sync/singleflight"
)

// FolderProvisioner ensures the root/{yyyy}/{MM} archive hierarchy exists.
//
// Every call looks the folder up again, so a folder trashed or moved by an
// admin is replaced on the next upload. Concurrent calls for the same
// (parent, name) share a single in-flight find-or-create.
type FolderProvisioner interface {
	EnsurePath(ctx context.Context, rootID string, year, month int) (string, error)
	EnsureFolder(ctx context.Context, parentID, name string) (string, error)
}

type folderProvisionerImpl struct {
	store  port.FileStore
	remote RemotePolicy
	flight singleflight.Group
	logger Logger
}

// NewFolderProvisioner creates a new FolderProvisioner
func NewFolderProvisioner(store port.FileStore, remote RemotePolicy, logger Logger) FolderProvisioner {
	return &folderProvisionerImpl{
		store:  store,
		remote: remote,
		logger: loggerOrNop(logger),
	}
}

// EnsurePath creates at most two folders: the year, then the month
func (p *folderProvisionerImpl) EnsurePath(ctx context.Context, rootID string, year, month int) (string, error) {
	yearID, err := p.EnsureFolder(ctx, rootID, fmt.Sprintf("%04d", year))
	if err != nil {
		return "", err
	}
	return p.EnsureFolder(ctx, yearID, fmt.Sprintf("%02d", month))
}

func (p *folderProvisionerImpl) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	v, err, _ := p.flight.Do(parentID+"/"+name, func() (interface{}, error) {
		return p.findOrCreate(ctx, parentID, name)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (p *folderProvisionerImpl) findOrCreate(ctx context.Context, parentID, name string) (string, error) {
	var (
		id    string
		found bool
	)
	err := p.remote.Read(ctx, "find folder", func(ctx context.Context) error {
		var err error
		id, found, err = p.store.FindFolder(ctx, parentID, name)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ensure folder %s under %s: %w", name, parentID, err)
	}
	if found {
		return id, nil
	}

	err = p.remote.Write(ctx, "create folder", func(ctx context.Context) error {
		var err error
		id, err = p.store.CreateFolder(ctx, parentID, name)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("ensure folder %s under %s: %w", name, parentID, err)
	}
	p.logger.Info("Created archive folder", "parent_id", parentID, "name", name, "folder_id", id)
	return id, nil
}
