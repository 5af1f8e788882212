package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lunchMeta() ReceiptMeta {
	return ReceiptMeta{
		RequestID:        "EXP-20250912-AB12",
		UsageDate:        time.Date(2025, 9, 12, 0, 0, 0, 0, time.UTC),
		ApplicantName:    "Taro",
		Amount:           decimal.NewFromInt(3500),
		Currency:         "JPY",
		Summary:          "Lunch",
		OriginalFilename: "receipt",
	}
}

func TestBuildReceiptFileName(t *testing.T) {
	assert.Equal(t, "20250912_Taro_3,500JPY_Lunch.png", BuildReceiptFileName(lunchMeta(), "image/png", 20))

	meta := lunchMeta()
	meta.OriginalFilename = "IMG_0001.HEIC"
	assert.Equal(t, "20250912_Taro_3,500JPY_Lunch.HEIC", BuildReceiptFileName(meta, "image/heic", 20))

	meta = lunchMeta()
	meta.Amount = decimal.RequireFromString("1234567.5")
	meta.Summary = "!!!"
	assert.Equal(t, "20250912_Taro_1,234,567.5JPY_expense.png", BuildReceiptFileName(meta, "image/png", 20))
}

func TestSanitizeSummary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "Lunch", 20, "Lunch"},
		{"strips symbols", "Lunch @ Cafe/Bar!", 20, "Lunch  CafeBar"},
		{"keeps japanese", "クライアント打合せランチ", 20, "クライアント打合せランチ"},
		{"truncates runes", "とても長い経費の説明文がここに入ります", 5, "とても長い"},
		{"empty falls back", "", 20, "expense"},
		{"only symbols", "★☆", 20, "expense"},
		{"keeps underscore and hyphen", "taxi_to-airport", 20, "taxi_to-airport"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeSummary(tt.in, tt.max))
		})
	}
}

func TestResolveExtension(t *testing.T) {
	assert.Equal(t, ".pdf", ResolveExtension("invoice.pdf", "image/png"))
	assert.Equal(t, ".jpg", ResolveExtension("", "image/jpeg"))
	assert.Equal(t, ".png", ResolveExtension("receipt", "image/png"))
	assert.Equal(t, ".gif", ResolveExtension("receipt.", "image/gif"))
	assert.Equal(t, ".heic", ResolveExtension("", "image/heic"))
	assert.Equal(t, ".pdf", ResolveExtension("", "application/pdf"))
	assert.Equal(t, "", ResolveExtension("", "application/octet-stream"))
}

func TestReceiptArchiver_UploadUsesUsageDateFolder(t *testing.T) {
	store := newMemoryFileStore()
	archiver := NewReceiptArchiver(store, NewFolderProvisioner(store, testRemote, nil),
		ArchiverConfig{RootFolderID: "root"}, testRemote, nil)

	got, err := archiver.Upload(context.Background(), []byte("png"), "image/png", lunchMeta())
	require.NoError(t, err)

	assert.Equal(t, "20250912_Taro_3,500JPY_Lunch.png", got.Name)
	assert.Equal(t, "root/2025/09", got.FolderID)
	assert.Equal(t, "root/2025/09/20250912_Taro_3,500JPY_Lunch.png", got.FileID)
	assert.Empty(t, store.grants, "no sharing domain configured")
}

type namelessFileStore struct {
	*memoryFileStore
}

func (n namelessFileStore) CreateFile(ctx context.Context, upload port.FileUpload) (*entity.ArchivedFile, error) {
	f, err := n.memoryFileStore.CreateFile(ctx, upload)
	if err != nil {
		return nil, err
	}
	f.Name = ""
	return f, nil
}

func TestReceiptArchiver_FallsBackToComputedName(t *testing.T) {
	store := namelessFileStore{newMemoryFileStore()}
	archiver := NewReceiptArchiver(store, NewFolderProvisioner(store, testRemote, nil),
		ArchiverConfig{RootFolderID: "root"}, testRemote, nil)

	got, err := archiver.Upload(context.Background(), []byte("png"), "image/png", lunchMeta())
	require.NoError(t, err)
	assert.Equal(t, "20250912_Taro_3,500JPY_Lunch.png", got.Name)
}

func TestReceiptArchiver_DomainSharing(t *testing.T) {
	tests := []struct {
		name     string
		grantErr error
		wantErr  bool
	}{
		{"granted", nil, false},
		{"already shared", &port.PermissionConflictError{Kind: port.ConflictAlreadyShared, Err: errors.New("alreadyShared")}, false},
		{"duplicate", &port.PermissionConflictError{Kind: port.ConflictDuplicate, Err: errors.New("duplicate")}, false},
		{"inherited", &port.PermissionConflictError{Kind: port.ConflictCannotChangeInherited, Err: errors.New("inherited")}, false},
		{"forbidden", errors.New("insufficientFilePermissions"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemoryFileStore()
			store.grantErr = tt.grantErr
			archiver := NewReceiptArchiver(store, NewFolderProvisioner(store, testRemote, nil),
				ArchiverConfig{RootFolderID: "root", SharingDomain: "example.co.jp"}, testRemote, nil)

			got, err := archiver.Upload(context.Background(), []byte("png"), "image/png", lunchMeta())
			require.Len(t, store.grants, 1)
			assert.True(t, strings.HasSuffix(store.grants[0], "@example.co.jp"))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.FileID)
		})
	}
}
