package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestStore(t *testing.T) (*LocalFileStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewLocalFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	return store, dir
}

func TestLocalFileStore_FolderLifecycle(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	_, found, err := store.FindFolder(ctx, "root", "2025")
	require.NoError(t, err)
	assert.False(t, found)

	yearID, err := store.CreateFolder(ctx, "root", "2025")
	require.NoError(t, err)
	assert.Equal(t, "2025", yearID)

	monthID, err := store.CreateFolder(ctx, yearID, "09")
	require.NoError(t, err)
	assert.Equal(t, "2025/09", monthID)

	id, found, err := store.FindFolder(ctx, yearID, "09")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, monthID, id)

	info, err := os.Stat(filepath.Join(dir, "2025", "09"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalFileStore_CreateFile(t *testing.T) {
	ctx := context.Background()
	store, dir := newTestStore(t)

	folderID, err := store.CreateFolder(ctx, "", "2025")
	require.NoError(t, err)

	file, err := store.CreateFile(ctx, port.FileUpload{
		ParentID: folderID,
		Name:     "20250912_Taro_3,500JPY_Lunch.png",
		MimeType: "image/png",
		Data:     []byte("png-bytes"),
	})
	require.NoError(t, err)
	assert.Equal(t, "2025/20250912_Taro_3,500JPY_Lunch.png", file.FileID)
	assert.Equal(t, folderID, file.FolderID)
	assert.Contains(t, file.ViewLink, "file://")

	data, err := os.ReadFile(filepath.Join(dir, "2025", "20250912_Taro_3,500JPY_Lunch.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))
}

func TestLocalFileStore_CreateFileMissingParent(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.CreateFile(context.Background(), port.FileUpload{ParentID: "nope", Name: "a.png"})
	assert.True(t, port.IsPermanent(err))
}

func TestLocalFileStore_PathTraversal(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Path("../../etc")
	assert.True(t, port.IsPermanent(err))

	id, err := store.CreateFolder(context.Background(), "", "../escape")
	require.NoError(t, err)
	assert.Equal(t, "escape", id)
}

func TestLocalFileStore_GrantDomainReadIsNoop(t *testing.T) {
	store, _ := newTestStore(t)
	assert.NoError(t, store.GrantDomainRead(context.Background(), "2025/a.png", "example.com"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"2025", "2025"},
		{"../x", "x"},
		{"a/b\\c", "abc"},
		{"領収書_ランチ.pdf", "領収書_ランチ.pdf"},
		{"tab\there", "tabhere"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeName(tt.in), tt.in)
	}
}
