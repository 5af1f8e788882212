package service

import (
	"context"
	"sync"
	"time"

	"github.com/bestat/tatekae-seisan-bot/internal/application/port"
	"github.com/bestat/tatekae-seisan-bot/internal/domain/entity"
)

type mockLedgerStore struct {
	appendFunc          func(ctx context.Context, target entity.SheetTarget, rec *entity.RequestRecord) (*entity.RequestRecord, error)
	updateFunc          func(ctx context.Context, target entity.SheetTarget, rowNumber int, patch entity.RecordPatch) error
	mutateFunc          func(ctx context.Context, target entity.SheetTarget, rowNumber int, fn MutateFunc) (*entity.RequestRecord, error)
	findByThreadFunc    func(ctx context.Context, threadID string) (*entity.RequestRecord, error)
	findByRequestIDFunc func(ctx context.Context, requestID string) (*entity.RequestRecord, error)
	findByThreadCalls   int
}

func (m *mockLedgerStore) Append(ctx context.Context, target entity.SheetTarget, rec *entity.RequestRecord) (*entity.RequestRecord, error) {
	if m.appendFunc != nil {
		return m.appendFunc(ctx, target, rec)
	}
	return rec, nil
}

func (m *mockLedgerStore) Update(ctx context.Context, target entity.SheetTarget, rowNumber int, patch entity.RecordPatch) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, target, rowNumber, patch)
	}
	return nil
}

func (m *mockLedgerStore) Mutate(ctx context.Context, target entity.SheetTarget, rowNumber int, fn MutateFunc) (*entity.RequestRecord, error) {
	if m.mutateFunc != nil {
		return m.mutateFunc(ctx, target, rowNumber, fn)
	}
	return nil, ErrRowNotFound
}

func (m *mockLedgerStore) FindByThread(ctx context.Context, threadID string) (*entity.RequestRecord, error) {
	m.findByThreadCalls++
	if m.findByThreadFunc != nil {
		return m.findByThreadFunc(ctx, threadID)
	}
	return nil, ErrRequestNotFound
}

func (m *mockLedgerStore) FindByRequestID(ctx context.Context, requestID string) (*entity.RequestRecord, error) {
	if m.findByRequestIDFunc != nil {
		return m.findByRequestIDFunc(ctx, requestID)
	}
	return nil, ErrRequestNotFound
}

func (m *mockLedgerStore) Reindex(ctx context.Context) (int, error) {
	return 0, nil
}

// memoryFileStore is a FileStore that keeps folders and files in maps
type memoryFileStore struct {
	mu          sync.Mutex
	folders     map[string]string // parent/name -> id
	files       map[string]port.FileUpload
	findCalls   int
	createCalls int
	grantErr    error
	grants      []string
	nextID      int
	findDelay   time.Duration
}

func newMemoryFileStore() *memoryFileStore {
	return &memoryFileStore{
		folders: make(map[string]string),
		files:   make(map[string]port.FileUpload),
	}
}

func (m *memoryFileStore) FindFolder(ctx context.Context, parentID, name string) (string, bool, error) {
	time.Sleep(m.findDelay)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findCalls++
	id, ok := m.folders[parentID+"/"+name]
	return id, ok, nil
}

func (m *memoryFileStore) CreateFolder(ctx context.Context, parentID, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	m.nextID++
	id := parentID + "/" + name
	m.folders[id] = id
	return id, nil
}

func (m *memoryFileStore) CreateFile(ctx context.Context, upload port.FileUpload) (*entity.ArchivedFile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := upload.ParentID + "/" + upload.Name
	m.files[id] = upload
	return &entity.ArchivedFile{
		FileID:   id,
		Name:     upload.Name,
		ViewLink: "https://files.example/" + upload.Name,
	}, nil
}

func (m *memoryFileStore) GrantDomainRead(ctx context.Context, fileID, domain string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants = append(m.grants, fileID+"@"+domain)
	return m.grantErr
}
