package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/medch24/distribution-annuelle/internal/domain"
)

// MockSnapshotStore is an in-memory implementation of domain.SnapshotStore
// for testing. It behaves like a tiny single-tenant database so use-case
// tests can exercise full save/load/delete sequences.
type MockSnapshotStore struct {
	mu         sync.Mutex
	Tables     map[string]any
	Selections []domain.Selection
	Copies     []domain.SavedCopy

	UpsertErr           error
	ListTablesErr       error
	AppendCopyErr       error
	LatestCopyErr       error
	RewriteErr          error
	ListSelectionsErr   error
	DeleteTableErr      error
	DeleteSelectionsErr error
	DeleteResourcesErr  error
	DeleteUnitsErr      error

	DeletedResources []string
	DeletedUnits     []string
	nextCopyID       int
}

func NewMockSnapshotStore() *MockSnapshotStore {
	return &MockSnapshotStore{Tables: make(map[string]any)}
}

func (m *MockSnapshotStore) UpsertTable(ctx context.Context, sheetName string, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	m.Tables[sheetName] = data
	return nil
}

func (m *MockSnapshotStore) ListTables(ctx context.Context) ([]domain.TableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListTablesErr != nil {
		return nil, m.ListTablesErr
	}
	entries := make([]domain.TableEntry, 0, len(m.Tables))
	for name, data := range m.Tables {
		entries = append(entries, domain.TableEntry{Matiere: name, Data: data})
	}
	return entries, nil
}

func (m *MockSnapshotStore) AppendCopy(ctx context.Context, copy domain.SavedCopy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AppendCopyErr != nil {
		return m.AppendCopyErr
	}
	m.nextCopyID++
	copy.ID = fmt.Sprintf("copy-%d", m.nextCopyID)
	m.Copies = append(m.Copies, copy)
	return nil
}

func (m *MockSnapshotStore) LatestCopy(ctx context.Context) (domain.SavedCopy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestCopyErr != nil {
		return domain.SavedCopy{}, m.LatestCopyErr
	}
	if len(m.Copies) == 0 {
		return domain.SavedCopy{}, domain.ErrNoCopy
	}
	return m.Copies[len(m.Copies)-1], nil
}

func (m *MockSnapshotStore) LatestNonEmptyCopy(ctx context.Context) (domain.SavedCopy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LatestCopyErr != nil {
		return domain.SavedCopy{}, m.LatestCopyErr
	}
	for i := len(m.Copies) - 1; i >= 0; i-- {
		if len(m.Copies[i].Tables) > 0 {
			return m.Copies[i], nil
		}
	}
	return domain.SavedCopy{}, domain.ErrNoCopy
}

func (m *MockSnapshotStore) RewriteCopyTables(ctx context.Context, copyID string, tables []domain.TableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.RewriteErr != nil {
		return m.RewriteErr
	}
	for i := range m.Copies {
		if m.Copies[i].ID == copyID {
			m.Copies[i].Tables = tables
		}
	}
	return nil
}

func (m *MockSnapshotStore) ListSelections(ctx context.Context) ([]domain.Selection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListSelectionsErr != nil {
		return nil, m.ListSelectionsErr
	}
	return append([]domain.Selection(nil), m.Selections...), nil
}

func (m *MockSnapshotStore) DeleteTable(ctx context.Context, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteTableErr != nil {
		return m.DeleteTableErr
	}
	delete(m.Tables, sheetName)
	return nil
}

func (m *MockSnapshotStore) DeleteSelections(ctx context.Context, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteSelectionsErr != nil {
		return m.DeleteSelectionsErr
	}
	kept := m.Selections[:0]
	for _, sel := range m.Selections {
		if sel.SheetName != sheetName {
			kept = append(kept, sel)
		}
	}
	m.Selections = kept
	return nil
}

func (m *MockSnapshotStore) DeleteResources(ctx context.Context, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteResourcesErr != nil {
		return m.DeleteResourcesErr
	}
	m.DeletedResources = append(m.DeletedResources, sheetName)
	return nil
}

func (m *MockSnapshotStore) DeleteUnits(ctx context.Context, sheetName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteUnitsErr != nil {
		return m.DeleteUnitsErr
	}
	m.DeletedUnits = append(m.DeletedUnits, sheetName)
	return nil
}

// MockRouter is a mock implementation of domain.DatabaseRouter that hands out
// a fixed store per class name.
type MockRouter struct {
	mu         sync.Mutex
	Stores     map[string]*MockSnapshotStore
	ResolveErr error
	Resolved   []string
}

func NewMockRouter() *MockRouter {
	return &MockRouter{Stores: make(map[string]*MockSnapshotStore)}
}

func (m *MockRouter) Resolve(ctx context.Context, className string) (domain.SnapshotStore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResolveErr != nil {
		return nil, m.ResolveErr
	}
	m.Resolved = append(m.Resolved, className)
	store, ok := m.Stores[className]
	if !ok {
		store = NewMockSnapshotStore()
		m.Stores[className] = store
	}
	return store, nil
}

// MockConverter is a mock implementation of domain.DocumentConverter.
type MockConverter struct {
	mu         sync.Mutex
	Result     []byte
	Err        error
	InputPaths []string
	Formats    []string
}

func (m *MockConverter) Convert(ctx context.Context, inputPath, targetFormat string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InputPaths = append(m.InputPaths, inputPath)
	m.Formats = append(m.Formats, targetFormat)
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Result, nil
}

// MockCopyCache is a mock implementation of domain.CopyCache.
type MockCopyCache struct {
	mu          sync.Mutex
	Entries     map[string][]domain.TableEntry
	GetErr      error
	SetErr      error
	InvalidNote []string
}

func NewMockCopyCache() *MockCopyCache {
	return &MockCopyCache{Entries: make(map[string][]domain.TableEntry)}
}

func (m *MockCopyCache) Get(ctx context.Context, className string) ([]domain.TableEntry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	tables, ok := m.Entries[className]
	return tables, ok, nil
}

func (m *MockCopyCache) Set(ctx context.Context, className string, tables []domain.TableEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	m.Entries[className] = tables
	return nil
}

func (m *MockCopyCache) Invalidate(ctx context.Context, className string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Entries, className)
	m.InvalidNote = append(m.InvalidNote, className)
	return nil
}
