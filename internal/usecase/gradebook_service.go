package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/medch24/distribution-annuelle/internal/domain"
)

// GradebookService applies client-issued mutations to a class's snapshot
// store and answers the read queries of the realtime surface.
//
// There is deliberately no cross-request locking here: two concurrent saves
// for the same sheet interleave with last-write-wins semantics, and the saved
// copy appended by each reflects whichever read of "all tables" its goroutine
// happened to run. See the save path for the non-atomic window.
type GradebookService struct {
	router domain.DatabaseRouter
	cache  domain.CopyCache
	logger *slog.Logger
	now    func() time.Time
}

// NewGradebookService creates a GradebookService. cache may be nil.
func NewGradebookService(router domain.DatabaseRouter, cache domain.CopyCache, logger *slog.Logger) *GradebookService {
	return &GradebookService{
		router: router,
		cache:  cache,
		logger: logger.With("component", "gradebook"),
		now:    time.Now,
	}
}

// SaveTable upserts one sheet's payload, then appends a saved copy holding
// the full current table set of the class.
//
// The upsert and the snapshot append are two steps, not a transaction: if the
// append fails the upsert has already committed, and the error reported here
// covers only the snapshot. Callers see the failure; the table data is saved.
func (s *GradebookService) SaveTable(ctx context.Context, className, sheetName string, data any) error {
	if className == "" || sheetName == "" || data == nil {
		return errors.New("missing data")
	}

	store, err := s.router.Resolve(ctx, className)
	if err != nil {
		return err
	}

	if err := store.UpsertTable(ctx, sheetName, data); err != nil {
		return err
	}

	tables, err := store.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("snapshot after save of %s: %w", sheetName, err)
	}
	if err := store.AppendCopy(ctx, domain.SavedCopy{Timestamp: s.now().UTC(), Tables: tables}); err != nil {
		return fmt.Errorf("snapshot after save of %s: %w", sheetName, err)
	}

	s.invalidateCache(ctx, className)
	s.logger.Info("table saved", "class", className, "sheet", sheetName, "tables_in_copy", len(tables))
	return nil
}

// LoadLatestCopy returns the tables of the newest non-empty saved copy. A
// class with tables but no usable copy yet (a first save failed between
// upsert and snapshot) is reconstructed from the live tables instead of being
// reported empty.
func (s *GradebookService) LoadLatestCopy(ctx context.Context, className string) ([]domain.TableEntry, error) {
	if className == "" {
		return nil, errors.New("class name is required")
	}

	if s.cache != nil {
		tables, hit, err := s.cache.Get(ctx, className)
		if err != nil {
			s.logger.Warn("copy cache read failed", "class", className, "error", err)
		} else if hit {
			return tables, nil
		}
	}

	store, err := s.router.Resolve(ctx, className)
	if err != nil {
		return nil, err
	}

	var tables []domain.TableEntry
	latest, err := store.LatestNonEmptyCopy(ctx)
	switch {
	case err == nil:
		tables = latest.Tables
	case errors.Is(err, domain.ErrNoCopy):
		tables, err = store.ListTables(ctx)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	if tables == nil {
		tables = []domain.TableEntry{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, className, tables); err != nil {
			s.logger.Warn("copy cache write failed", "class", className, "error", err)
		}
	}
	return tables, nil
}

// LoadAllSelections folds every selection of the class into a sheet → cell
// key mapping. A class with no selections yields an empty mapping.
func (s *GradebookService) LoadAllSelections(ctx context.Context, className string) (domain.SelectionMap, error) {
	if className == "" {
		return nil, errors.New("class name is required")
	}

	store, err := s.router.Resolve(ctx, className)
	if err != nil {
		return nil, err
	}

	selections, err := store.ListSelections(ctx)
	if err != nil {
		return nil, err
	}

	bySheet := make(domain.SelectionMap)
	for _, sel := range selections {
		cells, ok := bySheet[sel.SheetName]
		if !ok {
			cells = make(map[string]domain.CellSelection)
			bySheet[sel.SheetName] = cells
		}
		cells[sel.CellKey] = domain.CellSelection{Unit: sel.Unit, Resources: sel.Resources}
	}
	return bySheet, nil
}

// DeleteSubjectData removes a subject's table, selections, resources and
// units, then filters the subject out of the newest saved copy in place.
//
// The four deletions are settled independently: a failure in one is logged
// and never aborts the others. Deleting a subject that no longer exists is a
// success.
func (s *GradebookService) DeleteSubjectData(ctx context.Context, className, sheetName string) error {
	if className == "" || sheetName == "" {
		return errors.New("class or subject name is missing")
	}

	store, err := s.router.Resolve(ctx, className)
	if err != nil {
		return err
	}

	steps := []struct {
		name string
		fn   func(context.Context, string) error
	}{
		{"table", store.DeleteTable},
		{"selections", store.DeleteSelections},
		{"resources", store.DeleteResources},
		{"units", store.DeleteUnits},
	}
	var wg sync.WaitGroup
	for _, step := range steps {
		wg.Add(1)
		go func(name string, fn func(context.Context, string) error) {
			defer wg.Done()
			if err := fn(ctx, sheetName); err != nil {
				s.logger.Warn("subject cleanup step failed", "class", className, "sheet", sheetName, "step", name, "error", err)
			}
		}(step.name, step.fn)
	}
	wg.Wait()

	latest, err := store.LatestCopy(ctx)
	if errors.Is(err, domain.ErrNoCopy) {
		s.invalidateCache(ctx, className)
		return nil
	}
	if err != nil {
		return err
	}

	kept := make([]domain.TableEntry, 0, len(latest.Tables))
	for _, entry := range latest.Tables {
		if entry.Matiere != sheetName {
			kept = append(kept, entry)
		}
	}
	if err := store.RewriteCopyTables(ctx, latest.ID, kept); err != nil {
		return err
	}

	s.invalidateCache(ctx, className)
	s.logger.Info("subject data deleted", "class", className, "sheet", sheetName)
	return nil
}

func (s *GradebookService) invalidateCache(ctx context.Context, className string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, className); err != nil {
		s.logger.Warn("copy cache invalidation failed", "class", className, "error", err)
	}
}
