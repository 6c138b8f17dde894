package domain

import (
	"context"
	"errors"
)

// ErrNoCopy is returned by SnapshotStore when a tenant has no saved copy yet.
var ErrNoCopy = errors.New("no saved copy")

// SnapshotStore persists the tables, selections and saved copies of a single
// tenant. Implementations are bound to one logical database at construction.
type SnapshotStore interface {
	// UpsertTable replaces the payload of the table keyed by sheetName,
	// creating it if absent. There is no partial merge.
	UpsertTable(ctx context.Context, sheetName string, data any) error

	// ListTables returns every table of the tenant projected to TableEntry.
	ListTables(ctx context.Context) ([]TableEntry, error)

	// AppendCopy inserts a new saved copy. Copies are never updated through
	// this path.
	AppendCopy(ctx context.Context, copy SavedCopy) error

	// LatestCopy returns the newest saved copy by timestamp, empty or not.
	// Returns ErrNoCopy when the tenant has none.
	LatestCopy(ctx context.Context) (SavedCopy, error)

	// LatestNonEmptyCopy returns the newest saved copy whose tables array is
	// non-empty. Returns ErrNoCopy when no such copy exists.
	LatestNonEmptyCopy(ctx context.Context) (SavedCopy, error)

	// RewriteCopyTables replaces the tables array of an existing saved copy
	// in place. This is the one sanctioned mutation of a copy, used only by
	// subject deletion; every other write path must go through AppendCopy.
	RewriteCopyTables(ctx context.Context, copyID string, tables []TableEntry) error

	// ListSelections returns every selection of the tenant. A tenant that
	// never recorded a selection yields an empty slice, not an error.
	ListSelections(ctx context.Context) ([]Selection, error)

	// DeleteTable removes the table keyed by sheetName. Removing an absent
	// table is a success.
	DeleteTable(ctx context.Context, sheetName string) error

	// DeleteSelections removes every selection recorded for sheetName.
	DeleteSelections(ctx context.Context, sheetName string) error

	// DeleteResources removes every resource record for sheetName.
	DeleteResources(ctx context.Context, sheetName string) error

	// DeleteUnits removes every unit record for sheetName.
	DeleteUnits(ctx context.Context, sheetName string) error
}

// DatabaseRouter resolves a class name to the snapshot store bound to that
// class's logical database. Implementations cache resolved stores for the
// process lifetime; a repeated Resolve for the same class must return the
// cached store without a new connection attempt.
type DatabaseRouter interface {
	Resolve(ctx context.Context, className string) (SnapshotStore, error)
}

// DocumentConverter renders a staged document file into the target format
// and returns the rendered bytes. Calls block for the duration of the remote
// conversion and honor ctx cancellation.
type DocumentConverter interface {
	Convert(ctx context.Context, inputPath, targetFormat string) ([]byte, error)
}

// CopyCache is an optional read cache for the latest-copy query. All methods
// are best-effort: callers log failures and fall through to the store.
type CopyCache interface {
	Get(ctx context.Context, className string) ([]TableEntry, bool, error)
	Set(ctx context.Context, className string, tables []TableEntry) error
	Invalidate(ctx context.Context, className string) error
}
