package domain

import "time"

// TableEntry is a sheet projected into the denormalized shape carried by
// saved copies and acknowledgements: the subject name plus its full payload.
type TableEntry struct {
	Matiere string `json:"matiere" bson:"matiere"`
	Data    any    `json:"data" bson:"data"`
}

// Selection is the per-cell metadata record attached to one cell of a sheet.
// Selections are correlated with tables only by matching sheet name.
type Selection struct {
	SheetName string `json:"sheetName" bson:"sheetName"`
	CellKey   string `json:"cellKey" bson:"cellKey"`
	Unit      any    `json:"unit" bson:"unit"`
	Resources any    `json:"resources" bson:"resources"`
}

// CellSelection is the client-facing projection of a Selection, without the
// identifying keys (those become the map keys in a SelectionMap).
type CellSelection struct {
	Unit      any `json:"unit"`
	Resources any `json:"resources"`
}

// SelectionMap groups every selection of a tenant by sheet then by cell key.
type SelectionMap map[string]map[string]CellSelection

// SavedCopy is a timestamped snapshot of every table of a tenant. Copies are
// append-only history; the single exception is subject deletion, which
// rewrites the tables of the newest copy in place (see SnapshotStore).
type SavedCopy struct {
	ID        string       `json:"-"`
	Timestamp time.Time    `json:"timestamp"`
	Tables    []TableEntry `json:"tables"`
}
