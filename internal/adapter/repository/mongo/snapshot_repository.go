package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/medch24/distribution-annuelle/internal/domain"
)

const (
	tablesCollection     = "tables"
	copiesCollection     = "savedCopies"
	selectionsCollection = "selections"
	resourcesCollection  = "resources"
	unitsCollection      = "units"
)

type tableDoc struct {
	SheetName string `bson:"sheetName"`
	Data      any    `bson:"data"`
}

type copyDoc struct {
	ID        bson.ObjectID       `bson:"_id,omitempty"`
	Timestamp time.Time           `bson:"timestamp"`
	Tables    []domain.TableEntry `bson:"tables"`
}

type selectionDoc struct {
	SheetName string `bson:"sheetName"`
	CellKey   string `bson:"cellKey"`
	Unit      any    `bson:"unit"`
	Resources any    `bson:"resources"`
}

// SnapshotRepository implements domain.SnapshotStore against one tenant's
// logical mongo database.
type SnapshotRepository struct {
	db *mongo.Database
}

// NewSnapshotRepository binds a repository to an already-resolved database.
func NewSnapshotRepository(db *mongo.Database) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) UpsertTable(ctx context.Context, sheetName string, data any) error {
	_, err := r.db.Collection(tablesCollection).UpdateOne(ctx,
		bson.M{"sheetName": sheetName},
		bson.M{"$set": bson.M{"data": data}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert table %s: %w", sheetName, err)
	}
	return nil
}

func (r *SnapshotRepository) ListTables(ctx context.Context) ([]domain.TableEntry, error) {
	cur, err := r.db.Collection(tablesCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	var docs []tableDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode tables: %w", err)
	}
	entries := make([]domain.TableEntry, 0, len(docs))
	for _, doc := range docs {
		entries = append(entries, domain.TableEntry{Matiere: doc.SheetName, Data: doc.Data})
	}
	return entries, nil
}

func (r *SnapshotRepository) AppendCopy(ctx context.Context, copy domain.SavedCopy) error {
	doc := copyDoc{Timestamp: copy.Timestamp, Tables: copy.Tables}
	if doc.Tables == nil {
		doc.Tables = []domain.TableEntry{}
	}
	if _, err := r.db.Collection(copiesCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("append saved copy: %w", err)
	}
	return nil
}

func (r *SnapshotRepository) LatestCopy(ctx context.Context) (domain.SavedCopy, error) {
	return r.latestCopy(ctx, bson.M{})
}

func (r *SnapshotRepository) LatestNonEmptyCopy(ctx context.Context) (domain.SavedCopy, error) {
	return r.latestCopy(ctx, bson.M{"tables.0": bson.M{"$exists": true}})
}

func (r *SnapshotRepository) latestCopy(ctx context.Context, filter bson.M) (domain.SavedCopy, error) {
	var doc copyDoc
	err := r.db.Collection(copiesCollection).
		FindOne(ctx, filter, options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})).
		Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.SavedCopy{}, domain.ErrNoCopy
	}
	if err != nil {
		return domain.SavedCopy{}, fmt.Errorf("load latest saved copy: %w", err)
	}
	return domain.SavedCopy{ID: doc.ID.Hex(), Timestamp: doc.Timestamp, Tables: doc.Tables}, nil
}

// RewriteCopyTables is the single sanctioned in-place mutation of a saved
// copy, used by subject deletion to filter the removed subject out of the
// newest snapshot.
func (r *SnapshotRepository) RewriteCopyTables(ctx context.Context, copyID string, tables []domain.TableEntry) error {
	id, err := bson.ObjectIDFromHex(copyID)
	if err != nil {
		return fmt.Errorf("invalid saved copy id %q: %w", copyID, err)
	}
	if tables == nil {
		tables = []domain.TableEntry{}
	}
	_, err = r.db.Collection(copiesCollection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"tables": tables}},
	)
	if err != nil {
		return fmt.Errorf("rewrite saved copy %s: %w", copyID, err)
	}
	return nil
}

func (r *SnapshotRepository) ListSelections(ctx context.Context) ([]domain.Selection, error) {
	// A collection that was never created yields an empty cursor, which is
	// exactly the "no selections yet" answer.
	cur, err := r.db.Collection(selectionsCollection).Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	var docs []selectionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode selections: %w", err)
	}
	selections := make([]domain.Selection, 0, len(docs))
	for _, doc := range docs {
		selections = append(selections, domain.Selection{
			SheetName: doc.SheetName,
			CellKey:   doc.CellKey,
			Unit:      doc.Unit,
			Resources: doc.Resources,
		})
	}
	return selections, nil
}

func (r *SnapshotRepository) DeleteTable(ctx context.Context, sheetName string) error {
	_, err := r.db.Collection(tablesCollection).DeleteOne(ctx, bson.M{"sheetName": sheetName})
	if err != nil {
		return fmt.Errorf("delete table %s: %w", sheetName, err)
	}
	return nil
}

func (r *SnapshotRepository) DeleteSelections(ctx context.Context, sheetName string) error {
	_, err := r.db.Collection(selectionsCollection).DeleteMany(ctx, bson.M{"sheetName": sheetName})
	if err != nil {
		return fmt.Errorf("delete selections for %s: %w", sheetName, err)
	}
	return nil
}

func (r *SnapshotRepository) DeleteResources(ctx context.Context, sheetName string) error {
	_, err := r.db.Collection(resourcesCollection).DeleteMany(ctx, bson.M{"sheetName": sheetName})
	if err != nil {
		return fmt.Errorf("delete resources for %s: %w", sheetName, err)
	}
	return nil
}

func (r *SnapshotRepository) DeleteUnits(ctx context.Context, sheetName string) error {
	_, err := r.db.Collection(unitsCollection).DeleteMany(ctx, bson.M{"sheetName": sheetName})
	if err != nil {
		return fmt.Errorf("delete units for %s: %w", sheetName, err)
	}
	return nil
}
