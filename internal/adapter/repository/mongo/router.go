package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/medch24/distribution-annuelle/internal/domain"
)

const dbNamePrefix = "Classe_"

var (
	// ErrNoMongoURL is returned when no connection string is configured.
	// Callers treat it as "service unavailable for this tenant"; it never
	// prevents the process from serving other requests.
	ErrNoMongoURL = errors.New("mongo connection string is not configured")

	unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// DatabaseName derives the tenant-scoped logical database name from a class
// name: every character outside [A-Za-z0-9] becomes '_', under a fixed
// namespace prefix.
func DatabaseName(className string) string {
	return dbNamePrefix + unsafeChars.ReplaceAllString(className, "_")
}

// opener dials the backing store and returns the snapshot store bound to the
// tenant database, plus a teardown for the underlying connection. Swappable
// so the router's cache contract can be tested without a live mongod.
type opener func(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error)

// Router resolves class names to their snapshot stores, caching each resolved
// store for the process lifetime. The cache is keyed by the original class
// name, not the derived database name.
type Router struct {
	mongoURL string
	logger   *slog.Logger
	open     opener

	mu      sync.RWMutex
	stores  map[string]domain.SnapshotStore
	closers []func(context.Context) error
}

// NewRouter creates a Router. mongoURL may be empty; resolution then fails
// per-request with ErrNoMongoURL.
func NewRouter(mongoURL string, logger *slog.Logger) *Router {
	return &Router{
		mongoURL: mongoURL,
		logger:   logger.With("component", "db_router"),
		open:     dialMongo,
		stores:   make(map[string]domain.SnapshotStore),
	}
}

func dialMongo(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return NewSnapshotRepository(client.Database(dbName)), client.Disconnect, nil
}

// Resolve returns the snapshot store for className, dialing the backing store
// on first access. Concurrent first-access for the same class may dial more
// than once; the loser's connection is torn down and the cached store wins.
func (r *Router) Resolve(ctx context.Context, className string) (domain.SnapshotStore, error) {
	if className == "" {
		return nil, errors.New("class name is required")
	}

	r.mu.RLock()
	store, ok := r.stores[className]
	r.mu.RUnlock()
	if ok {
		return store, nil
	}

	if r.mongoURL == "" {
		return nil, ErrNoMongoURL
	}

	dbName := DatabaseName(className)
	store, closer, err := r.open(ctx, r.mongoURL, dbName)
	if err != nil {
		r.logger.Error("failed to connect to class database", "class", className, "db", dbName, "error", err)
		return nil, fmt.Errorf("connect to database for class %s: %w", className, err)
	}

	r.mu.Lock()
	if existing, ok := r.stores[className]; ok {
		// Lost the populate race; keep the first store.
		r.mu.Unlock()
		if closer != nil {
			_ = closer(context.Background())
		}
		return existing, nil
	}
	r.stores[className] = store
	if closer != nil {
		r.closers = append(r.closers, closer)
	}
	r.mu.Unlock()

	r.logger.Info("connected to class database", "class", className, "db", dbName)
	return store, nil
}

// Close tears down every cached connection. Called only at process exit.
func (r *Router) Close(ctx context.Context) {
	r.mu.Lock()
	closers := r.closers
	r.closers = nil
	r.stores = make(map[string]domain.SnapshotStore)
	r.mu.Unlock()

	for _, closeFn := range closers {
		if err := closeFn(ctx); err != nil {
			r.logger.Warn("failed to disconnect class database client", "error", err)
		}
	}
}
