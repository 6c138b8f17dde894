package mongo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/medch24/distribution-annuelle/internal/domain"
	"github.com/medch24/distribution-annuelle/internal/domain/mocks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDatabaseName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"6A", "Classe_6A"},
		{"CM2 B", "Classe_CM2_B"},
		{"Terminale S-1", "Classe_Terminale_S_1"},
		{"5ème", "Classe_5_me"},
		{"déjà_vu!", "Classe_d_j__vu_"},
	}
	for _, tc := range cases {
		if got := DatabaseName(tc.in); got != tc.want {
			t.Errorf("DatabaseName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRouter_Resolve(t *testing.T) {
	t.Run("Empty Class Name", func(t *testing.T) {
		r := NewRouter("mongodb://localhost", testLogger())
		if _, err := r.Resolve(context.Background(), ""); err == nil {
			t.Fatal("expected an error for empty class name")
		}
	})

	t.Run("No Connection String", func(t *testing.T) {
		r := NewRouter("", testLogger())
		_, err := r.Resolve(context.Background(), "6A")
		if !errors.Is(err, ErrNoMongoURL) {
			t.Fatalf("expected ErrNoMongoURL, got %v", err)
		}
	})

	t.Run("Caches Resolved Store", func(t *testing.T) {
		var dials atomic.Int32
		r := NewRouter("mongodb://localhost", testLogger())
		r.open = func(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error) {
			dials.Add(1)
			return mocks.NewMockSnapshotStore(), nil, nil
		}

		first, err := r.Resolve(context.Background(), "6A")
		if err != nil {
			t.Fatalf("first resolve failed: %v", err)
		}
		second, err := r.Resolve(context.Background(), "6A")
		if err != nil {
			t.Fatalf("second resolve failed: %v", err)
		}
		if first != second {
			t.Error("expected the cached store instance on the second resolve")
		}
		if got := dials.Load(); got != 1 {
			t.Errorf("expected exactly 1 dial, got %d", got)
		}
	})

	t.Run("Distinct Classes Get Distinct Stores", func(t *testing.T) {
		r := NewRouter("mongodb://localhost", testLogger())
		r.open = func(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error) {
			return mocks.NewMockSnapshotStore(), nil, nil
		}

		a, _ := r.Resolve(context.Background(), "6A")
		b, _ := r.Resolve(context.Background(), "6B")
		if a == b {
			t.Error("expected distinct stores for distinct classes")
		}
	})

	t.Run("Dial Failure Is Not Cached", func(t *testing.T) {
		var dials atomic.Int32
		fail := true
		r := NewRouter("mongodb://localhost", testLogger())
		r.open = func(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error) {
			dials.Add(1)
			if fail {
				return nil, nil, errors.New("connection refused")
			}
			return mocks.NewMockSnapshotStore(), nil, nil
		}

		if _, err := r.Resolve(context.Background(), "6A"); err == nil {
			t.Fatal("expected a dial error")
		}
		fail = false
		if _, err := r.Resolve(context.Background(), "6A"); err != nil {
			t.Fatalf("expected recovery after the backing store comes back: %v", err)
		}
		if got := dials.Load(); got != 2 {
			t.Errorf("expected 2 dial attempts, got %d", got)
		}
	})

	t.Run("Concurrent First Access Settles On One Store", func(t *testing.T) {
		var closed atomic.Int32
		r := NewRouter("mongodb://localhost", testLogger())
		r.open = func(ctx context.Context, uri, dbName string) (domain.SnapshotStore, func(context.Context) error, error) {
			return mocks.NewMockSnapshotStore(), func(context.Context) error {
				closed.Add(1)
				return nil
			}, nil
		}

		const n = 8
		stores := make([]domain.SnapshotStore, n)
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				stores[i], _ = r.Resolve(context.Background(), "6A")
			}(i)
		}
		wg.Wait()

		for i := 1; i < n; i++ {
			if stores[i] != stores[0] {
				t.Fatalf("resolver %d got a different store than resolver 0", i)
			}
		}
		// Redundant dials, if any, must have been torn down; the winning
		// connection stays open until Close.
		r.Close(context.Background())
		if closed.Load() == 0 {
			t.Error("expected Close to tear down the cached connection")
		}
	})
}
