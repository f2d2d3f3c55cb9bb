package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/pgvector/pgvector-go"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/testutil"
)

// testVector builds a 768-dim unit-ish vector dominated by one axis so
// cosine ordering in the tests is predictable.
func testVector(axis int) []float32 {
	v := make([]float32, 768)
	for i := range v {
		v[i] = 0.001
	}
	v[axis] = 1
	return v
}

func insertPassage(t *testing.T, tdb *testutil.TestDBContainer, collection, content, origin string, axis int) {
	t.Helper()
	_, err := tdb.Pool.Exec(context.Background(),
		`INSERT INTO passages (collection, content, origin, embedding) VALUES ($1, $2, $3, $4)`,
		collection, content, origin, pgvector.NewVector(testVector(axis)))
	if err != nil {
		t.Fatalf("inserting passage: %v", err)
	}
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(tdb.Pool, log.NewNop())
	ctx := context.Background()

	insertPassage(t, tdb, "pay_rates", "acting pay table", "Guide → Rates", 0)
	insertPassage(t, tdb, "pay_rates", "overtime rules", "Guide → Overtime", 1)
	insertPassage(t, tdb, "case_details_en", "case lookup help", "Manual", 2)

	t.Run("lists distinct collections sorted", func(t *testing.T) {
		got, err := store.ListCollections(ctx)
		if err != nil {
			t.Fatalf("ListCollections: %v", err)
		}
		want := []string{"case_details_en", "pay_rates"}
		if len(got) != len(want) {
			t.Fatalf("collections = %v, want %v", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("collections[%d] = %q, want %q", i, got[i], want[i])
			}
		}
	})

	t.Run("search ranks by cosine similarity", func(t *testing.T) {
		hits, err := store.SearchCollection(ctx, "pay_rates", testVector(0), 2)
		if err != nil {
			t.Fatalf("SearchCollection: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("got %d hits, want 2", len(hits))
		}
		if hits[0].Content != "acting pay table" {
			t.Errorf("top hit = %q, want the axis-aligned passage", hits[0].Content)
		}
		if hits[0].Score <= hits[1].Score {
			t.Errorf("scores not descending: %v then %v", hits[0].Score, hits[1].Score)
		}
		if hits[0].Collection != "pay_rates" {
			t.Errorf("hit collection = %q", hits[0].Collection)
		}
	})

	t.Run("search scoped to its collection", func(t *testing.T) {
		hits, err := store.SearchCollection(ctx, "case_details_en", testVector(0), 10)
		if err != nil {
			t.Fatalf("SearchCollection: %v", err)
		}
		for _, h := range hits {
			if h.Content == "acting pay table" {
				t.Error("hit leaked from another collection")
			}
		}
	})

	t.Run("oversample limit respected", func(t *testing.T) {
		for i := 0; i < 8; i++ {
			insertPassage(t, tdb, "bulk", fmt.Sprintf("passage %d", i), "Bulk", 3)
		}
		hits, err := store.SearchCollection(ctx, "bulk", testVector(3), 1)
		if err != nil {
			t.Fatalf("SearchCollection: %v", err)
		}
		if len(hits) > 1*OversampleFactor {
			t.Errorf("got %d hits, limit is k*%d", len(hits), OversampleFactor)
		}
	})
}
