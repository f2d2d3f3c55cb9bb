package retrieval

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/log"
)

// mockSearcher implements Searcher for testing.
type mockSearcher struct {
	mu sync.Mutex

	collections    []string
	listErr        error
	hits           map[string][]Hit
	searchErr      map[string]error
	failuresBefore map[string]int // fail this many times, then succeed

	searchCalls map[string]int
}

func (m *mockSearcher) ListCollections(_ context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.collections, nil
}

func (m *mockSearcher) SearchCollection(_ context.Context, collection string, _ []float32, _ int) ([]Hit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.searchCalls == nil {
		m.searchCalls = make(map[string]int)
	}
	m.searchCalls[collection]++

	if n, ok := m.failuresBefore[collection]; ok && m.searchCalls[collection] <= n {
		return nil, errors.New("transient failure")
	}
	if err := m.searchErr[collection]; err != nil {
		return nil, err
	}
	return m.hits[collection], nil
}

func TestSearchAll_MergesAndTruncates(t *testing.T) {
	searcher := &mockSearcher{
		collections: []string{"directives", "agreements"},
		hits: map[string][]Hit{
			"directives": {
				{Content: "A", Collection: "directives", Score: 0.9},
				{Content: "B", Collection: "directives", Score: 0.5},
			},
			"agreements": {
				{Content: "C", Collection: "agreements", Score: 0.8},
				{Content: "D", Collection: "agreements", Score: 0.7},
			},
		},
	}
	r := NewRetriever(searcher, time.Second, 0, log.NewNop())

	hits, err := r.SearchAll(context.Background(), []float32{0.1}, 3)
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}

	want := []string{"A", "C", "D"}
	if len(hits) != len(want) {
		t.Fatalf("got %d hits, want %d", len(hits), len(want))
	}
	for i, content := range want {
		if hits[i].Content != content {
			t.Errorf("hit %d = %q, want %q", i, hits[i].Content, content)
		}
	}
}

func TestSearchAll_EqualScoreTieBreakIsDeterministic(t *testing.T) {
	// Two collections return an identical content with equal score: both
	// survive the per-collection collapse, and the merge must order them
	// by collection name ascending.
	searcher := &mockSearcher{
		collections: []string{"zeta", "alpha"},
		hits: map[string][]Hit{
			"zeta":  {{Content: "X", Collection: "zeta", Score: 0.9}},
			"alpha": {{Content: "X", Collection: "alpha", Score: 0.9}},
		},
	}
	r := NewRetriever(searcher, time.Second, 0, log.NewNop())

	for range 5 {
		hits, err := r.SearchAll(context.Background(), []float32{0.1}, 10)
		if err != nil {
			t.Fatalf("SearchAll: %v", err)
		}
		if len(hits) != 2 || hits[0].Collection != "alpha" || hits[1].Collection != "zeta" {
			t.Fatalf("unexpected order: %+v", hits)
		}
	}
}

func TestSearchAll_SingleCollectionFailureFailsWhole(t *testing.T) {
	searcher := &mockSearcher{
		collections: []string{"a", "b", "c"},
		hits: map[string][]Hit{
			"a": {{Content: "A", Collection: "a", Score: 0.9}},
			"c": {{Content: "C", Collection: "c", Score: 0.8}},
		},
		searchErr: map[string]error{"b": errors.New("index unavailable")},
	}
	r := NewRetriever(searcher, time.Second, 0, log.NewNop())

	hits, err := r.SearchAll(context.Background(), []float32{0.1}, 5)
	if err == nil {
		t.Fatal("expected error when one collection fails")
	}
	if hits != nil {
		t.Errorf("expected no partial results, got %+v", hits)
	}
}

func TestSearchAll_RetriesIdempotentRead(t *testing.T) {
	searcher := &mockSearcher{
		collections:    []string{"a"},
		hits:           map[string][]Hit{"a": {{Content: "A", Collection: "a", Score: 0.9}}},
		failuresBefore: map[string]int{"a": 2},
	}
	r := NewRetriever(searcher, time.Second, 2, log.NewNop())

	hits, err := r.SearchAll(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("SearchAll with retries: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if calls := searcher.searchCalls["a"]; calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
}

func TestSearchAll_NoCollections(t *testing.T) {
	r := NewRetriever(&mockSearcher{}, time.Second, 0, log.NewNop())

	hits, err := r.SearchAll(context.Background(), []float32{0.1}, 5)
	if err != nil {
		t.Fatalf("SearchAll: %v", err)
	}
	if hits != nil {
		t.Errorf("expected nil hits for empty collection set, got %+v", hits)
	}
}

func TestCollapseByContent(t *testing.T) {
	hits := []Hit{
		{Content: "X", Collection: "c", Score: 0.7},
		{Content: "X", Collection: "c", Score: 0.9},
		{Content: "Y", Collection: "c", Score: 0.8},
	}

	out := collapseByContent(hits)
	if len(out) != 2 {
		t.Fatalf("got %d survivors, want 2", len(out))
	}
	if out[0].Content != "X" || out[0].Score != 0.9 {
		t.Errorf("expected highest-scoring duplicate first, got %+v", out[0])
	}
	if out[1].Content != "Y" {
		t.Errorf("expected Y second, got %+v", out[1])
	}
}
