package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Searcher is the slice of Store the Retriever consumes.
// Defined here, by the consumer, so tests can substitute a stub.
type Searcher interface {
	ListCollections(ctx context.Context) ([]string, error)
	SearchCollection(ctx context.Context, collection string, embedding []float32, k int) ([]Hit, error)
}

// Retriever fans a query embedding out across every known collection and
// merges the results into a single globally ranked top-k.
type Retriever struct {
	searcher Searcher
	timeout  time.Duration
	retries  int
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over searcher. timeout bounds each
// per-collection query (0 = DefaultSearchTimeout); retries is the number
// of additional attempts for this idempotent read (0 = none).
func NewRetriever(searcher Searcher, timeout time.Duration, retries int, logger *slog.Logger) *Retriever {
	if timeout <= 0 {
		timeout = DefaultSearchTimeout
	}
	if retries < 0 {
		retries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{searcher: searcher, timeout: timeout, retries: retries, logger: logger}
}

// SearchAll returns the globally best k hits across all collections.
//
// Collection queries run concurrently and join at a barrier: if any single
// collection fails after its retries, the whole search fails with no
// partial results. Duplicate contents have already been collapsed within
// each collection; the merge only sorts and truncates.
func (r *Retriever) SearchAll(ctx context.Context, embedding []float32, k int) ([]Hit, error) {
	collections, err := r.searcher.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("discovering collections: %w", err)
	}
	if len(collections) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		all []Hit
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, collection := range collections {
		g.Go(func() error {
			hits, err := r.searchWithRetry(gctx, collection, embedding, k)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, hits...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortHits(all)
	if len(all) > k {
		all = all[:k]
	}

	r.logger.Debug("multi-collection search merged",
		"collections", len(collections), "hits", len(all), "k", k)
	return all, nil
}

// searchWithRetry bounds one collection query with the configured deadline
// and retries it on failure. Vector search is a pure read, so retrying is
// always safe.
func (r *Retriever) searchWithRetry(ctx context.Context, collection string, embedding []float32, k int) ([]Hit, error) {
	var lastErr error
	for attempt := 0; attempt <= r.retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		queryCtx, cancel := context.WithTimeout(ctx, r.timeout)
		hits, err := r.searcher.SearchCollection(queryCtx, collection, embedding, k)
		cancel()
		if err == nil {
			return hits, nil
		}

		lastErr = err
		if attempt < r.retries {
			r.logger.Debug("retrying collection search",
				"collection", collection, "attempt", attempt+1, "error", err)
		}
	}
	return nil, fmt.Errorf("collection %q: %w", collection, lastErr)
}
