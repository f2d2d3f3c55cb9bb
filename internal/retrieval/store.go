package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// The passage store is read-only for this service: an offline indexing
// pipeline owns writes. Score is cosine similarity (higher is better),
// derived from pgvector's cosine distance operator.
const (
	listCollectionsSQL = `
SELECT DISTINCT collection FROM passages ORDER BY collection`

	searchCollectionSQL = `
SELECT content, origin, 1 - (embedding <=> $1) AS score
FROM passages
WHERE collection = $2
ORDER BY embedding <=> $1
LIMIT $3`
)

// Store queries the pgvector-backed passage store.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store over the given connection pool.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}
}

// ListCollections returns the current set of collection names.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, listCollectionsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning collection name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading collection names: %w", err)
	}
	return names, nil
}

// SearchCollection runs an ANN query against one collection. It oversamples
// k by OversampleFactor, collapses duplicate contents keeping the
// highest-scoring copy, and returns all survivors sorted by descending
// score. It does not truncate to k; the global merge owns truncation.
func (s *Store) SearchCollection(ctx context.Context, collection string, embedding []float32, k int) ([]Hit, error) {
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx, searchCollectionSQL, vec, collection, k*OversampleFactor)
	if err != nil {
		return nil, fmt.Errorf("searching collection %q: %w", collection, err)
	}

	hits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Hit, error) {
		var h Hit
		if err := row.Scan(&h.Content, &h.Origin, &h.Score); err != nil {
			return Hit{}, err
		}
		h.Collection = collection
		return h, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning hits for collection %q: %w", collection, err)
	}

	collapsed := collapseByContent(hits)
	s.logger.Debug("collection searched",
		"collection", collection, "candidates", len(hits), "survivors", len(collapsed))
	return collapsed, nil
}

// collapseByContent deduplicates hits by content, keeping the
// highest-scoring duplicate, and sorts the survivors by descending score.
func collapseByContent(hits []Hit) []Hit {
	best := make(map[string]Hit, len(hits))
	for _, h := range hits {
		if cur, ok := best[h.Content]; !ok || h.Score > cur.Score {
			best[h.Content] = h
		}
	}

	out := make([]Hit, 0, len(best))
	for _, h := range best {
		out = append(out, h)
	}
	sortHits(out)
	return out
}

// sortHits orders hits by descending score. Equal scores break ties by
// collection name ascending, then content ascending, so rankings are
// deterministic across runs.
func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Collection != hits[j].Collection {
			return hits[i].Collection < hits[j].Collection
		}
		return hits[i].Content < hits[j].Content
	})
}
