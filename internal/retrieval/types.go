// Package retrieval implements multi-collection vector search over the
// pgvector passage store.
//
// A search fans out one query per collection concurrently, collapses
// duplicate contents within each collection, then merges all candidates
// into a single globally ranked top-k. A failure in any collection fails
// the whole search; there are no silent partial results.
package retrieval

import "time"

// Hit is one retrieved passage. Hits are transient: produced per search,
// never persisted.
type Hit struct {
	Content    string
	Origin     string
	Collection string
	Score      float32
}

// CaseDetailsCollection is the collection-name fragment that marks hits
// requiring structured case-details enrichment downstream.
const CaseDetailsCollection = "case_details"

// OversampleFactor is how many candidates each collection query fetches
// per requested result, so that content-level dedup still leaves enough
// survivors for the global merge.
const OversampleFactor = 5

// DefaultSearchTimeout bounds a single per-collection query.
const DefaultSearchTimeout = 10 * time.Second
