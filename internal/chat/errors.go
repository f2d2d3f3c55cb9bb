package chat

import "fmt"

// UpstreamError marks a failure in one of the pipeline's external
// dependencies so the transport layer can map it to a 502-class response.
type UpstreamError struct {
	Dependency string // "rephrase-model", "answer-model", "embedder", "search", "case-store"
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Dependency, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// upstream wraps err as an UpstreamError for the named dependency.
func upstream(dependency string, err error) error {
	return &UpstreamError{Dependency: dependency, Err: err}
}
