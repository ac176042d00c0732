package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Caches, extractors and breakers return
// these (optionally wrapped) so the orchestrator can translate them into domain errors.
//
// - ErrNotFound: the remote artifact or cache entry does not exist
// - ErrUnavailable: a dependency is temporarily unavailable (e.g. circuit open)
// - ErrEmptyContent: a 2xx response carried nothing parseable
var (
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("unavailable")
	ErrEmptyContent = errors.New("empty content")
)
