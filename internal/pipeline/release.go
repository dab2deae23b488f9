// Package pipeline is the release orchestrator: the per-release state
// machine that reads contexts, validates and extracts archive groups,
// renames and relocates the results, mirrors the source archives into the
// finished tree, and rolls everything back when the main context fails.
package pipeline

import (
	"time"

	"github.com/google/uuid"
)

// Release is one top-level download directory being processed.
type Release struct {
	ID   uuid.UUID
	Name string
	Path string
	Root string // the download root this release was found under
}

// Result aggregates one full pass over all download roots.
type Result struct {
	Processed   int
	Failed      []string
	Unsupported []string
	Messages    []string
}

// Merge folds other into r.
func (r *Result) Merge(other Result) {
	r.Processed += other.Processed
	r.Failed = append(r.Failed, other.Failed...)
	r.Unsupported = append(r.Unsupported, other.Unsupported...)
	r.Messages = append(r.Messages, other.Messages...)
}

// releaseOutcome tracks one release's progress through its contexts.
type releaseOutcome struct {
	processed        int
	failed           []string
	unsupported      []string
	messages         []string
	extractedTargets []string
	archiveSources   []archiveMove
	copySources      []string
	releaseFailed    bool
	startedAt        time.Time
}

// archiveMove remembers an extracted group whose members must still be
// mirrored into the finished tree.
type archiveMove struct {
	members   []string
	sourceDir string
}
