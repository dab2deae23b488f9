package metadata

import (
	"context"
	"log/slog"
	"path/filepath"
)

// Step is the optional enrichment pass over a staging directory: sidecar
// parse, directory-name fallback, catalog lookup, and a rewritten sidecar
// when the catalog contributed anything. Failures are never fatal for the
// release; a failed sidecar parse or catalog lookup leaves the record as the
// earlier steps built it, which may be empty.
type Step struct {
	catalog *Catalog
	log     *slog.Logger
}

// NewStep builds the metadata step. catalog may be nil when no remote
// lookup is configured.
func NewStep(catalog *Catalog, log *slog.Logger) *Step {
	if log == nil {
		log = slog.Default()
	}
	return &Step{catalog: catalog, log: log.With("component", "metadata")}
}

// Resolve produces the best-available metadata record for stagingDir and
// reports whether it describes a TV episode. The record may be empty when
// neither a sidecar nor the directory name yields a title.
func (s *Step) Resolve(ctx context.Context, stagingDir string) (Record, bool) {
	var record Record
	isTV := false

	if nfoPath := FindNFO(stagingDir); nfoPath != "" {
		parsed, tv, err := ParseNFO(nfoPath)
		if err != nil {
			s.log.Warn("Sidecar parse failed, falling back to directory name",
				"sidecar", filepath.Base(nfoPath), "error", err)
		} else if parsed.HasTitle() {
			record, isTV = parsed, tv
		}
	}

	name, nameOK := ParseDirectoryName(filepath.Base(stagingDir))
	// The name heuristic only counts when it found a year or an episode
	// token; a bare word is not enough evidence to rename on.
	if !record.HasTitle() && nameOK && (name.Year > 0 || name.IsEpisode()) {
		record = name.Record()
		isTV = name.IsEpisode()
		s.log.Info("Parsed metadata from directory name",
			"dir", filepath.Base(stagingDir), "title", record.Title, "year", record.Year)
	}

	if !record.HasTitle() {
		s.log.Debug("No metadata could be derived", "dir", filepath.Base(stagingDir))
		return record, isTV
	}

	if s.catalog != nil {
		wanted := "radarr"
		if isTV {
			wanted = "sonarr"
		}
		if s.catalog.Configured(wanted) {
			enriched, err := s.catalog.Enrich(ctx, record, name, isTV)
			if err != nil {
				s.log.Debug("Catalog lookup missed", "title", record.Title, "error", err)
			} else {
				record = enriched
				sidecar := filepath.Join(stagingDir, record.Title+".nfo")
				if _, werr := WriteSidecar(sidecar, record, isTV); werr != nil {
					s.log.Warn("Could not write enriched sidecar", "error", werr)
				}
			}
		}
	}

	return record, isTV
}
