// Package walker enumerates the ordered processing contexts of a release:
// one per special subdirectory, episode directory, and finally the release
// root itself. The ordering contract matters - the main context (the
// release root) is always last, so a failure there can roll back everything
// before it.
package walker

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cineripr/releasepipeline/internal/archive"
	"github.com/cineripr/releasepipeline/internal/library"
)

// Context is one source directory of a release to be processed as a unit,
// together with its library-relative destination below the extracted root.
type Context struct {
	Source        string
	TargetRel     string
	ShouldExtract bool
}

// Policy governs which special subdirectories are extracted.
type Policy struct {
	IncludeSample bool
	IncludeSub    bool
	IncludeOther  bool
}

// Observer receives every directory entry the walker inspects, letting the
// orchestrator surface live "reading ..." progress with an exact
// denominator that grows as more items are discovered.
type Observer interface {
	OnDirectory(path string)
}

// ObserverFunc adapts a plain function to the Observer interface.
type ObserverFunc func(path string)

func (f ObserverFunc) OnDirectory(path string) { f(path) }

// Walk produces the ordered context list for one release directory. The
// release root is always emitted last as the main context, whether or not
// it carries archives of its own.
func Walk(releaseDir, downloadRoot string, policy Policy, obs Observer) []Context {
	contexts := walk(releaseDir, downloadRoot, policy, obs)

	// Recursive walks only emit a base context for directories with
	// content; the release root is unconditional.
	if len(contexts) == 0 || contexts[len(contexts)-1].Source != releaseDir {
		prefix := library.MoviesCategory
		isTV := library.LooksLikeTVShow(releaseDir)
		if isTV {
			prefix = library.TVCategory
		}
		contexts = append(contexts, Context{
			Source:        releaseDir,
			TargetRel:     destinationOf(releaseDir, downloadRoot, prefix, isTV),
			ShouldExtract: true,
		})
	}
	return contexts
}

func walk(releaseDir, downloadRoot string, policy Policy, obs Observer) []Context {
	var contexts []Context

	prefix := library.MoviesCategory
	isTV := library.LooksLikeTVShow(releaseDir)
	if isTV {
		prefix = library.TVCategory
	}

	entries, err := os.ReadDir(releaseDir)
	if err != nil {
		return contexts
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	baseName := filepath.Base(releaseDir)
	baseIsSeason := library.IsSeasonDirectory(baseName)
	baseHasTVTag := library.HasTVTag(baseName)

	for _, entry := range entries {
		child := filepath.Join(releaseDir, entry.Name())
		if obs != nil {
			obs.OnDirectory(child)
		}
		if !entry.IsDir() {
			continue
		}

		normalized := library.NormalizeSpecialSubdir(entry.Name())
		containsArchives := containsSupportedArchives(child)
		containsFiles := containsAnyFiles(child)

		var shouldExtract bool
		switch normalized {
		case "Sample":
			shouldExtract = policy.IncludeSample
		case "Subs":
			shouldExtract = policy.IncludeSub
		case "Sonstige":
			shouldExtract = policy.IncludeOther
		default:
			// Episode directories under a season folder (or a TV-tagged
			// parent) extract even when they only carry loose files.
			if (baseIsSeason || baseHasTVTag) && (containsArchives || containsFiles) {
				shouldExtract = true
			} else {
				shouldExtract = policy.IncludeOther
			}
		}

		// Episode flattening: children of a season directory land directly
		// in the season destination, no per-episode subfolder.
		if baseIsSeason && (containsArchives || containsFiles) {
			if shouldExtract {
				contexts = append(contexts, Context{
					Source:        child,
					TargetRel:     destinationOf(releaseDir, downloadRoot, prefix, isTV),
					ShouldExtract: true,
				})
			}
			continue
		}

		if normalized != "" {
			if shouldExtract {
				contexts = append(contexts, Context{
					Source:        child,
					TargetRel:     filepath.Join(destinationOf(releaseDir, downloadRoot, prefix, isTV), normalized),
					ShouldExtract: true,
				})
			}
			continue
		}

		// Season directories recurse one level so their episode children
		// flatten into the season destination.
		if library.IsSeasonDirectory(entry.Name()) {
			contexts = append(contexts, walk(child, downloadRoot, policy, obs)...)
			continue
		}

		// TV-tagged directories recurse regardless; content may be nested.
		if library.HasTVTag(entry.Name()) {
			contexts = append(contexts, walk(child, downloadRoot, policy, obs)...)
			continue
		}

		if shouldExtract {
			contexts = append(contexts, Context{
				Source:        child,
				TargetRel:     destinationOf(child, downloadRoot, prefix, isTV),
				ShouldExtract: true,
			})
		}
	}

	// The release root itself is the main context, emitted last.
	if containsSupportedArchives(releaseDir) || containsAnyFiles(releaseDir) {
		contexts = append(contexts, Context{
			Source:        releaseDir,
			TargetRel:     destinationOf(releaseDir, downloadRoot, prefix, isTV),
			ShouldExtract: true,
		})
	}

	return contexts
}

func destinationOf(dir, downloadRoot, prefix string, isTV bool) string {
	if isTV {
		return library.BuildTVShowPath(dir, downloadRoot, prefix)
	}
	rel, err := filepath.Rel(downloadRoot, dir)
	if err != nil {
		rel = filepath.Base(dir)
	}
	return filepath.Join(prefix, rel)
}

func containsSupportedArchives(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() && archive.IsSupportedArchive(entry.Name()) {
			return true
		}
	}
	return false
}

func containsAnyFiles(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			return true
		}
	}
	return false
}
