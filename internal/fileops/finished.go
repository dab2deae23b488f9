package fileops

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/cineripr/releasepipeline/internal/library"
)

// MoveReleaseTreeToFinished mirrors every file under currentDir (a
// directory within a release) into the finished tree, preserving the
// release-relative sub-path: <finished>/<ReleaseRoot>/<sub-path>.
func (o *Operator) MoveReleaseTreeToFinished(currentDir, finishedRoot, downloadRoot string) {
	releaseRoot, releaseRootName := o.releaseRootOf(currentDir, downloadRoot)
	if releaseRootName == "" {
		return
	}

	_ = afero.Walk(o.fs, currentDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		subRel, relErr := filepath.Rel(releaseRoot, filepath.Dir(path))
		if relErr != nil {
			subRel = ""
		}
		dst := o.EnsureUniqueDestination(filepath.Join(finishedRoot, releaseRootName, subRel, info.Name()))
		if moveErr := o.MoveFile(path, dst); moveErr != nil {
			o.log.Error("Failed to move file to finished", "file", path, "dest", dst, "error", moveErr)
		}
		return nil
	})
}

// MoveRelatedEpisodeArtifacts moves files from sibling special directories
// (Subs/Sample/Sonstige/Proof) that carry the same episode token as
// episodeDir into the finished tree next to the episode's own files, so
// subtitles stored per-season are not left behind.
func (o *Operator) MoveRelatedEpisodeArtifacts(episodeDir, finishedRoot, downloadRoot string) {
	tag, at := library.EpisodeTag(filepath.Base(episodeDir))
	if at < 0 {
		return
	}

	releaseRoot, releaseRootName := o.releaseRootOf(episodeDir, downloadRoot)
	if releaseRootName == "" {
		return
	}
	subRel, err := filepath.Rel(releaseRoot, episodeDir)
	if err != nil {
		subRel = ""
	}

	parent := filepath.Dir(episodeDir)
	siblings, err := afero.ReadDir(o.fs, parent)
	if err != nil {
		return
	}

	related := map[string]bool{"subs": true, "sub": true, "sample": true, "sonstige": true, "proof": true}
	for _, sib := range siblings {
		if !sib.IsDir() || !related[strings.ToLower(strings.TrimSpace(sib.Name()))] {
			continue
		}
		sibPath := filepath.Join(parent, sib.Name())
		_ = afero.Walk(o.fs, sibPath, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			if !strings.Contains(strings.ToLower(info.Name()), tag) {
				return nil
			}
			dst := o.EnsureUniqueDestination(filepath.Join(finishedRoot, releaseRootName, subRel, info.Name()))
			if moveErr := o.MoveFile(path, dst); moveErr != nil {
				o.log.Warn("Could not move episode artifact", "file", path, "error", moveErr)
			}
			return nil
		})
	}
}

// releaseRootOf resolves the release root (first path segment below the
// download root) for a directory within a release.
func (o *Operator) releaseRootOf(dir, downloadRoot string) (string, string) {
	rel, err := filepath.Rel(downloadRoot, dir)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return dir, filepath.Base(dir)
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return filepath.Join(downloadRoot, parts[0]), parts[0]
}

// RemoveEmptySubdirs deletes every empty directory below root, deepest
// first.
func (o *Operator) RemoveEmptySubdirs(root string) {
	var dirs []string
	_ = afero.Walk(o.fs, root, func(path string, info os.FileInfo, err error) error {
		if err == nil && info.IsDir() && path != root {
			dirs = append(dirs, path)
		}
		return nil
	})
	sort.Slice(dirs, func(i, j int) bool { return len(dirs[i]) > len(dirs[j]) })
	for _, dir := range dirs {
		if empty, _ := afero.IsEmpty(o.fs, dir); empty {
			_ = o.fs.Remove(dir)
		}
	}
}

// RemoveEmptyTree removes dir if empty, then walks up removing newly empty
// parents until (but not including) stop.
func (o *Operator) RemoveEmptyTree(dir, stop string) {
	current := filepath.Clean(dir)
	stop = filepath.Clean(stop)
	for current != stop {
		exists, err := afero.DirExists(o.fs, current)
		if err != nil || !exists {
			return
		}
		empty, err := afero.IsEmpty(o.fs, current)
		if err != nil || !empty {
			return
		}
		if err := o.fs.Remove(current); err != nil {
			return
		}
		current = filepath.Dir(current)
	}
}

// CleanupFailedExtractionDir removes a staging directory created for a
// failed extraction, but only when it was created by this attempt and is
// still empty.
func (o *Operator) CleanupFailedExtractionDir(targetDir string, preExisting bool) {
	if preExisting {
		return
	}
	if empty, err := afero.IsEmpty(o.fs, targetDir); err == nil && empty {
		_ = o.fs.Remove(targetDir)
	}
}

// RollbackExtractedTargets deletes every staging directory created for a
// release, invoked when the main context fails.
func (o *Operator) RollbackExtractedTargets(targets []string) {
	for _, target := range targets {
		if err := o.fs.RemoveAll(target); err != nil {
			o.log.Warn("Could not remove staging directory during rollback", "dir", target, "error", err)
		}
	}
}

// CleanupResult summarises one retention sweep over the finished tree.
type CleanupResult struct {
	Deleted []string
	Failed  []string
	Skipped []string
}

// CleanupFinished deletes files under finishedRoot whose modification time
// is older than retentionDays, honouring the enableDelete switch and demo
// mode (both merely record skipped candidates). Emptied directories are
// removed afterwards.
func (o *Operator) CleanupFinished(finishedRoot string, retentionDays int, enableDelete, demoMode bool) CleanupResult {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	var result CleanupResult
	parents := make(map[string]bool)

	_ = afero.Walk(o.fs, finishedRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if demoMode {
			o.log.Info("Demo mode: would delete", "file", path)
			result.Skipped = append(result.Skipped, path)
			return nil
		}
		if !enableDelete {
			o.log.Info("Delete switch disabled: skipping deletion", "file", path)
			result.Skipped = append(result.Skipped, path)
			return nil
		}

		if rmErr := o.fs.Remove(path); rmErr != nil {
			o.log.Error("Could not delete finished file", "file", path, "error", rmErr)
			result.Failed = append(result.Failed, path)
			return nil
		}
		result.Deleted = append(result.Deleted, path)
		parents[filepath.Dir(path)] = true
		return nil
	})

	if enableDelete && !demoMode {
		for parent := range parents {
			o.RemoveEmptyTree(parent, finishedRoot)
		}
	}
	return result
}
