package fileops

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/cineripr/releasepipeline/internal/library"
)

var videoSuffixes = map[string]bool{
	".mkv": true, ".mp4": true, ".avi": true, ".mov": true, ".m4v": true,
}

// IsVideoFile reports whether path carries a recognised video suffix.
func IsVideoFile(path string) bool {
	return videoSuffixes[strings.ToLower(filepath.Ext(path))]
}

// FlattenSingleSubdir lifts the contents of dir's only subdirectory up one
// level when dir contains exactly one subdirectory and no files - the
// common case of archives that unpack into a nested folder named after
// themselves.
func (o *Operator) FlattenSingleSubdir(dir string) {
	entries, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		return
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			return
		}
		dirs = append(dirs, entry.Name())
	}
	if len(dirs) != 1 {
		return
	}

	only := filepath.Join(dir, dirs[0])
	children, err := afero.ReadDir(o.fs, only)
	if err != nil {
		return
	}
	for _, child := range children {
		src := filepath.Join(only, child.Name())
		dst := o.EnsureUniqueDestination(filepath.Join(dir, child.Name()))
		if child.IsDir() {
			_ = o.MoveTree(src, dst)
		} else if err := o.MoveFile(src, dst); err != nil {
			o.log.Warn("Could not lift extracted entry", "file", src, "error", err)
		}
	}
	_ = o.fs.Remove(only)
}

// FlattenNewTopLevelDirs lifts directories an extraction newly created at
// the top of targetDir (plus any episode-named ones that already existed)
// so no-season shows end up with files directly under the show folder.
// previousNames is the pre-extraction snapshot from TopLevelNames.
func (o *Operator) FlattenNewTopLevelDirs(targetDir string, previousNames map[string]bool) {
	entries, err := afero.ReadDir(o.fs, targetDir)
	if err != nil {
		return
	}

	candidates := make(map[string]bool)
	for _, entry := range entries {
		if !previousNames[entry.Name()] {
			candidates[entry.Name()] = true
		}
		if library.HasEpisodeOnlyTag(entry.Name()) {
			candidates[entry.Name()] = true
		}
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		candidate := filepath.Join(targetDir, name)
		isDir, err := afero.IsDir(o.fs, candidate)
		if err != nil || !isDir {
			continue
		}
		switch strings.ToLower(name) {
		case "subs", "sub", "sample", "sonstige":
			continue
		}

		children, err := afero.ReadDir(o.fs, candidate)
		if err != nil {
			continue
		}
		for _, child := range children {
			src := filepath.Join(candidate, child.Name())
			dst := o.EnsureUniqueDestination(filepath.Join(targetDir, child.Name()))
			if child.IsDir() {
				_ = o.MoveTree(src, dst)
			} else {
				_ = o.MoveFile(src, dst)
			}
		}
		_ = o.fs.Remove(candidate)
	}
}

// FlattenEpisodeLikeDirs recursively lifts files out of episode-like
// subdirectories of targetDir - those bearing an episode token or holding a
// video file directly or nested - so videos land directly under the season
// folder.
func (o *Operator) FlattenEpisodeLikeDirs(targetDir string) {
	entries, err := afero.ReadDir(o.fs, targetDir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		candidate := filepath.Join(targetDir, entry.Name())

		if !library.HasEpisodeOnlyTag(entry.Name()) && !o.containsVideo(candidate) {
			continue
		}

		o.moveFilesUp(candidate, targetDir)
		if empty, _ := afero.IsEmpty(o.fs, candidate); empty {
			_ = o.fs.Remove(candidate)
		}
	}
}

var errVideoFound = errors.New("video found")

func (o *Operator) containsVideo(dir string) bool {
	err := afero.Walk(o.fs, dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if IsVideoFile(path) {
			return errVideoFound
		}
		return nil
	})
	return err == errVideoFound
}

// moveFilesUp moves every file below dir directly into top, depth-first,
// removing subdirectories as they empty out.
func (o *Operator) moveFilesUp(dir, top string) {
	entries, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		src := filepath.Join(dir, entry.Name())
		if entry.IsDir() {
			o.moveFilesUp(src, top)
			if empty, _ := afero.IsEmpty(o.fs, src); empty {
				_ = o.fs.Remove(src)
			}
			continue
		}
		dst := o.EnsureUniqueDestination(filepath.Join(top, entry.Name()))
		if err := o.MoveFile(src, dst); err != nil {
			o.log.Warn("Could not flatten episode file", "file", src, "error", err)
		}
	}
}
