package rename

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/cineripr/releasepipeline/internal/metadata"
)

// Renamer applies the folder and file patterns to a staging directory.
type Renamer struct {
	fs  afero.Fs
	log *slog.Logger
}

// New creates a Renamer over fs. Pass afero.NewOsFs() in production.
func New(fs afero.Fs, log *slog.Logger) *Renamer {
	if log == nil {
		log = slog.Default()
	}
	return &Renamer{fs: fs, log: log.With("component", "rename")}
}

// FolderAndFiles renames dir per folderPattern and every file directly
// inside it per filePattern (subdirectories are left alone), driven by the
// metadata record. It returns the possibly-renamed directory path; ok is
// false when the folder rename itself failed, in which case nothing below
// it was touched.
func (r *Renamer) FolderAndFiles(dir, folderPattern, filePattern string, record metadata.Record) (bool, string) {
	interp := NewInterpreter(record)
	newDir := dir

	if folderName := interp.FolderName(folderPattern); folderName != "" {
		candidate := filepath.Join(filepath.Dir(dir), folderName)
		if candidate != dir {
			if err := r.fs.Rename(dir, candidate); err != nil {
				r.log.Warn("Failed to rename folder", "dir", dir, "error", err)
				return false, dir
			}
			r.log.Info("Renamed folder", "from", filepath.Base(dir), "to", folderName)
			newDir = candidate
		}
	}

	entries, err := afero.ReadDir(r.fs, newDir)
	if err != nil {
		r.log.Warn("Failed to list files for renaming", "dir", newDir, "error", err)
		return false, newDir
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		newStem := interp.FileName(filePattern, stem)
		if newStem == "" {
			continue
		}
		newName := newStem + ext
		if newName == entry.Name() {
			continue
		}

		src := filepath.Join(newDir, entry.Name())
		dst := filepath.Join(newDir, newName)

		// Same pattern target for several files of one extension: number
		// the later ones instead of overwriting.
		counter := 1
		for {
			exists, _ := afero.Exists(r.fs, dst)
			if !exists || dst == src {
				break
			}
			dst = filepath.Join(newDir, fmt.Sprintf("%s (%d)%s", newStem, counter, ext))
			counter++
		}

		if err := r.fs.Rename(src, dst); err != nil {
			r.log.Warn("Failed to rename file", "file", src, "error", err)
			continue
		}
		r.log.Info("Renamed file", "from", entry.Name(), "to", filepath.Base(dst))
	}

	return true, newDir
}
