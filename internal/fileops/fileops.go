// Package fileops is the capability facade over every filesystem mutation
// the pipeline performs: copy/move with read-only and cross-device
// fallbacks, post-extraction flattening, the finished-tree mirror, empty
// tree cleanup, and the size-stability completeness check for loose files.
// The filesystem sits behind spf13/afero so tests run against an in-memory
// implementation.
package fileops

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/spf13/afero"

	"github.com/cineripr/releasepipeline/internal/archive"
	pipeerrors "github.com/cineripr/releasepipeline/internal/errors"
	"github.com/cineripr/releasepipeline/internal/settings"
)

// FileHistory is the slice of the settings store the completeness check
// needs: the last recorded size observation per absolute path.
type FileHistory interface {
	FileStatusFor(path string) (settings.FileStatus, bool)
	RecordFileStatus(path string, size int64, observedAt time.Time) error
}

// Operator performs all filesystem mutations for the pipeline. All
// operations are best-effort unless documented otherwise; callers decide
// what is fatal.
type Operator struct {
	fs  afero.Fs
	log *slog.Logger
}

// New creates an Operator over fs. Pass afero.NewOsFs() in production.
func New(fs afero.Fs, log *slog.Logger) *Operator {
	if log == nil {
		log = slog.Default()
	}
	return &Operator{fs: fs, log: log.With("component", "fileops")}
}

// EnsureUniqueDestination returns the destination unchanged: collisions are
// overwritten by policy, never silently renamed.
func (o *Operator) EnsureUniqueDestination(destination string) string {
	return destination
}

// CopyFile copies src to dst, creating parent directories and overwriting
// an existing destination. The copy itself is retried on transient errors.
func (o *Operator) CopyFile(src, dst string) error {
	if err := o.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	return retry.Do(
		func() error { return o.copyOnce(src, dst) },
		retry.Attempts(3),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

func (o *Operator) copyOnce(src, dst string) error {
	in, err := o.fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := o.fs.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if info, statErr := o.fs.Stat(src); statErr == nil {
		_ = o.fs.Chtimes(dst, time.Now(), info.ModTime())
	}
	return nil
}

// MoveFile relocates src to dst using the fallback ladder: an in-place
// rename first, copy-then-delete on read-only or cross-device errors, and
// a final attempt with normalised path forms for UNC/long paths. A failed
// source deletion after a successful copy is logged and accepted.
func (o *Operator) MoveFile(src, dst string) error {
	if err := o.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create destination dir: %w", err)
	}

	err := o.fs.Rename(src, dst)
	if err == nil {
		return nil
	}

	if isReadOnlyFs(err) {
		o.log.Warn("Read-only file system detected, using copy+delete", "file", filepath.Base(src))
	} else if !isCrossDevice(err) {
		o.log.Warn("Direct move failed", "file", filepath.Base(src), "error", err)
	}

	if copyErr := o.CopyFile(src, dst); copyErr == nil {
		if rmErr := o.fs.Remove(src); rmErr != nil {
			o.log.Warn("Could not delete original file after copy", "file", src, "error", rmErr)
		}
		return nil
	}

	if isUNCPath(src) {
		nsrc, ndst := normalizeUNC(src), normalizeUNC(dst)
		if mkErr := o.fs.MkdirAll(filepath.Dir(ndst), 0o755); mkErr == nil {
			if err2 := o.fs.Rename(nsrc, ndst); err2 == nil {
				return nil
			}
		}
	}

	return pipeerrors.NewFilesystemTransient(fmt.Sprintf("move %s", src), err)
}

// MoveTree relocates a whole directory, preferring a rename and falling
// back to a recursive copy plus source removal.
func (o *Operator) MoveTree(src, dst string) error {
	if err := o.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if err := o.fs.Rename(src, dst); err == nil {
		return nil
	}

	if err := o.copyTree(src, dst); err != nil {
		return err
	}
	if err := o.fs.RemoveAll(src); err != nil {
		o.log.Warn("Could not remove source tree after copy", "dir", src, "error", err)
	}
	return nil
}

func (o *Operator) copyTree(src, dst string) error {
	info, err := o.fs.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return o.copyOnce(src, dst)
	}
	if err := o.fs.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	entries, err := afero.ReadDir(o.fs, src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := o.copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

// MoveToFinalDestination moves a renamed staging directory into its library
// root, replacing an existing target of the same name.
func (o *Operator) MoveToFinalDestination(dir, root string) (string, error) {
	if err := o.fs.MkdirAll(root, 0o755); err != nil {
		return "", err
	}
	dst := filepath.Join(root, filepath.Base(dir))
	if exists, _ := afero.DirExists(o.fs, dst); exists {
		if err := o.fs.RemoveAll(dst); err != nil {
			return "", fmt.Errorf("replace existing target: %w", err)
		}
	}
	if err := o.MoveTree(dir, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func isReadOnlyFs(err error) bool {
	if errors.Is(err, syscall.EROFS) {
		return true
	}
	return strings.Contains(err.Error(), "read-only file system")
}

func isCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func isUNCPath(path string) bool {
	return strings.HasPrefix(path, `\\`) || strings.HasPrefix(path, "//")
}

// normalizeUNC rewrites a UNC path into its extended form so the retry can
// clear Windows path-length limits.
func normalizeUNC(path string) string {
	if strings.HasPrefix(path, `\\?\`) {
		return path
	}
	if strings.HasPrefix(path, `\\`) {
		return `\\?\UNC` + path[1:]
	}
	return path
}

// TopLevelNames snapshots the entry names directly under dir, used to tell
// which top-level directories an extraction created.
func (o *Operator) TopLevelNames(dir string) map[string]bool {
	names := make(map[string]bool)
	entries, err := afero.ReadDir(o.fs, dir)
	if err != nil {
		return names
	}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	return names
}

// CopyCompanionFilesToExtracted copies non-archive sidecars (.nfo, .srt,
// ...) from the source context into the staging directory, overwriting
// existing files and leaving the sources in place for the finished mirror.
func (o *Operator) CopyCompanionFilesToExtracted(srcDir, dstDir string) {
	if err := o.fs.MkdirAll(dstDir, 0o755); err != nil {
		return
	}
	entries, err := afero.ReadDir(o.fs, srcDir)
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})
	for _, entry := range entries {
		if entry.IsDir() || archive.IsSupportedArchive(entry.Name()) {
			continue
		}
		if strings.EqualFold(filepath.Ext(entry.Name()), ".sfv") {
			continue
		}
		src := filepath.Join(srcDir, entry.Name())
		if err := o.CopyFile(src, filepath.Join(dstDir, entry.Name())); err != nil {
			o.log.Error("Error copying companion file", "file", src, "error", err)
		}
	}
}

// IsFileComplete reports whether a loose non-archive file has finished
// downloading: its size is unchanged since the previous observation and its
// mtime is older than stabilityHours. The first observation records the
// size and always reports incomplete.
func (o *Operator) IsFileComplete(path string, history FileHistory, stabilityHours int) bool {
	info, err := o.fs.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	now := time.Now()
	prev, seen := history.FileStatusFor(path)
	if !seen {
		_ = history.RecordFileStatus(path, info.Size(), now)
		return false
	}
	if info.Size() != prev.Size {
		_ = history.RecordFileStatus(path, info.Size(), now)
		return false
	}

	return now.Sub(info.ModTime()) >= time.Duration(stabilityHours)*time.Hour
}
