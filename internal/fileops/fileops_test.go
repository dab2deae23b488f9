package fileops

import (
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cineripr/releasepipeline/internal/settings"
)

func newTestOperator() (*Operator, afero.Fs) {
	fs := afero.NewMemMapFs()
	return New(fs, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))), fs
}

func write(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func exists(fs afero.Fs, path string) bool {
	ok, _ := afero.Exists(fs, path)
	return ok
}

func TestEnsureUniqueDestinationIsIdentity(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/x/a.mkv", "data")
	require.Equal(t, "/x/a.mkv", op.EnsureUniqueDestination("/x/a.mkv"))
}

func TestMoveFilePlain(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/src/a.rar", "data")

	require.NoError(t, op.MoveFile("/src/a.rar", "/dst/sub/a.rar"))
	require.False(t, exists(fs, "/src/a.rar"))
	content, err := afero.ReadFile(fs, "/dst/sub/a.rar")
	require.NoError(t, err)
	require.Equal(t, "data", string(content))
}

// renameFailFs simulates a filesystem whose rename always fails the way a
// cross-device move does, forcing the copy+delete fallback.
type renameFailFs struct {
	afero.Fs
	err error
}

func (f renameFailFs) Rename(oldname, newname string) error { return f.err }

func TestMoveFileFallsBackToCopyDelete(t *testing.T) {
	mem := afero.NewMemMapFs()
	op := New(renameFailFs{Fs: mem, err: syscall.EXDEV}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	write(t, mem, "/src/a.rar", "data")

	require.NoError(t, op.MoveFile("/src/a.rar", "/dst/a.rar"))
	require.False(t, exists(mem, "/src/a.rar"))
	require.True(t, exists(mem, "/dst/a.rar"))
}

// removeFailFs additionally refuses deletions, the read-only-source case:
// the copy succeeds, the source survives, and the move still reports
// success.
type removeFailFs struct {
	afero.Fs
}

func (f removeFailFs) Rename(oldname, newname string) error { return syscall.EROFS }
func (f removeFailFs) Remove(name string) error             { return syscall.EROFS }

func TestMoveFileReadOnlySourceKeepsOriginal(t *testing.T) {
	mem := afero.NewMemMapFs()
	op := New(removeFailFs{Fs: mem}, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	write(t, mem, "/src/a.rar", "data")

	require.NoError(t, op.MoveFile("/src/a.rar", "/dst/a.rar"))
	require.True(t, exists(mem, "/src/a.rar"))
	require.True(t, exists(mem, "/dst/a.rar"))
}

func TestFlattenSingleSubdir(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/out/Nested.Release/movie.mkv", "v")
	write(t, fs, "/out/Nested.Release/movie.nfo", "n")

	op.FlattenSingleSubdir("/out")

	require.True(t, exists(fs, "/out/movie.mkv"))
	require.True(t, exists(fs, "/out/movie.nfo"))
	require.False(t, exists(fs, "/out/Nested.Release"))
}

func TestFlattenSingleSubdirLeavesMixedContentAlone(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/out/sub/movie.mkv", "v")
	write(t, fs, "/out/loose.nfo", "n")

	op.FlattenSingleSubdir("/out")

	require.True(t, exists(fs, "/out/sub/movie.mkv"))
}

func TestFlattenEpisodeLikeDirs(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/season/Show.E01.Pack/deep/Show.E01.mkv", "v")
	write(t, fs, "/season/keepme.txt", "x")

	op.FlattenEpisodeLikeDirs("/season")

	require.True(t, exists(fs, "/season/Show.E01.mkv"))
	require.False(t, exists(fs, "/season/Show.E01.Pack"))
	require.True(t, exists(fs, "/season/keepme.txt"))
}

func TestCopyCompanionFilesSkipsArchivesAndChecksums(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/rel/movie.part01.rar", "a")
	write(t, fs, "/rel/movie.nfo", "n")
	write(t, fs, "/rel/movie.sfv", "s")
	write(t, fs, "/rel/movie.srt", "t")

	op.CopyCompanionFilesToExtracted("/rel", "/staging")

	require.True(t, exists(fs, "/staging/movie.nfo"))
	require.True(t, exists(fs, "/staging/movie.srt"))
	require.False(t, exists(fs, "/staging/movie.part01.rar"))
	require.False(t, exists(fs, "/staging/movie.sfv"))
	// Sources stay in place for the finished mirror.
	require.True(t, exists(fs, "/rel/movie.nfo"))
}

func TestMoveReleaseTreeToFinishedPreservesRelativePath(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/downloads/Rel.Name-GRP/a.part01.rar", "1")
	write(t, fs, "/downloads/Rel.Name-GRP/Subs/a.srt", "2")

	op.MoveReleaseTreeToFinished("/downloads/Rel.Name-GRP", "/finished", "/downloads")

	require.True(t, exists(fs, "/finished/Rel.Name-GRP/a.part01.rar"))
	require.True(t, exists(fs, "/finished/Rel.Name-GRP/Subs/a.srt"))
	require.False(t, exists(fs, "/downloads/Rel.Name-GRP/a.part01.rar"))
}

func TestRemoveEmptyTreeStopsAtRoot(t *testing.T) {
	op, fs := newTestOperator()
	require.NoError(t, fs.MkdirAll("/downloads/rel/sub/leaf", 0o755))

	op.RemoveEmptyTree("/downloads/rel/sub/leaf", "/downloads")

	require.False(t, exists(fs, "/downloads/rel"))
	require.True(t, exists(fs, "/downloads"))
}

func TestCleanupFinishedHonoursRetentionAndSwitch(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/finished/rel/old.rar", "o")
	write(t, fs, "/finished/rel/new.rar", "n")
	old := time.Now().AddDate(0, 0, -30)
	require.NoError(t, fs.Chtimes("/finished/rel/old.rar", old, old))

	// Switch off: candidates are only recorded.
	res := op.CleanupFinished("/finished", 15, false, false)
	require.Empty(t, res.Deleted)
	require.Len(t, res.Skipped, 1)
	require.True(t, exists(fs, "/finished/rel/old.rar"))

	// Switch on: the aged file goes, the fresh one stays.
	res = op.CleanupFinished("/finished", 15, true, false)
	require.Len(t, res.Deleted, 1)
	require.False(t, exists(fs, "/finished/rel/old.rar"))
	require.True(t, exists(fs, "/finished/rel/new.rar"))
}

type fakeHistory struct {
	entries map[string]settings.FileStatus
}

func (f *fakeHistory) FileStatusFor(path string) (settings.FileStatus, bool) {
	fs, ok := f.entries[path]
	return fs, ok
}

func (f *fakeHistory) RecordFileStatus(path string, size int64, observedAt time.Time) error {
	f.entries[path] = settings.FileStatus{Size: size, LastCheckTs: observedAt.Unix()}
	return nil
}

func TestIsFileCompleteFirstObservationIsIncomplete(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/downloads/loose.mkv", "data")
	history := &fakeHistory{entries: map[string]settings.FileStatus{}}

	require.False(t, op.IsFileComplete("/downloads/loose.mkv", history, 24))
	// The observation was recorded.
	_, seen := history.FileStatusFor("/downloads/loose.mkv")
	require.True(t, seen)
}

func TestIsFileCompleteStableOldFile(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/downloads/loose.mkv", "data")
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, fs.Chtimes("/downloads/loose.mkv", old, old))

	history := &fakeHistory{entries: map[string]settings.FileStatus{
		"/downloads/loose.mkv": {Size: 4, LastCheckTs: old.Unix()},
	}}
	require.True(t, op.IsFileComplete("/downloads/loose.mkv", history, 24))
}

func TestIsFileCompleteSizeChangeResets(t *testing.T) {
	op, fs := newTestOperator()
	write(t, fs, "/downloads/loose.mkv", "data-grown")
	history := &fakeHistory{entries: map[string]settings.FileStatus{
		"/downloads/loose.mkv": {Size: 4, LastCheckTs: time.Now().Unix()},
	}}

	require.False(t, op.IsFileComplete("/downloads/loose.mkv", history, 24))
	fs2, _ := history.FileStatusFor("/downloads/loose.mkv")
	require.Equal(t, int64(10), fs2.Size)
}
