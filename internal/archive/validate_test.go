package archive

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	paths := make([]string, len(names))
	for i, name := range names {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		paths[i] = p
	}
	return paths
}

func TestValidateCompleteGroupPasses(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, "movie.part01.rar", "movie.part02.rar")
	groups := BuildGroups(paths)
	require.Len(t, groups, 1)

	ok, reason := Validate(groups[0], true)
	require.True(t, ok, reason)
}

func TestValidateRejectsIncompleteSentinel(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, "movie.part01.rar", "movie.part02.rar.dctmp")
	groups := BuildGroups(paths)
	require.Len(t, groups, 1)

	ok, reason := Validate(groups[0], true)
	require.False(t, ok)
	require.Contains(t, reason, "downloading")
}

func TestValidateDetectsMissingVolume(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, "movie.part01.rar", "movie.part03.rar")
	groups := BuildGroups(paths)
	require.Len(t, groups, 1)

	ok, reason := Validate(groups[0], true)
	require.False(t, ok)
	require.Contains(t, reason, "missing volume index")
}

func TestValidateDetectsInProgressDownload(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, "movie.part01.rar", "movie.part02.rar")
	// A higher-indexed sibling is already on disk, signalling more parts incoming.
	writeFiles(t, dir, "movie.part03.rar")
	groups := BuildGroups(paths)
	require.Len(t, groups, 1)

	ok, reason := Validate(groups[0], true)
	require.False(t, ok)
	require.Contains(t, reason, "may still be in progress")
}

func TestValidateLegacyRVolumesNeedBaseRar(t *testing.T) {
	dir := t.TempDir()
	paths := writeFiles(t, dir, "movie.r00", "movie.r01")
	groups := BuildGroups(paths)
	require.Len(t, groups, 1)

	ok, reason := Validate(groups[0], true)
	require.False(t, ok)
	require.Contains(t, reason, "missing base .rar volume")
}

func TestValidateMissingPrimaryFails(t *testing.T) {
	dir := t.TempDir()
	ok, reason := Validate(Group{
		Key:      "ghost.rar",
		Primary:  filepath.Join(dir, "ghost.rar"),
		Members:  []Member{{Path: filepath.Join(dir, "ghost.rar"), VolumeIndex: -1}},
		OrderMap: map[string]int{filepath.Join(dir, "ghost.rar"): -1},
	}, true)
	require.False(t, ok)
	require.Equal(t, "primary archive file is missing", reason)
}
