package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildTVShowPathSeasonPack(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "The.Show.S02.GERMAN.1080p-GRP")
	require.NoError(t, os.MkdirAll(release, 0o755))

	got := BuildTVShowPath(release, root, TVCategory)
	require.Equal(t, filepath.Join("TV-Shows", "The Show", "Season 02"), got)
}

func TestBuildTVShowPathEpisodeDirFlattensIntoSeason(t *testing.T) {
	root := t.TempDir()
	episode := filepath.Join(root, "The.Show.S02.GERMAN.1080p-GRP", "The.Show.S02E04.GERMAN.1080p-GRP")
	require.NoError(t, os.MkdirAll(episode, 0o755))

	got := BuildTVShowPath(episode, root, TVCategory)
	require.Equal(t, filepath.Join("TV-Shows", "The Show", "Season 02"), got)
}

func TestBuildTVShowPathPureSeasonDirUsesReleaseRootName(t *testing.T) {
	root := t.TempDir()
	season := filepath.Join(root, "12.Monkeys.Complete", "Season 01")
	require.NoError(t, os.MkdirAll(season, 0o755))

	got := BuildTVShowPath(season, root, TVCategory)
	require.Equal(t, filepath.Join("TV-Shows", "12 Monkeys Complete", "Season 01"), got)
}

func TestBuildTVShowPathEpisodeOnlyHasNoSeasonDir(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Some.Show.E05.GERMAN-GRP")
	require.NoError(t, os.MkdirAll(release, 0o755))

	got := BuildTVShowPath(release, root, TVCategory)
	require.Equal(t, filepath.Join("TV-Shows", "Some Show"), got)
}

func TestDestinationForMovieMirrorsRelativePath(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	require.NoError(t, os.MkdirAll(release, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(release, "movie.mkv"), []byte("x"), 0o644))

	got := DestinationFor(release, root)
	require.Equal(t, filepath.Join("Movies", "Example.Movie.2021.1080p-GRP"), got)
}

func TestDestinationForTVShow(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "The.Show.S03.1080p-GRP")
	require.NoError(t, os.MkdirAll(release, 0o755))

	got := DestinationFor(release, root)
	require.Equal(t, filepath.Join("TV-Shows", "The Show", "Season 03"), got)
}
