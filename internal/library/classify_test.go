package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsSeasonDirectory(t *testing.T) {
	for _, name := range []string{"Season 1", "Season 01", "season 2", "SEASON 02", "Staffel 1", "S03"} {
		require.True(t, IsSeasonDirectory(name), name)
	}
	for _, name := range []string{"Sample", "The.Show.S02", "Seasonal", "S100"} {
		require.False(t, IsSeasonDirectory(name), name)
	}
}

func TestHasTVTag(t *testing.T) {
	require.True(t, HasTVTag("The.Show.S02E01.German.1080p"))
	require.True(t, HasTVTag("The.Show.S02.Pack"))
	require.True(t, HasTVTag("Show.E05.mkv"))
	require.False(t, HasTVTag("Example.Movie.2021.1080p-GRP"))
	// Episode token must not match inside a word.
	require.False(t, HasTVTag("release-notes.txt"))
}

func TestEpisodeTag(t *testing.T) {
	tag, start := EpisodeTag("Show.E03.German.mkv")
	require.Equal(t, "e03", tag)
	require.Equal(t, 5, start)

	_, start = EpisodeTag("Example.Movie.2021")
	require.Equal(t, -1, start)
}

func TestNormalizeSpecialSubdir(t *testing.T) {
	require.Equal(t, "Subs", NormalizeSpecialSubdir("Sub"))
	require.Equal(t, "Subs", NormalizeSpecialSubdir("subs"))
	require.Equal(t, "Subs", NormalizeSpecialSubdir("Untertitel"))
	require.Equal(t, "Sample", NormalizeSpecialSubdir("Sample"))
	require.Equal(t, "Sonstige", NormalizeSpecialSubdir("Other"))
	require.Equal(t, "Sonstige", NormalizeSpecialSubdir("Misc"))
	require.Equal(t, "", NormalizeSpecialSubdir("Extras"))
}

func TestLooksLikeTVShowByChildDir(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Some.Show.Pack")
	require.NoError(t, os.MkdirAll(filepath.Join(release, "Season 02"), 0o755))

	require.True(t, LooksLikeTVShow(release))
}

func TestLooksLikeTVShowByNestedFile(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Obscure.Pack")
	nested := filepath.Join(release, "disc", "content")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(nested, "show.s01e04.mkv"), []byte("x"), 0o644))

	require.True(t, LooksLikeTVShow(release))
}

func TestLooksLikeTVShowMovieIsFalse(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	require.NoError(t, os.MkdirAll(release, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(release, "movie.mkv"), []byte("x"), 0o644))

	require.False(t, LooksLikeTVShow(release))
}
