package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func mkfiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
}

func TestWalkMovieReleaseMainContextOnly(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	mkfiles(t, release, "Example.Movie.2021.1080p-GRP.part01.rar", "Example.Movie.2021.1080p-GRP.part02.rar", "Example.Movie.2021.1080p-GRP.nfo")

	contexts := Walk(release, root, Policy{IncludeSub: true}, nil)
	require.Len(t, contexts, 1)
	require.Equal(t, release, contexts[0].Source)
	require.Equal(t, filepath.Join("Movies", "Example.Movie.2021.1080p-GRP"), contexts[0].TargetRel)
	require.True(t, contexts[0].ShouldExtract)
}

func TestWalkMainContextIsAlwaysLast(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	mkfiles(t, release, "movie.part01.rar")
	mkfiles(t, filepath.Join(release, "Subs"), "movie.subs.rar")

	contexts := Walk(release, root, Policy{IncludeSub: true}, nil)
	require.Len(t, contexts, 2)
	require.Equal(t, filepath.Join(release, "Subs"), contexts[0].Source)
	require.Equal(t, release, contexts[1].Source)
}

func TestWalkSubfolderPolicyFlags(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	mkfiles(t, release, "movie.part01.rar")
	mkfiles(t, filepath.Join(release, "Sample"), "sample.rar")
	mkfiles(t, filepath.Join(release, "Subs"), "subs.rar")
	mkfiles(t, filepath.Join(release, "Sonstige"), "other.rar")

	contexts := Walk(release, root, Policy{IncludeSample: false, IncludeSub: true, IncludeOther: false}, nil)

	var sources []string
	for _, c := range contexts {
		sources = append(sources, filepath.Base(c.Source))
	}
	require.NotContains(t, sources, "Sample")
	require.NotContains(t, sources, "Sonstige")
	require.Contains(t, sources, "Subs")
}

func TestWalkTVSeasonPackFlattensEpisodes(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "The.Show.S02.GERMAN.1080p-GRP")
	ep1 := filepath.Join(release, "The.Show.S02E01.GERMAN.1080p-GRP")
	ep2 := filepath.Join(release, "The.Show.S02E02.GERMAN.1080p-GRP")
	mkfiles(t, ep1, "The.Show.S02E01.part01.rar")
	mkfiles(t, ep2, "The.Show.S02E02.part01.rar")

	contexts := Walk(release, root, Policy{IncludeSub: true}, nil)

	seasonRel := filepath.Join("TV-Shows", "The Show", "Season 02")
	require.GreaterOrEqual(t, len(contexts), 2)
	for _, c := range contexts[:len(contexts)-1] {
		require.Equal(t, seasonRel, c.TargetRel, c.Source)
	}
	// Main context last, also mapped into the season destination.
	require.Equal(t, release, contexts[len(contexts)-1].Source)
	require.Equal(t, seasonRel, contexts[len(contexts)-1].TargetRel)
}

func TestWalkCopyOnlyDirectoryStillYieldsContext(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Show.S01.Pack")
	episode := filepath.Join(release, "Show.S01E01.Subpack")
	// Subtitle-only episode: files but no archives.
	mkfiles(t, episode, "Show.S01E01.srt")

	contexts := Walk(release, root, Policy{IncludeSub: true}, nil)

	var sources []string
	for _, c := range contexts {
		sources = append(sources, c.Source)
	}
	require.Contains(t, sources, episode)
}

func TestWalkReportsEveryInspectedEntry(t *testing.T) {
	root := t.TempDir()
	release := filepath.Join(root, "Example.Movie.2021.1080p-GRP")
	mkfiles(t, release, "a.rar", "b.nfo")
	mkfiles(t, filepath.Join(release, "Subs"), "subs.rar")

	var seen []string
	Walk(release, root, Policy{IncludeSub: true}, ObserverFunc(func(p string) {
		seen = append(seen, filepath.Base(p))
	}))

	require.Contains(t, seen, "a.rar")
	require.Contains(t, seen, "b.nfo")
	require.Contains(t, seen, "Subs")
}
