package rename

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/cineripr/releasepipeline/internal/metadata"
)

func TestFolderNameDefaultPattern(t *testing.T) {
	record := metadata.Record{Title: "Example Movie", Year: "2021"}
	got := NewInterpreter(record).FolderName(DefaultFolderPattern)
	require.Equal(t, "Example Movie (2021)", got)
}

func TestFolderNameWithEdition(t *testing.T) {
	record := metadata.Record{Title: "Example Movie", Year: "2021", Edition: "Directors Cut"}
	got := NewInterpreter(record).FolderName(DefaultFolderPattern)
	require.Equal(t, "Example Movie (Directors Cut) (2021)", got)
}

func TestOptionalBlockDroppedWhenVariableEmpty(t *testing.T) {
	record := metadata.Record{Title: "Example Movie"}
	got := NewInterpreter(record).FolderName(DefaultFolderPattern)
	require.Equal(t, "Example Movie", got)
}

func TestFileNameSTMagicToken(t *testing.T) {
	record := metadata.Record{Title: "Example Movie"}
	got := NewInterpreter(record).FileName("ST", "original")
	require.Equal(t, "Example Movie", got)
}

func TestFileNameEmptyPatternKeepsOriginalStem(t *testing.T) {
	record := metadata.Record{Title: "Example Movie"}
	got := NewInterpreter(record).FileName("", "original.stem")
	require.Equal(t, "original.stem", got)
}

func TestListVariablesDefaultSeparator(t *testing.T) {
	record := metadata.Record{Title: "X", Genres: []string{"Drama", "Thriller"}}
	got := NewInterpreter(record).FolderName("$T - $G")
	require.Equal(t, "X - Drama, Thriller", got)
}

func TestListVariableCustomSeparator(t *testing.T) {
	record := metadata.Record{Title: "X", Genres: []string{"Drama", "Thriller"}}
	// The literal character after the token becomes the separator.
	got := NewInterpreter(record).FolderName("$G-")
	require.Equal(t, "Drama-Thriller-", got)
}

func TestFirstLetterVariable(t *testing.T) {
	record := metadata.Record{Title: "Example"}
	got := NewInterpreter(record).FolderName("$1/$T")
	// The slash is a filesystem-invalid character and is stripped.
	require.Equal(t, "EExample", got)
}

func TestSanitizeStripsInvalidCharacters(t *testing.T) {
	record := metadata.Record{Title: `What? A "Movie": Part <1>`, Year: "2020"}
	got := NewInterpreter(record).FolderName(DefaultFolderPattern)
	require.Equal(t, "What A Movie Part 1 (2020)", got)
}

func TestUnknownVariableSubstitutesEmpty(t *testing.T) {
	record := metadata.Record{Title: "X"}
	got := NewInterpreter(record).FolderName("$T$Z")
	require.Equal(t, "X", got)
}

func TestRenamerFolderAndFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	dir := "/staging/Movies/Example.Movie.2021.1080p-GRP"
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "example.movie.2021.mkv"), []byte("v"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "example.movie.2021.nfo"), []byte("n"), 0o644))

	record := metadata.Record{Title: "Example Movie", Year: "2021"}
	ok, newDir := r.FolderAndFiles(dir, DefaultFolderPattern, DefaultFilePattern, record)
	require.True(t, ok)
	require.Equal(t, "/staging/Movies/Example Movie (2021)", newDir)

	for _, name := range []string{"Example Movie.mkv", "Example Movie.nfo"} {
		exists, err := afero.Exists(fs, filepath.Join(newDir, name))
		require.NoError(t, err)
		require.True(t, exists, name)
	}
}

func TestRenamerNumbersCollidingTargets(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := New(fs, slog.New(slog.NewTextHandler(os.Stderr, nil)))

	dir := "/staging/x"
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "a.srt"), []byte("1"), 0o644))
	require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, "b.srt"), []byte("2"), 0o644))

	ok, _ := r.FolderAndFiles(dir, "", "$T", metadata.Record{Title: "Same"})
	require.True(t, ok)

	first, _ := afero.Exists(fs, filepath.Join(dir, "Same.srt"))
	second, _ := afero.Exists(fs, filepath.Join(dir, "Same (1).srt"))
	require.True(t, first)
	require.True(t, second)
}
