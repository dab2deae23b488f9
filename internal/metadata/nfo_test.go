package metadata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const movieNFO = `<?xml version="1.0" encoding="utf-8"?>
<movie>
  <title>Example Movie</title>
  <originaltitle>Das Beispiel</originaltitle>
  <sorttitle>Example Movie</sorttitle>
  <year>2021</year>
  <edition>Directors Cut</edition>
  <rating><value>7.4</value></rating>
  <genre>Drama</genre>
  <genre>Thriller</genre>
  <country>Germany</country>
  <director>A. Director</director>
  <uniqueid type="imdb">tt1234567</uniqueid>
  <uniqueid type="tmdb" default="true">4242</uniqueid>
  <fileinfo>
    <streamdetails>
      <video><codec>h265</codec><width>1920</width><height>1080</height></video>
      <audio><codec>dts</codec><channels>6</channels></audio>
    </streamdetails>
  </fileinfo>
</movie>
`

func TestParseNFOMovie(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "movie.nfo")
	require.NoError(t, os.WriteFile(path, []byte(movieNFO), 0o644))

	record, isTV, err := ParseNFO(path)
	require.NoError(t, err)
	require.False(t, isTV)
	require.Equal(t, "Example Movie", record.Title)
	require.Equal(t, "Das Beispiel", record.OriginalTitle)
	require.Equal(t, "2021", record.Year)
	require.Equal(t, "Directors Cut", record.Edition)
	require.Equal(t, "7.4", record.Rating)
	require.Equal(t, []string{"Drama", "Thriller"}, record.Genres)
	require.Equal(t, []string{"Germany"}, record.Countries)
	require.Equal(t, "tt1234567", record.IMDbID)
	require.Equal(t, "4242", record.TMDBID)
	require.Equal(t, "1920x1080", record.Resolution)
	require.Equal(t, "dts", record.AudioCodec)
	require.Equal(t, "6", record.AudioChannels)
}

func TestParseNFOEpisode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "episode.nfo")
	require.NoError(t, os.WriteFile(path, []byte(`<episodedetails><title>Pilot</title></episodedetails>`), 0o644))

	record, isTV, err := ParseNFO(path)
	require.NoError(t, err)
	require.True(t, isTV)
	require.Equal(t, "Pilot", record.Title)
}

func TestParseNFORejectsForeignRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "strange.nfo")
	require.NoError(t, os.WriteFile(path, []byte(`<artist><name>X</name></artist>`), 0o644))

	_, _, err := ParseNFO(path)
	require.Error(t, err)
}

func TestFindNFO(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.mkv"), []byte("x"), 0o644))
	require.Equal(t, "", FindNFO(dir))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.NFO"), []byte("x"), 0o644))
	require.Equal(t, filepath.Join(dir, "a.NFO"), FindNFO(dir))
}

func TestWriteSidecarNormalisesSuffix(t *testing.T) {
	dir := t.TempDir()
	record := Record{Title: "Example Movie", Year: "2021", IMDbID: "tt1234567"}

	// A caller asking for a different suffix still gets .nfo.
	path, err := WriteSidecar(filepath.Join(dir, "Example Movie.info"), record, false)
	require.NoError(t, err)
	require.Equal(t, ".nfo", filepath.Ext(path))

	// Round-trips through the parser.
	parsed, isTV, err := ParseNFO(path)
	require.NoError(t, err)
	require.False(t, isTV)
	require.Equal(t, "Example Movie", parsed.Title)
	require.Equal(t, "2021", parsed.Year)
	require.Equal(t, "tt1234567", parsed.IMDbID)
}

func TestWriteSidecarEpisodeRoot(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSidecar(filepath.Join(dir, "ep.nfo"), Record{Title: "Pilot"}, true)
	require.NoError(t, err)

	_, isTV, err := ParseNFO(path)
	require.NoError(t, err)
	require.True(t, isTV)
}

func TestParseDirectoryName(t *testing.T) {
	parsed, ok := ParseDirectoryName("Example.Movie.2021.1080p.BluRay.x264-GRP")
	require.True(t, ok)
	require.Equal(t, "Example Movie", parsed.Title)
	require.Equal(t, 2021, parsed.Year)
	require.False(t, parsed.IsEpisode())

	episode, ok := ParseDirectoryName("The.Show.S02E04.GERMAN.1080p-GRP")
	require.True(t, ok)
	require.Equal(t, 2, episode.Season)
	require.Equal(t, 4, episode.Episode)
	require.True(t, episode.IsEpisode())
}
