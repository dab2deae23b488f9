// Package metadata handles the optional enrichment step of a release:
// parsing sidecar .nfo files, deriving title/year candidates from the
// directory name, querying a configured Radarr/Sonarr catalog, and writing
// a normalised .nfo sidecar back next to the media. Every step is
// best-effort; a release never fails for lack of metadata.
package metadata

// Record is the metadata bundle consumed by the renamer's pattern
// language. Every field is optional; absent values substitute empty.
type Record struct {
	Title         string
	OriginalTitle string
	Year          string
	Edition       string
	SortTitle     string
	Genres        []string
	Countries     []string
	Director      string
	Rating        string
	IMDbID        string
	TMDBID        string
	VideoCodec    string
	AudioCodec    string
	Resolution    string
	VideoSource   string
	AudioChannels string
}

// HasTitle reports whether the record carries enough substance for the
// renamer to act on.
func (r Record) HasTitle() bool {
	return r.Title != ""
}

// Vars returns the substitution table for the pattern language. List
// variables keep their element order; scalar variables are plain strings.
func (r Record) Vars() map[string]any {
	return map[string]any{
		"T": r.Title,
		"O": r.OriginalTitle,
		"Y": r.Year,
		"6": r.Edition,
		"E": r.SortTitle,
		"G": r.Genres,
		"U": r.Countries,
		"C": r.Director,
		"P": r.Rating,
		"I": r.IMDbID,
		"H": r.VideoCodec,
		"J": r.AudioCodec,
		"R": r.Resolution,
		"S": r.VideoSource,
		"A": r.AudioChannels,
	}
}
