package metadata

import (
	"strconv"

	ptn "github.com/middelink/go-parse-torrent-name"
)

// ParsedName is the token parse of a release directory name, carrying the
// lookup candidate for the catalog and the heuristic fallback fields for
// the renamer.
type ParsedName struct {
	Title      string
	Year       int
	Season     int
	Episode    int
	Resolution string
	Codec      string
	Audio      string
	Quality    string
}

// ParseDirectoryName derives a title/year (and season/episode, when
// present) candidate from a dot-delimited release directory name.
func ParseDirectoryName(name string) (ParsedName, bool) {
	info, err := ptn.Parse(name)
	if err != nil || info == nil || info.Title == "" {
		return ParsedName{}, false
	}
	return ParsedName{
		Title:      info.Title,
		Year:       info.Year,
		Season:     info.Season,
		Episode:    info.Episode,
		Resolution: info.Resolution,
		Codec:      info.Codec,
		Audio:      info.Audio,
		Quality:    info.Quality,
	}, true
}

// Record converts the parsed tokens into a metadata record usable by the
// renamer when no sidecar (or catalog) supplied one.
func (p ParsedName) Record() Record {
	r := Record{
		Title:      p.Title,
		Resolution: p.Resolution,
		VideoCodec: p.Codec,
		AudioCodec: p.Audio,
	}
	if p.Year > 0 {
		r.Year = strconv.Itoa(p.Year)
	}
	return r
}

// IsEpisode reports whether the parse carries a season or an episode number.
func (p ParsedName) IsEpisode() bool {
	return p.Season > 0 || p.Episode > 0
}
