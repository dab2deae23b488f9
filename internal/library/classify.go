// Package library decides where a release belongs in the media library:
// Movie vs. TV show classification and the synthesis of the
// library-relative destination path (Movies/..., TV-Shows/<Show>/Season NN).
package library

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Category prefixes used below the extracted root and the library roots.
const (
	TVCategory     = "TV-Shows"
	MoviesCategory = "Movies"
)

var (
	// tvTagRe matches a combined or bare season token: S01, S01E01.
	tvTagRe = regexp.MustCompile(`(?i)s\d{2}(?:e\d{2})?`)
	// episodeOnlyTagRe matches an episode token without a season (E01,
	// E001), guarded against letters on either side; the token itself is
	// capture group 2.
	episodeOnlyTagRe = regexp.MustCompile(`(?i)(^|[^a-z])(e\d{2,3})([^a-z]|$)`)
	// seasonDirRe / staffelDirRe / seasonShortDirRe match pure season
	// directory names: "Season 01", "Staffel 2", short "S03".
	seasonDirRe      = regexp.MustCompile(`(?i)^season\s*(\d+)$`)
	staffelDirRe     = regexp.MustCompile(`(?i)^staffel\s*(\d+)$`)
	seasonShortDirRe = regexp.MustCompile(`(?i)^s\d{1,2}$`)
	// seasonTagRe extracts the season number from a dotted release name
	// (Show.S02.GERMAN...); seasonTagAltRe is the dot-less fallback.
	seasonTagRe    = regexp.MustCompile(`(?i)\.S(\d+)`)
	seasonTagAltRe = regexp.MustCompile(`(?i)S(\d+)`)
	seasonNumRe    = regexp.MustCompile(`(?i)S(\d+)`)
	stripSeasonRe  = regexp.MustCompile(`(?i)\.S\d+.*`)
)

// IsSeasonDirectory reports whether name is a pure season folder:
// "Season 01", "Staffel 2", or a short "S01".
func IsSeasonDirectory(name string) bool {
	return seasonDirRe.MatchString(name) ||
		staffelDirRe.MatchString(name) ||
		seasonShortDirRe.MatchString(name)
}

// HasTVTag reports whether name carries any season or episode token.
func HasTVTag(name string) bool {
	return tvTagRe.MatchString(name) || episodeOnlyTagRe.MatchString(name)
}

// HasEpisodeOnlyTag reports whether name carries an episode token (E01/E001).
func HasEpisodeOnlyTag(name string) bool {
	return episodeOnlyTagRe.MatchString(name)
}

// EpisodeTag returns the episode token (lowercased, e.g. "e03") in name and
// its start offset, or ("", -1) when name carries none.
func EpisodeTag(name string) (string, int) {
	m := episodeOnlyTagRe.FindStringSubmatchIndex(name)
	if m == nil {
		return "", -1
	}
	start, end := m[4], m[5]
	return strings.ToLower(name[start:end]), start
}

// SeasonDirName extracts the season directory name ("Season 01") from a
// name bearing an S<NN> token, or "" when the name carries none.
func SeasonDirName(name string) string {
	m := tvTagRe.FindString(name)
	if m == "" {
		return ""
	}
	num := seasonNumRe.FindStringSubmatch(strings.ToUpper(m))
	if num == nil {
		return ""
	}
	n, err := strconv.Atoi(num[1])
	if err != nil {
		return ""
	}
	return seasonName(n)
}

func seasonName(n int) string {
	return "Season " + pad2(n)
}

func pad2(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 {
		return "0" + s
	}
	return s
}

// LooksLikeTVShow classifies a directory as a TV show. Checks are ordered:
// a pure season name, a TV token in the name, then a bounded-depth walk
// looking for season-named child directories or TV-tagged files.
func LooksLikeTVShow(root string) bool {
	name := filepath.Base(root)
	if IsSeasonDirectory(name) || HasTVTag(name) {
		return true
	}

	entries, err := os.ReadDir(root)
	if err == nil {
		for _, entry := range entries {
			if entry.IsDir() && (IsSeasonDirectory(entry.Name()) || HasTVTag(entry.Name())) {
				return true
			}
			if !entry.IsDir() && HasTVTag(entry.Name()) {
				return true
			}
		}
	}

	return scanForTVTokens(root, 3)
}

// scanForTVTokens walks root up to maxDepth levels looking for a season
// directory or a TV-tagged entry anywhere below.
func scanForTVTokens(root string, maxDepth int) bool {
	rootDepth := strings.Count(filepath.Clean(root), string(filepath.Separator))
	found := false

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if found {
			return filepath.SkipAll
		}
		depth := strings.Count(filepath.Clean(path), string(filepath.Separator)) - rootDepth
		if d.IsDir() && depth > maxDepth {
			return filepath.SkipDir
		}
		if path == root {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if IsSeasonDirectory(name) || HasTVTag(name) {
				found = true
				return filepath.SkipAll
			}
			return nil
		}
		if HasTVTag(name) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})

	return found
}

// CategoryPrefix returns TV-Shows or Movies for a release directory.
func CategoryPrefix(dir string) string {
	if LooksLikeTVShow(dir) {
		return TVCategory
	}
	return MoviesCategory
}

// NormalizeSpecialSubdir maps the well-known sidecar directory names to
// their canonical form, or "" when name is not a special subdirectory:
// {Sub, Subs, Untertitel} -> Subs, Sample -> Sample,
// {Sonstige, Other, Misc} -> Sonstige.
func NormalizeSpecialSubdir(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sub", "subs", "untertitel":
		return "Subs"
	case "sample":
		return "Sample"
	case "sonstige", "other", "misc":
		return "Sonstige"
	default:
		return ""
	}
}
