package library

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// DestinationFor synthesises the library-relative destination for a
// directory within a release: Movies mirror the release-relative path, TV
// shows are normalised to <prefix>/<Show Name>/Season NN (or just the show
// name for episode-only packs).
func DestinationFor(dir, downloadRoot string) string {
	prefix := CategoryPrefix(dir)
	if prefix == TVCategory {
		return BuildTVShowPath(dir, downloadRoot, prefix)
	}
	rel, err := filepath.Rel(downloadRoot, dir)
	if err != nil {
		rel = filepath.Base(dir)
	}
	return filepath.Join(prefix, rel)
}

// BuildTVShowPath converts a TV release path into the normalised
// <prefix>/<Show Name>/Season NN layout. Episode directories flatten into
// the season folder; a pack with only episode tokens (no season) maps to
// <prefix>/<Show Name> with no season subdirectory.
func BuildTVShowPath(baseDir, downloadRoot, prefix string) string {
	rel, err := filepath.Rel(downloadRoot, baseDir)
	if err != nil || rel == "." {
		return filepath.Join(prefix, filepath.Base(baseDir))
	}
	parts := strings.Split(rel, string(filepath.Separator))

	// First segment carrying a season tag decides show name and season.
	for _, segment := range parts {
		num, ok := seasonNumberOf(segment)
		if !ok {
			continue
		}

		var showName string
		if IsSeasonDirectory(segment) {
			// Pure season directory: the show name comes from the release root.
			showName = dotsToSpaces(parts[0])
		} else {
			showName = dotsToSpaces(stripSeasonRe.ReplaceAllString(segment, ""))
			if showName == "" {
				showName = dotsToSpaces(parts[0])
			}
		}
		return filepath.Join(prefix, showName, seasonName(num))
	}

	// No season tag anywhere; an episode-only tag means a no-season show
	// placed directly under the show name.
	for _, segment := range parts {
		_, start := EpisodeTag(segment)
		if start < 0 {
			continue
		}
		showName := strings.Trim(dotsToSpaces(segment[:start]), "- ")
		if showName == "" {
			showName = dotsToSpaces(parts[0])
		}
		return filepath.Join(prefix, showName)
	}

	return filepath.Join(prefix, rel)
}

// seasonNumberOf extracts the season number from a path segment: a dotted
// .S<NN> tag, a bare S<NN>, or a pure "Season NN"/"Staffel NN" directory
// name.
func seasonNumberOf(segment string) (int, bool) {
	for _, re := range []*regexp.Regexp{seasonTagRe, seasonTagAltRe, seasonDirRe, staffelDirRe} {
		m := re.FindStringSubmatch(segment)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return n, true
	}
	return 0, false
}

func dotsToSpaces(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, ".", " "))
}
