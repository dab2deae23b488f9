package archive

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Member is a single file recognised as (part of) an archive, with its
// classification already resolved.
type Member struct {
	Path        string
	Format      Format
	Base        string // normalised base name + extension, used as the group key
	VolumeIndex int    // -1 for singletons
	Incomplete  bool   // true if the filename carried the .dctmp sentinel
}

func groupValue(re *regexp.Regexp, match []string, name string) string {
	idx := re.SubexpIndex(name)
	if idx < 0 || idx >= len(match) {
		return ""
	}
	return match[idx]
}

func isArchiveExtension(name string) bool {
	for _, suffix := range supportedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.HasSuffix(name, ".rar")
}

// IsSupportedArchive reports whether name (any case) is recognised as an
// archive member: a direct format suffix, the incomplete sentinel, or one
// of the three multi-part patterns whose resolved base carries a
// recognised suffix.
func IsSupportedArchive(name string) bool {
	lower := strings.ToLower(name)

	if strings.HasSuffix(lower, ".rar") || strings.HasSuffix(lower, IncompleteSentinel) {
		return true
	}
	if isArchiveExtension(lower) {
		return true
	}

	if m := partVolumeRe.FindStringSubmatch(lower); m != nil {
		candidate := groupValue(partVolumeRe, m, "base") + groupValue(partVolumeRe, m, "ext")
		if isArchiveExtension(candidate) {
			return true
		}
	}

	if rVolumeRe.MatchString(lower) {
		return true
	}

	if m := splitExtRe.FindStringSubmatch(lower); m != nil {
		candidate := groupValue(splitExtRe, m, "base") + groupValue(splitExtRe, m, "ext")
		if isArchiveExtension(candidate) {
			return true
		}
	}

	return false
}

// Classify determines the format, group base, and volume index for a
// filename, stripping a trailing incomplete sentinel before matching (the
// member is still marked Incomplete). Tie-breaks follow the documented
// order: part-volume, then r-volume, then split-suffix; anything else not
// matching is a singleton with VolumeIndex -1.
func Classify(path string) Member {
	name := filepath.Base(path)
	lower := strings.ToLower(name)

	incomplete := strings.HasSuffix(lower, IncompleteSentinel)
	if incomplete {
		lower = strings.TrimSuffix(lower, IncompleteSentinel)
	}

	if m := partVolumeRe.FindStringSubmatch(lower); m != nil {
		base := groupValue(partVolumeRe, m, "base")
		ext := groupValue(partVolumeRe, m, "ext")
		idx, _ := strconv.Atoi(groupValue(partVolumeRe, m, "index"))
		return Member{
			Path:        path,
			Format:      formatOf(base + ext),
			Base:        base + ext,
			VolumeIndex: idx,
			Incomplete:  incomplete,
		}
	}

	if m := rVolumeRe.FindStringSubmatch(lower); m != nil {
		base := groupValue(rVolumeRe, m, "base")
		idx, _ := strconv.Atoi(groupValue(rVolumeRe, m, "index"))
		return Member{
			Path:        path,
			Format:      FormatRAR,
			Base:        base + ".rar",
			VolumeIndex: idx,
			Incomplete:  incomplete,
		}
	}

	if m := splitExtRe.FindStringSubmatch(lower); m != nil {
		base := groupValue(splitExtRe, m, "base")
		ext := groupValue(splitExtRe, m, "ext")
		idx, _ := strconv.Atoi(groupValue(splitExtRe, m, "index"))
		return Member{
			Path:        path,
			Format:      formatOf(base + ext),
			Base:        base + ext,
			VolumeIndex: idx,
			Incomplete:  incomplete,
		}
	}

	return Member{
		Path:        path,
		Format:      formatOf(lower),
		Base:        lower,
		VolumeIndex: -1,
		Incomplete:  incomplete,
	}
}

func formatOf(name string) Format {
	switch {
	case strings.HasSuffix(name, ".rar"):
		return FormatRAR
	case strings.HasSuffix(name, ".zip"):
		return FormatZIP
	case strings.HasSuffix(name, ".7z") || strings.HasSuffix(name, ".7z.001"):
		return FormatSevenZip
	case strings.Contains(name, ".tar"):
		return FormatTAR
	default:
		return FormatUnknown
	}
}
