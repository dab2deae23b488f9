// Package archive recognises supported archive formats, parses volume/part
// suffixes, and clusters files into archive families: one group per logical
// archive, ordered by volume index, validated for completeness before any
// extraction is attempted.
package archive

import "regexp"

// Format is a recognised outer archive format.
type Format int

const (
	FormatUnknown Format = iota
	FormatRAR
	FormatZIP
	FormatTAR
	FormatSevenZip
)

func (f Format) String() string {
	switch f {
	case FormatRAR:
		return "rar"
	case FormatZIP:
		return "zip"
	case FormatTAR:
		return "tar"
	case FormatSevenZip:
		return "7z"
	default:
		return "unknown"
	}
}

// IncompleteSentinel marks a partially-downloaded volume.
const IncompleteSentinel = ".dctmp"

// unwantedExtractedSuffixes are excluded from the extraction driver's
// output and from the external tool's exclusion glob.
var unwantedExtractedSuffixes = map[string]bool{
	".sfv": true,
}

// supportedSuffixes enumerates the recognised outer-format extensions, RAR
// and 7z included. A name is recognised when it ends in any of them, so
// the order of the list does not matter.
var supportedSuffixes = []string{
	".tar.bz2", ".tar.gz", ".tar.xz", ".tar.zst",
	".7z.001", ".zip", ".rar", ".tar", ".7z", ".gz", ".bz2", ".xz", ".zst",
}

// Multi-part archive patterns: .partNN.<ext> volumes, legacy .rNN RAR
// continuations, and split .<ext>.NN suffixes.
var (
	partVolumeRe = regexp.MustCompile(`(?i)^(?P<base>.+?)\.part(?P<index>\d+)(?P<ext>(?:\.[^.]+)+)$`)
	rVolumeRe    = regexp.MustCompile(`(?i)^(?P<base>.+?)\.r(?P<index>\d+)$`)
	splitExtRe   = regexp.MustCompile(`(?i)^(?P<base>.+?)(?P<ext>(?:\.[^.]+)+)\.(?P<index>\d+)$`)
)
