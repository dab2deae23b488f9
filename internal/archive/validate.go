package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Validate reports whether group is complete and ready for extraction.
// With checkCompleteness it also scans the primary's directory for
// higher-indexed siblings that would indicate the download is still in
// progress.
func Validate(group Group, checkCompleteness bool) (bool, string) {
	for _, m := range group.Members {
		if m.Incomplete {
			return false, fmt.Sprintf("part %s is still downloading (%s)", filepath.Base(m.Path), IncompleteSentinel)
		}
	}

	positives := make([]int, 0, len(group.OrderMap))
	for _, idx := range group.OrderMap {
		if idx >= 0 {
			positives = append(positives, idx)
		}
	}
	sort.Ints(positives)

	if len(positives) > 0 {
		start := positives[0]
		switch {
		case contains(positives, 0):
			start = 0
		case contains(positives, 1):
			start = 1
		}

		missing := missingIndexes(positives, start)
		if len(missing) > 0 {
			return false, "missing volume index(es): " + joinInts(missing)
		}

		if checkCompleteness {
			lastIndex := positives[len(positives)-1]
			var lastPart string
			for path, idx := range group.OrderMap {
				if idx == lastIndex {
					lastPart = path
					break
				}
			}
			if lastPart != "" {
				if _, err := os.Stat(lastPart); err == nil {
					if ok, reason := scanForLaterVolumes(group, lastPart, lastIndex); !ok {
						return false, reason
					}
				}
			}
		}

		isRVolumeGroup := strings.HasSuffix(strings.ToLower(group.Key), ".rar")
		hasSingleton := contains2(group.OrderMap, -1)
		if isRVolumeGroup && !hasSingleton {
			isModernPartFormat := false
			for _, m := range group.Members {
				if strings.Contains(strings.ToLower(filepath.Base(m.Path)), ".part") {
					isModernPartFormat = true
					break
				}
			}
			if !isModernPartFormat {
				return false, "missing base .rar volume"
			}
		}
	}

	if _, err := os.Stat(group.Primary); err != nil {
		return false, "primary archive file is missing"
	}

	return true, ""
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func contains2(m map[string]int, v int) bool {
	for _, x := range m {
		if x == v {
			return true
		}
	}
	return false
}

func missingIndexes(positives []int, start int) []int {
	expected := make(map[int]bool, len(positives))
	for i := 0; i < len(positives); i++ {
		expected[start+i] = true
	}
	present := make(map[int]bool, len(positives))
	for _, p := range positives {
		present[p] = true
	}
	var missing []int
	for idx := range expected {
		if !present[idx] {
			missing = append(missing, idx)
		}
	}
	sort.Ints(missing)
	return missing
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprintf("%d", x)
	}
	return strings.Join(parts, ", ")
}

// scanForLaterVolumes looks in the primary member's directory for a file
// that would extend the sequence past lastIndex, which signals the
// download has not finished yet.
func scanForLaterVolumes(group Group, lastPart string, lastIndex int) (bool, string) {
	parentDir := filepath.Dir(lastPart)
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		return true, ""
	}

	memberSet := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		memberSet[m.Path] = true
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		full := filepath.Join(parentDir, entry.Name())
		if memberSet[full] {
			continue
		}
		lower := strings.ToLower(entry.Name())

		if m := partVolumeRe.FindStringSubmatch(lower); m != nil {
			idx := atoiSafe(groupValue(partVolumeRe, m, "index"))
			candidate := groupValue(partVolumeRe, m, "base") + groupValue(partVolumeRe, m, "ext")
			if candidate == strings.ToLower(group.Key) && idx > lastIndex {
				return false, fmt.Sprintf("found part %d but sequence ends at %d - download may still be in progress", idx, lastIndex)
			}
		}
		if m := rVolumeRe.FindStringSubmatch(lower); m != nil {
			idx := atoiSafe(groupValue(rVolumeRe, m, "index"))
			candidate := groupValue(rVolumeRe, m, "base") + ".rar"
			if candidate == strings.ToLower(group.Key) && idx > lastIndex {
				return false, fmt.Sprintf("found volume %d but sequence ends at %d - download may still be in progress", idx, lastIndex)
			}
		}
		if m := splitExtRe.FindStringSubmatch(lower); m != nil {
			idx := atoiSafe(groupValue(splitExtRe, m, "index"))
			candidate := groupValue(splitExtRe, m, "base") + groupValue(splitExtRe, m, "ext")
			if candidate == strings.ToLower(group.Key) && idx > lastIndex {
				return false, fmt.Sprintf("found part %d but sequence ends at %d - download may still be in progress", idx, lastIndex)
			}
		}
	}

	return true, ""
}

func atoiSafe(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return n
		}
		n = n*10 + int(c-'0')
	}
	return n
}
