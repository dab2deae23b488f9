package archive

import (
	"path/filepath"
	"sort"
	"strings"
)

// Group is a set of files that together make up one logical archive: a
// single file for a plain archive, or the ordered volumes of a multi-part
// one.
type Group struct {
	Key      string
	Primary  string
	Members  []Member
	OrderMap map[string]int
}

// PartCount returns the number of members in the group.
func (g Group) PartCount() int {
	return len(g.Members)
}

// BuildGroups classifies every path and clusters the results by group key,
// ordering each group's members by volume index (ties broken by lowercase
// filename) and sorting the returned groups by their primary member's
// lowercase filename.
func BuildGroups(paths []string) []Group {
	byKey := make(map[string][]Member)
	order := make([]string, 0)

	for _, p := range paths {
		m := Classify(p)
		if _, seen := byKey[m.Base]; !seen {
			order = append(order, m.Base)
		}
		byKey[m.Base] = append(byKey[m.Base], m)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		members := byKey[key]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].VolumeIndex != members[j].VolumeIndex {
				return members[i].VolumeIndex < members[j].VolumeIndex
			}
			return strings.ToLower(filepath.Base(members[i].Path)) < strings.ToLower(filepath.Base(members[j].Path))
		})

		orderMap := make(map[string]int, len(members))
		for _, m := range members {
			orderMap[m.Path] = m.VolumeIndex
		}

		groups = append(groups, Group{
			Key:      key,
			Primary:  members[0].Path,
			Members:  members,
			OrderMap: orderMap,
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return strings.ToLower(filepath.Base(groups[i].Primary)) < strings.ToLower(filepath.Base(groups[j].Primary))
	})

	return groups
}
