package archive

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildGroupsClustersPartVolumes(t *testing.T) {
	groups := BuildGroups([]string{
		"/dl/Movie.2024/Movie.2024.part02.rar",
		"/dl/Movie.2024/Movie.2024.part01.rar",
		"/dl/Movie.2024/Movie.2024.part03.rar",
	})

	require.Len(t, groups, 1)
	g := groups[0]
	require.Equal(t, 3, g.PartCount())
	require.Equal(t, "/dl/Movie.2024/Movie.2024.part01.rar", g.Primary)
	require.Equal(t, []int{1, 2, 3}, []int{g.OrderMap[g.Members[0].Path], g.OrderMap[g.Members[1].Path], g.OrderMap[g.Members[2].Path]})
}

func TestBuildGroupsSeparatesUnrelatedArchives(t *testing.T) {
	groups := BuildGroups([]string{
		"/dl/a/one.rar",
		"/dl/b/two.zip",
	})

	require.Len(t, groups, 2)
}

func TestBuildGroupsOrdersRVolumes(t *testing.T) {
	groups := BuildGroups([]string{
		"/dl/show/ep.r01",
		"/dl/show/ep.rar",
		"/dl/show/ep.r00",
	})

	require.Len(t, groups, 1)
	g := groups[0]
	require.Equal(t, "ep.rar", g.Key)
	require.Equal(t, "/dl/show/ep.rar", g.Primary)
}
