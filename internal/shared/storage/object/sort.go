package object

import "sort"

// SortNewestFirst orders infos by UpdatedAt descending, then key descending,
// and truncates to limit when limit > 0.
func SortNewestFirst(infos []Info, limit int) []Info {
	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].UpdatedAt.Equal(infos[j].UpdatedAt) {
			return infos[i].Key > infos[j].Key
		}
		return infos[i].UpdatedAt.After(infos[j].UpdatedAt)
	})
	if limit > 0 && len(infos) > limit {
		infos = infos[:limit]
	}
	return infos
}
