// Package retention decides which remote archives are old enough to prune.
package retention

import (
	"regexp"
	"sort"

	"cloudback/internal/remote"
)

// DefaultKeep is how many archives per remote folder survive a prune.
const DefaultKeep = 10

// archivePattern matches artifact names produced by this tool, with or
// without the encryption suffix. Anything else in the folder is left alone.
var archivePattern = regexp.MustCompile(`_\d{8}\.zip(\.age)?$`)

// SelectForDeletion returns the names of archives beyond the keep newest,
// ordered oldest-last. Entries whose names do not look like our artifacts
// are never selected.
func SelectForDeletion(entries []remote.Entry, keep int) []string {
	if keep < 0 {
		keep = 0
	}

	matched := make([]remote.Entry, 0, len(entries))
	for _, e := range entries {
		if archivePattern.MatchString(e.Name) {
			matched = append(matched, e)
		}
	}
	if len(matched) <= keep {
		return nil
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].ModTime.After(matched[j].ModTime)
	})

	names := make([]string, 0, len(matched)-keep)
	for _, e := range matched[keep:] {
		names = append(names, e.Name)
	}
	return names
}
