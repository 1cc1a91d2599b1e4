package clone

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// NameIndex holds both lookup directions for one resource kind in one
// tenant. Only records carrying both an id and a name are indexed; when two
// records share a name the later one wins.
type NameIndex struct {
	IDToName map[string]string
	NameToID map[string]string
}

// BuildNameIndex indexes a list of resources by id and name.
func BuildNameIndex(items []models.Resource) NameIndex {
	idx := NameIndex{
		IDToName: make(map[string]string, len(items)),
		NameToID: make(map[string]string, len(items)),
	}
	for _, item := range items {
		id, name := item.ID(), item.Name()
		if id == "" || name == "" {
			continue
		}
		idx.IDToName[id] = name
		idx.NameToID[name] = id
	}
	return idx
}

// DuplicateNames returns the names that appear on more than one resource,
// sorted. Duplicates make the name join ambiguous; the caller surfaces them
// as warnings while the index keeps the last occurrence.
func DuplicateNames(items []models.Resource) []string {
	counts := map[string]int{}
	for _, item := range items {
		if name := item.Name(); name != "" && item.ID() != "" {
			counts[name]++
		}
	}
	var dups []string
	for name, n := range counts {
		if n > 1 {
			dups = append(dups, name)
		}
	}
	sort.Strings(dups)
	return dups
}

// IDMap maps source-tenant IDs to destination-tenant IDs for one resource
// kind. A missing entry means the reference is unresolved.
type IDMap map[string]string

// CorrelateByName joins two name indexes: every source id whose name also
// exists in the destination maps to the destination id of that name.
func CorrelateByName(src, dst NameIndex) IDMap {
	ids := make(IDMap, len(src.IDToName))
	for srcID, name := range src.IDToName {
		if dstID, ok := dst.NameToID[name]; ok {
			ids[srcID] = dstID
		}
	}
	return ids
}

// Merge returns a new map containing the entries of both maps. Entries in
// other win on conflict.
func (m IDMap) Merge(other IDMap) IDMap {
	merged := make(IDMap, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// duplicateWarning renders a duplicate-name warning for one kind, or ""
// when there are no duplicates.
func duplicateWarning(kind string, items []models.Resource) string {
	dups := DuplicateNames(items)
	if len(dups) == 0 {
		return ""
	}
	return fmt.Sprintf("duplicate %s names (last occurrence wins): %s", kind, strings.Join(dups, ", "))
}
