package clone

import "github.com/mistops/org-clone-workbench/internal/models"

// RewriteIDs walks a decoded JSON tree and replaces every string value that
// exactly matches a key in ids with the mapped value. Map keys and
// non-string values pass through untouched. The input is not modified.
func RewriteIDs(v interface{}, ids IDMap) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, child := range node {
			out[k] = RewriteIDs(child, ids)
		}
		return out
	case models.Resource:
		out := make(models.Resource, len(node))
		for k, child := range node {
			out[k] = RewriteIDs(child, ids)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(node))
		for i, child := range node {
			out[i] = RewriteIDs(child, ids)
		}
		return out
	case string:
		if mapped, ok := ids[node]; ok {
			return mapped
		}
		return node
	default:
		return node
	}
}

// RewriteResource applies RewriteIDs to a resource payload.
func RewriteResource(r models.Resource, ids IDMap) models.Resource {
	if len(ids) == 0 {
		return r
	}
	return RewriteIDs(r, ids).(models.Resource)
}
