package models

// Resource represents a generic API object (site, template, policy, etc.)
// decoded from JSON. Mist object IDs are opaque UUID strings that are only
// unique within a single org, so cross-org references are matched by name.
type Resource map[string]interface{}

// ID returns the resource's "id" field, or "" if absent.
func (r Resource) ID() string {
	return r.Str("id")
}

// Name returns the resource's "name" field, or "" if absent.
func (r Resource) Name() string {
	return r.Str("name")
}

// Str returns the named field as a string, or "" if absent or not a string.
func (r Resource) Str(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// StrList returns the named field as a list of strings. Non-string entries
// are dropped.
func (r Resource) StrList(key string) []string {
	raw, ok := r[key].([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// NamedRef is a minimal id+name pair used in preflight listings.
type NamedRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Refs extracts id+name pairs from a list of resources.
func Refs(items []Resource) []NamedRef {
	refs := make([]NamedRef, 0, len(items))
	for _, item := range items {
		refs = append(refs, NamedRef{ID: item.ID(), Name: item.Name()})
	}
	return refs
}
