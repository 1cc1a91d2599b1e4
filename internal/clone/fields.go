// Package clone implements cross-tenant org cloning: identity correlation
// by name, reference rewriting, template scope and assignment resolution,
// and the dependency-ordered resource cloner.
package clone

import "github.com/mistops/org-clone-workbench/internal/models"

// Read-only fields stripped from every org-level resource before it is
// POSTed to the destination org.
var orgResourceStripFields = map[string]bool{
	"id":            true,
	"org_id":        true,
	"created_time":  true,
	"modified_time": true,
}

// Site settings additionally carry template assignment fields that must not
// be copied verbatim: the IDs are source-org IDs and are re-applied by name
// during the assignment step.
var siteSettingsStripFields = map[string]bool{
	"id":                 true,
	"org_id":             true,
	"site_id":            true,
	"for_site":           true,
	"created_time":       true,
	"modified_time":      true,
	"networktemplate_id": true,
	"gatewaytemplate_id": true,
	"rftemplate_id":      true,
	"alarmtemplate_id":   true,
}

var siteWLANStripFields = map[string]bool{
	"id":            true,
	"org_id":        true,
	"site_id":       true,
	"created_time":  true,
	"modified_time": true,
}

// Floor-plan maps also carry generated image URLs.
var siteMapStripFields = map[string]bool{
	"id":            true,
	"org_id":        true,
	"site_id":       true,
	"created_time":  true,
	"modified_time": true,
	"url":           true,
	"thumbnail_url": true,
}

// PSK portals carry an org-specific generated ui_url.
var pskPortalStripFields = map[string]bool{
	"id":            true,
	"org_id":        true,
	"created_time":  true,
	"modified_time": true,
	"ui_url":        true,
}

// stripFields returns a copy of the resource without the given fields.
func stripFields(item models.Resource, strip map[string]bool) models.Resource {
	out := make(models.Resource, len(item))
	for k, v := range item {
		if strip[k] {
			continue
		}
		out[k] = v
	}
	return out
}

// displayName returns a human-readable handle for a resource, falling back
// through name, ssid, mac, and id.
func displayName(item models.Resource) string {
	for _, key := range []string{"name", "ssid", "mac", "id"} {
		if v := item.Str(key); v != "" {
			return v
		}
	}
	return "unknown"
}
