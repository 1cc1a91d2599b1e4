package clone

import "github.com/mistops/org-clone-workbench/internal/models"

// WLANScope classifies an org's WLAN templates by assignment scope. A
// template lands in exactly one bucket: org-wide assignment takes
// precedence over any site list.
type WLANScope struct {
	// OrgLevel lists templates whose applies.org_id is set, in input order.
	OrgLevel []string
	// SiteLevel maps site id to the templates applied to it, in input order.
	SiteLevel map[string][]string
}

// IsOrgLevel reports whether a template is assigned org-wide.
func (s WLANScope) IsOrgLevel(templateID string) bool {
	for _, id := range s.OrgLevel {
		if id == templateID {
			return true
		}
	}
	return false
}

// ResolveWLANScope reads the "applies" field of every WLAN template and
// buckets it. The field has accumulated several shapes over API versions:
// an object with org_id, site_id, or site_ids; a list of objects with
// site_id; or missing entirely with a top-level site_id instead.
func ResolveWLANScope(templates []models.Resource) WLANScope {
	scope := WLANScope{SiteLevel: map[string][]string{}}

	addSite := func(siteID, templateID string) {
		if siteID == "" || templateID == "" {
			return
		}
		for _, id := range scope.SiteLevel[siteID] {
			if id == templateID {
				return
			}
		}
		scope.SiteLevel[siteID] = append(scope.SiteLevel[siteID], templateID)
	}

	for _, tmpl := range templates {
		templateID := tmpl.ID()
		if templateID == "" {
			continue
		}
		switch applies := tmpl["applies"].(type) {
		case map[string]interface{}:
			a := models.Resource(applies)
			if a.Str("org_id") != "" {
				scope.OrgLevel = append(scope.OrgLevel, templateID)
				continue
			}
			addSite(a.Str("site_id"), templateID)
			for _, siteID := range a.StrList("site_ids") {
				addSite(siteID, templateID)
			}
		case []interface{}:
			for _, raw := range applies {
				if entry, ok := raw.(map[string]interface{}); ok {
					addSite(models.Resource(entry).Str("site_id"), templateID)
				}
			}
		default:
			addSite(tmpl.Str("site_id"), templateID)
		}
	}
	return scope
}
