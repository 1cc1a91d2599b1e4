package clone

import (
	"fmt"
	"strings"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// Template kinds. WLAN templates split into two buckets because the org and
// site scopes are written with different payloads.
const (
	KindSwitch  = "switch"
	KindWANEdge = "wan_edge"
	KindWLAN    = "wlan"
	KindWLANOrg = "wlan_org"
	KindRF      = "rf"
)

// templateEndpoints maps a kind to its org collection path segment.
var templateEndpoints = map[string]string{
	KindSwitch:  "networktemplates",
	KindWANEdge: "gatewaytemplates",
	KindWLAN:    "templates",
	KindRF:      "rftemplates",
}

// siteAssignmentFields maps a non-WLAN kind to the site field its template
// id is written to.
var siteAssignmentFields = map[string]string{
	KindSwitch:  "networktemplate_id",
	KindWANEdge: "gatewaytemplate_id",
	KindRF:      "rftemplate_id",
}

// assignmentKeys maps a kind to the key used in skip-reason maps and
// reports, matching the site field naming.
var assignmentKeys = map[string]string{
	KindSwitch:  "switch_template_id",
	KindWANEdge: "wan_edge_template_id",
	KindWLAN:    "wlan_template_id",
	KindWLANOrg: "wlan_org_template_id",
	KindRF:      "rftemplate_id",
}

// kindOrder fixes iteration order for logs and warnings.
var kindOrder = []string{KindSwitch, KindWANEdge, KindWLAN, KindWLANOrg, KindRF}

var kindLabels = map[string]string{
	KindSwitch:  "switch",
	KindWANEdge: "wan edge",
	KindWLAN:    "wlan (site)",
	KindWLANOrg: "wlan (org)",
	KindRF:      "rf",
}

// Bindings holds one site's template bindings, either source-side IDs
// (derived from the source site) or destination-side IDs (resolved or
// selected). Empty values mean no binding.
type Bindings struct {
	Switch  string
	WANEdge string
	RF      string
	WLAN    []string
	WLANOrg []string
}

// Empty reports whether no kind has a binding.
func (b Bindings) Empty() bool {
	return b.Switch == "" && b.WANEdge == "" && b.RF == "" &&
		len(b.WLAN) == 0 && len(b.WLANOrg) == 0
}

// single returns the scalar binding for a non-WLAN kind.
func (b Bindings) single(kind string) string {
	switch kind {
	case KindSwitch:
		return b.Switch
	case KindWANEdge:
		return b.WANEdge
	case KindRF:
		return b.RF
	}
	return ""
}

// list returns the list binding for a WLAN kind.
func (b Bindings) list(kind string) []string {
	switch kind {
	case KindWLAN:
		return b.WLAN
	case KindWLANOrg:
		return b.WLANOrg
	}
	return nil
}

// has reports whether the kind carries any binding.
func (b Bindings) has(kind string) bool {
	if kind == KindWLAN || kind == KindWLANOrg {
		return len(b.list(kind)) > 0
	}
	return b.single(kind) != ""
}

// NonWLANFields returns the site PUT field/value pairs for the non-WLAN
// bindings, in kind order.
func (b Bindings) NonWLANFields() []models.Resource {
	var payloads []models.Resource
	for _, kind := range []string{KindSwitch, KindWANEdge, KindRF} {
		if id := b.single(kind); id != "" {
			payloads = append(payloads, models.Resource{siteAssignmentFields[kind]: id})
		}
	}
	return payloads
}

// Embedded WLAN template reference fields seen on site details, oldest
// naming first. Only the first one present counts.
var embeddedWLANFields = []string{"wlan_template_id", "template_id", "wlan_template"}

// DeriveSourceBindings reads a source site's current template bindings:
// non-WLAN kinds from the site's direct template id fields, WLAN from
// embedded reference fields plus the explicit wlan_template_ids list plus
// the org's WLAN scope map, and org-wide WLAN from the scope's org bucket.
func DeriveSourceBindings(details models.Resource, siteID string, scope WLANScope) Bindings {
	b := Bindings{
		Switch:  details.Str("networktemplate_id"),
		WANEdge: details.Str("gatewaytemplate_id"),
		RF:      details.Str("rftemplate_id"),
	}

	for _, field := range embeddedWLANFields {
		if id := details.Str(field); id != "" {
			b.WLAN = append(b.WLAN, id)
			break
		}
	}
	b.WLAN = append(b.WLAN, details.StrList("wlan_template_ids")...)
	if siteID != "" {
		b.WLAN = append(b.WLAN, scope.SiteLevel[siteID]...)
	}
	b.WLANOrg = append(b.WLANOrg, scope.OrgLevel...)

	return b
}

// TemplateMaps holds the cross-tenant correlation state for all template
// kinds: source id to name, and destination name to id. WLAN org-scope
// bindings resolve through the "wlan" kind.
type TemplateMaps struct {
	SourceIDToName map[string]map[string]string
	DestNameToID   map[string]map[string]string
}

// mapKind collapses the wlan_org bucket onto the wlan template maps.
func mapKind(kind string) string {
	if kind == KindWLANOrg {
		return KindWLAN
	}
	return kind
}

// ResolveFromSource resolves source bindings to destination template IDs by
// joining on name through the template maps. The returned skip reasons name
// every kind that had a source binding but resolved to nothing.
func ResolveFromSource(src Bindings, maps TemplateMaps) (Bindings, map[string]string) {
	var resolved Bindings

	resolveOne := func(kind, sourceID string) string {
		name := maps.SourceIDToName[mapKind(kind)][sourceID]
		if name == "" {
			return ""
		}
		return maps.DestNameToID[mapKind(kind)][name]
	}

	resolved.Switch = resolveOne(KindSwitch, src.Switch)
	resolved.WANEdge = resolveOne(KindWANEdge, src.WANEdge)
	resolved.RF = resolveOne(KindRF, src.RF)
	for _, id := range src.WLAN {
		if newID := resolveOne(KindWLAN, id); newID != "" {
			resolved.WLAN = append(resolved.WLAN, newID)
		}
	}
	for _, id := range src.WLANOrg {
		if newID := resolveOne(KindWLANOrg, id); newID != "" {
			resolved.WLANOrg = append(resolved.WLANOrg, newID)
		}
	}

	skipReasons := map[string]string{}
	for _, kind := range kindOrder {
		if !src.has(kind) || resolved.has(kind) {
			continue
		}
		key := assignmentKeys[kind]
		if kind == KindWLAN || kind == KindWLANOrg {
			var missing []string
			for _, id := range src.list(kind) {
				if name := maps.SourceIDToName[mapKind(kind)][id]; name != "" {
					missing = append(missing, name)
				} else {
					missing = append(missing, id)
				}
			}
			skipReasons[key] = "unmatched templates: " + strings.Join(missing, ", ")
			continue
		}
		sourceID := src.single(kind)
		if name := maps.SourceIDToName[kind][sourceID]; name != "" {
			skipReasons[key] = fmt.Sprintf("source template '%s' not found in target org", name)
		} else {
			skipReasons[key] = fmt.Sprintf("source template id '%s' could not be resolved by name", sourceID)
		}
	}
	return resolved, skipReasons
}

// PlanFromSelection resolves a template name selection (shared or per-site)
// to destination IDs. A selected WLAN template that is org-scoped in the
// destination is routed to the org bucket so it is finalized with
// applies.org_id instead of applies.site_ids.
func PlanFromSelection(selection map[string]string, maps TemplateMaps, destScope WLANScope) Bindings {
	var b Bindings
	for kind, name := range selection {
		id := maps.DestNameToID[mapKind(kind)][name]
		if id == "" {
			continue
		}
		switch kind {
		case KindSwitch:
			b.Switch = id
		case KindWANEdge:
			b.WANEdge = id
		case KindRF:
			b.RF = id
		case KindWLAN, KindWLANOrg:
			if destScope.IsOrgLevel(id) {
				b.WLANOrg = append(b.WLANOrg, id)
			} else {
				b.WLAN = append(b.WLAN, id)
			}
		}
	}
	return b
}

// FormatSkipWarnings renders a skip-reason map as one line, in kind order.
func FormatSkipWarnings(skipReasons map[string]string) string {
	var parts []string
	for _, kind := range kindOrder {
		if reason, ok := skipReasons[assignmentKeys[kind]]; ok {
			parts = append(parts, fmt.Sprintf("%s=skipped (%s)", kindLabels[kind], reason))
		}
	}
	return strings.Join(parts, ", ")
}

// WLANBindingAccumulator collects WLAN template bindings across the site
// loop so each template is written exactly once, after every destination
// site id is known. Finalize order is first-seen order.
type WLANBindingAccumulator struct {
	siteOrder []string
	sites     map[string][]string
	orgOrder  []string
	orgSeen   map[string]bool
}

// NewWLANBindingAccumulator creates an empty accumulator.
func NewWLANBindingAccumulator() *WLANBindingAccumulator {
	return &WLANBindingAccumulator{
		sites:   map[string][]string{},
		orgSeen: map[string]bool{},
	}
}

// AddSiteBindings records that the given destination site uses the given
// site-scoped WLAN templates.
func (a *WLANBindingAccumulator) AddSiteBindings(templateIDs []string, siteID string) {
	for _, id := range templateIDs {
		if _, seen := a.sites[id]; !seen {
			a.siteOrder = append(a.siteOrder, id)
		}
		a.sites[id] = append(a.sites[id], siteID)
	}
}

// AddOrgBindings records org-scoped WLAN templates.
func (a *WLANBindingAccumulator) AddOrgBindings(templateIDs []string) {
	for _, id := range templateIDs {
		if !a.orgSeen[id] {
			a.orgSeen[id] = true
			a.orgOrder = append(a.orgOrder, id)
		}
	}
}

// Empty reports whether nothing was accumulated.
func (a *WLANBindingAccumulator) Empty() bool {
	return len(a.siteOrder) == 0 && len(a.orgOrder) == 0
}

// BindingUpdate is one deferred WLAN template write.
type BindingUpdate struct {
	TemplateID string
	Payload    models.Resource
	OrgLevel   bool
	SiteIDs    []string
}

// Finalize produces exactly one update per accumulated template:
// site-scoped templates get the full accumulated site list (the write
// replaces any existing applies.site_ids), org-scoped templates get the new
// org id.
func (a *WLANBindingAccumulator) Finalize(newOrgID string) []BindingUpdate {
	updates := make([]BindingUpdate, 0, len(a.siteOrder)+len(a.orgOrder))
	for _, templateID := range a.siteOrder {
		siteIDs := a.sites[templateID]
		updates = append(updates, BindingUpdate{
			TemplateID: templateID,
			Payload:    models.Resource{"applies": map[string]interface{}{"site_ids": siteIDs}},
			SiteIDs:    siteIDs,
		})
	}
	for _, templateID := range a.orgOrder {
		updates = append(updates, BindingUpdate{
			TemplateID: templateID,
			Payload:    models.Resource{"applies": map[string]interface{}{"org_id": newOrgID}},
			OrgLevel:   true,
		})
	}
	return updates
}
