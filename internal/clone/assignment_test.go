package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mistops/org-clone-workbench/internal/models"
)

func TestDeriveSourceBindings(t *testing.T) {
	scope := WLANScope{
		OrgLevel:  []string{"wo1"},
		SiteLevel: map[string][]string{"site-1": {"ws1"}},
	}
	details := models.Resource{
		"networktemplate_id": "nt1",
		"gatewaytemplate_id": "gt1",
		"rftemplate_id":      "rf1",
		"wlan_template_id":   "we1",
		"template_id":        "ignored", // only the first embedded field counts
		"wlan_template_ids":  []interface{}{"wl1", "wl2"},
	}

	b := DeriveSourceBindings(details, "site-1", scope)

	assert.Equal(t, "nt1", b.Switch)
	assert.Equal(t, "gt1", b.WANEdge)
	assert.Equal(t, "rf1", b.RF)
	assert.Equal(t, []string{"we1", "wl1", "wl2", "ws1"}, b.WLAN)
	assert.Equal(t, []string{"wo1"}, b.WLANOrg)
	assert.False(t, b.Empty())
}

func TestDeriveSourceBindingsEmbeddedFallback(t *testing.T) {
	// Older API shape: "template_id" instead of "wlan_template_id"
	details := models.Resource{"template_id": "we2"}
	b := DeriveSourceBindings(details, "", WLANScope{SiteLevel: map[string][]string{}})
	assert.Equal(t, []string{"we2"}, b.WLAN)
}

func TestDeriveSourceBindingsEmpty(t *testing.T) {
	b := DeriveSourceBindings(models.Resource{}, "nowhere", WLANScope{SiteLevel: map[string][]string{}})
	assert.True(t, b.Empty())
}

func testTemplateMaps() TemplateMaps {
	return TemplateMaps{
		SourceIDToName: map[string]map[string]string{
			KindSwitch:  {"nt1": "branch-switch"},
			KindWANEdge: {"gt1": "branch-wan"},
			KindRF:      {"rf1": "default-rf"},
			KindWLAN:    {"wl1": "corp-wlan", "wl2": "guest-wlan", "wo1": "org-wlan"},
		},
		DestNameToID: map[string]map[string]string{
			KindSwitch:  {"branch-switch": "NT1"},
			KindWANEdge: {},
			KindRF:      {"default-rf": "RF1"},
			KindWLAN:    {"corp-wlan": "WL1", "org-wlan": "WO1"},
		},
	}
}

func TestResolveFromSource(t *testing.T) {
	src := Bindings{
		Switch:  "nt1",
		WANEdge: "gt1",
		RF:      "rf1",
		WLAN:    []string{"wl1", "wl2"},
		WLANOrg: []string{"wo1"},
	}

	resolved, skips := ResolveFromSource(src, testTemplateMaps())

	assert.Equal(t, "NT1", resolved.Switch)
	assert.Equal(t, "", resolved.WANEdge)
	assert.Equal(t, "RF1", resolved.RF)
	assert.Equal(t, []string{"WL1"}, resolved.WLAN, "unmatched wlans drop, matched survive")
	assert.Equal(t, []string{"WO1"}, resolved.WLANOrg)

	// wan edge had a source binding but resolved to nothing
	assert.Equal(t, map[string]string{
		"wan_edge_template_id": "source template 'branch-wan' not found in target org",
	}, skips)
}

func TestResolveFromSourceUnknownID(t *testing.T) {
	src := Bindings{Switch: "mystery"}

	resolved, skips := ResolveFromSource(src, testTemplateMaps())

	assert.Equal(t, "", resolved.Switch)
	assert.Equal(t,
		"source template id 'mystery' could not be resolved by name",
		skips["switch_template_id"])
}

func TestResolveFromSourceWLANAllUnmatched(t *testing.T) {
	src := Bindings{WLAN: []string{"wl2", "mystery"}}

	resolved, skips := ResolveFromSource(src, testTemplateMaps())

	assert.Empty(t, resolved.WLAN)
	assert.Equal(t, "unmatched templates: guest-wlan, mystery", skips["wlan_template_id"])
}

func TestFormatSkipWarnings(t *testing.T) {
	skips := map[string]string{
		"rftemplate_id":        "source template 'x' not found in target org",
		"switch_template_id":   "source template 'y' not found in target org",
		"wlan_template_id":     "unmatched templates: a",
		"wlan_org_template_id": "unmatched templates: b",
	}
	assert.Equal(t,
		"switch=skipped (source template 'y' not found in target org), "+
			"wlan (site)=skipped (unmatched templates: a), "+
			"wlan (org)=skipped (unmatched templates: b), "+
			"rf=skipped (source template 'x' not found in target org)",
		FormatSkipWarnings(skips))
	assert.Empty(t, FormatSkipWarnings(nil))
}

func TestPlanFromSelection(t *testing.T) {
	maps := testTemplateMaps()
	destScope := WLANScope{OrgLevel: []string{"WO1"}}

	b := PlanFromSelection(map[string]string{
		KindSwitch:  "branch-switch",
		KindWANEdge: "missing-wan", // not in destination
		KindRF:      "default-rf",
		KindWLAN:    "corp-wlan",
	}, maps, destScope)

	assert.Equal(t, "NT1", b.Switch)
	assert.Equal(t, "", b.WANEdge)
	assert.Equal(t, "RF1", b.RF)
	assert.Equal(t, []string{"WL1"}, b.WLAN)
	assert.Empty(t, b.WLANOrg)
}

func TestPlanFromSelectionRoutesOrgScoped(t *testing.T) {
	maps := testTemplateMaps()
	destScope := WLANScope{OrgLevel: []string{"WO1"}}

	b := PlanFromSelection(map[string]string{KindWLAN: "org-wlan"}, maps, destScope)

	assert.Empty(t, b.WLAN)
	assert.Equal(t, []string{"WO1"}, b.WLANOrg, "org-scoped selections go to the org bucket")
}

func TestBindingsNonWLANFields(t *testing.T) {
	b := Bindings{Switch: "NT1", RF: "RF1"}
	assert.Equal(t, []models.Resource{
		{"networktemplate_id": "NT1"},
		{"rftemplate_id": "RF1"},
	}, b.NonWLANFields())
	assert.Empty(t, Bindings{}.NonWLANFields())
}

func TestWLANBindingAccumulator(t *testing.T) {
	acc := NewWLANBindingAccumulator()
	assert.True(t, acc.Empty())

	acc.AddSiteBindings([]string{"WL1", "WL2"}, "S1")
	acc.AddSiteBindings([]string{"WL2"}, "S2")
	acc.AddOrgBindings([]string{"WO1"})
	acc.AddOrgBindings([]string{"WO1"}) // seen before, recorded once

	assert.False(t, acc.Empty())

	updates := acc.Finalize("new-org")

	assert.Len(t, updates, 3)

	assert.Equal(t, "WL1", updates[0].TemplateID)
	assert.False(t, updates[0].OrgLevel)
	assert.Equal(t, []string{"S1"}, updates[0].SiteIDs)
	assert.Equal(t, models.Resource{
		"applies": map[string]interface{}{"site_ids": []string{"S1"}},
	}, updates[0].Payload)

	assert.Equal(t, "WL2", updates[1].TemplateID)
	assert.Equal(t, []string{"S1", "S2"}, updates[1].SiteIDs)

	assert.Equal(t, "WO1", updates[2].TemplateID)
	assert.True(t, updates[2].OrgLevel)
	assert.Equal(t, models.Resource{
		"applies": map[string]interface{}{"org_id": "new-org"},
	}, updates[2].Payload)
}
