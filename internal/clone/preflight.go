package clone

import (
	"context"
	"fmt"
	"sort"

	"github.com/mistops/org-clone-workbench/internal/mist"
	"github.com/mistops/org-clone-workbench/internal/models"
)

// preflightTemplateKeys maps a kind to its report key.
var preflightTemplateKeys = map[string]string{
	KindSwitch:  "switch_templates",
	KindWANEdge: "wan_edge_templates",
	KindWLAN:    "wlan_templates",
	KindRF:      "rf_templates",
}

// Preflight inspects the source org without mutating anything: it lists
// the templates, service policies, and site groups that a clone would
// copy, summarizes the first planned site's settings, and in mirror-source
// mode predicts the assignment warnings by resolving against an empty
// destination.
func Preflight(ctx context.Context, source *mist.Client, spec models.CloneSpec, log func(string)) (*models.PreflightReport, error) {
	if log == nil {
		log = func(string) {}
	}
	logf := func(format string, args ...interface{}) { log(fmt.Sprintf(format, args...)) }

	if spec.SourceOrgID == "" {
		return nil, fmt.Errorf("source org id is required")
	}
	if len(spec.SitePlans) == 0 {
		return nil, fmt.Errorf("at least one site plan is required")
	}

	report := &models.PreflightReport{
		SourceOrgID:    spec.SourceOrgID,
		AssignmentMode: spec.AssignmentMode,
		Templates:      map[string][]models.NamedRef{},
	}
	srcOrg := "/orgs/" + spec.SourceOrgID

	logf("Reading site settings for %s", spec.SitePlans[0].SourceSiteID)
	settings, err := source.GetResource(ctx, "/sites/"+spec.SitePlans[0].SourceSiteID+"/setting")
	if err != nil {
		return nil, fmt.Errorf("fetching site settings: %w", err)
	}
	for key := range settings {
		report.SiteSettingsKeys = append(report.SiteSettingsKeys, key)
	}
	sort.Strings(report.SiteSettingsKeys)
	if vars, ok := settings["vars"].(map[string]interface{}); ok {
		report.SiteVarsCount = len(vars)
	}

	logf("Listing source org templates")
	templates := fetchTemplateKinds(ctx, source, spec.SourceOrgID, logf)
	for kind, key := range preflightTemplateKeys {
		report.Templates[key] = models.Refs(templates[kind])
	}

	logf("Listing service policies and site groups")
	policies, err := source.Paginate(ctx, srcOrg+"/servicepolicies")
	if err != nil {
		return nil, fmt.Errorf("fetching service policies: %w", err)
	}
	report.ServicePolicies = models.Refs(policies)

	sitegroups, err := source.Paginate(ctx, srcOrg+"/sitegroups")
	if err != nil {
		return nil, fmt.Errorf("fetching site groups: %w", err)
	}
	report.Sitegroups = models.Refs(sitegroups)
	groupIDToName := BuildNameIndex(sitegroups).IDToName

	// Cache site details; mirror-source mode reads them again below.
	details := map[string]models.Resource{}
	for _, plan := range spec.SitePlans {
		d, err := source.GetResource(ctx, "/sites/"+plan.SourceSiteID)
		if err != nil {
			logf("WARNING: could not fetch details for source site %s: %v", plan.SourceSiteID, err)
			continue
		}
		details[plan.SourceSiteID] = d

		var groupNames []string
		for _, groupID := range d.StrList("sitegroup_ids") {
			if name := groupIDToName[groupID]; name != "" {
				groupNames = append(groupNames, name)
			} else {
				groupNames = append(groupNames, groupID)
			}
		}
		report.PerSiteGroups = append(report.PerSiteGroups, models.SiteGroupAssignment{
			SourceSiteID:   plan.SourceSiteID,
			SourceSiteName: siteName(plan),
			SitegroupNames: groupNames,
		})
	}

	if spec.AssignmentMode == models.AssignMirrorSource {
		logf("Predicting mirror-source assignment warnings")
		maps := TemplateMaps{
			SourceIDToName: map[string]map[string]string{},
			// Empty destination: every source binding shows up as a skip
			// reason, which is exactly the worst-case warning set.
			DestNameToID: map[string]map[string]string{},
		}
		for kind := range templateEndpoints {
			maps.SourceIDToName[kind] = BuildNameIndex(templates[kind]).IDToName
			maps.DestNameToID[kind] = map[string]string{}
		}
		scope := ResolveWLANScope(templates[KindWLAN])

		for _, plan := range spec.SitePlans {
			d, ok := details[plan.SourceSiteID]
			if !ok {
				continue
			}
			src := DeriveSourceBindings(d, plan.SourceSiteID, scope)
			_, skipReasons := ResolveFromSource(src, maps)
			report.ExpectedWarnings = append(report.ExpectedWarnings, models.AssignmentWarning{
				SourceSiteID:   plan.SourceSiteID,
				SourceSiteName: siteName(plan),
				SkipReasons:    skipReasons,
				Summary:        FormatSkipWarnings(skipReasons),
			})
		}
	}

	return report, nil
}

func siteName(plan models.SitePlan) string {
	if plan.SourceSiteName != "" {
		return plan.SourceSiteName
	}
	return plan.SourceSiteID
}
