package clone

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mistops/org-clone-workbench/internal/models"
)

const prefetchWorkers = 10

// siteData is the per-source-site snapshot gathered before the site loop.
// A nil details or settings means the fetch failed; wlans and maps degrade
// to empty lists.
type siteData struct {
	details  models.Resource
	settings models.Resource
	wlans    []models.Resource
	maps     []models.Resource
}

// prefetchSiteData reads details, settings, WLANs, and floor-plan maps for
// every planned source site with a bounded worker pool. Each site's four
// fetches run in parallel as well; all of this is read-only.
func (e *Engine) prefetchSiteData(ctx context.Context) map[string]*siteData {
	results := map[string]*siteData{}
	for _, plan := range e.Spec.SitePlans {
		results[plan.SourceSiteID] = &siteData{}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchWorkers)
	for siteID, data := range results {
		g.Go(func() error {
			sg, sctx := errgroup.WithContext(gctx)
			sg.Go(func() error {
				details, err := e.Source.GetResource(sctx, "/sites/"+siteID)
				if err != nil {
					e.warnf("pre-fetch of site details failed for source site %s: %v", siteID, err)
					return nil
				}
				data.details = details
				return nil
			})
			sg.Go(func() error {
				settings, err := e.Source.GetResource(sctx, "/sites/"+siteID+"/setting")
				if err != nil {
					e.warnf("pre-fetch of site settings failed for source site %s: %v", siteID, err)
					return nil
				}
				data.settings = settings
				return nil
			})
			sg.Go(func() error {
				wlans, err := e.Source.Paginate(sctx, "/sites/"+siteID+"/wlans")
				if err != nil {
					e.warnf("could not fetch site WLANs for site %s: %v", siteID, err)
					return nil
				}
				data.wlans = wlans
				return nil
			})
			sg.Go(func() error {
				maps, err := e.Source.Paginate(sctx, "/sites/"+siteID+"/maps")
				if err != nil {
					e.warnf("could not fetch site maps for site %s: %v", siteID, err)
					return nil
				}
				data.maps = maps
				return nil
			})
			return sg.Wait()
		})
	}
	g.Wait()
	return results
}

// cloneSites creates every planned site, copies its settings, WLANs, maps,
// site-group membership and alarm template, resolves template assignments
// per the configured mode, and finally writes the accumulated WLAN template
// bindings and org invites.
func (e *Engine) cloneSites(ctx context.Context, newOrgID string) error {
	e.logf("3. Cloning sites")
	dstOrg := "/orgs/" + newOrgID

	ot := e.buildTemplateMaps(ctx, newOrgID)
	destWLANScope := ResolveWLANScope(ot.dest[KindWLAN])
	destWLANNames := BuildNameIndex(ot.dest[KindWLAN]).IDToName

	// Alarm templates are org-level objects assigned per site; the IDs were
	// stripped from the copied settings and are re-applied by name here.
	sourceAlarms := BuildNameIndex(e.fetchOrEmpty(ctx, e.Source, "source alarm templates",
		"/orgs/"+e.Spec.SourceOrgID+"/alarmtemplates"))
	destAlarms := BuildNameIndex(e.fetchOrEmpty(ctx, e.Dest, "new org alarm templates",
		dstOrg+"/alarmtemplates"))

	sourceGroups := BuildNameIndex(e.fetchOrEmpty(ctx, e.Source, "source site groups",
		"/orgs/"+e.Spec.SourceOrgID+"/sitegroups"))
	destGroups := BuildNameIndex(e.fetchOrEmpty(ctx, e.Dest, "new org site groups",
		dstOrg+"/sitegroups"))

	var sourceScope WLANScope
	if e.Spec.AssignmentMode == models.AssignMirrorSource {
		sourceScope = ResolveWLANScope(ot.source[KindWLAN])
	}

	var shared Bindings
	if e.Spec.AssignmentMode == models.AssignShared || e.Spec.AssignmentMode == models.AssignSharedSingle {
		shared = PlanFromSelection(e.Spec.SharedTemplates, ot.maps, destWLANScope)
	}

	prefetched := e.prefetchSiteData(ctx)
	acc := NewWLANBindingAccumulator()

	for _, plan := range e.Spec.SitePlans {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.logf("--- site '%s' (from %s)", plan.NewSiteName, plan.SourceSiteID)
		data := prefetched[plan.SourceSiteID]

		newSiteID, ok := e.createSite(ctx, dstOrg, plan)
		if !ok {
			continue
		}

		e.copySiteSettings(ctx, newSiteID, data)
		e.cloneSiteWLANs(ctx, newSiteID, data)
		e.cloneSiteMaps(ctx, newSiteID, data)
		e.assignSitegroups(ctx, dstOrg, newSiteID, plan, data, sourceGroups, destGroups)
		e.remapAlarmTemplate(ctx, newSiteID, data, sourceAlarms, destAlarms)

		bindings, skipReasons := e.resolveAssignments(plan, data, ot.maps, destWLANScope, sourceScope, shared)
		e.assignNonWLAN(ctx, newSiteID, bindings)
		acc.AddSiteBindings(bindings.WLAN, newSiteID)
		acc.AddOrgBindings(bindings.WLANOrg)

		if len(skipReasons) > 0 {
			e.warnf("template assignment for '%s': %s", plan.NewSiteName, FormatSkipWarnings(skipReasons))
		}

		e.addSiteResult(models.SiteResult{
			SourceSiteID: plan.SourceSiteID,
			NewSiteID:    newSiteID,
			NewSiteName:  plan.NewSiteName,
			SkipReasons:  skipReasons,
		})
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	e.finalizeWLANBindings(ctx, dstOrg, newOrgID, acc, destWLANNames)
	e.inviteAdmins(ctx, dstOrg)
	return ctx.Err()
}

func (e *Engine) createSite(ctx context.Context, dstOrg string, plan models.SitePlan) (string, bool) {
	payload := models.Resource{
		"name":         plan.NewSiteName,
		"address":      plan.NewSiteAddress,
		"country_code": plan.CountryCode,
	}
	if plan.Timezone != "" {
		payload["timezone"] = plan.Timezone
	}
	res, err := e.Dest.Post(ctx, dstOrg+"/sites", payload)
	if err != nil {
		e.warnf("site '%s' could not be created: %v", plan.NewSiteName, err)
		e.count("site", "failed")
		return "", false
	}
	newSiteID := res.ID()
	if newSiteID == "" {
		e.warnf("site '%s' created but no id returned", plan.NewSiteName)
		e.count("site", "failed")
		return "", false
	}
	e.count("site", "created")
	e.logf("  CREATED: site '%s' (ID %s)", plan.NewSiteName, newSiteID)
	return newSiteID, true
}

func (e *Engine) copySiteSettings(ctx context.Context, newSiteID string, data *siteData) {
	if data.settings == nil {
		e.warnf("site settings unavailable for new site %s, skipping copy", newSiteID)
		return
	}
	cleaned := stripFields(data.settings, siteSettingsStripFields)
	if err := e.Dest.Put(ctx, "/sites/"+newSiteID+"/setting", cleaned); err != nil {
		e.warnf("site settings copy failed for site %s: %v", newSiteID, err)
		return
	}
	e.logf("  site settings copied")
}

func (e *Engine) cloneSiteWLANs(ctx context.Context, newSiteID string, data *siteData) {
	if len(data.wlans) == 0 {
		return
	}
	created := 0
	for _, wlan := range data.wlans {
		_, err := e.Dest.Post(ctx, "/sites/"+newSiteID+"/wlans", stripFields(wlan, siteWLANStripFields))
		if err != nil {
			e.warnf("site WLAN '%s' skipped: %v", displayName(wlan), err)
			e.count("site wlan", "failed")
			continue
		}
		e.count("site wlan", "created")
		created++
	}
	e.logf("  site-specific WLANs copied: %d/%d", created, len(data.wlans))
}

// cloneSiteMaps copies floor-plan maps and transfers their images. The
// image is fetched from the source map's signed URL and re-uploaded to the
// new map; any failure there degrades to a warning since the map object
// itself already exists.
func (e *Engine) cloneSiteMaps(ctx context.Context, newSiteID string, data *siteData) {
	if len(data.maps) == 0 {
		return
	}
	created := 0
	for _, siteMap := range data.maps {
		name := displayName(siteMap)
		imageURL := siteMap.Str("url")

		res, err := e.Dest.Post(ctx, "/sites/"+newSiteID+"/maps", stripFields(siteMap, siteMapStripFields))
		if err != nil {
			e.warnf("site map '%s' skipped: %v", name, err)
			e.count("site map", "failed")
			continue
		}
		e.count("site map", "created")
		created++

		newMapID := res.ID()
		if imageURL == "" || newMapID == "" {
			continue
		}
		content, contentType, err := e.Source.Download(ctx, imageURL)
		if err != nil {
			e.warnf("could not download map image for '%s': %v", name, err)
			continue
		}
		filename := imageFilename(imageURL)
		uploadPath := "/sites/" + newSiteID + "/maps/" + newMapID + "/image"
		if err := e.Dest.UploadFile(ctx, uploadPath, filename, contentType, content); err != nil {
			e.warnf("map image upload failed for '%s': %v", name, err)
		}
	}
	e.logf("  site maps copied: %d/%d", created, len(data.maps))
}

// imageFilename derives an upload filename from a signed asset URL.
func imageFilename(rawURL string) string {
	trimmed := rawURL
	if i := strings.IndexByte(trimmed, '?'); i >= 0 {
		trimmed = trimmed[:i]
	}
	if i := strings.LastIndexByte(trimmed, '/'); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	if trimmed == "" {
		return "map_image"
	}
	return trimmed
}

// assignSitegroups puts the new site into the destination groups whose
// names match the source site's group membership.
func (e *Engine) assignSitegroups(ctx context.Context, dstOrg, newSiteID string, plan models.SitePlan,
	data *siteData, sourceGroups, destGroups NameIndex) {

	if data.details == nil {
		return
	}
	sourceGroupIDs := data.details.StrList("sitegroup_ids")
	if len(sourceGroupIDs) == 0 {
		return
	}

	var newGroupIDs []string
	var unmatched []string
	for _, groupID := range sourceGroupIDs {
		name := sourceGroups.IDToName[groupID]
		if name == "" {
			unmatched = append(unmatched, groupID)
			continue
		}
		if newID := destGroups.NameToID[name]; newID != "" {
			newGroupIDs = append(newGroupIDs, newID)
		} else {
			unmatched = append(unmatched, name)
		}
	}

	if len(newGroupIDs) > 0 {
		if err := e.Dest.Put(ctx, dstOrg+"/sites/"+newSiteID, models.Resource{"sitegroup_ids": newGroupIDs}); err != nil {
			e.warnf("site group membership failed for '%s': %v", plan.NewSiteName, err)
		} else {
			e.logf("  site group membership applied: %d group(s)", len(newGroupIDs))
		}
	}
	if len(unmatched) > 0 {
		e.warnf("unmatched site groups for '%s': %s", plan.NewSiteName, strings.Join(unmatched, ", "))
	}
}

// remapAlarmTemplate re-applies the source site's alarm template by name.
// This runs in every assignment mode.
func (e *Engine) remapAlarmTemplate(ctx context.Context, newSiteID string, data *siteData,
	sourceAlarms, destAlarms NameIndex) {

	if data.details == nil {
		return
	}
	sourceAlarmID := data.details.Str("alarmtemplate_id")
	if sourceAlarmID == "" {
		return
	}
	name := sourceAlarms.IDToName[sourceAlarmID]
	newID := ""
	if name != "" {
		newID = destAlarms.NameToID[name]
	}
	if newID == "" {
		e.warnf("alarm template id '%s' could not be remapped, no matching name found in new org", sourceAlarmID)
		return
	}
	if err := e.Dest.Put(ctx, "/sites/"+newSiteID, models.Resource{"alarmtemplate_id": newID}); err != nil {
		e.warnf("alarm template assignment failed for site %s: %v", newSiteID, err)
		return
	}
	e.logf("  alarm template '%s' assigned", name)
}

// resolveAssignments produces the destination template bindings for one
// site according to the assignment mode.
func (e *Engine) resolveAssignments(plan models.SitePlan, data *siteData, maps TemplateMaps,
	destScope, sourceScope WLANScope, shared Bindings) (Bindings, map[string]string) {

	switch e.Spec.AssignmentMode {
	case models.AssignMirrorSource:
		if data.details == nil {
			return Bindings{}, map[string]string{}
		}
		src := DeriveSourceBindings(data.details, plan.SourceSiteID, sourceScope)
		return ResolveFromSource(src, maps)
	case models.AssignPerSite:
		return PlanFromSelection(plan.Templates, maps, destScope), map[string]string{}
	default:
		return shared, map[string]string{}
	}
}

// assignNonWLAN writes the non-WLAN template bindings with one site PUT per
// kind. WLAN bindings are deferred to the accumulator.
func (e *Engine) assignNonWLAN(ctx context.Context, newSiteID string, bindings Bindings) {
	for _, payload := range bindings.NonWLANFields() {
		if err := e.Dest.Put(ctx, "/sites/"+newSiteID, payload); err != nil {
			e.warnf("template assignment failed for site %s: %v", newSiteID, err)
			e.count("template assignment", "failed")
			continue
		}
		e.count("template assignment", "created")
	}
}

// finalizeWLANBindings writes each accumulated WLAN template exactly once,
// now that all destination site IDs exist.
func (e *Engine) finalizeWLANBindings(ctx context.Context, dstOrg, newOrgID string,
	acc *WLANBindingAccumulator, destWLANNames map[string]string) {

	if acc.Empty() {
		return
	}
	e.logf("4. Applying WLAN template bindings")
	for _, update := range acc.Finalize(newOrgID) {
		name := destWLANNames[update.TemplateID]
		if name == "" {
			name = update.TemplateID
		}
		if err := e.Dest.Put(ctx, dstOrg+"/templates/"+update.TemplateID, update.Payload); err != nil {
			e.warnf("WLAN template '%s' binding failed: %v", name, err)
			e.count("wlan binding", "failed")
			continue
		}
		e.count("wlan binding", "created")
		if update.OrgLevel {
			e.logf("  WLAN (org-level) '%s' applies to all sites in new org", name)
		} else {
			e.logf("  WLAN (site-level) '%s' bound to %d site(s)", name, len(update.SiteIDs))
		}
	}
}

// inviteAdmins sends org admin invitations for the configured users.
func (e *Engine) inviteAdmins(ctx context.Context, dstOrg string) {
	if len(e.Spec.Invites) == 0 {
		return
	}
	e.logf("5. Inviting org admins")
	for _, invite := range e.Spec.Invites {
		payload := models.Resource{
			"email":      strings.TrimSpace(invite.Email),
			"first_name": strings.TrimSpace(invite.FirstName),
			"last_name":  strings.TrimSpace(invite.LastName),
			"hours":      24,
			"privileges": []interface{}{map[string]interface{}{"scope": "org", "role": "admin"}},
		}
		if _, err := e.Dest.Post(ctx, dstOrg+"/invites", payload); err != nil {
			e.warnf("invite for '%s' failed: %v", invite.Email, err)
			e.count("invite", "failed")
			continue
		}
		e.count("invite", "created")
		e.logf("  invited %s", invite.Email)
	}
}
