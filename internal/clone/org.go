package clone

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mistops/org-clone-workbench/internal/mist"
	"github.com/mistops/org-clone-workbench/internal/models"
)

// fetchTemplateKinds reads all four template collections of an org in
// parallel. A failed kind is reported through warnf and yields an empty
// list so the rest of the run can proceed.
func fetchTemplateKinds(ctx context.Context, c *mist.Client, orgID string, warnf func(string, ...interface{})) map[string][]models.Resource {
	results := make(map[string][]models.Resource, len(templateEndpoints))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(templateEndpoints))
	for kind, endpoint := range templateEndpoints {
		g.Go(func() error {
			items, err := c.Paginate(gctx, "/orgs/"+orgID+"/"+endpoint)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				warnf("could not fetch %s templates: %v", kind, err)
				results[kind] = nil
				return nil
			}
			results[kind] = items
			return nil
		})
	}
	g.Wait()
	return results
}

// orgTemplates bundles the template snapshots of both tenants and the
// derived correlation maps.
type orgTemplates struct {
	maps   TemplateMaps
	source map[string][]models.Resource
	dest   map[string][]models.Resource
}

// buildTemplateMaps snapshots the template collections of both orgs and
// builds the name-join maps. Duplicate names within a kind are surfaced as
// warnings; the index keeps the last occurrence.
func (e *Engine) buildTemplateMaps(ctx context.Context, newOrgID string) orgTemplates {
	ot := orgTemplates{
		maps: TemplateMaps{
			SourceIDToName: map[string]map[string]string{},
			DestNameToID:   map[string]map[string]string{},
		},
		source: fetchTemplateKinds(ctx, e.Source, e.Spec.SourceOrgID, e.warnf),
		dest:   fetchTemplateKinds(ctx, e.Dest, newOrgID, e.warnf),
	}
	for kind := range templateEndpoints {
		if w := duplicateWarning(kind+" template", ot.source[kind]); w != "" {
			e.warnf("source org: %s", w)
		}
		if w := duplicateWarning(kind+" template", ot.dest[kind]); w != "" {
			e.warnf("new org: %s", w)
		}
		ot.maps.SourceIDToName[kind] = BuildNameIndex(ot.source[kind]).IDToName
		ot.maps.DestNameToID[kind] = BuildNameIndex(ot.dest[kind]).NameToID
	}
	return ot
}

// fetchOrEmpty reads a collection, degrading a fetch failure to an empty
// list plus a warning.
func (e *Engine) fetchOrEmpty(ctx context.Context, c *mist.Client, kind, path string) []models.Resource {
	items, err := c.Paginate(ctx, path)
	if err != nil {
		e.warnf("could not fetch %s: %v", kind, err)
		return nil
	}
	return items
}

// cloneCollection copies a list of org resources one by one, stripping
// read-only fields and applying an optional payload transform. It returns
// the source→dest id map for items whose creation returned an id.
func (e *Engine) cloneCollection(ctx context.Context, kind string, items []models.Resource,
	createPath string, strip map[string]bool, transform func(models.Resource) models.Resource) IDMap {

	ids := IDMap{}
	created := 0
	for _, item := range items {
		payload := stripFields(item, strip)
		if transform != nil {
			payload = transform(payload)
		}
		res, err := e.Dest.Post(ctx, createPath, payload)
		if err != nil {
			e.warnf("%s '%s' skipped: %v", kind, displayName(item), err)
			e.count(kind, "failed")
			continue
		}
		if oldID, newID := item.ID(), res.ID(); oldID != "" && newID != "" {
			ids[oldID] = newID
		}
		e.count(kind, "created")
		created++
	}
	if len(items) > 0 {
		e.logf("  %s copied: %d/%d", kind, created, len(items))
	}
	return ids
}

// cloneOrgServerSide uses the same-cloud clone endpoint, which copies all
// org-level objects in one call.
func (e *Engine) cloneOrgServerSide(ctx context.Context) (string, error) {
	e.logf("1. Cloning organization %q via server-side clone", e.Spec.NewOrgName)
	res, err := e.Source.Post(ctx, "/orgs/"+e.Spec.SourceOrgID+"/clone",
		models.Resource{"name": e.Spec.NewOrgName})
	if err != nil {
		return "", fmt.Errorf("cloning organization: %w", err)
	}
	newOrgID := res.ID()
	if newOrgID == "" {
		return "", fmt.Errorf("cloning organization: no id in response")
	}
	e.logf("  CREATED: organization %q (ID %s)", e.Spec.NewOrgName, newOrgID)
	return newOrgID, nil
}

// bootstrapOrg builds the destination org manually for cross-cloud clones:
// blank org, then sitegroups, service policies, and templates in dependency
// order. Gateway templates go last so the service-policy id map is complete.
func (e *Engine) bootstrapOrg(ctx context.Context) (string, error) {
	e.logf("1. Creating blank organization %q on destination cloud", e.Spec.NewOrgName)
	res, err := e.Dest.Post(ctx, "/orgs", models.Resource{"name": e.Spec.NewOrgName})
	if err != nil {
		return "", fmt.Errorf("creating organization: %w", err)
	}
	newOrgID := res.ID()
	if newOrgID == "" {
		return "", fmt.Errorf("creating organization: no id in response")
	}
	e.logf("  CREATED: organization %q (ID %s)", e.Spec.NewOrgName, newOrgID)

	srcOrg := "/orgs/" + e.Spec.SourceOrgID
	dstOrg := "/orgs/" + newOrgID

	e.logf("  copying site groups")
	sitegroups := e.fetchOrEmpty(ctx, e.Source, "site groups", srcOrg+"/sitegroups")
	e.cloneCollection(ctx, "site group", sitegroups, dstOrg+"/sitegroups", orgResourceStripFields, nil)

	if err := ctx.Err(); err != nil {
		return newOrgID, err
	}

	e.logf("  copying service policies")
	policies := e.fetchOrEmpty(ctx, e.Source, "service policies", srcOrg+"/servicepolicies")
	spIDs := e.cloneCollection(ctx, "service policy", policies, dstOrg+"/servicepolicies", orgResourceStripFields, nil)

	// Template reads are parallel; the creates below stay sequential.
	templates := fetchTemplateKinds(ctx, e.Source, e.Spec.SourceOrgID, e.warnf)

	for _, kind := range []string{KindSwitch, KindRF, KindWLAN, KindWANEdge} {
		if err := ctx.Err(); err != nil {
			return newOrgID, err
		}
		e.logf("  copying %s templates", kindLabels[kind])
		var transform func(models.Resource) models.Resource
		if kind == KindWANEdge {
			transform = func(payload models.Resource) models.Resource {
				return remapGatewayEntries(payload, spIDs)
			}
		}
		e.cloneCollection(ctx, kind+" template", templates[kind],
			dstOrg+"/"+templateEndpoints[kind], orgResourceStripFields, transform)
	}

	e.cloneAlarmTemplates(ctx, newOrgID)
	return newOrgID, nil
}

// remapGatewayEntries rewrites the servicepolicy_id of every referenced
// entry in a gateway template's service_policies list. Inline entries (no
// servicepolicy_id) are copied verbatim. Unmapped ids are left as-is.
func remapGatewayEntries(payload models.Resource, spIDs IDMap) models.Resource {
	raw, ok := payload["service_policies"].([]interface{})
	if !ok || len(raw) == 0 {
		return payload
	}
	remapped := make([]interface{}, 0, len(raw))
	for _, rawEntry := range raw {
		entry, ok := rawEntry.(map[string]interface{})
		if !ok {
			remapped = append(remapped, rawEntry)
			continue
		}
		srcID, _ := entry["servicepolicy_id"].(string)
		if srcID == "" {
			remapped = append(remapped, entry)
			continue
		}
		clone := make(map[string]interface{}, len(entry))
		for k, v := range entry {
			clone[k] = v
		}
		if newID, ok := spIDs[srcID]; ok {
			clone["servicepolicy_id"] = newID
		}
		remapped = append(remapped, clone)
	}
	out := make(models.Resource, len(payload))
	for k, v := range payload {
		out[k] = v
	}
	out["service_policies"] = remapped
	return out
}

// repairGatewayPolicies fixes gateway templates after a same-cloud
// server-side clone. The clone copies service policies under new IDs and
// rewrites referenced entries, but strips inline entries completely. The
// source template is authoritative: referenced policies are re-resolved by
// name (missing ones created on demand) and inline entries restored
// verbatim, with deny/block entries ordered before allow.
func (e *Engine) repairGatewayPolicies(ctx context.Context, newOrgID string) {
	srcOrg := "/orgs/" + e.Spec.SourceOrgID
	dstOrg := "/orgs/" + newOrgID

	e.logf("  rebuilding gateway template service policies")

	sourcePolicies := e.fetchOrEmpty(ctx, e.Source, "source service policies", srcOrg+"/servicepolicies")
	sourceIDToName := map[string]string{}
	for _, policy := range sourcePolicies {
		if policy.ID() != "" && policy.Name() != "" {
			sourceIDToName[policy.ID()] = policy.Name()
		}
	}

	destPolicies := e.fetchOrEmpty(ctx, e.Dest, "cloned service policies", dstOrg+"/servicepolicies")
	destNameToID := map[string]string{}
	destIDToAction := map[string]string{}
	for _, policy := range destPolicies {
		if policy.ID() == "" || policy.Name() == "" {
			continue
		}
		destNameToID[policy.Name()] = policy.ID()
		destIDToAction[policy.ID()] = policyAction(policy)
	}

	// Create any source policy the server-side clone missed.
	for _, policy := range sourcePolicies {
		name := policy.Name()
		if name == "" || destNameToID[name] != "" {
			continue
		}
		res, err := e.Dest.Post(ctx, dstOrg+"/servicepolicies", stripFields(policy, orgResourceStripFields))
		if err != nil {
			e.warnf("service policy '%s' could not be created: %v", name, err)
			e.count("service policy", "failed")
			continue
		}
		if newID := res.ID(); newID != "" {
			destNameToID[name] = newID
			destIDToAction[newID] = policyAction(policy)
			e.count("service policy", "created")
		}
	}

	spIDs := IDMap{}
	for srcID, name := range sourceIDToName {
		if newID := destNameToID[name]; newID != "" {
			spIDs[srcID] = newID
		}
	}
	if len(sourcePolicies) > 0 {
		e.logf("  service policy ID map built: %d/%d resolved", len(spIDs), len(sourceIDToName))
	}

	sourceGateways := e.fetchOrEmpty(ctx, e.Source, "source gateway templates", srcOrg+"/gatewaytemplates")
	sourceByName := map[string]models.Resource{}
	for _, gw := range sourceGateways {
		if gw.Name() != "" {
			sourceByName[gw.Name()] = gw
		}
	}

	destGateways := e.fetchOrEmpty(ctx, e.Dest, "cloned gateway templates", dstOrg+"/gatewaytemplates")
	for _, gw := range destGateways {
		gwName := gw.Name()
		sourceGw, ok := sourceByName[gwName]
		if !ok {
			e.warnf("gateway template '%s' not found in source org, skipping policy rebuild", gwName)
			continue
		}
		sourceEntries, _ := sourceGw["service_policies"].([]interface{})
		if len(sourceEntries) == 0 {
			continue
		}

		var entries []map[string]interface{}
		unmatched := 0
		for _, rawEntry := range sourceEntries {
			entry, ok := rawEntry.(map[string]interface{})
			if !ok {
				continue
			}
			srcID, _ := entry["servicepolicy_id"].(string)
			if srcID == "" {
				// Inline entry, restored verbatim.
				entries = append(entries, entry)
				continue
			}
			newID, ok := spIDs[srcID]
			if !ok {
				unmatched++
				continue
			}
			pathPref, _ := entry["path_preference"].(string)
			if pathPref == "" {
				pathPref = "WAN1"
			}
			entries = append(entries, map[string]interface{}{
				"servicepolicy_id": newID,
				"path_preference":  pathPref,
			})
		}

		sort.SliceStable(entries, func(i, j int) bool {
			return denyFirstRank(entries[i], destIDToAction) < denyFirstRank(entries[j], destIDToAction)
		})

		payload := models.Resource{"service_policies": entries}
		if err := e.Dest.Put(ctx, dstOrg+"/gatewaytemplates/"+gw.ID(), payload); err != nil {
			e.warnf("gateway template '%s' policy rebuild failed: %v", gwName, err)
			e.count("gateway template policy", "failed")
			continue
		}
		e.count("gateway template policy", "created")
		e.logf("  service policies applied to gateway template '%s': %d", gwName, len(entries))
		if unmatched > 0 {
			e.warnf("%d unmatched referenced policy id(s) skipped in '%s'", unmatched, gwName)
		}
	}
}

func policyAction(policy models.Resource) string {
	if action := policy.Str("action"); action != "" {
		return action
	}
	return "allow"
}

// denyFirstRank orders deny/block policies before allow. Referenced entries
// take their action from the destination policy object, inline entries from
// their own action field.
func denyFirstRank(entry map[string]interface{}, idToAction map[string]string) int {
	action := "allow"
	if id, _ := entry["servicepolicy_id"].(string); id != "" {
		if a, ok := idToAction[id]; ok {
			action = a
		}
	} else if a, _ := entry["action"].(string); a != "" {
		action = a
	}
	if action == "deny" || action == "block" {
		return 0
	}
	return 1
}

// cloneAlarmTemplates copies the source org's alarm templates, skipping
// names that already exist in the destination. The same-cloud server-side
// clone copies alarm templates itself, so this is a top-up in that path and
// a full copy in the cross-cloud path.
func (e *Engine) cloneAlarmTemplates(ctx context.Context, newOrgID string) {
	e.logf("  copying alarm templates")
	sourceTemplates := e.fetchOrEmpty(ctx, e.Source, "alarm templates", "/orgs/"+e.Spec.SourceOrgID+"/alarmtemplates")
	if len(sourceTemplates) == 0 {
		e.logf("  no alarm templates found in source org")
		return
	}
	existing := e.fetchOrEmpty(ctx, e.Dest, "existing alarm templates", "/orgs/"+newOrgID+"/alarmtemplates")
	existingNames := map[string]bool{}
	for _, tmpl := range existing {
		if tmpl.Name() != "" {
			existingNames[tmpl.Name()] = true
		}
	}

	created := 0
	for _, tmpl := range sourceTemplates {
		if existingNames[tmpl.Name()] {
			e.count("alarm template", "skipped")
			continue
		}
		_, err := e.Dest.Post(ctx, "/orgs/"+newOrgID+"/alarmtemplates", stripFields(tmpl, orgResourceStripFields))
		if err != nil {
			e.warnf("alarm template '%s' skipped: %v", tmpl.Name(), err)
			e.count("alarm template", "failed")
			continue
		}
		e.count("alarm template", "created")
		created++
	}
	e.logf("  alarm templates created: %d/%d", created, len(sourceTemplates))
}
