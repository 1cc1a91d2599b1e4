package clone

import (
	"context"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// cloneNAC copies the access assurance stack in dependency order: org NAC
// settings, SCEP, SSO roles, SSOs, NAC tags, NAC rules, NAC portals, PSK
// portals, then the opt-in user MAC entries. Items that cannot move through
// the API (SP metadata, branding images, CRL files, the SCEP CA) become
// manual-action warnings. Returns an error only on cancellation.
func (e *Engine) cloneNAC(ctx context.Context, newOrgID string) error {
	e.logf("2. Cloning access assurance (NAC) configuration")

	srcOrg := "/orgs/" + e.Spec.SourceOrgID
	dstOrg := "/orgs/" + newOrgID

	e.cloneNACSettings(ctx, srcOrg, dstOrg)
	e.cloneSCEP(ctx, srcOrg, dstOrg)

	if err := ctx.Err(); err != nil {
		return err
	}

	e.logf("  copying SSO roles")
	roles := e.fetchOrEmpty(ctx, e.Source, "SSO roles", srcOrg+"/ssoroles")
	roleIDs := e.cloneCollection(ctx, "SSO role", roles, dstOrg+"/ssoroles", orgResourceStripFields, nil)

	e.logf("  copying SSOs")
	ssos := e.fetchOrEmpty(ctx, e.Source, "SSOs", srcOrg+"/ssos")
	ssoIDs := e.cloneCollection(ctx, "SSO", ssos, dstOrg+"/ssos", orgResourceStripFields,
		func(payload models.Resource) models.Resource {
			return RewriteResource(payload, roleIDs)
		})
	if len(ssoIDs) > 0 {
		e.warnf("ACTION REQUIRED: SAML SP metadata is regenerated per org; re-register each cloned SSO with your identity provider")
		e.warnf("ACTION REQUIRED: SSO allowable domains are not part of the SSO payload and must be reconfigured manually")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.logf("  copying NAC tags")
	tags := e.fetchOrEmpty(ctx, e.Source, "NAC tags", srcOrg+"/nactags")
	tagIDs := e.cloneCollection(ctx, "NAC tag", tags, dstOrg+"/nactags", orgResourceStripFields, nil)

	e.logf("  copying NAC rules")
	rules := e.fetchOrEmpty(ctx, e.Source, "NAC rules", srcOrg+"/nacrules")
	e.cloneCollection(ctx, "NAC rule", rules, dstOrg+"/nacrules", orgResourceStripFields,
		func(payload models.Resource) models.Resource {
			return RewriteResource(payload, tagIDs)
		})

	e.logf("  copying NAC portals")
	portals := e.fetchOrEmpty(ctx, e.Source, "NAC portals", srcOrg+"/nacportals")
	portalIDs := e.cloneCollection(ctx, "NAC portal", portals, dstOrg+"/nacportals", orgResourceStripFields,
		func(payload models.Resource) models.Resource {
			return RewriteResource(payload, tagIDs.Merge(ssoIDs))
		})
	if len(portalIDs) > 0 {
		e.warnf("ACTION REQUIRED: NAC portal branding images are binary uploads and must be re-uploaded in the destination org")
		e.warnf("ACTION REQUIRED: NAC portal SAML SP metadata is regenerated per org; update your identity provider for each portal")
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	e.clonePSKPortals(ctx, srcOrg, dstOrg)

	e.warnf("ACTION REQUIRED: CRL files are binary uploads and cannot be cloned; re-upload them in the destination org if configured")

	if e.Spec.CloneUserMACs {
		e.logf("  copying user MAC entries")
		macs := e.fetchOrEmpty(ctx, e.Source, "user MACs", srcOrg+"/usermacs")
		e.cloneCollection(ctx, "user MAC", macs, dstOrg+"/usermacs", orgResourceStripFields, nil)
	}

	return ctx.Err()
}

// cloneNACSettings copies the mist_nac block from the source org settings.
func (e *Engine) cloneNACSettings(ctx context.Context, srcOrg, dstOrg string) {
	e.logf("  copying NAC org settings")
	settings, err := e.Source.GetResource(ctx, srcOrg+"/setting")
	if err != nil {
		e.warnf("could not fetch org settings for NAC copy: %v", err)
		return
	}
	nacBlock, ok := settings["mist_nac"]
	if !ok || nacBlock == nil {
		e.logf("  no mist_nac block in source org settings, skipping")
		return
	}
	if err := e.Dest.Put(ctx, dstOrg+"/setting", models.Resource{"mist_nac": nacBlock}); err != nil {
		e.warnf("could not copy mist_nac settings: %v", err)
		return
	}
	e.logf("  NAC org settings (mist_nac) copied")
	e.warnf("ACTION REQUIRED: verify RADIUS shared secrets and IDP credentials in the copied mist_nac block match the destination environment")
}

// cloneSCEP copies the SCEP configuration. The CA certificate is
// org-specific and regenerated by the destination.
func (e *Engine) cloneSCEP(ctx context.Context, srcOrg, dstOrg string) {
	e.logf("  copying SCEP configuration")
	scep, err := e.Source.GetResource(ctx, srcOrg+"/setting/mist_scep")
	if err != nil {
		e.logf("  SCEP settings not found or not accessible, skipping")
		return
	}
	if enabled, _ := scep["enabled"].(bool); !enabled {
		e.logf("  SCEP is not enabled in source org, skipping")
		return
	}
	if err := e.Dest.Put(ctx, dstOrg+"/setting/mist_scep", scep); err != nil {
		e.warnf("could not copy SCEP settings: %v", err)
		return
	}
	e.logf("  SCEP configuration copied")
	e.warnf("ACTION REQUIRED: the SCEP certificate authority is regenerated for the destination org; distribute the new CA certificate to client devices")
}

// clonePSKPortals copies PSK portals, stripping the generated ui_url. SSO
// metadata and branding images cannot follow through the API.
func (e *Engine) clonePSKPortals(ctx context.Context, srcOrg, dstOrg string) {
	e.logf("  copying PSK portals")
	portals := e.fetchOrEmpty(ctx, e.Source, "PSK portals", srcOrg+"/pskportals")
	if len(portals) == 0 {
		e.logf("  no PSK portals found in source org")
		return
	}

	var ssoNames, imageNames []string
	created := 0
	for _, portal := range portals {
		name := displayName(portal)
		_, err := e.Dest.Post(ctx, dstOrg+"/pskportals", stripFields(portal, pskPortalStripFields))
		if err != nil {
			e.warnf("PSK portal '%s' skipped: %v", name, err)
			e.count("PSK portal", "failed")
			continue
		}
		e.count("PSK portal", "created")
		created++
		if portal.Str("auth") == "sso" || portal["sso"] != nil {
			ssoNames = append(ssoNames, name)
		}
		for _, field := range []string{"bg_image_url", "thumbnail_url", "template_url"} {
			if portal.Str(field) != "" {
				imageNames = append(imageNames, name)
				break
			}
		}
	}
	e.logf("  PSK portals copied: %d/%d", created, len(portals))
	for _, name := range ssoNames {
		e.warnf("ACTION REQUIRED: PSK portal '%s' uses SSO; its SP metadata is regenerated and must be re-registered with your identity provider", name)
	}
	for _, name := range imageNames {
		e.warnf("ACTION REQUIRED: PSK portal '%s' has branding images that must be re-uploaded manually", name)
	}
}
