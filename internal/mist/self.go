package mist

import (
	"context"
	"fmt"

	"github.com/mistops/org-clone-workbench/internal/models"
)

// Ping verifies connectivity and authentication by reading /self.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Get(ctx, "/self")
	return err
}

// ListOrgs enumerates the orgs visible to the token. It tries the direct
// org listing endpoints first and falls back to extracting org-scope
// privileges from /self, which every token can read.
func (c *Client) ListOrgs(ctx context.Context) ([]models.NamedRef, error) {
	var lastErr error

	if self, err := c.GetResource(ctx, "/self"); err == nil {
		if orgs := orgsFromPrivileges(self); len(orgs) > 0 {
			return orgs, nil
		}
		lastErr = fmt.Errorf("/self returned no org privileges")
	} else {
		lastErr = err
	}

	for _, path := range []string{"/orgs", "/self/orgs"} {
		items, err := c.GetList(ctx, path)
		if err != nil {
			lastErr = err
			continue
		}
		return models.Refs(items), nil
	}
	return nil, lastErr
}

// ListSites enumerates the sites of an org. The org sites endpoint returns
// full site objects (address, country_code, sitegroup_ids); /self is the
// fallback and only yields privilege stubs.
func (c *Client) ListSites(ctx context.Context, orgID string) ([]models.Resource, error) {
	items, err := c.GetList(ctx, "/orgs/"+orgID+"/sites")
	if err == nil {
		return items, nil
	}
	lastErr := err

	self, err := c.GetResource(ctx, "/self")
	if err != nil {
		return nil, lastErr
	}
	sites := sitesFromPrivileges(self, orgID)
	if len(sites) == 0 {
		return nil, fmt.Errorf("/self returned no site privileges for org %s", orgID)
	}
	return sites, nil
}

func orgsFromPrivileges(self models.Resource) []models.NamedRef {
	privileges, ok := self["privileges"].([]interface{})
	if !ok {
		return nil
	}
	var orgs []models.NamedRef
	seen := map[string]bool{}
	for _, raw := range privileges {
		p, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		priv := models.Resource(p)
		if priv.Str("scope") != "org" {
			continue
		}
		orgID := priv.Str("org_id")
		if orgID == "" || seen[orgID] {
			continue
		}
		seen[orgID] = true
		name := priv.Str("name")
		if name == "" {
			name = priv.Str("org_name")
		}
		if name == "" {
			name = orgID
		}
		orgs = append(orgs, models.NamedRef{ID: orgID, Name: name})
	}
	return orgs
}

func sitesFromPrivileges(self models.Resource, orgID string) []models.Resource {
	privileges, ok := self["privileges"].([]interface{})
	if !ok {
		return nil
	}
	var sites []models.Resource
	seen := map[string]bool{}
	for _, raw := range privileges {
		p, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		priv := models.Resource(p)
		if priv.Str("scope") != "site" || priv.Str("org_id") != orgID {
			continue
		}
		siteID := priv.Str("site_id")
		if siteID == "" || seen[siteID] {
			continue
		}
		seen[siteID] = true
		name := priv.Str("name")
		if name == "" {
			name = siteID
		}
		sites = append(sites, models.Resource{"id": siteID, "name": name})
	}
	return sites
}
