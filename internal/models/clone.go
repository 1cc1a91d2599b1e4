package models

// AssignmentMode selects how cloned templates are bound to the new sites.
type AssignmentMode int

const (
	// AssignPerSite clones all templates and takes an explicit selection
	// for each site from the site plan.
	AssignPerSite AssignmentMode = iota + 1
	// AssignShared clones all templates and applies one shared selection
	// per template kind to every site.
	AssignShared
	// AssignSharedSingle behaves like AssignShared; it exists as a distinct
	// mode because the UI offers both groupings.
	AssignSharedSingle
	// AssignMirrorSource reads each source site's current template bindings
	// and resolves them to destination templates by name.
	AssignMirrorSource
)

// Valid reports whether the mode is one of the four defined modes.
func (m AssignmentMode) Valid() bool {
	return m >= AssignPerSite && m <= AssignMirrorSource
}

// SitePlan describes one destination site to create and the source site it
// is cloned from.
type SitePlan struct {
	SourceSiteID   string `json:"source_site_id"`
	SourceSiteName string `json:"source_site_name,omitempty"`
	NewSiteName    string `json:"new_site_name"`
	NewSiteAddress string `json:"new_site_address"`
	CountryCode    string `json:"country_code"`
	Timezone       string `json:"timezone,omitempty"`

	// Templates holds the per-site template name selection for
	// AssignPerSite mode, keyed by kind ("switch", "wan_edge", "wlan", "rf").
	Templates map[string]string `json:"templates,omitempty"`
}

// Invite describes an org admin to invite after the clone.
type Invite struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// CloneSpec is the full, immutable configuration of one clone run. Handlers
// build it from the request; the engine never mutates it.
type CloneSpec struct {
	SourceOrgID    string         `json:"source_org_id"`
	NewOrgName     string         `json:"new_org_name"`
	AssignmentMode AssignmentMode `json:"assignment_mode"`

	// SharedTemplates holds the template name selection for AssignShared
	// and AssignSharedSingle, keyed by kind.
	SharedTemplates map[string]string `json:"shared_templates,omitempty"`

	SitePlans []SitePlan `json:"site_plans"`

	CloneNAC      bool     `json:"clone_nac"`
	CloneUserMACs bool     `json:"clone_user_macs"`
	Invites       []Invite `json:"invites,omitempty"`
}

// Outcome counts per-item results for one resource kind.
type Outcome struct {
	Kind    string `json:"kind"`
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Failed  int    `json:"failed"`
}

// SiteResult summarizes one destination site after the clone loop.
type SiteResult struct {
	SourceSiteID string            `json:"source_site_id"`
	NewSiteID    string            `json:"new_site_id"`
	NewSiteName  string            `json:"new_site_name"`
	SkipReasons  map[string]string `json:"skip_reasons,omitempty"`
}

// RunReport is the aggregate result of a clone run.
type RunReport struct {
	NewOrgID string       `json:"new_org_id"`
	Outcomes []Outcome    `json:"outcomes"`
	Sites    []SiteResult `json:"sites"`
	Warnings []string     `json:"warnings"`
}

// SiteGroupAssignment lists the source site-group names one site belongs to.
type SiteGroupAssignment struct {
	SourceSiteID   string   `json:"source_site_id"`
	SourceSiteName string   `json:"source_site_name"`
	SitegroupNames []string `json:"sitegroup_names"`
}

// AssignmentWarning is a per-site preview of the skip reasons the
// mirror-source mode would produce.
type AssignmentWarning struct {
	SourceSiteID   string            `json:"source_site_id"`
	SourceSiteName string            `json:"source_site_name"`
	SkipReasons    map[string]string `json:"skipped_templates"`
	Summary        string            `json:"warning_summary"`
}

// PreflightReport describes the source org before any mutation happens.
type PreflightReport struct {
	SourceOrgID      string                `json:"source_org_id"`
	SiteSettingsKeys []string              `json:"site_settings_keys"`
	SiteVarsCount    int                   `json:"site_vars_count"`
	Templates        map[string][]NamedRef `json:"templates"`
	ServicePolicies  []NamedRef            `json:"service_policies"`
	Sitegroups       []NamedRef            `json:"sitegroups"`
	PerSiteGroups    []SiteGroupAssignment `json:"per_site_sitegroup_assignments"`
	AssignmentMode   AssignmentMode        `json:"assignment_mode"`
	ExpectedWarnings []AssignmentWarning   `json:"expected_assignment_warnings,omitempty"`
}
