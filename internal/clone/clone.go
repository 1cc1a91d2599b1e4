package clone

import (
	"context"
	"fmt"
	"sync"

	"github.com/mistops/org-clone-workbench/internal/metrics"
	"github.com/mistops/org-clone-workbench/internal/mist"
	"github.com/mistops/org-clone-workbench/internal/models"
)

// Engine runs one clone of a source org into a destination tenant. All
// configuration comes from the CloneSpec; the engine holds no global state
// and can run concurrently with other engines.
type Engine struct {
	Source     *mist.Client
	Dest       *mist.Client
	Spec       models.CloneSpec
	CrossCloud bool
	Log        func(string)

	mu           sync.Mutex
	report       *models.RunReport
	outcomes     map[string]*models.Outcome
	outcomeOrder []string
}

// New builds an engine. log receives operator-visible progress lines and
// may be nil.
func New(source, dest *mist.Client, spec models.CloneSpec, crossCloud bool, log func(string)) *Engine {
	if log == nil {
		log = func(string) {}
	}
	return &Engine{
		Source:     source,
		Dest:       dest,
		Spec:       spec,
		CrossCloud: crossCloud,
		Log:        log,
		report:     &models.RunReport{},
		outcomes:   map[string]*models.Outcome{},
	}
}

// Run executes the full clone. It returns an error only for precondition
// failures, stage-fatal failures (e.g. the org could not be created), or
// cancellation; per-item failures are recorded as warnings in the report.
func (e *Engine) Run(ctx context.Context) (*models.RunReport, error) {
	if err := e.validateSpec(); err != nil {
		return nil, err
	}

	// 1. Organization and org-level resources
	var newOrgID string
	var err error
	if e.CrossCloud {
		newOrgID, err = e.bootstrapOrg(ctx)
	} else {
		newOrgID, err = e.cloneOrgServerSide(ctx)
		if err == nil {
			e.repairGatewayPolicies(ctx, newOrgID)
			e.cloneAlarmTemplates(ctx, newOrgID)
		}
	}
	if err != nil {
		metrics.CloneRuns.WithLabelValues("failed").Inc()
		return nil, err
	}
	e.report.NewOrgID = newOrgID

	if err := ctx.Err(); err != nil {
		return e.finish(err)
	}

	// 2. Access assurance (NAC)
	if e.Spec.CloneNAC {
		if err := e.cloneNAC(ctx, newOrgID); err != nil {
			return e.finish(err)
		}
	} else {
		e.logf("2. NAC cloning not requested, skipping")
	}

	if err := ctx.Err(); err != nil {
		return e.finish(err)
	}

	// 3. Sites, template assignment, deferred WLAN bindings, invites
	if err := e.cloneSites(ctx, newOrgID); err != nil {
		return e.finish(err)
	}

	return e.finish(nil)
}

func (e *Engine) validateSpec() error {
	if e.Spec.SourceOrgID == "" {
		return fmt.Errorf("source org id is required")
	}
	if e.Spec.NewOrgName == "" {
		return fmt.Errorf("new org name is required")
	}
	if !e.Spec.AssignmentMode.Valid() {
		return fmt.Errorf("invalid assignment mode %d", e.Spec.AssignmentMode)
	}
	if len(e.Spec.SitePlans) == 0 {
		return fmt.Errorf("at least one site plan is required")
	}
	for i, plan := range e.Spec.SitePlans {
		if plan.SourceSiteID == "" {
			return fmt.Errorf("site plan %d: source site id is required", i)
		}
		if plan.NewSiteName == "" {
			return fmt.Errorf("site plan %d: new site name is required", i)
		}
	}
	return nil
}

func (e *Engine) finish(err error) (*models.RunReport, error) {
	e.mu.Lock()
	for _, kind := range e.outcomeOrder {
		e.report.Outcomes = append(e.report.Outcomes, *e.outcomes[kind])
	}
	report := e.report
	e.mu.Unlock()

	if err != nil {
		metrics.CloneRuns.WithLabelValues("failed").Inc()
		return report, err
	}
	metrics.CloneRuns.WithLabelValues("completed").Inc()
	return report, nil
}

func (e *Engine) logf(format string, args ...interface{}) {
	e.Log(fmt.Sprintf(format, args...))
}

// warnf records a per-item or per-collection problem without stopping the
// run.
func (e *Engine) warnf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	e.mu.Lock()
	e.report.Warnings = append(e.report.Warnings, msg)
	e.mu.Unlock()
	e.Log("  WARNING: " + msg)
}

func (e *Engine) addSiteResult(res models.SiteResult) {
	e.mu.Lock()
	e.report.Sites = append(e.report.Sites, res)
	e.mu.Unlock()
}

// count records one per-item outcome ("created", "skipped", "failed").
func (e *Engine) count(kind, outcome string) {
	metrics.CloneResources.WithLabelValues(kind, outcome).Inc()
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.outcomes[kind]
	if !ok {
		o = &models.Outcome{Kind: kind}
		e.outcomes[kind] = o
		e.outcomeOrder = append(e.outcomeOrder, kind)
	}
	switch outcome {
	case "created":
		o.Created++
	case "skipped":
		o.Skipped++
	case "failed":
		o.Failed++
	}
}
