package provisioning

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/jitaccess/pkg/observability"
	"github.com/platinummonkey/jitaccess/pkg/pagination"
	"github.com/platinummonkey/jitaccess/pkg/permissions"
)

// Reconcile outcomes
const (
	OutcomeInSync   = "in_sync"
	OutcomeRepaired = "repaired"
	OutcomeMissing  = "missing"
	OutcomeError    = "error"
)

// ReconcileSummary counts the outcomes of one reconcile run
type ReconcileSummary struct {
	Checked  int `json:"checked"`
	InSync   int `json:"in_sync"`
	Repaired int `json:"repaired"`
	Missing  int `json:"missing"`
	Failed   int `json:"failed"`
}

func (s *ReconcileSummary) add(outcome string) {
	s.Checked++
	switch outcome {
	case OutcomeInSync:
		s.InSync++
	case OutcomeRepaired:
		s.Repaired++
	case OutcomeMissing:
		s.Missing++
	default:
		s.Failed++
	}
}

// Reconciler re-derives the permission set ARN and group id of every
// permission by name and rewrites records that have drifted. Resources that
// cannot be found are reported, never recreated.
type Reconciler struct {
	provisioner *Provisioner
	workers     int
	pageSize    int
}

// NewReconciler creates a reconciler that checks up to workers permissions
// at a time
func NewReconciler(p *Provisioner, workers int) *Reconciler {
	if workers <= 0 {
		workers = 4
	}
	return &Reconciler{provisioner: p, workers: workers, pageSize: pagination.MaxLimit}
}

// Run reconciles every permission record. Per-permission failures are
// counted in the summary; only a failure to list records aborts the run.
func (r *Reconciler) Run(ctx context.Context) (ReconcileSummary, error) {
	p := r.provisioner
	logger := p.logger.WithField("component", "reconciler")
	start := time.Now()

	var (
		mu      sync.Mutex
		summary ReconcileSummary
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.workers)

	cursor := ""
	for {
		page, err := p.store.List(ctx, permissions.ListFilter{Limit: r.pageSize, Cursor: cursor})
		if err != nil {
			_ = eg.Wait()
			return summary, fmt.Errorf("failed to list permissions: %w", err)
		}

		for _, info := range page.Items {
			info := info
			eg.Go(func() error {
				outcome := r.reconcile(egCtx, info, logger)
				p.metrics.RecordReconciled(outcome)

				mu.Lock()
				summary.add(outcome)
				mu.Unlock()
				return nil
			})
		}

		if page.Done() {
			break
		}
		cursor = page.NextCursor
	}

	_ = eg.Wait()
	p.metrics.MarkReconcileRun(time.Now())

	logger.WithFields(map[string]interface{}{
		"checked":  summary.Checked,
		"repaired": summary.Repaired,
		"missing":  summary.Missing,
		"failed":   summary.Failed,
		"duration": time.Since(start).String(),
	}).Info("Reconcile run completed")
	return summary, nil
}

func (r *Reconciler) reconcile(ctx context.Context, info *permissions.PermissionInfo, logger *observability.Logger) string {
	p := r.provisioner
	logger = logger.WithField("permission_id", info.PermissionID)

	ps, psFound, err := p.resolver.PermissionSetByName(ctx, info.PermissionID)
	if err != nil {
		logger.WithError(err).Warn("Failed to resolve permission set")
		return OutcomeError
	}
	group, groupFound, err := p.resolver.GroupByName(ctx, info.PermissionID)
	if err != nil {
		logger.WithError(err).Warn("Failed to resolve group")
		return OutcomeError
	}

	if !psFound || !groupFound {
		logger.WithFields(map[string]interface{}{
			"permission_set_found": psFound,
			"group_found":          groupFound,
		}).Warn("Control plane resources missing for permission")
		return OutcomeMissing
	}

	if ps.ARN == info.PermissionSetARN && group.ID == info.GroupID {
		return OutcomeInSync
	}

	repaired := *info
	repaired.PermissionSetARN = ps.ARN
	repaired.GroupID = group.ID
	if err := p.store.Update(ctx, &repaired); err != nil {
		logger.WithError(err).Warn("Failed to repair permission record")
		return OutcomeError
	}

	logger.WithFields(map[string]interface{}{
		"permission_set_arn": ps.ARN,
		"group_id":           group.ID,
	}).Info("Repaired drifted permission record")
	return OutcomeRepaired
}
