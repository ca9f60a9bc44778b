// Package workflows holds the background jobs of the inventory context:
// the Temporal ledger audit and the low-stock digest.
package workflows

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/ghuser/retailstock/pkg/logger"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
)

// LedgerAuditWorkflowID is the fixed ID the cron run is scheduled under.
const LedgerAuditWorkflowID = "ledger-audit"

// Auditor replays the movement ledger. *services.StockService satisfies it.
type Auditor interface {
	AuditLedger(ctx context.Context) ([]appsvcs.LedgerDrift, error)
}

// AuditReport is the result of one audit run.
type AuditReport struct {
	CheckedAt time.Time             `json:"checked_at"`
	Drifts    []appsvcs.LedgerDrift `json:"drifts"`
}

// Activities are the Temporal activities of the ledger audit.
type Activities struct {
	auditor Auditor
	log     logger.Logger
}

func NewActivities(auditor Auditor, log logger.Logger) *Activities {
	return &Activities{auditor: auditor, log: log}
}

// AuditLedger compares every stock row with the replay of its movements.
func (a *Activities) AuditLedger(ctx context.Context) (*AuditReport, error) {
	drifts, err := a.auditor.AuditLedger(ctx)
	if err != nil {
		return nil, err
	}
	for _, d := range drifts {
		a.log.WarnContext(ctx, "ledger drift",
			"product_id", d.ProductID,
			"barcode", d.Barcode,
			"recorded", d.Recorded,
			"replayed", d.Replayed,
			"broken_links", d.BrokenLinks,
		)
	}
	return &AuditReport{CheckedAt: time.Now().UTC(), Drifts: drifts}, nil
}

// LedgerAuditWorkflow runs the audit activity once. It is scheduled on a
// cron by the worker; drift is reported, never repaired.
func LedgerAuditWorkflow(ctx workflow.Context) (*AuditReport, error) {
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    3,
		},
	})

	var a *Activities
	var report AuditReport
	if err := workflow.ExecuteActivity(ctx, a.AuditLedger).Get(ctx, &report); err != nil {
		return nil, err
	}
	workflow.GetLogger(ctx).Info("ledger audit finished", "drifted_products", len(report.Drifts))
	return &report, nil
}

// Register adds the audit workflow and activities to a Temporal worker.
func Register(w worker.Registry, acts *Activities) {
	w.RegisterWorkflow(LedgerAuditWorkflow)
	w.RegisterActivity(acts)
}
