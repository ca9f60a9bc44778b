package workflows_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.temporal.io/sdk/testsuite"

	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/application/services"
	"github.com/ghuser/retailstock/services/inventory/application/workflows"
	"github.com/ghuser/retailstock/services/inventory/domain/models"
	"github.com/ghuser/retailstock/services/inventory/domain/repositories"
	"github.com/ghuser/retailstock/services/inventory/infrastructure/persistence/memory"
)

type stubAuditor struct {
	drifts []services.LedgerDrift
	err    error
	calls  int
}

func (s *stubAuditor) AuditLedger(context.Context) ([]services.LedgerDrift, error) {
	s.calls++
	return s.drifts, s.err
}

func TestLedgerAuditWorkflow_ReportsDrift(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	drift := services.LedgerDrift{ProductID: uuid.New(), Barcode: "690", Recorded: 7, Replayed: 5}
	auditor := &stubAuditor{drifts: []services.LedgerDrift{drift}}
	env.RegisterActivity(workflows.NewActivities(auditor, logger.Discard()))

	env.ExecuteWorkflow(workflows.LedgerAuditWorkflow)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("workflow error: %v", err)
	}
	var report workflows.AuditReport
	if err := env.GetWorkflowResult(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Drifts) != 1 || report.Drifts[0] != drift {
		t.Errorf("report = %+v", report)
	}
	if report.CheckedAt.IsZero() {
		t.Error("report is not timestamped")
	}
}

func TestLedgerAuditWorkflow_RetriesThenFails(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	auditor := &stubAuditor{err: errors.New("database unavailable")}
	env.RegisterActivity(workflows.NewActivities(auditor, logger.Discard()))

	env.ExecuteWorkflow(workflows.LedgerAuditWorkflow)

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected the workflow to fail")
	}
	if auditor.calls != 3 {
		t.Errorf("activity attempts = %d, want 3", auditor.calls)
	}
}

func TestAuditLedgerActivity_AgainstStockService(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestActivityEnvironment()

	ctx := context.Background()
	store := memory.New()
	svcs := services.NewServices(services.Deps{Store: store, Settings: services.DefaultSettings(), Logger: logger.Discard()})
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}
	p, err := svcs.Catalog.CreateProduct(ctx, admin, services.CreateProductRequest{
		Barcode:      "6901",
		Attributes:   models.ProductAttributes{Name: "Tea"},
		InitialStock: 5,
	})
	if err != nil {
		t.Fatal(err)
	}

	acts := workflows.NewActivities(svcs.Stock, logger.Discard())
	env.RegisterActivity(acts)

	val, err := env.ExecuteActivity(acts.AuditLedger)
	if err != nil {
		t.Fatalf("AuditLedger: %v", err)
	}
	var report workflows.AuditReport
	if err := val.Get(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Drifts) != 0 {
		t.Fatalf("consistent ledger reported drift: %+v", report.Drifts)
	}

	// Overwrite the stock row without a movement.
	err = store.WithTx(ctx, func(tx repositories.Tx) error {
		level, err := tx.Stock().GetForUpdate(ctx, p.ID, models.DefaultWarningLevel)
		if err != nil {
			return err
		}
		level.Quantity = 9
		return tx.Stock().Save(ctx, level)
	})
	if err != nil {
		t.Fatal(err)
	}
	val, err = env.ExecuteActivity(acts.AuditLedger)
	if err != nil {
		t.Fatal(err)
	}
	if err := val.Get(&report); err != nil {
		t.Fatal(err)
	}
	if len(report.Drifts) != 1 || report.Drifts[0].Recorded != 9 || report.Drifts[0].Replayed != 5 {
		t.Fatalf("drift = %+v", report.Drifts)
	}
}
