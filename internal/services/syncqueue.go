package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	temporalsdkclient "go.temporal.io/sdk/client"
	"golang.org/x/sync/errgroup"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/sync"
	"github.com/jcopacetic/lumi/internal/temporalx"
	"github.com/jcopacetic/lumi/internal/temporalx/partnersync"
	"github.com/jcopacetic/lumi/internal/types"
)

// bulkSyncConcurrency bounds how many workflow starts run at once during a
// bulk dispatch.
const bulkSyncConcurrency = 8

type PartnerSyncService interface {
	// DispatchForChange starts the minimal sync workflow for a partner save.
	// SyncNone is a no-op. Dispatch failures are logged, never surfaced to the
	// request that triggered them.
	DispatchForChange(ctx context.Context, partnerID uuid.UUID, decision sync.Decision)
	// DispatchFull starts a full sync workflow and reports dispatch errors.
	DispatchFull(ctx context.Context, partnerID uuid.UUID) error
	// BulkSync dispatches full syncs for partners pending sync, or every
	// active partner when force is set. Returns how many were dispatched.
	BulkSync(ctx context.Context, force bool) (int, error)
	Enabled() bool
}

type partnerSyncService struct {
	log      *logger.Logger
	tc       temporalsdkclient.Client
	partners repos.PartnerRepo
	cfg      temporalx.Config
}

func NewPartnerSyncService(
	log *logger.Logger,
	tc temporalsdkclient.Client,
	partners repos.PartnerRepo,
) PartnerSyncService {
	return &partnerSyncService{
		log:      log.With("service", "PartnerSyncService"),
		tc:       tc,
		partners: partners,
		cfg:      temporalx.LoadConfig(),
	}
}

func (s *partnerSyncService) Enabled() bool {
	return s.tc != nil
}

func (s *partnerSyncService) DispatchForChange(ctx context.Context, partnerID uuid.UUID, decision sync.Decision) {
	if decision == sync.SyncNone {
		return
	}
	if err := s.dispatch(ctx, partnerID, decision); err != nil {
		s.log.Error("Failed to dispatch partner sync",
			"partner_id", partnerID,
			"decision", decision.String(),
			"error", err,
		)
	}
}

func (s *partnerSyncService) DispatchFull(ctx context.Context, partnerID uuid.UUID) error {
	return s.dispatch(ctx, partnerID, sync.SyncFull)
}

func (s *partnerSyncService) dispatch(ctx context.Context, partnerID uuid.UUID, decision sync.Decision) error {
	if s.tc == nil {
		s.log.Warn("Temporal disabled; partner sync not dispatched",
			"partner_id", partnerID,
			"decision", decision.String(),
		)
		return nil
	}

	workflowName, err := workflowForDecision(decision)
	if err != nil {
		return err
	}

	opts := temporalsdkclient.StartWorkflowOptions{
		ID:                    fmt.Sprintf("partner-sync-%s-%s", decision.String(), partnerID),
		TaskQueue:             s.cfg.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
	}

	run, err := s.tc.ExecuteWorkflow(ctx, opts, workflowName, partnerID.String())
	if err != nil {
		return fmt.Errorf("start %s: %w", workflowName, err)
	}

	s.log.Info("Dispatched partner sync",
		"partner_id", partnerID,
		"workflow", workflowName,
		"workflow_id", run.GetID(),
		"run_id", run.GetRunID(),
	)
	return nil
}

func workflowForDecision(decision sync.Decision) (string, error) {
	switch decision {
	case sync.SyncContact:
		return partnersync.WorkflowContactSync, nil
	case sync.SyncCompany:
		return partnersync.WorkflowCompanySync, nil
	case sync.SyncFull:
		return partnersync.WorkflowFullSync, nil
	default:
		return "", fmt.Errorf("no workflow for decision %q", decision.String())
	}
}

func (s *partnerSyncService) BulkSync(ctx context.Context, force bool) (int, error) {
	if s.tc == nil {
		return 0, fmt.Errorf("temporal disabled; cannot bulk sync")
	}

	partners, err := s.listBulkTargets(ctx, force)
	if err != nil {
		return 0, err
	}
	if len(partners) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bulkSyncConcurrency)
	for _, partner := range partners {
		partnerID := partner.ID
		g.Go(func() error {
			return s.dispatch(gctx, partnerID, sync.SyncFull)
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	s.log.Info("Bulk partner sync dispatched", "count", len(partners), "force", force)
	return len(partners), nil
}

func (s *partnerSyncService) listBulkTargets(ctx context.Context, force bool) ([]*types.Partner, error) {
	if force {
		return s.partners.ListActive(ctx, nil)
	}
	return s.partners.ListPendingSync(ctx, nil)
}
