package services

import (
	"context"
	stdsync "sync"
	"testing"
	"time"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/sync"
	"github.com/jcopacetic/lumi/internal/temporalx/partnersync"
	"github.com/jcopacetic/lumi/internal/types"
)

type startedWorkflow struct {
	id       string
	workflow interface{}
	args     []interface{}
}

type fakeTemporalClient struct {
	temporalsdkclient.Client

	mu      stdsync.Mutex
	started []startedWorkflow
}

type fakeWorkflowRun struct {
	temporalsdkclient.WorkflowRun

	id string
}

func (r *fakeWorkflowRun) GetID() string    { return r.id }
func (r *fakeWorkflowRun) GetRunID() string { return "run-" + r.id }

func (f *fakeTemporalClient) ExecuteWorkflow(
	ctx context.Context,
	options temporalsdkclient.StartWorkflowOptions,
	workflow interface{},
	args ...interface{},
) (temporalsdkclient.WorkflowRun, error) {
	f.mu.Lock()
	f.started = append(f.started, startedWorkflow{id: options.ID, workflow: workflow, args: args})
	f.mu.Unlock()
	return &fakeWorkflowRun{id: options.ID}, nil
}

func (f *fakeTemporalClient) startedIDs() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make(map[string]bool, len(f.started))
	for _, started := range f.started {
		ids[started.id] = true
	}
	return ids
}

func newSyncService(t *testing.T, tc temporalsdkclient.Client) PartnerSyncService {
	t.Helper()
	return newSyncServiceWithRepo(t, tc, nil)
}

func newSyncServiceWithRepo(t *testing.T, tc temporalsdkclient.Client, partners *fakePartnerRepo) PartnerSyncService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	if partners == nil {
		return NewPartnerSyncService(log, tc, nil)
	}
	return NewPartnerSyncService(log, tc, partners)
}

func (f *fakePartnerRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error) {
	var active []*types.Partner
	for _, p := range f.byID {
		if p.IsActive {
			active = append(active, p)
		}
	}
	return active, nil
}

func (f *fakePartnerRepo) ListPendingSync(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error) {
	var pending []*types.Partner
	for _, p := range f.byID {
		if !p.IsActive {
			continue
		}
		if p.LastSyncedAt == nil || p.UpdatedAt.After(*p.LastSyncedAt) {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

func TestWorkflowForDecision(t *testing.T) {
	cases := []struct {
		decision sync.Decision
		want     string
	}{
		{sync.SyncContact, partnersync.WorkflowContactSync},
		{sync.SyncCompany, partnersync.WorkflowCompanySync},
		{sync.SyncFull, partnersync.WorkflowFullSync},
	}
	for _, tc := range cases {
		got, err := workflowForDecision(tc.decision)
		if err != nil {
			t.Fatalf("workflowForDecision(%v): %v", tc.decision, err)
		}
		if got != tc.want {
			t.Fatalf("workflow: want=%s got=%s", tc.want, got)
		}
	}
	if _, err := workflowForDecision(sync.SyncNone); err == nil {
		t.Fatalf("expected error for SyncNone")
	}
}

func TestDispatchUsesDeterministicWorkflowID(t *testing.T) {
	tc := &fakeTemporalClient{}
	svc := newSyncService(t, tc)
	partnerID := uuid.New()

	svc.DispatchForChange(context.Background(), partnerID, sync.SyncContact)
	svc.DispatchForChange(context.Background(), partnerID, sync.SyncContact)

	if len(tc.started) != 2 {
		t.Fatalf("workflows started: want=2 got=%d", len(tc.started))
	}
	wantID := "partner-sync-contact-" + partnerID.String()
	for _, started := range tc.started {
		if started.id != wantID {
			t.Fatalf("workflow id: want=%s got=%s", wantID, started.id)
		}
		if started.workflow != partnersync.WorkflowContactSync {
			t.Fatalf("workflow: want=%s got=%v", partnersync.WorkflowContactSync, started.workflow)
		}
		if len(started.args) != 1 || started.args[0] != partnerID.String() {
			t.Fatalf("workflow args: want=[%s] got=%v", partnerID, started.args)
		}
	}
}

func TestDispatchForChangeIgnoresSyncNone(t *testing.T) {
	tc := &fakeTemporalClient{}
	svc := newSyncService(t, tc)

	svc.DispatchForChange(context.Background(), uuid.New(), sync.SyncNone)
	if len(tc.started) != 0 {
		t.Fatalf("workflows started: want=0 got=%d", len(tc.started))
	}
}

func TestBulkSyncTargetsPendingPartnersByDefault(t *testing.T) {
	partners := newFakePartnerRepo()
	synced := time.Now().UTC()
	upToDate := &types.Partner{
		ID:           uuid.New(),
		Email:        "synced@example.co.nz",
		IsActive:     true,
		LastSyncedAt: &synced,
		UpdatedAt:    synced.Add(-time.Hour),
	}
	neverSynced := &types.Partner{
		ID:       uuid.New(),
		Email:    "new@example.co.nz",
		IsActive: true,
	}
	inactive := &types.Partner{
		ID:    uuid.New(),
		Email: "gone@example.co.nz",
	}
	partners.add(upToDate)
	partners.add(neverSynced)
	partners.add(inactive)

	tc := &fakeTemporalClient{}
	svc := newSyncServiceWithRepo(t, tc, partners)

	count, err := svc.BulkSync(context.Background(), false)
	if err != nil {
		t.Fatalf("BulkSync: %v", err)
	}
	if count != 1 {
		t.Fatalf("dispatched: want=1 got=%d", count)
	}
	ids := tc.startedIDs()
	if !ids["partner-sync-full-"+neverSynced.ID.String()] {
		t.Fatalf("expected full sync for never-synced partner, got %v", ids)
	}
}

func TestBulkSyncForceTargetsAllActivePartners(t *testing.T) {
	partners := newFakePartnerRepo()
	synced := time.Now().UTC()
	upToDate := &types.Partner{
		ID:           uuid.New(),
		Email:        "synced@example.co.nz",
		IsActive:     true,
		LastSyncedAt: &synced,
		UpdatedAt:    synced.Add(-time.Hour),
	}
	neverSynced := &types.Partner{
		ID:       uuid.New(),
		Email:    "new@example.co.nz",
		IsActive: true,
	}
	inactive := &types.Partner{
		ID:    uuid.New(),
		Email: "gone@example.co.nz",
	}
	partners.add(upToDate)
	partners.add(neverSynced)
	partners.add(inactive)

	tc := &fakeTemporalClient{}
	svc := newSyncServiceWithRepo(t, tc, partners)

	count, err := svc.BulkSync(context.Background(), true)
	if err != nil {
		t.Fatalf("BulkSync force: %v", err)
	}
	if count != 2 {
		t.Fatalf("dispatched: want=2 got=%d", count)
	}
	ids := tc.startedIDs()
	if !ids["partner-sync-full-"+upToDate.ID.String()] || !ids["partner-sync-full-"+neverSynced.ID.String()] {
		t.Fatalf("expected full syncs for both active partners, got %v", ids)
	}
	if ids["partner-sync-full-"+inactive.ID.String()] {
		t.Fatalf("inactive partner must not be dispatched")
	}
}

func TestDispatchWithoutTemporalIsNoop(t *testing.T) {
	svc := newSyncService(t, nil)
	if svc.Enabled() {
		t.Fatalf("expected sync disabled without a temporal client")
	}

	// Field changes must never fail the request just because sync is down.
	svc.DispatchForChange(context.Background(), uuid.New(), sync.SyncFull)
	if err := svc.DispatchFull(context.Background(), uuid.New()); err != nil {
		t.Fatalf("DispatchFull without temporal: %v", err)
	}

	if _, err := svc.BulkSync(context.Background(), false); err == nil {
		t.Fatalf("expected BulkSync to fail without a temporal client")
	}
}
