package partnersync

// Workflow and activity registration names. Workflow IDs are derived from
// these plus the partner ID so duplicate dispatches dedupe.
const (
	WorkflowContactSync = "partner-contact-sync"
	WorkflowCompanySync = "partner-company-sync"
	WorkflowFullSync    = "partner-full-sync"

	ActivitySyncContact = "sync-partner-contact"
	ActivitySyncCompany = "sync-partner-company"
	ActivitySyncFull    = "sync-partner-full"
)

// TerminalError marks activity failures that retrying cannot fix: missing
// configuration, deleted partners, no company domain.
const TerminalError = "TerminalError"

// SyncResult reports what one sync activity did.
type SyncResult struct {
	PartnerID string `json:"partner_id"`
	Email     string `json:"email"`
	ContactID string `json:"contact_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`
	Domain    string `json:"domain,omitempty"`
	Skipped   bool   `json:"skipped,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
