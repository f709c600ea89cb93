package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/fieldcrypt"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
	"github.com/jcopacetic/lumi/internal/wizard"
)

var (
	ErrUnknownProduct       = errors.New("unknown loan product")
	ErrProductNotAvailable  = errors.New("loan product not available for this partner type")
	ErrWizardEmpty          = errors.New("no wizard data to submit")
	ErrApplicationNotDraft  = errors.New("application is not a draft")
	ErrApplicationForbidden = errors.New("application belongs to another partner")
)

// ApplicationSummary is the product-agnostic listing row.
type ApplicationSummary struct {
	ID            uuid.UUID  `json:"id"`
	Product       string     `json:"product"`
	CustomerEmail string     `json:"customer_email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	Status        string     `json:"status"`
	LoanAmount    float64    `json:"loan_amount"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SubmitResult reports a completed wizard submission.
type SubmitResult struct {
	ApplicationID uuid.UUID `json:"application_id"`
	Product       string    `json:"product"`
	Status        string    `json:"status"`
}

// ProductStats aggregates one product's applications for the admin dashboard.
// PendingLoanAmount covers submitted and under-review applications.
type ProductStats struct {
	Product            string           `json:"product"`
	CountsByStatus     map[string]int64 `json:"counts_by_status"`
	Total              int64            `json:"total"`
	PendingLoanAmount  float64          `json:"pending_loan_amount"`
	ApprovedLoanAmount float64          `json:"approved_loan_amount"`
}

// AdminApplicationStats is the dashboard rollup across all products.
type AdminApplicationStats struct {
	Products                []ProductStats `json:"products"`
	TotalApplications       int64          `json:"total_applications"`
	TotalSubmitted          int64          `json:"total_submitted"`
	TotalPendingLoanAmount  float64        `json:"total_pending_loan_amount"`
	TotalApprovedLoanAmount float64        `json:"total_approved_loan_amount"`
}

type LoanApplicationService interface {
	// AvailableLoanTypes lists active products a partner of the given type
	// may offer.
	AvailableLoanTypes(ctx context.Context, partnerType string) ([]*types.LoanType, error)
	// SaveStep validates the product against the partner type and stores one
	// wizard step.
	SaveStep(ctx context.Context, userID uuid.UUID, partnerType, product string, step int, data wizard.StepData) (*wizard.State, error)
	WizardState(ctx context.Context, userID uuid.UUID, product string) (*wizard.State, error)
	// SaveDraft materialises the current wizard state into a draft row so the
	// application can be resumed later. The wizard stays linked to the row and
	// keeps its state.
	SaveDraft(ctx context.Context, userID, partnerID uuid.UUID, product string) (*SubmitResult, error)
	// Submit materialises the wizard into an application row, encrypting the
	// IRD number, then clears the wizard and notifies the submitter.
	Submit(ctx context.Context, userID, partnerID uuid.UUID, product string) (*SubmitResult, error)
	// FindDrafts locates draft applications by customer email and date of
	// birth, scoped to the caller's partner.
	FindDrafts(ctx context.Context, partnerID uuid.UUID, product, email string, dateOfBirth time.Time) ([]*ApplicationSummary, error)
	// ContinueDraft seeds the wizard from an existing draft so the partner
	// can pick up where the customer left off.
	ContinueDraft(ctx context.Context, userID, partnerID uuid.UUID, product string, applicationID uuid.UUID) (*wizard.State, error)
	List(ctx context.Context, partnerID uuid.UUID, product, status string) ([]*ApplicationSummary, error)
	// Get returns the full typed application, enforcing partner scope unless
	// staff is set.
	Get(ctx context.Context, partnerID uuid.UUID, staff bool, product string, applicationID uuid.UUID) (any, error)
	Recent(ctx context.Context, limit int) ([]*ApplicationSummary, error)
	AdminStats(ctx context.Context) (*AdminApplicationStats, error)
	// PartnerApplicationStats rolls up one partner's application counts per
	// product and status for the admin partner detail view.
	PartnerApplicationStats(ctx context.Context, partnerID uuid.UUID) (map[string]map[string]int64, error)
}

type loanApplicationService struct {
	log           *logger.Logger
	db            *gorm.DB
	loanTypes     repos.LoanTypeRepo
	marketing     repos.ApplicationRepo[types.MarketingLoanApplication]
	renovation    repos.ApplicationRepo[types.RenovationLoanApplication]
	deposit       repos.ApplicationRepo[types.DepositLoanApplication]
	wizards       *wizard.Store
	crypt         *fieldcrypt.Codec
	notifications NotificationService
}

func NewLoanApplicationService(
	log *logger.Logger,
	db *gorm.DB,
	loanTypes repos.LoanTypeRepo,
	marketing repos.ApplicationRepo[types.MarketingLoanApplication],
	renovation repos.ApplicationRepo[types.RenovationLoanApplication],
	deposit repos.ApplicationRepo[types.DepositLoanApplication],
	wizards *wizard.Store,
	crypt *fieldcrypt.Codec,
	notifications NotificationService,
) LoanApplicationService {
	return &loanApplicationService{
		log:           log.With("service", "LoanApplicationService"),
		db:            db,
		loanTypes:     loanTypes,
		marketing:     marketing,
		renovation:    renovation,
		deposit:       deposit,
		wizards:       wizards,
		crypt:         crypt,
		notifications: notifications,
	}
}

func validProduct(product string) bool {
	switch product {
	case types.LoanProductMarketing, types.LoanProductRenovation, types.LoanProductDeposit:
		return true
	default:
		return false
	}
}

func (s *loanApplicationService) AvailableLoanTypes(ctx context.Context, partnerType string) ([]*types.LoanType, error) {
	active, err := s.loanTypes.ListActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	available := make([]*types.LoanType, 0, len(active))
	for _, lt := range active {
		if lt.AvailableForPartnerType(partnerType) {
			available = append(available, lt)
		}
	}
	return available, nil
}

// checkProduct rejects unknown products and products the loan_type table
// excludes for the partner type. A missing loan_type row does not block: the
// three built-in products work before the table is seeded.
func (s *loanApplicationService) checkProduct(ctx context.Context, partnerType, product string) error {
	if !validProduct(product) {
		return ErrUnknownProduct
	}
	lt, err := s.loanTypes.GetByCode(ctx, nil, product)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if !lt.IsActive || !lt.AvailableForPartnerType(partnerType) {
		return ErrProductNotAvailable
	}
	return nil
}

func (s *loanApplicationService) SaveStep(ctx context.Context, userID uuid.UUID, partnerType, product string, step int, data wizard.StepData) (*wizard.State, error) {
	if err := s.checkProduct(ctx, partnerType, product); err != nil {
		return nil, err
	}
	if step < 1 {
		return nil, fmt.Errorf("step must be positive, got %d", step)
	}
	if err := s.wizards.SaveStep(ctx, userID, product, step, data); err != nil {
		return nil, err
	}
	return s.wizards.Load(ctx, userID, product)
}

func (s *loanApplicationService) WizardState(ctx context.Context, userID uuid.UUID, product string) (*wizard.State, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}
	return s.wizards.Load(ctx, userID, product)
}

func (s *loanApplicationService) Submit(ctx context.Context, userID, partnerID uuid.UUID, product string) (*SubmitResult, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}

	state, err := s.wizards.Load(ctx, userID, product)
	if err != nil {
		return nil, err
	}
	if state == nil || len(state.Steps) == 0 {
		return nil, ErrWizardEmpty
	}

	merged := mergeSteps(state)
	result, err := s.persist(ctx, product, partnerID, state, merged, types.ApplicationStatusSubmitted)
	if err != nil {
		return nil, err
	}

	if err := s.wizards.Clear(ctx, userID, product); err != nil {
		s.log.Error("Failed to clear wizard after submit", "user_id", userID, "product", product, "error", err)
	}

	if s.notifications != nil {
		firstName, _ := merged["first_name"].(string)
		lastName, _ := merged["last_name"].(string)
		customerName := strings.TrimSpace(firstName + " " + lastName)
		if customerName == "" {
			customerName, _ = merged["customer_email"].(string)
		}
		if err := s.notifications.NotifyApplicationSubmitted(ctx, userID, partnerID, product, customerName, result.ApplicationID); err != nil {
			s.log.Error("Failed to notify on submission", "application_id", result.ApplicationID, "error", err)
		}
	}

	s.log.Info("Application submitted", "application_id", result.ApplicationID, "product", product, "partner_id", partnerID)
	return result, nil
}

// SaveDraft persists the wizard as a draft row without clearing the wizard,
// so FindDrafts and ContinueDraft can locate it later.
func (s *loanApplicationService) SaveDraft(ctx context.Context, userID, partnerID uuid.UUID, product string) (*SubmitResult, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}

	state, err := s.wizards.Load(ctx, userID, product)
	if err != nil {
		return nil, err
	}
	if state == nil || len(state.Steps) == 0 {
		return nil, ErrWizardEmpty
	}

	result, err := s.persist(ctx, product, partnerID, state, mergeSteps(state), types.ApplicationStatusDraft)
	if err != nil {
		return nil, err
	}

	// Later saves and the final submit update this row instead of creating a
	// second one.
	if state.ApplicationID == "" {
		if err := s.wizards.SetApplicationID(ctx, userID, product, result.ApplicationID); err != nil {
			s.log.Error("Failed to link wizard to draft", "application_id", result.ApplicationID, "error", err)
		}
	}

	s.log.Info("Draft saved", "application_id", result.ApplicationID, "product", product, "partner_id", partnerID)
	return result, nil
}

func (s *loanApplicationService) persist(
	ctx context.Context,
	product string,
	partnerID uuid.UUID,
	state *wizard.State,
	merged map[string]any,
	status string,
) (*SubmitResult, error) {
	switch product {
	case types.LoanProductMarketing:
		return persistProduct(ctx, s, s.marketing, product, partnerID, state, merged, status)
	case types.LoanProductRenovation:
		return persistProduct(ctx, s, s.renovation, product, partnerID, state, merged, status)
	default:
		return persistProduct(ctx, s, s.deposit, product, partnerID, state, merged, status)
	}
}

// persistProduct decodes the merged wizard payload into the product struct
// and creates or updates the row with the given status. An existing wizard
// ApplicationID means the wizard is linked to a draft, which gets updated in
// place.
func persistProduct[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](
	ctx context.Context,
	s *loanApplicationService,
	repo repos.ApplicationRepo[T],
	product string,
	partnerID uuid.UUID,
	state *wizard.State,
	merged map[string]any,
	status string,
) (*SubmitResult, error) {
	app, err := decodeApplication[T, P](merged)
	if err != nil {
		return nil, err
	}

	base := P(app).Base()
	base.PartnerID = partnerID
	base.CustomerEmail = strings.ToLower(strings.TrimSpace(base.CustomerEmail))
	base.Status = status
	if status == types.ApplicationStatusSubmitted {
		now := time.Now().UTC()
		base.SubmittedAt = &now
	}

	if ird, ok := merged["ird_number"].(string); ok && ird != "" {
		encrypted, err := s.crypt.Encrypt(ird)
		if err != nil {
			return nil, fmt.Errorf("encrypt ird number: %w", err)
		}
		base.IRDNumber = encrypted
	}

	if state.ApplicationID != "" {
		draftID, err := uuid.Parse(state.ApplicationID)
		if err != nil {
			return nil, fmt.Errorf("bad draft id in wizard state: %w", err)
		}
		existing, err := repo.GetByID(ctx, nil, draftID)
		if err != nil {
			return nil, err
		}
		existingBase := P(existing).Base()
		if existingBase.PartnerID != partnerID {
			return nil, ErrApplicationForbidden
		}
		if existingBase.Status != types.ApplicationStatusDraft {
			return nil, ErrApplicationNotDraft
		}
		base.ID = existingBase.ID
		base.CreatedAt = existingBase.CreatedAt
		if base.IRDNumber == "" {
			base.IRDNumber = existingBase.IRDNumber
		}
		if err := repo.Update(ctx, nil, app); err != nil {
			return nil, err
		}
	} else {
		if err := repo.Create(ctx, nil, app); err != nil {
			return nil, err
		}
	}

	return &SubmitResult{
		ApplicationID: P(app).Base().ID,
		Product:       product,
		Status:        status,
	}, nil
}

// mergeSteps flattens the wizard steps, later steps overriding earlier ones.
func mergeSteps(state *wizard.State) map[string]any {
	stepNumbers := make([]int, 0, len(state.Steps))
	for n := range state.Steps {
		stepNumbers = append(stepNumbers, n)
	}
	sort.Ints(stepNumbers)

	merged := make(map[string]any)
	for _, n := range stepNumbers {
		for k, v := range state.Steps[n] {
			merged[k] = v
		}
	}
	return merged
}

func decodeApplication[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](merged map[string]any) (*T, error) {
	normalizeDateFields(merged)
	raw, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode wizard payload: %w", err)
	}
	var app T
	if err := json.Unmarshal(raw, &app); err != nil {
		return nil, fmt.Errorf("decode wizard payload: %w", err)
	}
	return &app, nil
}

// normalizeDateFields upgrades bare YYYY-MM-DD strings to RFC 3339 so they
// decode into time-valued columns.
func normalizeDateFields(merged map[string]any) {
	for _, key := range []string{"customer_date_of_birth"} {
		raw, ok := merged[key].(string)
		if !ok {
			continue
		}
		if _, err := time.Parse("2006-01-02", raw); err == nil {
			merged[key] = raw + "T00:00:00Z"
		}
	}
}

func (s *loanApplicationService) FindDrafts(ctx context.Context, partnerID uuid.UUID, product, email string, dateOfBirth time.Time) ([]*ApplicationSummary, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}
	switch product {
	case types.LoanProductMarketing:
		return findDrafts(ctx, s.marketing, product, partnerID, email, dateOfBirth)
	case types.LoanProductRenovation:
		return findDrafts(ctx, s.renovation, product, partnerID, email, dateOfBirth)
	default:
		return findDrafts(ctx, s.deposit, product, partnerID, email, dateOfBirth)
	}
}

func findDrafts[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](
	ctx context.Context,
	repo repos.ApplicationRepo[T],
	product string,
	partnerID uuid.UUID,
	email string,
	dateOfBirth time.Time,
) ([]*ApplicationSummary, error) {
	apps, err := repo.FindByCustomer(ctx, nil, partnerID, email, dateOfBirth, types.ApplicationStatusDraft)
	if err != nil {
		return nil, err
	}
	return summarize[T, P](apps, product), nil
}

func (s *loanApplicationService) ContinueDraft(ctx context.Context, userID, partnerID uuid.UUID, product string, applicationID uuid.UUID) (*wizard.State, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}
	switch product {
	case types.LoanProductMarketing:
		return continueDraft(ctx, s, s.marketing, product, userID, partnerID, applicationID)
	case types.LoanProductRenovation:
		return continueDraft(ctx, s, s.renovation, product, userID, partnerID, applicationID)
	default:
		return continueDraft(ctx, s, s.deposit, product, userID, partnerID, applicationID)
	}
}

func continueDraft[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](
	ctx context.Context,
	s *loanApplicationService,
	repo repos.ApplicationRepo[T],
	product string,
	userID, partnerID uuid.UUID,
	applicationID uuid.UUID,
) (*wizard.State, error) {
	app, err := repo.GetByID(ctx, nil, applicationID)
	if err != nil {
		return nil, err
	}
	base := P(app).Base()
	if base.PartnerID != partnerID {
		return nil, ErrApplicationForbidden
	}
	if base.Status != types.ApplicationStatusDraft {
		return nil, ErrApplicationNotDraft
	}

	// Re-seed the wizard with the stored fields as step one. The encrypted
	// IRD number stays out of Redis; submit keeps the stored token unless a
	// new one is entered.
	raw, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}
	var fields wizard.StepData
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	delete(fields, "id")
	delete(fields, "partner_id")
	delete(fields, "status")
	delete(fields, "submitted_at")
	delete(fields, "created_at")
	delete(fields, "updated_at")

	if err := s.wizards.SaveStep(ctx, userID, product, 1, fields); err != nil {
		return nil, err
	}
	if err := s.wizards.SetApplicationID(ctx, userID, product, applicationID); err != nil {
		return nil, err
	}
	return s.wizards.Load(ctx, userID, product)
}

func (s *loanApplicationService) List(ctx context.Context, partnerID uuid.UUID, product, status string) ([]*ApplicationSummary, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}
	filter := repos.ApplicationFilter{PartnerID: partnerID, Status: status}
	switch product {
	case types.LoanProductMarketing:
		apps, err := s.marketing.List(ctx, nil, filter)
		if err != nil {
			return nil, err
		}
		return summarize[types.MarketingLoanApplication, *types.MarketingLoanApplication](apps, product), nil
	case types.LoanProductRenovation:
		apps, err := s.renovation.List(ctx, nil, filter)
		if err != nil {
			return nil, err
		}
		return summarize[types.RenovationLoanApplication, *types.RenovationLoanApplication](apps, product), nil
	default:
		apps, err := s.deposit.List(ctx, nil, filter)
		if err != nil {
			return nil, err
		}
		return summarize[types.DepositLoanApplication, *types.DepositLoanApplication](apps, product), nil
	}
}

func summarize[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](apps []*T, product string) []*ApplicationSummary {
	summaries := make([]*ApplicationSummary, 0, len(apps))
	for _, app := range apps {
		base := P(app).Base()
		summaries = append(summaries, &ApplicationSummary{
			ID:            base.ID,
			Product:       product,
			CustomerEmail: base.CustomerEmail,
			FirstName:     base.FirstName,
			LastName:      base.LastName,
			Status:        base.Status,
			LoanAmount:    base.LoanAmount,
			SubmittedAt:   base.SubmittedAt,
			CreatedAt:     base.CreatedAt,
			UpdatedAt:     base.UpdatedAt,
		})
	}
	return summaries
}

func (s *loanApplicationService) Get(ctx context.Context, partnerID uuid.UUID, staff bool, product string, applicationID uuid.UUID) (any, error) {
	if !validProduct(product) {
		return nil, ErrUnknownProduct
	}
	switch product {
	case types.LoanProductMarketing:
		return getApplication(ctx, s.marketing, partnerID, staff, applicationID)
	case types.LoanProductRenovation:
		return getApplication(ctx, s.renovation, partnerID, staff, applicationID)
	default:
		return getApplication(ctx, s.deposit, partnerID, staff, applicationID)
	}
}

func getApplication[T any, P interface {
	*T
	Base() *types.LoanApplicationBase
}](
	ctx context.Context,
	repo repos.ApplicationRepo[T],
	partnerID uuid.UUID,
	staff bool,
	applicationID uuid.UUID,
) (*T, error) {
	app, err := repo.GetByID(ctx, nil, applicationID)
	if err != nil {
		return nil, err
	}
	if !staff && P(app).Base().PartnerID != partnerID {
		return nil, ErrApplicationForbidden
	}
	return app, nil
}

func (s *loanApplicationService) Recent(ctx context.Context, limit int) ([]*ApplicationSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	marketing, err := s.marketing.Recent(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	renovation, err := s.renovation.Recent(ctx, nil, limit)
	if err != nil {
		return nil, err
	}
	deposit, err := s.deposit.Recent(ctx, nil, limit)
	if err != nil {
		return nil, err
	}

	all := summarize[types.MarketingLoanApplication, *types.MarketingLoanApplication](marketing, types.LoanProductMarketing)
	all = append(all, summarize[types.RenovationLoanApplication, *types.RenovationLoanApplication](renovation, types.LoanProductRenovation)...)
	all = append(all, summarize[types.DepositLoanApplication, *types.DepositLoanApplication](deposit, types.LoanProductDeposit)...)

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *loanApplicationService) AdminStats(ctx context.Context) (*AdminApplicationStats, error) {
	stats := &AdminApplicationStats{}

	if err := productStats(ctx, s.marketing, types.LoanProductMarketing, stats); err != nil {
		return nil, err
	}
	if err := productStats(ctx, s.renovation, types.LoanProductRenovation, stats); err != nil {
		return nil, err
	}
	if err := productStats(ctx, s.deposit, types.LoanProductDeposit, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *loanApplicationService) PartnerApplicationStats(ctx context.Context, partnerID uuid.UUID) (map[string]map[string]int64, error) {
	marketing, err := s.marketing.CountByStatusForPartner(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}
	renovation, err := s.renovation.CountByStatusForPartner(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}
	deposit, err := s.deposit.CountByStatusForPartner(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}
	return map[string]map[string]int64{
		types.LoanProductMarketing:  marketing,
		types.LoanProductRenovation: renovation,
		types.LoanProductDeposit:    deposit,
	}, nil
}

func productStats[T any](ctx context.Context, repo repos.ApplicationRepo[T], product string, stats *AdminApplicationStats) error {
	counts, err := repo.CountByStatus(ctx, nil)
	if err != nil {
		return err
	}
	submitted, err := repo.SumLoanAmount(ctx, nil, types.ApplicationStatusSubmitted)
	if err != nil {
		return err
	}
	underReview, err := repo.SumLoanAmount(ctx, nil, types.ApplicationStatusUnderReview)
	if err != nil {
		return err
	}
	approved, err := repo.SumLoanAmount(ctx, nil, types.ApplicationStatusApproved)
	if err != nil {
		return err
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	pending := submitted + underReview
	stats.Products = append(stats.Products, ProductStats{
		Product:            product,
		CountsByStatus:     counts,
		Total:              total,
		PendingLoanAmount:  pending,
		ApprovedLoanAmount: approved,
	})
	stats.TotalApplications += total
	stats.TotalSubmitted += counts[types.ApplicationStatusSubmitted]
	stats.TotalPendingLoanAmount += pending
	stats.TotalApprovedLoanAmount += approved
	return nil
}
