package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
	"github.com/jcopacetic/lumi/internal/wizard"
)

type fakeLoanTypeRepo struct {
	repos.LoanTypeRepo

	byCode map[string]*types.LoanType
}

func (f *fakeLoanTypeRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.LoanType, error) {
	lt, ok := f.byCode[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return lt, nil
}

func (f *fakeLoanTypeRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.LoanType, error) {
	var active []*types.LoanType
	for _, lt := range f.byCode {
		if lt.IsActive {
			active = append(active, lt)
		}
	}
	return active, nil
}

func newLoanService(t *testing.T, loanTypes *fakeLoanTypeRepo) *loanApplicationService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	svc := NewLoanApplicationService(log, nil, loanTypes, nil, nil, nil, nil, nil, nil)
	return svc.(*loanApplicationService)
}

func TestMergeStepsLaterStepsOverride(t *testing.T) {
	state := &wizard.State{
		Product: types.LoanProductMarketing,
		Steps: map[int]wizard.StepData{
			3: {"loan_amount": 25000.0},
			1: {"first_name": "Hana", "loan_amount": 10000.0},
			2: {"last_name": "Walker"},
		},
	}

	merged := mergeSteps(state)
	if merged["first_name"] != "Hana" || merged["last_name"] != "Walker" {
		t.Fatalf("merged names: got %v", merged)
	}
	if merged["loan_amount"] != 25000.0 {
		t.Fatalf("loan_amount: want=25000 got=%v", merged["loan_amount"])
	}
}

func TestDecodeApplicationNormalizesDates(t *testing.T) {
	merged := map[string]any{
		"customer_email":         "hana@example.co.nz",
		"customer_date_of_birth": "1990-06-15",
		"first_name":             "Hana",
		"last_name":              "Walker",
		"loan_amount":            15000.5,
		"business_name":          "Walker & Co",
		"gst_registered":         true,
		"ird_number":             "123-456-789",
	}

	app, err := decodeApplication[types.MarketingLoanApplication, *types.MarketingLoanApplication](merged)
	if err != nil {
		t.Fatalf("decodeApplication: %v", err)
	}
	if app.CustomerEmail != "hana@example.co.nz" {
		t.Fatalf("customer_email: got %q", app.CustomerEmail)
	}
	if app.LoanAmount != 15000.5 {
		t.Fatalf("loan_amount: want=15000.5 got=%v", app.LoanAmount)
	}
	if app.BusinessName != "Walker & Co" || !app.GSTRegistered {
		t.Fatalf("product fields: got %+v", app)
	}
	dob := time.Time(app.CustomerDateOfBirth)
	if dob.Year() != 1990 || dob.Month() != time.June || dob.Day() != 15 {
		t.Fatalf("date of birth: got %v", dob)
	}
	// The IRD number never rides the JSON payload into the struct.
	if app.IRDNumber != "" {
		t.Fatalf("ird_number leaked into decoded struct: %q", app.IRDNumber)
	}
}

func TestSummarize(t *testing.T) {
	submitted := time.Now().UTC()
	apps := []*types.DepositLoanApplication{
		{
			LoanApplicationBase: types.LoanApplicationBase{
				ID:            uuid.New(),
				CustomerEmail: "buyer@example.co.nz",
				FirstName:     "Rawiri",
				LastName:      "Jones",
				Status:        types.ApplicationStatusSubmitted,
				LoanAmount:    80000,
				SubmittedAt:   &submitted,
			},
		},
	}

	summaries := summarize[types.DepositLoanApplication, *types.DepositLoanApplication](apps, types.LoanProductDeposit)
	if len(summaries) != 1 {
		t.Fatalf("summaries: want=1 got=%d", len(summaries))
	}
	got := summaries[0]
	if got.Product != types.LoanProductDeposit {
		t.Fatalf("product: want=%s got=%s", types.LoanProductDeposit, got.Product)
	}
	if got.ID != apps[0].ID || got.LoanAmount != 80000 || got.SubmittedAt == nil {
		t.Fatalf("summary fields: got %+v", got)
	}
}

func TestCheckProduct(t *testing.T) {
	brokerOnly, err := jsonList(types.PartnerTypeMortgageBroker)
	if err != nil {
		t.Fatalf("jsonList: %v", err)
	}
	loanTypes := &fakeLoanTypeRepo{byCode: map[string]*types.LoanType{
		types.LoanProductDeposit: {
			Code:                types.LoanProductDeposit,
			IsActive:            true,
			AllowedPartnerTypes: brokerOnly,
		},
		types.LoanProductRenovation: {
			Code:     types.LoanProductRenovation,
			IsActive: false,
		},
	}}
	svc := newLoanService(t, loanTypes)
	ctx := context.Background()

	if err := svc.checkProduct(ctx, types.PartnerTypeRealEstate, "payday"); err != ErrUnknownProduct {
		t.Fatalf("unknown product: want ErrUnknownProduct, got %v", err)
	}
	// No loan_type row: the built-in product still works.
	if err := svc.checkProduct(ctx, types.PartnerTypeRealEstate, types.LoanProductMarketing); err != nil {
		t.Fatalf("unseeded product: %v", err)
	}
	if err := svc.checkProduct(ctx, types.PartnerTypeMortgageBroker, types.LoanProductDeposit); err != nil {
		t.Fatalf("allowed partner type: %v", err)
	}
	if err := svc.checkProduct(ctx, types.PartnerTypeRealEstate, types.LoanProductDeposit); err != ErrProductNotAvailable {
		t.Fatalf("excluded partner type: want ErrProductNotAvailable, got %v", err)
	}
	if err := svc.checkProduct(ctx, types.PartnerTypeMortgageBroker, types.LoanProductRenovation); err != ErrProductNotAvailable {
		t.Fatalf("inactive product: want ErrProductNotAvailable, got %v", err)
	}
}

func TestAvailableLoanTypesFiltersByPartnerType(t *testing.T) {
	brokerOnly, err := jsonList(types.PartnerTypeMortgageBroker)
	if err != nil {
		t.Fatalf("jsonList: %v", err)
	}
	loanTypes := &fakeLoanTypeRepo{byCode: map[string]*types.LoanType{
		types.LoanProductMarketing: {Code: types.LoanProductMarketing, IsActive: true},
		types.LoanProductDeposit: {
			Code:                types.LoanProductDeposit,
			IsActive:            true,
			AllowedPartnerTypes: brokerOnly,
		},
	}}
	svc := newLoanService(t, loanTypes)

	available, err := svc.AvailableLoanTypes(context.Background(), types.PartnerTypeRealEstate)
	if err != nil {
		t.Fatalf("AvailableLoanTypes: %v", err)
	}
	if len(available) != 1 || available[0].Code != types.LoanProductMarketing {
		t.Fatalf("available: want=[marketing] got=%+v", available)
	}
}

func jsonList(items ...string) (datatypes.JSON, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
