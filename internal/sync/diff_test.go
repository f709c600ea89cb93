package sync

import (
	"testing"

	"github.com/jcopacetic/lumi/internal/types"
)

func basePartner() *types.Partner {
	return &types.Partner{
		Email:                   "owner@acmerealty.co.nz",
		PrimaryContactFirstName: "Tia",
		PrimaryContactLastName:  "Ngata",
		PrimaryContactPhone:     "021234567",
		CompanyName:             "Acme Realty",
		CompanyPhone:            "095551234",
		CompanyEmail:            "office@acmerealty.co.nz",
		PartnerType:             types.PartnerTypeRealEstate,
		IsActive:                true,
	}
}

func TestDiffReportsChangedFields(t *testing.T) {
	p := basePartner()
	before := Take(p)

	p.PrimaryContactFirstName = "Mere"
	p.CompanyPhone = "095559999"
	after := Take(p)

	changed := Diff(before, after)
	if len(changed) != 2 {
		t.Fatalf("changed fields: want=2 got=%d (%v)", len(changed), changed)
	}
	want := map[string]bool{
		"primary_contact_first_name": true,
		"company_phone":              true,
	}
	for _, f := range changed {
		if !want[f] {
			t.Fatalf("unexpected changed field %q", f)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name    string
		changed []string
		want    Decision
	}{
		{"nothing changed", nil, SyncNone},
		{"contact only", []string{"email", "primary_contact_phone"}, SyncContact},
		{"company only", []string{"company_name", "company_email"}, SyncCompany},
		{"both sets", []string{"primary_contact_last_name", "company_phone"}, SyncFull},
		{"partner_type belongs to both", []string{"partner_type"}, SyncFull},
		{"is_active belongs to both", []string{"is_active"}, SyncFull},
		{"unknown field ignored", []string{"internal_notes"}, SyncNone},
	}
	for _, tc := range cases {
		if got := Classify(tc.changed); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestDecideNewPartnerIsFullSync(t *testing.T) {
	after := Take(basePartner())
	decision, changed := Decide(true, nil, after)
	if decision != SyncFull {
		t.Fatalf("want=%v got=%v", SyncFull, decision)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no changed fields for created partner, got %v", changed)
	}
}

func TestDecideMissingSnapshotIsFullSync(t *testing.T) {
	after := Take(basePartner())
	decision, _ := Decide(false, nil, after)
	if decision != SyncFull {
		t.Fatalf("want=%v got=%v", SyncFull, decision)
	}
}

func TestDecideUnchangedIsNone(t *testing.T) {
	p := basePartner()
	before := Take(p)
	after := Take(p)
	decision, changed := Decide(false, &before, after)
	if decision != SyncNone {
		t.Fatalf("want=%v got=%v", SyncNone, decision)
	}
	if len(changed) != 0 {
		t.Fatalf("expected no changed fields, got %v", changed)
	}
}

func TestDecideContactOnlyChange(t *testing.T) {
	p := basePartner()
	before := Take(p)
	p.Email = "new-owner@acmerealty.co.nz"
	after := Take(p)

	decision, changed := Decide(false, &before, after)
	if decision != SyncContact {
		t.Fatalf("want=%v got=%v", SyncContact, decision)
	}
	if len(changed) != 1 || changed[0] != "email" {
		t.Fatalf("changed fields: want=[email] got=%v", changed)
	}
}

func TestDecideCompanyOnlyChange(t *testing.T) {
	p := basePartner()
	before := Take(p)
	p.CompanyName = "Acme Realty Group"
	after := Take(p)

	decision, _ := Decide(false, &before, after)
	if decision != SyncCompany {
		t.Fatalf("want=%v got=%v", SyncCompany, decision)
	}
}

func TestDecisionString(t *testing.T) {
	pairs := map[Decision]string{
		SyncNone:    "none",
		SyncContact: "contact",
		SyncCompany: "company",
		SyncFull:    "full",
	}
	for d, want := range pairs {
		if got := d.String(); got != want {
			t.Fatalf("Decision(%d).String(): want=%q got=%q", d, want, got)
		}
	}
}
