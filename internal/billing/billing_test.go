package billing

import (
	"testing"

	"atelier/internal/domain"
)

func TestComputeTotals(t *testing.T) {
	p := domain.Proposal{
		TaxRateBP:      825, // 8.25%
		DesignFeeCents: 50000,
		Items: []domain.ProposalItem{
			{Description: "Sofa", UnitPriceCents: 250000, Quantity: 1, Taxable: true},
			{Description: "Side tables", UnitPriceCents: 40000, Quantity: 2, Taxable: true},
			{Description: "Freight", UnitPriceCents: 15000, Quantity: 1, Taxable: false},
		},
	}
	got := ComputeTotals(p)
	if got.SubtotalCents != 345000 {
		t.Errorf("subtotal = %d, want 345000", got.SubtotalCents)
	}
	if got.TaxableSubtotalCents != 330000 {
		t.Errorf("taxable subtotal = %d, want 330000", got.TaxableSubtotalCents)
	}
	// 330000 * 0.0825 = 27225
	if got.TaxCents != 27225 {
		t.Errorf("tax = %d, want 27225", got.TaxCents)
	}
	if got.GrandTotalCents != 345000+27225+50000 {
		t.Errorf("grand total = %d", got.GrandTotalCents)
	}
}

func TestComputeTotalsNoTax(t *testing.T) {
	p := domain.Proposal{
		Items: []domain.ProposalItem{
			{UnitPriceCents: 10000, Quantity: 3, Taxable: true},
		},
	}
	got := ComputeTotals(p)
	if got.TaxCents != 0 {
		t.Errorf("tax = %d, want 0 at zero rate", got.TaxCents)
	}
	if got.GrandTotalCents != 30000 {
		t.Errorf("grand total = %d, want 30000", got.GrandTotalCents)
	}
}

func TestTaxRounding(t *testing.T) {
	p := domain.Proposal{
		TaxRateBP: 825,
		Items: []domain.ProposalItem{
			{UnitPriceCents: 999, Quantity: 1, Taxable: true},
		},
	}
	// 999 * 0.0825 = 82.4175, rounds to 82
	if got := ComputeTotals(p).TaxCents; got != 82 {
		t.Errorf("tax = %d, want 82", got)
	}
}

func TestValidateSchedule(t *testing.T) {
	ok := []domain.ScheduleSplit{
		{Label: "Deposit", PercentBP: 5000},
		{Label: "Delivery", PercentBP: 3000},
		{Label: "Final", PercentBP: 2000},
	}
	if err := ValidateSchedule(ok); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}
	short := []domain.ScheduleSplit{{Label: "Deposit", PercentBP: 5000}}
	if err := ValidateSchedule(short); err == nil {
		t.Fatalf("expected error for partial schedule")
	}
	negative := []domain.ScheduleSplit{
		{Label: "A", PercentBP: 11000},
		{Label: "B", PercentBP: -1000},
	}
	if err := ValidateSchedule(negative); err == nil {
		t.Fatalf("expected error for negative split")
	}
	if err := ValidateSchedule(nil); err != nil {
		t.Fatalf("empty schedule should be allowed: %v", err)
	}
}

func TestScheduleAmountsExactSum(t *testing.T) {
	schedule := []domain.ScheduleSplit{
		{Label: "Deposit", PercentBP: 3333},
		{Label: "Midpoint", PercentBP: 3333},
		{Label: "Final", PercentBP: 3334},
	}
	amounts := ScheduleAmounts(100001, schedule)
	var sum int64
	for _, a := range amounts {
		sum += a.AmountCents
	}
	if sum != 100001 {
		t.Fatalf("schedule amounts sum to %d, want 100001", sum)
	}
	// remainder lands on the last split
	if amounts[0].AmountCents != 33330 {
		t.Errorf("first split = %d, want 33330", amounts[0].AmountCents)
	}
}
