// Package billing holds the proposal and invoice arithmetic: line totals,
// tax, and payment-schedule splits. All amounts are integer cents and all
// rates are basis points, so the math stays exact.
package billing

import (
	"fmt"

	"atelier/internal/domain"
)

// Totals is the computed money breakdown of a proposal.
type Totals struct {
	SubtotalCents        int64 `json:"subtotal_cents"`
	TaxableSubtotalCents int64 `json:"taxable_subtotal_cents"`
	TaxCents             int64 `json:"tax_cents"`
	DesignFeeCents       int64 `json:"design_fee_cents"`
	GrandTotalCents      int64 `json:"grand_total_cents"`
}

// ScheduleAmount pairs a schedule split with its computed amount.
type ScheduleAmount struct {
	Label       string `json:"label"`
	PercentBP   int    `json:"percent_bp"`
	AmountCents int64  `json:"amount_cents"`
}

// LineTotal returns unit price times quantity.
func LineTotal(item domain.ProposalItem) int64 {
	return item.UnitPriceCents * int64(item.Quantity)
}

// ComputeTotals computes a proposal's money breakdown. Tax applies to the
// taxable line items only, never to the design fee.
func ComputeTotals(p domain.Proposal) Totals {
	var t Totals
	for _, item := range p.Items {
		line := LineTotal(item)
		t.SubtotalCents += line
		if item.Taxable {
			t.TaxableSubtotalCents += line
		}
	}
	t.TaxCents = roundBP(t.TaxableSubtotalCents, p.TaxRateBP)
	t.DesignFeeCents = p.DesignFeeCents
	t.GrandTotalCents = t.SubtotalCents + t.TaxCents + t.DesignFeeCents
	return t
}

// ValidateSchedule checks that the splits cover exactly 100%.
func ValidateSchedule(schedule []domain.ScheduleSplit) error {
	if len(schedule) == 0 {
		return nil
	}
	sum := 0
	for i, s := range schedule {
		if s.PercentBP <= 0 {
			return fmt.Errorf("schedule split %d: percent must be positive", i)
		}
		sum += s.PercentBP
	}
	if sum != 10000 {
		return fmt.Errorf("schedule percents sum to %d bp, want 10000", sum)
	}
	return nil
}

// ScheduleAmounts splits a total across the schedule. Rounding remainders
// land on the final split so the amounts always sum to the total exactly.
func ScheduleAmounts(totalCents int64, schedule []domain.ScheduleSplit) []ScheduleAmount {
	if len(schedule) == 0 {
		return nil
	}
	res := make([]ScheduleAmount, len(schedule))
	var allocated int64
	for i, s := range schedule {
		amount := roundBP(totalCents, s.PercentBP)
		if i == len(schedule)-1 {
			amount = totalCents - allocated
		}
		allocated += amount
		res[i] = ScheduleAmount{Label: s.Label, PercentBP: s.PercentBP, AmountCents: amount}
	}
	return res
}

// roundBP multiplies cents by a basis-point rate, rounding half up.
func roundBP(cents int64, bp int) int64 {
	return (cents*int64(bp) + 5000) / 10000
}
