// Package tariff - Schedule invariant validation
// Ingestion output is untrusted input: it passes through the same kind of
// validation gate as a caller request before it can be published.
package tariff

import (
	"github.com/shopspring/decimal"

	"port-dues/core/determinism"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// Validate checks the schedule invariants: within one due type, tonnage
// ranges of date-overlapping tiers are contiguous and non-overlapping,
// rates are non-negative, units are known, and caps are ordered.
func (s *TariffSchedule) Validate() error {
	for _, dt := range s.dueTypes {
		if err := s.validateTiers(dt); err != nil {
			return err
		}
		for i := range s.fees[dt] {
			f := &s.fees[dt][i]
			if err := validateRule(f.RuleID, f.Rate, f.Unit, f.MinAmount, f.MaxAmount); err != nil {
				return err
			}
		}
		for i := range s.exemptions[dt] {
			e := &s.exemptions[dt][i]
			if e.DiscountPct != nil {
				if e.DiscountPct.Sign() <= 0 || e.DiscountPct.Cmp(hundred) > 0 {
					return errors.Validation("discount_pct", "must be in (0, 100]").
						WithContext("condition_id", e.ID)
				}
			}
		}
	}
	return nil
}

func (s *TariffSchedule) validateTiers(dt types.DueType) error {
	tiers := s.tiers[dt]
	for i := range tiers {
		t := &tiers[i]
		if err := validateRule(t.RuleID, t.Rate, t.Unit, t.MinAmount, t.MaxAmount); err != nil {
			return err
		}
		if t.MaxGT != nil && t.MaxGT.Cmp(t.MinGT) <= 0 {
			return errors.Validation("max_gt", "must exceed min_gt").
				WithContext("rule_id", t.RuleID)
		}
	}

	// Tiers whose effective windows overlap partition the tonnage domain:
	// no two may share a GT value, and consecutive ranges must touch.
	sorted := make([]*RateTier, 0, len(tiers))
	for i := range tiers {
		sorted = append(sorted, &tiers[i])
	}
	determinism.SortSlice(sorted, func(a, b *RateTier) bool {
		return a.MinGT.Cmp(b.MinGT) < 0
	})

	for i, a := range sorted {
		for _, b := range sorted[i+1:] {
			if !windowsOverlap(a, b) {
				continue
			}
			if gtRangesOverlap(a, b) {
				return errors.AmbiguousTier(string(dt), []string{a.RuleID, b.RuleID})
			}
		}
	}
	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if !windowsOverlap(a, b) {
			continue
		}
		if a.MaxGT == nil {
			// Unbounded tier followed by another in the same window is
			// an overlap, caught above; nothing to check here.
			continue
		}
		if !a.MaxGT.Equal(b.MinGT) {
			return errors.Validation("min_gt", "tonnage ranges must be contiguous").
				WithContext("rule_id", b.RuleID)
		}
	}
	return nil
}

func validateRule(ruleID string, rate decimal.Decimal, unit types.RateUnit, minAmt, maxAmt *decimal.Decimal) error {
	if ruleID == "" {
		return errors.Validation("rule_id", "is required")
	}
	if rate.IsNegative() {
		return errors.Validation("rate", "must not be negative").
			WithContext("rule_id", ruleID)
	}
	if !unit.Valid() {
		return errors.Validation("unit", "must be flat, per_gt, or per_gt_per_day").
			WithContext("rule_id", ruleID)
	}
	if minAmt != nil && maxAmt != nil && minAmt.Cmp(*maxAmt) > 0 {
		return errors.Validation("min_amount", "must not exceed max_amount").
			WithContext("rule_id", ruleID)
	}
	return nil
}

func windowsOverlap(a, b *RateTier) bool {
	if b.EffectiveTo != nil && b.EffectiveTo.Before(a.EffectiveFrom) {
		return false
	}
	if a.EffectiveTo != nil && a.EffectiveTo.Before(b.EffectiveFrom) {
		return false
	}
	return true
}

func gtRangesOverlap(a, b *RateTier) bool {
	// Ranges are [min, max); they overlap when each starts before the
	// other ends.
	aEndsAfterBStarts := a.MaxGT == nil || a.MaxGT.Cmp(b.MinGT) > 0
	bEndsAfterAStarts := b.MaxGT == nil || b.MaxGT.Cmp(a.MinGT) > 0
	return aEndsAfterBStarts && bEndsAfterAStarts
}
