// Package calculator evaluates resolved tariff rules against a vessel
// profile to produce due line items. It is pure: no I/O, no shared state.
package calculator

import (
	"fmt"

	"github.com/shopspring/decimal"

	"port-dues/core/resolver"
	"port-dues/core/tariff"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

var hundred = decimal.NewFromInt(100)

// Calculator computes one DueLineItem per resolved rule
type Calculator struct{}

// New creates a calculator
func New() *Calculator {
	return &Calculator{}
}

// Compute evaluates one resolved item. The base formula runs first, caps
// clamp the result, and the exemption applies last. A conditional fee
// whose condition is unsatisfied yields (nil, nil) and is omitted from
// the result; a conditional fee whose flag is absent or mistyped is a
// CalculationError naming the rule.
func (c *Calculator) Compute(profile *types.VesselProfile, item *resolver.ResolvedItem) (*types.DueLineItem, error) {
	var (
		rate           decimal.Decimal
		unit           types.RateUnit
		currency       types.Currency
		minAmt, maxAmt *decimal.Decimal
		tierRef        *types.TierRef
	)

	switch {
	case item.Tier != nil:
		t := item.Tier
		rate, unit, currency = t.Rate, t.Unit, t.Currency
		minAmt, maxAmt = t.MinAmount, t.MaxAmount
		tierRef = &types.TierRef{MinGT: t.MinGT, MaxGT: t.MaxGT}
	case item.Fee != nil:
		f := item.Fee
		applicable, err := c.feeApplies(profile, f)
		if err != nil {
			return nil, err
		}
		if !applicable {
			return nil, nil
		}
		rate, unit, currency = f.Rate, f.Unit, f.Currency
		minAmt, maxAmt = f.MinAmount, f.MaxAmount
	default:
		return nil, errors.Internal("resolved item has neither tier nor fee", nil)
	}

	amount, formula := c.baseFormula(profile, rate, unit)

	if minAmt != nil && amount.Cmp(*minAmt) < 0 {
		amount = *minAmt
		formula += fmt.Sprintf(", min %s applied", minAmt.StringFixed(2))
	}
	if maxAmt != nil && amount.Cmp(*maxAmt) > 0 {
		amount = *maxAmt
		formula += fmt.Sprintf(", max %s applied", maxAmt.StringFixed(2))
	}

	line := &types.DueLineItem{
		DueType:     item.DueType,
		RuleID:      item.RuleID(),
		TierApplied: tierRef,
		BaseAmount:  amount,
		Currency:    currency,
		Formula:     formula,
	}

	if ex := item.Exemption; ex != nil {
		applied := &types.ExemptionApplied{
			ConditionID: ex.ID,
			Reason:      ex.Reason,
			DiscountPct: ex.DiscountPct,
		}
		if ex.DiscountPct == nil {
			line.BaseAmount = decimal.Zero
			line.Formula = "exempt: " + ex.Reason
		} else {
			factor := hundred.Sub(*ex.DiscountPct).Div(hundred)
			line.BaseAmount = line.BaseAmount.Mul(factor)
			line.Formula += fmt.Sprintf(", %s%% reduction", ex.DiscountPct.String())
		}
		line.ExemptionApplied = applied
	}

	return line, nil
}

// baseFormula evaluates the per-unit formula and renders its audit form
func (c *Calculator) baseFormula(profile *types.VesselProfile, rate decimal.Decimal, unit types.RateUnit) (decimal.Decimal, string) {
	gt := profile.GrossTonnage
	switch unit {
	case types.UnitPerGT:
		return rate.Mul(gt), fmt.Sprintf("%s x %s GT", rate.String(), gt.String())
	case types.UnitPerGTPerDay:
		days := decimal.NewFromInt(profile.StayDays())
		return rate.Mul(gt).Mul(days),
			fmt.Sprintf("%s x %s GT x %s days", rate.String(), gt.String(), days.String())
	default: // flat
		return rate, "flat " + rate.String()
	}
}

// feeApplies evaluates a fee's applicability condition. Unconditional
// fees always apply.
func (c *Calculator) feeApplies(profile *types.VesselProfile, f *tariff.FeeRule) (bool, error) {
	if f.Condition == nil {
		return true, nil
	}
	satisfied, present := f.Condition.Evaluate(profile.Flags)
	if !present {
		return false, errors.Calculation(f.RuleID,
			"conditional fee requires operational flag "+f.Condition.Flag)
	}
	return satisfied, nil
}
