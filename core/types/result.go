// Package types - Result-side types
package types

import (
	"github.com/shopspring/decimal"
)

// TierRef records which tonnage tier produced a line item
type TierRef struct {
	// MinGT is the inclusive lower bound of the tier
	MinGT decimal.Decimal `json:"min_gt"`

	// MaxGT is the exclusive upper bound; nil means unbounded
	MaxGT *decimal.Decimal `json:"max_gt,omitempty"`
}

// ExemptionApplied records the single exemption condition that matched a
// line item. Exactly one is ever recorded per due type.
type ExemptionApplied struct {
	// ConditionID identifies the exemption condition in the schedule
	ConditionID string `json:"condition_id"`

	// Reason is the schedule's human-readable exemption reason
	Reason string `json:"reason,omitempty"`

	// DiscountPct is the percentage reduction applied; nil means the
	// amount was zeroed entirely
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`
}

// DueLineItem is one computed due. Exempted dues still produce a line
// item with a zero amount so the audit trail is never lossy.
type DueLineItem struct {
	DueType DueType `json:"due_type"`

	// RuleID links the amount back to the tariff rule that produced it
	RuleID string `json:"rule_id"`

	// TierApplied is set when a tonnage tier matched; absent for fees
	TierApplied *TierRef `json:"tier_applied,omitempty"`

	// BaseAmount is the final per-line amount after caps and exemption
	BaseAmount decimal.Decimal `json:"base_amount"`

	Currency Currency `json:"currency"`

	// Formula is the audit-trail rendering of the applied calculation
	Formula string `json:"formula,omitempty"`

	ExemptionApplied *ExemptionApplied `json:"exemption_applied,omitempty"`
}

// CalculationResult is the caller-owned output of a completed request.
// The core never mutates it after returning.
type CalculationResult struct {
	// LineItems preserve the schedule's due-type declaration order
	LineItems []DueLineItem `json:"line_items"`

	// Totals maps currency to the aggregated, 2dp-rounded total.
	// Items of differing currency are never combined.
	Totals map[Currency]decimal.Decimal `json:"totals"`

	// ScheduleVersion is the snapshot the calculation ran against
	ScheduleVersion string `json:"schedule_version"`

	// ExplanationRefs maps rule_id to an external clause reference.
	// Empty when explanation was not requested or was unavailable.
	ExplanationRefs map[string]string `json:"explanation_refs,omitempty"`
}
