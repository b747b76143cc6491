// Package api - Wire types
package api

import (
	"port-dues/core/types"
)

// CalculateRequest is the POST /calculate body. It is the raw,
// untrusted request; the guardrail gate inside the engine validates it.
type CalculateRequest struct {
	types.RawRequest
}

// LineItem is the wire form of one computed due. Amounts are decimal
// strings with two fixed places.
type LineItem struct {
	DueType          string            `json:"due_type"`
	RuleID           string            `json:"rule_id"`
	TierApplied      *TierRef          `json:"tier_applied,omitempty"`
	BaseAmount       string            `json:"base_amount"`
	Currency         string            `json:"currency"`
	Formula          string            `json:"formula,omitempty"`
	ExemptionApplied *ExemptionApplied `json:"exemption_applied,omitempty"`
}

// TierRef is the wire form of the applied tonnage tier
type TierRef struct {
	MinGT string `json:"min_gt"`
	MaxGT string `json:"max_gt,omitempty"`
}

// ExemptionApplied is the wire form of a recorded exemption
type ExemptionApplied struct {
	ConditionID string `json:"condition_id"`
	Reason      string `json:"reason,omitempty"`
	DiscountPct string `json:"discount_pct,omitempty"`
}

// CalculateResponse is the POST /calculate response body
type CalculateResponse struct {
	RequestID       string            `json:"request_id"`
	LineItems       []LineItem        `json:"line_items"`
	Totals          map[string]string `json:"totals"`
	ScheduleVersion string            `json:"schedule_version"`
	ExplanationRefs map[string]string `json:"explanation_refs,omitempty"`
	DurationMs      int64             `json:"duration_ms"`
}

// PublishResponse is the POST /schedules response body
type PublishResponse struct {
	Published []PublishedSchedule `json:"published"`
}

// PublishedSchedule reports one accepted schedule version
type PublishedSchedule struct {
	Port    string `json:"port"`
	Version string `json:"version"`
}

// ScheduleInfo describes one port's published versions
type ScheduleInfo struct {
	Port           string   `json:"port"`
	CurrentVersion string   `json:"current_version"`
	Versions       []string `json:"versions"`
}

// toWireResult converts a core result for serialization
func toWireResult(requestID string, result *types.CalculationResult, durationMs int64) *CalculateResponse {
	resp := &CalculateResponse{
		RequestID:       requestID,
		LineItems:       make([]LineItem, 0, len(result.LineItems)),
		Totals:          make(map[string]string, len(result.Totals)),
		ScheduleVersion: result.ScheduleVersion,
		ExplanationRefs: result.ExplanationRefs,
		DurationMs:      durationMs,
	}
	for _, item := range result.LineItems {
		wire := LineItem{
			DueType:    string(item.DueType),
			RuleID:     item.RuleID,
			BaseAmount: item.BaseAmount.StringFixed(2),
			Currency:   string(item.Currency),
			Formula:    item.Formula,
		}
		if item.TierApplied != nil {
			ref := &TierRef{MinGT: item.TierApplied.MinGT.String()}
			if item.TierApplied.MaxGT != nil {
				ref.MaxGT = item.TierApplied.MaxGT.String()
			}
			wire.TierApplied = ref
		}
		if item.ExemptionApplied != nil {
			ex := &ExemptionApplied{
				ConditionID: item.ExemptionApplied.ConditionID,
				Reason:      item.ExemptionApplied.Reason,
			}
			if item.ExemptionApplied.DiscountPct != nil {
				ex.DiscountPct = item.ExemptionApplied.DiscountPct.String()
			}
			wire.ExemptionApplied = ex
		}
		resp.LineItems = append(resp.LineItems, wire)
	}
	for cur, total := range result.Totals {
		resp.Totals[string(cur)] = total.StringFixed(2)
	}
	return resp
}
