// Package engine - End-to-end lifecycle tests
// These tests run whole requests through the pipeline and PROVE the
// determinism guarantee on the serialized output.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"port-dues/core/explain"
	"port-dues/core/tariff"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic("bad decimal literal " + s)
	}
	return d
}

// durbanSchedule mirrors a small slice of a real tariff book: flat light
// dues plus tonnage-and-stay-based port dues, with a government exemption
// on the light dues.
func durbanSchedule() *tariff.TariffSchedule {
	return tariff.NewBuilder("DUR").
		WithEffectiveAt(date(2024, time.January, 1)).
		AddFee(tariff.FeeRule{
			RuleID:        "ld-flat",
			DueType:       types.DueLightDues,
			Rate:          dec("500"),
			Unit:          types.UnitFlat,
			Currency:      types.CurrencyZAR,
			EffectiveFrom: date(2024, time.January, 1),
		}).
		AddTier(tariff.RateTier{
			RuleID:        "pd-all",
			DueType:       types.DuePortDues,
			MinGT:         dec("0"),
			Rate:          dec("0.05"),
			Unit:          types.UnitPerGTPerDay,
			Currency:      types.CurrencyZAR,
			EffectiveFrom: date(2024, time.January, 1),
		}).
		AddExemption(tariff.ExemptionCondition{
			ID:        "ex-gov-light",
			DueType:   types.DueLightDues,
			Predicate: tariff.FlagPredicate{Flag: "government", Op: types.OpEq, Value: "true"},
			Reason:    "government vessel",
		}).
		Build()
}

func newTestEngine(t *testing.T) (*Engine, *tariff.Repository) {
	t.Helper()
	repo := tariff.NewRepository(zap.NewNop())
	if _, err := repo.Publish(durbanSchedule()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	return New(repo, nil, zap.NewNop()), repo
}

func durbanCall() *types.RawRequest {
	return &types.RawRequest{
		Port:          "DUR",
		GrossTonnage:  "51300",
		ArrivalDate:   "2024-01-10",
		DepartureDate: "2024-01-13",
	}
}

// TestFullCalculation proves the canonical scenario: a 51300 GT vessel on
// a three day call pays 500 light dues plus 0.05 x 51300 x 3 = 7695 port
// dues, totalling 8195.00 ZAR, in schedule declaration order.
func TestFullCalculation(t *testing.T) {
	eng, _ := newTestEngine(t)

	result, err := eng.Calculate(context.Background(), durbanCall())
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}

	if len(result.LineItems) != 2 {
		t.Fatalf("Got %d line items, want 2", len(result.LineItems))
	}
	if result.LineItems[0].RuleID != "ld-flat" || result.LineItems[1].RuleID != "pd-all" {
		t.Errorf("Line order broken: %s, %s", result.LineItems[0].RuleID, result.LineItems[1].RuleID)
	}
	if !result.LineItems[0].BaseAmount.Equal(dec("500")) {
		t.Errorf("Light dues = %s, want 500", result.LineItems[0].BaseAmount)
	}
	if !result.LineItems[1].BaseAmount.Equal(dec("7695")) {
		t.Errorf("Port dues = %s, want 7695", result.LineItems[1].BaseAmount)
	}
	if !result.Totals[types.CurrencyZAR].Equal(dec("8195")) {
		t.Errorf("Total = %s, want 8195", result.Totals[types.CurrencyZAR])
	}
	if result.ScheduleVersion == "" {
		t.Error("Result does not record the schedule version")
	}
	if len(result.ExplanationRefs) != 0 {
		t.Errorf("Unrequested explanation present: %v", result.ExplanationRefs)
	}
}

// TestIdenticalInputsIdenticalBytes proves the determinism guarantee on
// the serialized result, not just on compared fields.
func TestIdenticalInputsIdenticalBytes(t *testing.T) {
	eng, _ := newTestEngine(t)

	var outputs [][]byte
	for i := 0; i < 3; i++ {
		result, err := eng.Calculate(context.Background(), durbanCall())
		if err != nil {
			t.Fatalf("Calculate failed: %v", err)
		}
		data, err := json.Marshal(result)
		if err != nil {
			t.Fatalf("Marshal failed: %v", err)
		}
		outputs = append(outputs, data)
	}
	for i := 1; i < len(outputs); i++ {
		if !bytes.Equal(outputs[0], outputs[i]) {
			t.Errorf("Run %d serialized differently:\n%s\nvs\n%s", i, outputs[0], outputs[i])
		}
	}
}

// TestExemptionFlowsThroughTotals proves an exempted due zeroes its line
// but stays in the result.
func TestExemptionFlowsThroughTotals(t *testing.T) {
	eng, _ := newTestEngine(t)

	raw := durbanCall()
	raw.Flags = map[string]string{"government": "true"}

	result, err := eng.Calculate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if len(result.LineItems) != 2 {
		t.Fatalf("Got %d line items, want 2", len(result.LineItems))
	}
	light := result.LineItems[0]
	if !light.BaseAmount.IsZero() {
		t.Errorf("Exempt light dues = %s, want 0", light.BaseAmount)
	}
	if light.ExemptionApplied == nil || light.ExemptionApplied.ConditionID != "ex-gov-light" {
		t.Error("Exemption not recorded on the line")
	}
	if !result.Totals[types.CurrencyZAR].Equal(dec("7695")) {
		t.Errorf("Total = %s, want 7695", result.Totals[types.CurrencyZAR])
	}
}

// TestValidationFailureYieldsNoResult proves a rejected request terminates
// before any schedule work.
func TestValidationFailureYieldsNoResult(t *testing.T) {
	eng, _ := newTestEngine(t)

	raw := durbanCall()
	raw.GrossTonnage = "-5"

	result, err := eng.Calculate(context.Background(), raw)
	if result != nil {
		t.Errorf("Invalid request produced a result: %+v", result)
	}
	if !errors.IsType(err, errors.TypeValidation) {
		t.Errorf("Expected VALIDATION_ERROR, got %v", err)
	}
}

// TestUnknownVersionPin proves pinning a nonexistent snapshot is NotFound
func TestUnknownVersionPin(t *testing.T) {
	eng, _ := newTestEngine(t)

	raw := durbanCall()
	raw.ScheduleVersion = "ffffffffffffffff"

	_, err := eng.Calculate(context.Background(), raw)
	if !errors.IsType(err, errors.TypeNotFound) {
		t.Errorf("Expected NOT_FOUND for unknown pin, got %v", err)
	}
}

// TestVersionPinSurvivesRepublish proves a pinned request keeps computing
// against the old prices after a newer schedule is published.
func TestVersionPinSurvivesRepublish(t *testing.T) {
	eng, repo := newTestEngine(t)
	oldVersion, err := repo.Snapshot("DUR")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	// Publish a doubled port-dues rate.
	newer := tariff.NewBuilder("DUR").
		WithEffectiveAt(date(2024, time.July, 1)).
		AddFee(tariff.FeeRule{
			RuleID:        "ld-flat",
			DueType:       types.DueLightDues,
			Rate:          dec("500"),
			Unit:          types.UnitFlat,
			Currency:      types.CurrencyZAR,
			EffectiveFrom: date(2024, time.January, 1),
		}).
		AddTier(tariff.RateTier{
			RuleID:        "pd-all",
			DueType:       types.DuePortDues,
			MinGT:         dec("0"),
			Rate:          dec("0.10"),
			Unit:          types.UnitPerGTPerDay,
			Currency:      types.CurrencyZAR,
			EffectiveFrom: date(2024, time.January, 1),
		}).
		Build()
	if _, err := repo.Publish(newer); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	raw := durbanCall()
	raw.ScheduleVersion = string(oldVersion.Version())
	result, err := eng.Calculate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Pinned Calculate failed: %v", err)
	}
	if !result.Totals[types.CurrencyZAR].Equal(dec("8195")) {
		t.Errorf("Pinned total = %s, want the old 8195", result.Totals[types.CurrencyZAR])
	}

	// Unpinned requests see the new prices.
	result, err = eng.Calculate(context.Background(), durbanCall())
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if !result.Totals[types.CurrencyZAR].Equal(dec("15890")) {
		t.Errorf("Current total = %s, want 15890", result.Totals[types.CurrencyZAR])
	}
}

// TestConditionalFeeFaultAbortsRequest proves a missing operational flag
// terminates the request with a calculation error and no partial result.
func TestConditionalFeeFaultAbortsRequest(t *testing.T) {
	repo := tariff.NewRepository(zap.NewNop())
	s := tariff.NewBuilder("DUR").
		WithEffectiveAt(date(2024, time.January, 1)).
		AddFee(tariff.FeeRule{
			RuleID:   "tw-oh",
			DueType:  types.DueTowage,
			Rate:     dec("1500"),
			Unit:     types.UnitFlat,
			Currency: types.CurrencyZAR,
			Condition: &tariff.FlagPredicate{
				Flag:  "outside_working_hours",
				Op:    types.OpEq,
				Value: "true",
			},
			EffectiveFrom: date(2024, time.January, 1),
		}).
		Build()
	if _, err := repo.Publish(s); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	eng := New(repo, nil, zap.NewNop())

	result, err := eng.Calculate(context.Background(), durbanCall())
	if result != nil {
		t.Errorf("Faulted request produced a partial result: %+v", result)
	}
	if !errors.IsType(err, errors.TypeCalculation) {
		t.Errorf("Expected CALCULATION_ERROR, got %v", err)
	}
}

// TestExplanationAnchoring proves requested references ride on the result
// and a missing mapping entry is simply absent.
func TestExplanationAnchoring(t *testing.T) {
	repo := tariff.NewRepository(zap.NewNop())
	if _, err := repo.Publish(durbanSchedule()); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	anchor := explain.New(explain.StaticMapping{
		"pd-all": "Tariff Book s.4(2)",
	}, time.Second, zap.NewNop())
	eng := New(repo, anchor, zap.NewNop())

	raw := durbanCall()
	raw.IncludeExplanation = true

	result, err := eng.Calculate(context.Background(), raw)
	if err != nil {
		t.Fatalf("Calculate failed: %v", err)
	}
	if result.ExplanationRefs["pd-all"] != "Tariff Book s.4(2)" {
		t.Errorf("Refs = %v", result.ExplanationRefs)
	}
	if _, ok := result.ExplanationRefs["ld-flat"]; ok {
		t.Error("Unmapped rule received a reference")
	}
	if !result.Totals[types.CurrencyZAR].Equal(dec("8195")) {
		t.Errorf("Explanation changed the total: %s", result.Totals[types.CurrencyZAR])
	}
}
