// Package tariffdata loads versioned structured schedule payloads, the
// output of the external ingestion pipeline, from HCL or JSON files. It
// performs no document parsing; the payload rows arrive already
// structured.
package tariffdata

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/shopspring/decimal"

	"port-dues/core/tariff"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

// payloadFile is the top-level payload shape, shared by the HCL and JSON
// forms. Numeric values are strings so rates survive transit without
// float truncation.
type payloadFile struct {
	Schedules []scheduleBlock `hcl:"schedule,block" json:"schedules"`
}

type scheduleBlock struct {
	Port        string           `hcl:"port" json:"port"`
	EffectiveAt string           `hcl:"effective_at" json:"effective_at"`
	Tiers       []tierBlock      `hcl:"tier,block" json:"tiers,omitempty"`
	Fees        []feeBlock       `hcl:"fee,block" json:"fees,omitempty"`
	Exemptions  []exemptionBlock `hcl:"exemption,block" json:"exemptions,omitempty"`
}

type tierBlock struct {
	RuleID        string  `hcl:"rule_id" json:"rule_id"`
	DueType       string  `hcl:"due_type" json:"due_type"`
	MinGT         string  `hcl:"min_gt" json:"min_gt"`
	MaxGT         *string `hcl:"max_gt,optional" json:"max_gt,omitempty"`
	Rate          string  `hcl:"rate" json:"rate"`
	Unit          string  `hcl:"unit" json:"unit"`
	Currency      string  `hcl:"currency" json:"currency"`
	MinAmount     *string `hcl:"min_amount,optional" json:"min_amount,omitempty"`
	MaxAmount     *string `hcl:"max_amount,optional" json:"max_amount,omitempty"`
	EffectiveFrom string  `hcl:"effective_from" json:"effective_from"`
	EffectiveTo   *string `hcl:"effective_to,optional" json:"effective_to,omitempty"`
}

type feeBlock struct {
	RuleID        string          `hcl:"rule_id" json:"rule_id"`
	DueType       string          `hcl:"due_type" json:"due_type"`
	Rate          string          `hcl:"rate" json:"rate"`
	Unit          string          `hcl:"unit" json:"unit"`
	Currency      string          `hcl:"currency" json:"currency"`
	MinAmount     *string         `hcl:"min_amount,optional" json:"min_amount,omitempty"`
	MaxAmount     *string         `hcl:"max_amount,optional" json:"max_amount,omitempty"`
	Condition     *conditionBlock `hcl:"condition,block" json:"condition,omitempty"`
	EffectiveFrom string          `hcl:"effective_from" json:"effective_from"`
	EffectiveTo   *string         `hcl:"effective_to,optional" json:"effective_to,omitempty"`
}

type conditionBlock struct {
	Flag  string `hcl:"flag" json:"flag"`
	Op    string `hcl:"op,optional" json:"op,omitempty"`
	Value string `hcl:"value" json:"value"`
}

type exemptionBlock struct {
	ID          string  `hcl:"id" json:"id"`
	DueType     string  `hcl:"due_type" json:"due_type"`
	Flag        string  `hcl:"flag" json:"flag"`
	Op          string  `hcl:"op,optional" json:"op,omitempty"`
	Value       string  `hcl:"value" json:"value"`
	DiscountPct *string `hcl:"discount_pct,optional" json:"discount_pct,omitempty"`
	Reason      string  `hcl:"reason,optional" json:"reason,omitempty"`
}

// ParseJSON decodes a JSON payload body, as received on the publication
// endpoint, into sealed schedules.
func ParseJSON(data []byte) ([]*tariff.TariffSchedule, error) {
	var payload payloadFile
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, errors.Wrap(errors.TypeValidation, "malformed schedule payload", err)
	}
	return buildAll(&payload)
}

// LoadFile parses one payload file. The format follows the extension:
// .hcl or .tariff for HCL, .json for JSON.
func LoadFile(path string) ([]*tariff.TariffSchedule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var payload payloadFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".hcl", ".tariff":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return nil, errors.Wrap(errors.TypeValidation, "malformed schedule payload "+path, diags)
		}
		if diags := gohcl.DecodeBody(file.Body, nil, &payload); diags.HasErrors() {
			return nil, errors.Wrap(errors.TypeValidation, "malformed schedule payload "+path, diags)
		}
	default:
		return nil, errors.Newf(errors.TypeValidation, "unsupported schedule payload format: %s", path)
	}

	return buildAll(&payload)
}

func buildAll(payload *payloadFile) ([]*tariff.TariffSchedule, error) {
	schedules := make([]*tariff.TariffSchedule, 0, len(payload.Schedules))
	for i := range payload.Schedules {
		s, err := buildSchedule(&payload.Schedules[i])
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, nil
}

// LoadDir loads every payload file in a directory, sorted by name so the
// publish order is reproducible.
func LoadDir(dir string) ([]*tariff.TariffSchedule, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var schedules []*tariff.TariffSchedule
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".hcl", ".tariff", ".json":
		default:
			continue
		}
		loaded, err := LoadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, loaded...)
	}
	return schedules, nil
}

func buildSchedule(block *scheduleBlock) (*tariff.TariffSchedule, error) {
	if block.Port == "" {
		return nil, errors.Validation("port", "is required")
	}
	effectiveAt, err := civil.ParseDate(block.EffectiveAt)
	if err != nil {
		return nil, errors.Validation("effective_at", "must be an ISO date")
	}

	b := tariff.NewBuilder(types.Port(strings.ToUpper(block.Port))).
		WithEffectiveAt(effectiveAt)

	for i := range block.Tiers {
		t, err := buildTier(&block.Tiers[i])
		if err != nil {
			return nil, err
		}
		b.AddTier(*t)
	}
	for i := range block.Fees {
		f, err := buildFee(&block.Fees[i])
		if err != nil {
			return nil, err
		}
		b.AddFee(*f)
	}
	for i := range block.Exemptions {
		e, err := buildExemption(&block.Exemptions[i])
		if err != nil {
			return nil, err
		}
		b.AddExemption(*e)
	}
	return b.Build(), nil
}

func buildTier(t *tierBlock) (*tariff.RateTier, error) {
	minGT, err := parseDecimal("min_gt", t.MinGT, t.RuleID)
	if err != nil {
		return nil, err
	}
	maxGT, err := parseOptionalDecimal("max_gt", t.MaxGT, t.RuleID)
	if err != nil {
		return nil, err
	}
	rate, err := parseDecimal("rate", t.Rate, t.RuleID)
	if err != nil {
		return nil, err
	}
	minAmt, err := parseOptionalDecimal("min_amount", t.MinAmount, t.RuleID)
	if err != nil {
		return nil, err
	}
	maxAmt, err := parseOptionalDecimal("max_amount", t.MaxAmount, t.RuleID)
	if err != nil {
		return nil, err
	}
	from, to, err := parseWindow(t.EffectiveFrom, t.EffectiveTo, t.RuleID)
	if err != nil {
		return nil, err
	}

	return &tariff.RateTier{
		RuleID:        t.RuleID,
		DueType:       types.DueType(t.DueType),
		MinGT:         minGT,
		MaxGT:         maxGT,
		Rate:          rate,
		Unit:          types.RateUnit(t.Unit),
		Currency:      types.Currency(t.Currency),
		MinAmount:     minAmt,
		MaxAmount:     maxAmt,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}, nil
}

func buildFee(f *feeBlock) (*tariff.FeeRule, error) {
	rate, err := parseDecimal("rate", f.Rate, f.RuleID)
	if err != nil {
		return nil, err
	}
	minAmt, err := parseOptionalDecimal("min_amount", f.MinAmount, f.RuleID)
	if err != nil {
		return nil, err
	}
	maxAmt, err := parseOptionalDecimal("max_amount", f.MaxAmount, f.RuleID)
	if err != nil {
		return nil, err
	}
	from, to, err := parseWindow(f.EffectiveFrom, f.EffectiveTo, f.RuleID)
	if err != nil {
		return nil, err
	}

	rule := &tariff.FeeRule{
		RuleID:        f.RuleID,
		DueType:       types.DueType(f.DueType),
		Rate:          rate,
		Unit:          types.RateUnit(f.Unit),
		Currency:      types.Currency(f.Currency),
		MinAmount:     minAmt,
		MaxAmount:     maxAmt,
		EffectiveFrom: from,
		EffectiveTo:   to,
	}
	if f.Condition != nil {
		rule.Condition = &tariff.FlagPredicate{
			Flag:  f.Condition.Flag,
			Op:    compareOp(f.Condition.Op),
			Value: f.Condition.Value,
		}
	}
	return rule, nil
}

func buildExemption(e *exemptionBlock) (*tariff.ExemptionCondition, error) {
	discount, err := parseOptionalDecimal("discount_pct", e.DiscountPct, e.ID)
	if err != nil {
		return nil, err
	}
	return &tariff.ExemptionCondition{
		ID:      e.ID,
		DueType: types.DueType(e.DueType),
		Predicate: tariff.FlagPredicate{
			Flag:  e.Flag,
			Op:    compareOp(e.Op),
			Value: e.Value,
		},
		DiscountPct: discount,
		Reason:      e.Reason,
	}, nil
}

func parseDecimal(field, value, ruleID string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, errors.Validation(field, "must be a decimal number").
			WithContext("rule_id", ruleID)
	}
	return d, nil
}

func parseOptionalDecimal(field string, value *string, ruleID string) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	d, err := parseDecimal(field, *value, ruleID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseWindow(fromStr string, toStr *string, ruleID string) (civil.Date, *civil.Date, error) {
	from, err := civil.ParseDate(fromStr)
	if err != nil {
		return civil.Date{}, nil, errors.Validation("effective_from", "must be an ISO date").
			WithContext("rule_id", ruleID)
	}
	if toStr == nil {
		return from, nil, nil
	}
	to, err := civil.ParseDate(*toStr)
	if err != nil {
		return civil.Date{}, nil, errors.Validation("effective_to", "must be an ISO date").
			WithContext("rule_id", ruleID)
	}
	if to.Before(from) {
		return civil.Date{}, nil, errors.Validation("effective_to", "must not precede effective_from").
			WithContext("rule_id", ruleID)
	}
	return from, &to, nil
}

func compareOp(op string) types.CompareOp {
	if op == string(types.OpNeq) {
		return types.OpNeq
	}
	return types.OpEq
}
