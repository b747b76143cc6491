// Package guardrail validates raw calculation requests before they reach
// the schedule or any computation. Whether a request came from a
// structured API call or an upstream language parser, it is untrusted
// until it passes this gate.
package guardrail

import (
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"port-dues/core/types"
	"port-dues/internal/errors"
)

// PortDirectory resolves port codes to known schedules
type PortDirectory interface {
	HasSchedule(port types.Port) bool
}

// FlagSpec describes one recognized operational flag
type FlagSpec struct {
	Kind types.FlagKind

	// Allowed enumerates valid values for enum flags
	Allowed []string
}

// recognizedFlags is the enumerated set of operational flags the engine
// understands. Unknown flags are rejected, not silently dropped.
var recognizedFlags = map[string]FlagSpec{
	"vessel_type": {
		Kind:    types.FlagEnum,
		Allowed: []string{"cargo", "tanker", "container", "passenger", "pleasure", "fishing"},
	},
	"government":            {Kind: types.FlagBool},
	"coaster":               {Kind: types.FlagBool},
	"double_hull":           {Kind: types.FlagBool},
	"outside_working_hours": {Kind: types.FlagBool},
}

// Validator is the guardrail gate
type Validator struct {
	ports  PortDirectory
	logger *zap.Logger
}

// NewValidator creates a validator backed by a port directory
func NewValidator(ports PortDirectory, logger *zap.Logger) *Validator {
	return &Validator{ports: ports, logger: logger}
}

// Validate checks a raw request and returns a typed CalculationRequest.
// Checks run in a fixed order and the first failure is returned as a
// ValidationError naming the field and the violated constraint.
func (v *Validator) Validate(raw *types.RawRequest) (*types.CalculationRequest, error) {
	if raw.Port == "" {
		return nil, errors.Validation("port", "is required")
	}
	if raw.GrossTonnage == "" {
		return nil, errors.Validation("gross_tonnage", "is required")
	}
	if raw.ArrivalDate == "" {
		return nil, errors.Validation("arrival_date", "is required")
	}
	if raw.DepartureDate == "" {
		return nil, errors.Validation("departure_date", "is required")
	}

	gt, err := decimal.NewFromString(raw.GrossTonnage)
	if err != nil {
		return nil, errors.Validation("gross_tonnage", "must be a decimal number")
	}
	if gt.Sign() <= 0 {
		return nil, errors.Validation("gross_tonnage", "must be positive")
	}

	arrival, err := parseDateTime(raw.ArrivalDate)
	if err != nil {
		return nil, errors.Validation("arrival_date", "must be an ISO date or date-time")
	}
	departure, err := parseDateTime(raw.DepartureDate)
	if err != nil {
		return nil, errors.Validation("departure_date", "must be an ISO date or date-time")
	}
	if !departure.After(arrival) {
		return nil, errors.Validation("departure_date", "must be after arrival_date")
	}

	flags, err := v.validateFlags(raw.Flags)
	if err != nil {
		return nil, err
	}

	port := types.Port(strings.ToUpper(raw.Port))
	if !v.ports.HasSchedule(port) {
		return nil, errors.Validation("port", "does not resolve to a known schedule").
			WithContext("port", string(port))
	}

	return &types.CalculationRequest{
		Profile: types.VesselProfile{
			Port:         port,
			GrossTonnage: gt,
			Arrival:      arrival,
			Departure:    departure,
			Flags:        flags,
		},
		IncludeExplanation: raw.IncludeExplanation,
		ScheduleVersion:    raw.ScheduleVersion,
	}, nil
}

func (v *Validator) validateFlags(raw map[string]string) (types.Flags, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	flags := make(types.Flags, len(raw))
	for name, value := range raw {
		spec, ok := recognizedFlags[name]
		if !ok {
			return nil, errors.Validation("flags", "unknown operational flag "+name).
				WithContext("flag", name)
		}
		switch spec.Kind {
		case types.FlagBool:
			switch value {
			case "true":
				flags[name] = types.BoolFlag(true)
			case "false":
				flags[name] = types.BoolFlag(false)
			default:
				return nil, errors.Validation("flags", "flag "+name+" must be true or false").
					WithContext("flag", name)
			}
		case types.FlagEnum:
			if !contains(spec.Allowed, value) {
				return nil, errors.Validation("flags", "flag "+name+" has unrecognized value "+value).
					WithContext("flag", name)
			}
			flags[name] = types.EnumFlag(value)
		}
	}
	return flags, nil
}

// parseDateTime canonicalizes "2006-01-02" (midnight) and
// "2006-01-02T15:04:05" inputs.
func parseDateTime(s string) (civil.DateTime, error) {
	if !strings.Contains(s, "T") {
		d, err := civil.ParseDate(s)
		if err != nil {
			return civil.DateTime{}, err
		}
		return civil.DateTime{Date: d}, nil
	}
	return civil.ParseDateTime(s)
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}
