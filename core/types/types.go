// Package types - Shared domain types for the dues engine
package types

// Port is a port code (e.g. "DUR" for Durban)
type Port string

// String returns the string representation
func (p Port) String() string {
	return string(p)
}

// DueType is a category of port charge. The engine is schedule-driven and
// treats due types as open-ended strings; these constants cover the
// standard tariff book categories.
type DueType string

const (
	DueLightDues    DueType = "light_dues"
	DueVTS          DueType = "vts_dues"
	DuePortDues     DueType = "port_dues"
	DueTowage       DueType = "towage_dues"
	DuePilotage     DueType = "pilotage_dues"
	DueRunningLines DueType = "running_lines_dues"
)

// Currency represents a currency code
type Currency string

const (
	CurrencyZAR Currency = "ZAR"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// String returns the string representation
func (c Currency) String() string {
	return string(c)
}

// RateUnit determines the formula a rate is evaluated with
type RateUnit string

const (
	// UnitFlat charges the rate once per port call
	UnitFlat RateUnit = "flat"

	// UnitPerGT charges rate x gross tonnage
	UnitPerGT RateUnit = "per_gt"

	// UnitPerGTPerDay charges rate x gross tonnage x whole stay days
	UnitPerGTPerDay RateUnit = "per_gt_per_day"
)

// Valid reports whether the unit is a known formula
func (u RateUnit) Valid() bool {
	switch u {
	case UnitFlat, UnitPerGT, UnitPerGTPerDay:
		return true
	}
	return false
}

// CompareOp is a comparison operator used in flag predicates
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNeq CompareOp = "neq"
)

// FlagKind distinguishes boolean from enumerated operational flags
type FlagKind string

const (
	FlagBool FlagKind = "bool"
	FlagEnum FlagKind = "enum"
)

// FlagValue is a typed operational flag value
type FlagValue struct {
	Kind FlagKind `json:"kind"`
	Bool bool     `json:"bool,omitempty"`
	Enum string   `json:"enum,omitempty"`
}

// BoolFlag creates a boolean flag value
func BoolFlag(v bool) FlagValue {
	return FlagValue{Kind: FlagBool, Bool: v}
}

// EnumFlag creates an enumerated flag value
func EnumFlag(v string) FlagValue {
	return FlagValue{Kind: FlagEnum, Enum: v}
}

// String returns the canonical literal form used in predicates
func (v FlagValue) String() string {
	if v.Kind == FlagBool {
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return v.Enum
}

// Flags is the set of named operational flags on a vessel profile
type Flags map[string]FlagValue
