// Package types - Request-side types
package types

import (
	"math"
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// RawRequest is an untrusted candidate calculation request, exactly as it
// arrives from the API or an upstream parser. It must pass through the
// guardrail gate before any schedule lookup.
type RawRequest struct {
	// Port is the port code
	Port string `json:"port"`

	// GrossTonnage is a decimal string to avoid float truncation in transit
	GrossTonnage string `json:"gross_tonnage"`

	// ArrivalDate accepts "2006-01-02" or "2006-01-02T15:04:05"
	ArrivalDate string `json:"arrival_date"`

	// DepartureDate accepts the same forms as ArrivalDate
	DepartureDate string `json:"departure_date"`

	// Flags are raw name/value pairs; values are literals ("true",
	// "tanker") checked against the recognized flag registry
	Flags map[string]string `json:"flags,omitempty"`

	// IncludeExplanation requests rule-to-clause reference anchoring
	IncludeExplanation bool `json:"include_explanation,omitempty"`

	// ScheduleVersion pins a specific snapshot; empty means latest
	ScheduleVersion string `json:"schedule_version,omitempty"`
}

// VesselProfile is a validated vessel and voyage description. Only the
// guardrail constructs one from a RawRequest.
type VesselProfile struct {
	Port         Port            `json:"port"`
	GrossTonnage decimal.Decimal `json:"gross_tonnage"`
	Arrival      civil.DateTime  `json:"arrival"`
	Departure    civil.DateTime  `json:"departure"`
	Flags        Flags           `json:"flags,omitempty"`
}

// StayDays is the chargeable stay in whole days: the arrival-to-departure
// span rounded up, with a minimum of one day.
func (p *VesselProfile) StayDays() int64 {
	span := p.Departure.In(time.UTC).Sub(p.Arrival.In(time.UTC))
	days := int64(math.Ceil(span.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// CalculationRequest is a validated request ready for resolution
type CalculationRequest struct {
	Profile            VesselProfile `json:"profile"`
	IncludeExplanation bool          `json:"include_explanation"`

	// ScheduleVersion pins a snapshot; empty means the current one
	ScheduleVersion string `json:"schedule_version,omitempty"`
}
