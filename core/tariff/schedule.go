// Package tariff provides immutable, versioned tariff schedule snapshots.
// A schedule is IMMUTABLE after Build; readers borrow it for the lifetime
// of one request and never observe a partially published state.
package tariff

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"port-dues/core/determinism"
	"port-dues/core/types"
)

// Version uniquely identifies a published schedule snapshot.
// It is derived from content, so identical payloads publish identically.
type Version string

// RateTier is a tonnage-range-bound rate for one due type within an
// effective-date window. MaxGT is an exclusive upper bound; nil means
// unbounded. EffectiveTo is inclusive; nil means open-ended.
type RateTier struct {
	RuleID        string           `json:"rule_id"`
	DueType       types.DueType    `json:"due_type"`
	MinGT         decimal.Decimal  `json:"min_gt"`
	MaxGT         *decimal.Decimal `json:"max_gt,omitempty"`
	Rate          decimal.Decimal  `json:"rate"`
	Unit          types.RateUnit   `json:"unit"`
	Currency      types.Currency   `json:"currency"`
	MinAmount     *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount     *decimal.Decimal `json:"max_amount,omitempty"`
	EffectiveFrom civil.Date       `json:"effective_from"`
	EffectiveTo   *civil.Date      `json:"effective_to,omitempty"`
}

// ContainsGT reports whether gt falls in [MinGT, MaxGT)
func (t *RateTier) ContainsGT(gt decimal.Decimal) bool {
	if gt.Cmp(t.MinGT) < 0 {
		return false
	}
	if t.MaxGT != nil && gt.Cmp(*t.MaxGT) >= 0 {
		return false
	}
	return true
}

// EffectiveOn reports whether the tier's date window contains d
func (t *RateTier) EffectiveOn(d civil.Date) bool {
	if d.Before(t.EffectiveFrom) {
		return false
	}
	if t.EffectiveTo != nil && d.After(*t.EffectiveTo) {
		return false
	}
	return true
}

// FlagPredicate compares an operational flag against a literal value
type FlagPredicate struct {
	Flag  string          `json:"flag"`
	Op    types.CompareOp `json:"op"`
	Value string          `json:"value"`
}

// Evaluate applies the predicate to a flag set. The second return is
// false when the flag is absent; satisfaction is then undefined and the
// caller decides whether that is an error.
func (p *FlagPredicate) Evaluate(flags types.Flags) (satisfied, present bool) {
	v, ok := flags[p.Flag]
	if !ok {
		return false, false
	}
	eq := v.String() == p.Value
	if p.Op == types.OpNeq {
		return !eq, true
	}
	return eq, true
}

// FeeRule is a non-tiered due. A nil Condition means the fee applies
// unconditionally; a non-nil Condition makes it a conditional fee whose
// evaluation requires the named flag to be present.
type FeeRule struct {
	RuleID        string           `json:"rule_id"`
	DueType       types.DueType    `json:"due_type"`
	Rate          decimal.Decimal  `json:"rate"`
	Unit          types.RateUnit   `json:"unit"`
	Currency      types.Currency   `json:"currency"`
	MinAmount     *decimal.Decimal `json:"min_amount,omitempty"`
	MaxAmount     *decimal.Decimal `json:"max_amount,omitempty"`
	Condition     *FlagPredicate   `json:"condition,omitempty"`
	EffectiveFrom civil.Date       `json:"effective_from"`
	EffectiveTo   *civil.Date      `json:"effective_to,omitempty"`
}

// EffectiveOn reports whether the fee's date window contains d
func (f *FeeRule) EffectiveOn(d civil.Date) bool {
	if d.Before(f.EffectiveFrom) {
		return false
	}
	if f.EffectiveTo != nil && d.After(*f.EffectiveTo) {
		return false
	}
	return true
}

// ExemptionCondition zeroes or discounts a specific due type when its
// predicate matches the vessel's flags. Conditions for one due type are
// evaluated in declared order and the first match short-circuits.
type ExemptionCondition struct {
	ID        string        `json:"id"`
	DueType   types.DueType `json:"due_type"`
	Predicate FlagPredicate `json:"predicate"`

	// DiscountPct reduces the amount by this percentage; nil zeroes it
	DiscountPct *decimal.Decimal `json:"discount_pct,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// TariffSchedule is an immutable, versioned snapshot of one port's
// structured tariff data.
type TariffSchedule struct {
	version     Version
	contentHash determinism.ContentHash
	port        types.Port
	effectiveAt civil.Date

	// dueTypes preserves declaration order; it drives result ordering
	dueTypes   []types.DueType
	tiers      map[types.DueType][]RateTier
	fees       map[types.DueType][]FeeRule
	exemptions map[types.DueType][]ExemptionCondition

	sealed bool
}

// Version returns the snapshot version identifier
func (s *TariffSchedule) Version() Version {
	return s.version
}

// ContentHash returns the full content hash
func (s *TariffSchedule) ContentHash() determinism.ContentHash {
	return s.contentHash
}

// Port returns the port this schedule covers
func (s *TariffSchedule) Port() types.Port {
	return s.port
}

// EffectiveAt returns the date this snapshot's prices became effective
func (s *TariffSchedule) EffectiveAt() civil.Date {
	return s.effectiveAt
}

// DueTypes returns the due types in declaration order
func (s *TariffSchedule) DueTypes() []types.DueType {
	out := make([]types.DueType, len(s.dueTypes))
	copy(out, s.dueTypes)
	return out
}

// TiersFor returns the rate tiers declared for a due type
func (s *TariffSchedule) TiersFor(dt types.DueType) []RateTier {
	return s.tiers[dt]
}

// FeesFor returns the fee rules declared for a due type
func (s *TariffSchedule) FeesFor(dt types.DueType) []FeeRule {
	return s.fees[dt]
}

// ExemptionsFor returns the exemption conditions for a due type, in
// declared order
func (s *TariffSchedule) ExemptionsFor(dt types.DueType) []ExemptionCondition {
	return s.exemptions[dt]
}

// Builder assembles a TariffSchedule. Build seals the snapshot and
// derives its version from content.
type Builder struct {
	port        types.Port
	effectiveAt civil.Date
	dueTypes    []types.DueType
	tiers       map[types.DueType][]RateTier
	fees        map[types.DueType][]FeeRule
	exemptions  map[types.DueType][]ExemptionCondition
}

// NewBuilder creates a schedule builder for a port
func NewBuilder(port types.Port) *Builder {
	return &Builder{
		port:       port,
		tiers:      make(map[types.DueType][]RateTier),
		fees:       make(map[types.DueType][]FeeRule),
		exemptions: make(map[types.DueType][]ExemptionCondition),
	}
}

// WithEffectiveAt sets the snapshot effective date
func (b *Builder) WithEffectiveAt(d civil.Date) *Builder {
	b.effectiveAt = d
	return b
}

func (b *Builder) trackDueType(dt types.DueType) {
	for _, existing := range b.dueTypes {
		if existing == dt {
			return
		}
	}
	b.dueTypes = append(b.dueTypes, dt)
}

// AddTier appends a rate tier in declaration order
func (b *Builder) AddTier(t RateTier) *Builder {
	b.trackDueType(t.DueType)
	b.tiers[t.DueType] = append(b.tiers[t.DueType], t)
	return b
}

// AddFee appends a fee rule in declaration order
func (b *Builder) AddFee(f FeeRule) *Builder {
	b.trackDueType(f.DueType)
	b.fees[f.DueType] = append(b.fees[f.DueType], f)
	return b
}

// AddExemption appends an exemption condition in declaration order
func (b *Builder) AddExemption(e ExemptionCondition) *Builder {
	b.exemptions[e.DueType] = append(b.exemptions[e.DueType], e)
	return b
}

// Build seals the schedule and computes its content-derived version.
// Declaration order is part of the content: it carries exemption
// precedence, so reordering produces a different version.
func (b *Builder) Build() *TariffSchedule {
	s := &TariffSchedule{
		port:        b.port,
		effectiveAt: b.effectiveAt,
		dueTypes:    b.dueTypes,
		tiers:       b.tiers,
		fees:        b.fees,
		exemptions:  b.exemptions,
	}
	s.contentHash = s.computeHash()
	s.version = Version(hex.EncodeToString(s.contentHash[:8]))
	s.sealed = true
	return s
}

func (s *TariffSchedule) computeHash() determinism.ContentHash {
	h := sha256.New()
	h.Write([]byte(s.port))
	h.Write([]byte(s.effectiveAt.String()))
	for _, dt := range s.dueTypes {
		h.Write([]byte(dt))
		for _, t := range s.tiers[dt] {
			data, _ := json.Marshal(t)
			h.Write(data)
		}
		for _, f := range s.fees[dt] {
			data, _ := json.Marshal(f)
			h.Write(data)
		}
		for _, e := range s.exemptions[dt] {
			data, _ := json.Marshal(e)
			h.Write(data)
		}
	}
	var hash determinism.ContentHash
	copy(hash[:], h.Sum(nil))
	return hash
}

// Verify checks content hash integrity
func (s *TariffSchedule) Verify() bool {
	return s.computeHash() == s.contentHash
}
