// Package resolver selects the applicable rate tiers, fee rules, and
// exemption conditions for a vessel from a schedule snapshot.
package resolver

import (
	"go.uber.org/zap"

	"port-dues/core/tariff"
	"port-dues/core/types"
	"port-dues/internal/errors"
)

// ResolvedItem pairs one selected tier or fee rule with the exemption
// condition, if any, that applies to it. Exactly one of Tier and Fee is
// set.
type ResolvedItem struct {
	DueType   types.DueType
	Tier      *tariff.RateTier
	Fee       *tariff.FeeRule
	Exemption *tariff.ExemptionCondition
}

// RuleID returns the rule id of the selected tier or fee
func (it *ResolvedItem) RuleID() string {
	if it.Tier != nil {
		return it.Tier.RuleID
	}
	return it.Fee.RuleID
}

// Resolver performs rule selection. It is stateless; a single instance
// serves concurrent requests.
type Resolver struct {
	logger *zap.Logger
}

// New creates a resolver
func New(logger *zap.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve walks the schedule's due types in declaration order. Per due
// type, at most one tier may contain the vessel's tonnage on the arrival
// date; zero matches means the due type is inapplicable and it is
// omitted. Two or more matches is a data-integrity fault, never resolved
// by picking one. Fee rules effective on the arrival date are included
// unconditionally; their own applicability conditions are evaluated at
// computation time.
func (r *Resolver) Resolve(schedule *tariff.TariffSchedule, profile *types.VesselProfile) ([]ResolvedItem, error) {
	arrival := profile.Arrival.Date
	var items []ResolvedItem

	for _, dt := range schedule.DueTypes() {
		tiers := schedule.TiersFor(dt)
		var matched []*tariff.RateTier
		for i := range tiers {
			t := &tiers[i]
			if t.ContainsGT(profile.GrossTonnage) && t.EffectiveOn(arrival) {
				matched = append(matched, t)
			}
		}
		if len(matched) > 1 {
			ids := make([]string, len(matched))
			for i, t := range matched {
				ids[i] = t.RuleID
			}
			r.logger.Error("overlapping tiers in published schedule",
				zap.String("port", schedule.Port().String()),
				zap.String("schedule_version", string(schedule.Version())),
				zap.String("due_type", string(dt)),
				zap.Strings("rule_ids", ids),
			)
			return nil, errors.AmbiguousTier(string(dt), ids).
				WithContext("schedule_version", string(schedule.Version()))
		}
		if len(matched) == 1 {
			items = append(items, ResolvedItem{
				DueType:   dt,
				Tier:      matched[0],
				Exemption: r.firstExemption(schedule, dt, profile),
			})
		}

		fees := schedule.FeesFor(dt)
		for i := range fees {
			f := &fees[i]
			if !f.EffectiveOn(arrival) {
				continue
			}
			items = append(items, ResolvedItem{
				DueType:   dt,
				Fee:       f,
				Exemption: r.firstExemption(schedule, dt, profile),
			})
		}
	}
	return items, nil
}

// firstExemption evaluates the exemption conditions scoped to a due type
// in declared order and returns the first satisfied one. An absent flag
// simply leaves a condition unsatisfied.
func (r *Resolver) firstExemption(schedule *tariff.TariffSchedule, dt types.DueType, profile *types.VesselProfile) *tariff.ExemptionCondition {
	conditions := schedule.ExemptionsFor(dt)
	for i := range conditions {
		c := &conditions[i]
		if satisfied, _ := c.Predicate.Evaluate(profile.Flags); satisfied {
			return c
		}
	}
	return nil
}
