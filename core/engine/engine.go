// Package engine orchestrates the request lifecycle:
// Received -> Validated -> Resolved -> Computed -> Aggregated ->
// [Explained] -> Completed. A failure at Validated, Resolved, or Computed
// terminates the request with its typed error and no partial result; a
// failure to reach Explained never rolls back an aggregated result.
package engine

import (
	"context"

	"go.uber.org/zap"

	"port-dues/core/aggregate"
	"port-dues/core/calculator"
	"port-dues/core/explain"
	"port-dues/core/guardrail"
	"port-dues/core/resolver"
	"port-dues/core/tariff"
	"port-dues/core/types"
)

// Engine wires the pipeline components. Calculation is synchronous and
// side-effect-free per request; concurrent requests share only the
// read-only schedule snapshot they each borrowed at start.
type Engine struct {
	repo       *tariff.Repository
	validator  *guardrail.Validator
	resolver   *resolver.Resolver
	calculator *calculator.Calculator
	aggregator *aggregate.Aggregator
	anchor     *explain.Anchor
	logger     *zap.Logger
}

// New creates an engine over a repository. The anchor may be nil when no
// explanation collaborator is configured.
func New(repo *tariff.Repository, anchor *explain.Anchor, logger *zap.Logger) *Engine {
	if anchor == nil {
		anchor = explain.New(nil, 0, logger)
	}
	return &Engine{
		repo:       repo,
		validator:  guardrail.NewValidator(repo, logger),
		resolver:   resolver.New(logger),
		calculator: calculator.New(),
		aggregator: aggregate.New(),
		anchor:     anchor,
		logger:     logger,
	}
}

// Calculate runs one request through the full lifecycle. For identical
// raw input and schedule version the result is byte-identical.
func (e *Engine) Calculate(ctx context.Context, raw *types.RawRequest) (*types.CalculationResult, error) {
	req, err := e.validator.Validate(raw)
	if err != nil {
		return nil, err
	}

	schedule, err := e.snapshot(req)
	if err != nil {
		return nil, err
	}

	e.logger.Info("calculation started",
		zap.String("port", req.Profile.Port.String()),
		zap.String("schedule_version", string(schedule.Version())),
		zap.String("gross_tonnage", req.Profile.GrossTonnage.String()),
	)

	resolved, err := e.resolver.Resolve(schedule, &req.Profile)
	if err != nil {
		return nil, err
	}

	var items []types.DueLineItem
	for i := range resolved {
		line, err := e.calculator.Compute(&req.Profile, &resolved[i])
		if err != nil {
			e.logger.Error("formula evaluation failed",
				zap.String("schedule_version", string(schedule.Version())),
				zap.String("rule_id", resolved[i].RuleID()),
				zap.Error(err),
			)
			return nil, err
		}
		if line == nil {
			// Conditional fee whose condition is unsatisfied.
			continue
		}
		items = append(items, *line)
	}

	rounded, totals := e.aggregator.Aggregate(items)

	result := &types.CalculationResult{
		LineItems:       rounded,
		Totals:          totals,
		ScheduleVersion: string(schedule.Version()),
	}

	// The explanation join runs after aggregation and can only add refs;
	// its unavailability leaves the completed result intact.
	if req.IncludeExplanation {
		result.ExplanationRefs = e.anchor.Resolve(ctx, rounded, true)
	}

	e.logger.Info("calculation completed",
		zap.String("port", req.Profile.Port.String()),
		zap.String("schedule_version", string(schedule.Version())),
		zap.Int("line_items", len(rounded)),
	)
	return result, nil
}

// snapshot selects the schedule the request runs against: a pinned
// version when given, otherwise the current snapshot for the port.
func (e *Engine) snapshot(req *types.CalculationRequest) (*tariff.TariffSchedule, error) {
	if req.ScheduleVersion != "" {
		return e.repo.VersionSnapshot(req.Profile.Port, tariff.Version(req.ScheduleVersion))
	}
	return e.repo.Snapshot(req.Profile.Port)
}
