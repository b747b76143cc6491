// Package explain joins computed line items to externally supplied policy
// clause references. It owns no retrieval or generation logic; the
// reference source is an injected collaborator and its failure never
// fails a calculation.
package explain

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"go.uber.org/zap"

	"port-dues/core/types"
)

// ReferenceSource maps a rule id to an external clause reference id.
// A miss is reported as ok=false; an error means the source is
// unavailable.
type ReferenceSource interface {
	Lookup(ctx context.Context, ruleID string) (ref string, ok bool, err error)
}

// StaticMapping is a ReferenceSource backed by an in-memory map
type StaticMapping map[string]string

// Lookup implements ReferenceSource
func (m StaticMapping) Lookup(_ context.Context, ruleID string) (string, bool, error) {
	ref, ok := m[ruleID]
	return ref, ok, nil
}

// LoadMapping reads a rule_id to reference mapping from a JSON file
func LoadMapping(path string) (StaticMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m StaticMapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Anchor performs the reference join with a bounded timeout
type Anchor struct {
	source  ReferenceSource
	timeout time.Duration
	logger  *zap.Logger
}

// New creates an anchor. A nil source disables anchoring entirely.
func New(source ReferenceSource, timeout time.Duration, logger *zap.Logger) *Anchor {
	return &Anchor{source: source, timeout: timeout, logger: logger}
}

// Resolve returns rule_id to reference mappings for the given line items.
// When include is false, the source is absent, or any lookup fails or
// times out, it returns an empty set; it never returns an error.
func (a *Anchor) Resolve(ctx context.Context, items []types.DueLineItem, include bool) map[string]string {
	if !include || a.source == nil {
		return map[string]string{}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	refs := make(map[string]string)
	for _, item := range items {
		if _, seen := refs[item.RuleID]; seen {
			continue
		}
		ref, ok, err := a.source.Lookup(ctx, item.RuleID)
		if err != nil {
			a.logger.Warn("explanation reference source unavailable",
				zap.String("rule_id", item.RuleID),
				zap.Error(err),
			)
			return map[string]string{}
		}
		if ok {
			refs[item.RuleID] = ref
		}
	}
	return refs
}
