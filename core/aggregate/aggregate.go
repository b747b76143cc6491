// Package aggregate groups due line items per currency and applies the
// deterministic rounding discipline: each line is rounded to 2dp before
// summation, then the summed total is rounded the same way.
package aggregate

import (
	"github.com/shopspring/decimal"

	"port-dues/core/determinism"
	"port-dues/core/types"
)

// Aggregator sums line items. It is stateless.
type Aggregator struct{}

// New creates an aggregator
func New() *Aggregator {
	return &Aggregator{}
}

// Aggregate returns the line items with rounded amounts, preserving input
// order, plus per-currency totals. The grouping key is currency only;
// items of differing currency are never combined, and items are never
// reordered by amount or currency.
func (a *Aggregator) Aggregate(items []types.DueLineItem) ([]types.DueLineItem, map[types.Currency]decimal.Decimal) {
	rounded := make([]types.DueLineItem, len(items))
	sums := make(map[types.Currency]decimal.Decimal)

	for i, item := range items {
		item.BaseAmount = determinism.RoundMoney(item.BaseAmount)
		rounded[i] = item
		sums[item.Currency] = sums[item.Currency].Add(item.BaseAmount)
	}

	totals := make(map[types.Currency]decimal.Decimal, len(sums))
	for _, cur := range determinism.SortedKeys(sums) {
		totals[cur] = determinism.RoundMoney(sums[cur])
	}
	return rounded, totals
}
