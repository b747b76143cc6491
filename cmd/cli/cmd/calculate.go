// Package cmd - calculate command
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"port-dues/core/determinism"
	"port-dues/core/engine"
	"port-dues/core/explain"
	"port-dues/core/tariff"
	"port-dues/core/types"
	"port-dues/internal/config"
	"port-dues/internal/logging"
	"port-dues/tariffdata"
)

var (
	calcPort         string
	calcGT           string
	calcArrival      string
	calcDeparture    string
	calcFlags        []string
	calcVersion      string
	calcExplain      bool
	calcScheduleDir  string
	calcOutputFormat string
)

// calculateCmd represents the calculate command
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Calculate port dues for a vessel call",
	Long: `Calculate every applicable due for a vessel profile against the
published tariff schedules.

Schedules are loaded from the schedule source directory (HCL or JSON
payload files) unless --schedules overrides it.

Examples:
  port-dues calculate --port DUR --gt 51300 --arrival 2024-01-10 --departure 2024-01-13
  port-dues calculate --port DUR --gt 24000 --arrival 2024-02-01 --departure 2024-02-03 \
      --flag vessel_type=tanker --flag double_hull=true --explain`,
	RunE: runCalculate,
}

func init() {
	calculateCmd.Flags().StringVar(&calcPort, "port", "", "port code (required)")
	calculateCmd.Flags().StringVar(&calcGT, "gt", "", "gross tonnage (required)")
	calculateCmd.Flags().StringVar(&calcArrival, "arrival", "", "arrival date or date-time (required)")
	calculateCmd.Flags().StringVar(&calcDeparture, "departure", "", "departure date or date-time (required)")
	calculateCmd.Flags().StringArrayVar(&calcFlags, "flag", nil, "operational flag as name=value (repeatable)")
	calculateCmd.Flags().StringVar(&calcVersion, "schedule-version", "", "pin a specific schedule version")
	calculateCmd.Flags().BoolVar(&calcExplain, "explain", false, "include policy clause references")
	calculateCmd.Flags().StringVar(&calcScheduleDir, "schedules", "", "schedule payload directory")
	calculateCmd.Flags().StringVarP(&calcOutputFormat, "format", "f", "cli", "output format (cli, json)")
}

func runCalculate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := config.Get()

	repo, err := loadRepository(cfg.Schedule.SourceDir)
	if err != nil {
		return err
	}

	var anchor *explain.Anchor
	if cfg.Explanation.MappingFile != "" {
		mapping, err := explain.LoadMapping(cfg.Explanation.MappingFile)
		if err != nil {
			return fmt.Errorf("failed to load explanation mapping: %w", err)
		}
		anchor = explain.New(mapping,
			time.Duration(cfg.Explanation.TimeoutMs)*time.Millisecond, logging.Logger)
	}

	eng := engine.New(repo, anchor, logging.Logger)

	flags := make(map[string]string, len(calcFlags))
	for _, f := range calcFlags {
		name, value, ok := strings.Cut(f, "=")
		if !ok {
			return fmt.Errorf("invalid --flag %q: expected name=value", f)
		}
		flags[name] = value
	}

	raw := &types.RawRequest{
		Port:               calcPort,
		GrossTonnage:       calcGT,
		ArrivalDate:        calcArrival,
		DepartureDate:      calcDeparture,
		Flags:              flags,
		IncludeExplanation: calcExplain,
		ScheduleVersion:    calcVersion,
	}

	result, err := eng.Calculate(ctx, raw)
	if err != nil {
		return err
	}

	if calcOutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	printResult(result)
	return nil
}

func loadRepository(sourceDir string) (*tariff.Repository, error) {
	dir := sourceDir
	if calcScheduleDir != "" {
		dir = calcScheduleDir
	}

	schedules, err := tariffdata.LoadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedules from %s: %w", dir, err)
	}
	if len(schedules) == 0 {
		return nil, fmt.Errorf("no schedule payloads found in %s", dir)
	}

	repo := tariff.NewRepository(logging.Logger)
	for _, s := range schedules {
		if _, err := repo.Publish(s); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func printResult(result *types.CalculationResult) {
	fmt.Printf("Schedule version: %s\n\n", result.ScheduleVersion)
	for _, item := range result.LineItems {
		status := ""
		if item.ExemptionApplied != nil {
			if item.ExemptionApplied.DiscountPct == nil {
				status = "  [exempt: " + item.ExemptionApplied.Reason + "]"
			} else {
				status = fmt.Sprintf("  [%s%% reduction]", item.ExemptionApplied.DiscountPct.String())
			}
		}
		fmt.Printf("  %-22s %12s %s  (%s)%s\n",
			item.DueType, item.BaseAmount.StringFixed(2), item.Currency, item.RuleID, status)
	}
	fmt.Println()
	for _, cur := range determinism.SortedKeys(result.Totals) {
		fmt.Printf("  Total %s: %s\n", cur, result.Totals[cur].StringFixed(2))
	}
	if len(result.ExplanationRefs) > 0 {
		fmt.Println("\nPolicy references:")
		for _, ruleID := range determinism.SortedKeys(result.ExplanationRefs) {
			fmt.Printf("  %s -> %s\n", ruleID, result.ExplanationRefs[ruleID])
		}
	}
}
