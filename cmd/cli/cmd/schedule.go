// Package cmd - schedule commands
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"port-dues/core/tariff"
	"port-dues/internal/config"
	"port-dues/internal/logging"
	"port-dues/tariffdata"
)

// scheduleCmd groups schedule management commands
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage published tariff schedules",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// schedulePublishCmd validates payload files and stores them as
// immutable snapshots
var schedulePublishCmd = &cobra.Command{
	Use:   "publish [file...]",
	Short: "Validate and publish schedule payload files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchedulePublish,
}

// scheduleListCmd lists stored snapshot versions
var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List published schedule versions",
	RunE:  runScheduleList,
}

// scheduleVerifyCmd re-hashes stored snapshots
var scheduleVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify integrity of stored schedule snapshots",
	RunE:  runScheduleVerify,
}

func init() {
	scheduleCmd.AddCommand(schedulePublishCmd)
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleVerifyCmd)
}

func runSchedulePublish(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	store, err := tariff.NewSnapshotStore(cfg.Schedule.Directory)
	if err != nil {
		return err
	}
	repo := tariff.NewRepository(logging.Logger)
	if err := store.LoadAll(repo); err != nil {
		return err
	}

	for _, path := range args {
		schedules, err := tariffdata.LoadFile(path)
		if err != nil {
			return err
		}
		for _, s := range schedules {
			version, err := repo.Publish(s)
			if err != nil {
				return err
			}
			if err := store.Store(s); err != nil {
				return err
			}
			fmt.Printf("published %s version %s (effective %s)\n",
				s.Port(), version, s.EffectiveAt())
		}
	}
	return nil
}

func runScheduleList(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	store, err := tariff.NewSnapshotStore(cfg.Schedule.Directory)
	if err != nil {
		return err
	}
	repo := tariff.NewRepository(logging.Logger)
	if err := store.LoadAll(repo); err != nil {
		return err
	}

	ports := repo.Ports()
	if len(ports) == 0 {
		fmt.Println("No schedules published.")
		return nil
	}
	for _, port := range ports {
		current, err := repo.Snapshot(port)
		if err != nil {
			continue
		}
		fmt.Printf("%s (current: %s)\n", port, current.Version())
		for _, v := range repo.Versions(port) {
			marker := " "
			if v == current.Version() {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, v)
		}
	}
	return nil
}

func runScheduleVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	store, err := tariff.NewSnapshotStore(cfg.Schedule.Directory)
	if err != nil {
		return err
	}
	corrupted, err := store.VerifyIntegrity()
	if err != nil {
		return err
	}
	if len(corrupted) == 0 {
		fmt.Println("All snapshots verified.")
		return nil
	}
	for _, c := range corrupted {
		fmt.Printf("CORRUPTED: %s\n", c)
	}
	return fmt.Errorf("%d corrupted snapshot(s)", len(corrupted))
}
