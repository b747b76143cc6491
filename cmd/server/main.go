// Package main - Entry point for the port-dues calculation server
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"port-dues/api"
	"port-dues/core/engine"
	"port-dues/core/explain"
	"port-dues/core/tariff"
	"port-dues/internal/config"
	"port-dues/internal/logging"
	"port-dues/tariffdata"
)

const version = "1.0.0"

func main() {
	cfgPath := flag.String("config", "", "Config file path")
	addr := flag.String("addr", "", "Server address (overrides config)")
	sourceDir := flag.String("schedules", "", "Schedule payload directory (overrides config)")
	flag.Parse()

	if *cfgPath != "" {
		cfg, err := config.Load(*cfgPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		config.Set(cfg)
	}
	cfg := config.Get()

	if err := logging.Initialize(cfg.Logging); err != nil {
		log.Fatalf("failed to initialize logging: %v", err)
	}
	defer logging.Sync()

	// Replay stored snapshots first, then publish any payload files from
	// the schedule source directory.
	repo := tariff.NewRepository(logging.Logger)
	store, err := tariff.NewSnapshotStore(cfg.Schedule.Directory)
	if err != nil {
		log.Fatalf("failed to open snapshot store: %v", err)
	}
	if err := store.LoadAll(repo); err != nil {
		log.Fatalf("failed to load snapshots: %v", err)
	}

	dir := cfg.Schedule.SourceDir
	if *sourceDir != "" {
		dir = *sourceDir
	}
	if dir != "" {
		schedules, err := tariffdata.LoadDir(dir)
		if err != nil {
			logging.Warn(fmt.Sprintf("no schedule payloads loaded from %s: %v", dir, err))
		}
		for _, s := range schedules {
			if _, err := repo.Publish(s); err != nil {
				log.Fatalf("failed to publish schedule for %s: %v", s.Port(), err)
			}
			if err := store.Store(s); err != nil {
				log.Fatalf("failed to store schedule for %s: %v", s.Port(), err)
			}
		}
	}

	var anchor *explain.Anchor
	if cfg.Explanation.MappingFile != "" {
		mapping, err := explain.LoadMapping(cfg.Explanation.MappingFile)
		if err != nil {
			log.Fatalf("failed to load explanation mapping: %v", err)
		}
		anchor = explain.New(mapping,
			time.Duration(cfg.Explanation.TimeoutMs)*time.Millisecond, logging.Logger)
	}

	eng := engine.New(repo, anchor, logging.Logger)
	apiServer := api.NewServer(version, eng, repo, store, logging.Logger)

	listenAddr := cfg.Server.Addr
	if *addr != "" {
		listenAddr = *addr
	}

	srv := &http.Server{
		Addr:        listenAddr,
		Handler:     apiServer,
		ReadTimeout: time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
	}

	fmt.Printf("Port Dues Calculation Server v%s\n", version)
	fmt.Printf("   Listening on %s\n", listenAddr)
	fmt.Printf("   Ports with schedules: %d\n", len(repo.Ports()))
	fmt.Println()

	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
