package main

import (
	"fmt"
	"time"

	"shedcmd/internal/config"
	"shedcmd/internal/dispatch"
	appLog "shedcmd/internal/log"
	"shedcmd/internal/schedule"
	"shedcmd/internal/scheduler"
	"shedcmd/internal/source"
)

// loadConfig reads the configuration and applies its log level. Any failure
// is a configuration error (exit 1).
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(osFs, path)
	if err != nil {
		return nil, withCode(1, err)
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

func newSource(cfg *config.Config, filePath string) (source.Source, error) {
	src, err := source.New(cfg, filePath, osFs)
	if err != nil {
		return nil, withCode(1, err)
	}
	return src, nil
}

func newDispatcher(cfg *config.Config) (*dispatch.Shell, error) {
	timeout, err := cfg.CommandTimeoutDuration()
	if err != nil {
		return nil, withCode(1, err)
	}
	return &dispatch.Shell{Timeout: timeout, Dir: cfg.Workdir}, nil
}

func loopOptions(cfg *config.Config) (scheduler.Options, error) {
	format, err := schedule.ParseFormat(cfg.Fetch.Format)
	if err != nil {
		return scheduler.Options{}, withCode(1, fmt.Errorf("fetch.format: %w", err))
	}
	return scheduler.Options{
		Interval:   cfg.Interval(),
		FetchEvery: uint64(cfg.FetchOccurrence),
		Threshold:  cfg.ThresholdMinutes(),
		Commands:   cfg.Commands,
		Format:     format,
		Horizon:    time.Duration(cfg.Fetch.HorizonDays) * 24 * time.Hour,
	}, nil
}
