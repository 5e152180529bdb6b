package agent

import (
	"context"
	"errors"
	"time"

	"github.com/otakit/courier/internal/logger"
)

// DefaultPollInterval is the default period between update cycles in daemon
// mode.
const DefaultPollInterval = 5 * time.Minute

// DaemonOptions are inputs accepted by the daemon entry point.
type DaemonOptions struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Interval is the period between update cycles.
	Interval time.Duration
}

// RunDaemon polls the store on a fixed interval until the context is
// canceled. It is one of the external triggers the protocol permits; the
// agent itself stays scheduler-agnostic and each tick is an ordinary
// ApplyUpdate pass.
//
// Cycles run inline in the loop, so they cannot overlap in-process; the run
// guard additionally protects against a concurrent one-shot invocation.
// Only a configuration error stops the daemon — everything else is logged
// and retried on the next tick.
func RunDaemon(ctx context.Context, opts *DaemonOptions) error {
	ctx = logger.WithName(ctx, "courier-agent")

	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}

	d, err := setup(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	defer d.close(ctx)

	logger.InfoKV(ctx, "Polling for releases",
		"interval", opts.Interval.String(),
		"project", d.cfg.Project)

	// First cycle runs immediately; the ticker covers the rest.
	if err = tick(ctx, d); err != nil {
		return err
	}

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			if err = tick(ctx, d); err != nil {
				return err
			}
		}
	}
}

// tick runs one guarded cycle, swallowing every retryable failure.
func tick(ctx context.Context, d *deps) error {
	err := runGuardedCycle(ctx, d)
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrConfig) {
		logger.ErrorKV(ctx, "Fatal configuration error, halting", "error", err)
		return err
	}

	if errors.Is(err, errAgentAlreadyRunning) {
		logger.Warn(ctx, "Skipping cycle, another invocation holds the run guard")
		return nil
	}

	// Transient, trust and apply failures were already logged with their
	// reasons; the next tick retries from a clean slate.
	return nil
}
