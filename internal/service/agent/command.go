package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/repository/record"
	"github.com/otakit/courier/internal/runtime"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/store"
)

// Options are inputs accepted by the one-shot apply entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
}

// deps bundles the wired collaborators of a device agent.
type deps struct {
	cfg     *config.Config
	agent   *Agent
	runtime *runtime.Containerd
}

// Run executes a single update cycle and is the public entry point for the
// CLI and external schedulers (cron, systemd timers, operator triggers).
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "courier-agent")

	d, err := setup(ctx, opts.ConfigPath)
	if err != nil {
		return err
	}

	defer d.close(ctx)

	return runGuardedCycle(ctx, d)
}

// setup loads configuration and trust material and wires the agent.
// Every failure here is a ConfigError: without a key, a store location or a
// runtime connection the agent cannot do anything safely, so it halts.
func setup(ctx context.Context, configPath string) (*deps, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if err = config.ValidateAgent(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if err = os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create data dir: %w", ErrConfig, err)
	}

	// The public key reaches the device out-of-band before the first run;
	// its absence is an operator problem, never a retryable condition.
	key, err := signing.LoadPublicKey(cfg.PublicKeyFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	st, err := store.ForURI(cfg.StoreURL, cfg.Project)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	rt, err := runtime.NewContainerd(cfg.ContainerdSocket, cfg.ContainerdNamespace, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	records := record.NewFileRepository(cfg.StateFile)

	return &deps{
		cfg:     cfg,
		agent:   New(cfg, st, records, rt, key),
		runtime: rt,
	}, nil
}

// close releases the runtime connection.
func (d *deps) close(ctx context.Context) {
	if err := d.runtime.Close(); err != nil {
		logger.WarnKV(ctx, "Failed to close runtime connection", "error", err)
	}
}

// runGuardedCycle runs one ApplyUpdate pass under the device run guard.
func runGuardedCycle(ctx context.Context, d *deps) error {
	releaseGuard, err := acquireRunGuard(ctx, d.cfg.DataDir)
	if err != nil {
		return err
	}

	defer releaseGuard()

	result, err := d.agent.ApplyUpdate(ctx)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Update cycle finished",
		"outcome", result.Outcome,
		"applied", result.Applied.Format(time.RFC3339))

	return nil
}
