package agent

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/otakit/courier/internal/logger"
)

const (
	// markerFilename marks that an update cycle is running right now to
	// avoid parallel execution on one device.
	markerFilename = "courier-agent.lock"

	// markerLifetime is the period after which a stale marker is ignored.
	// It must comfortably exceed a worst-case bundle download.
	markerLifetime = 10 * time.Minute

	// agentExecutable is the process name a stale-marker recovery hunts for.
	agentExecutable = "courier-agent"
)

// errAgentAlreadyRunning is returned when a cycle is already in flight on
// this device.
var errAgentAlreadyRunning = errors.New("an update cycle is already running")

// acquireRunGuard serializes update cycles on one device with a marker file.
// It returns a release function to be deferred for the duration of the
// cycle. Two overlapping cycles could both pass the divergence check and
// race on the unit or the version record, so overlap is refused outright.
func acquireRunGuard(ctx context.Context, dataDir string) (func(), error) {
	markerPath := filepath.Join(dataDir, markerFilename)

	if isCycleRunningNow(ctx, markerPath) {
		return nil, errAgentAlreadyRunning
	}

	marker, err := os.Create(markerPath)
	if err != nil {
		return nil, fmt.Errorf("create run marker: %w", err)
	}

	if err = marker.Close(); err != nil {
		return nil, fmt.Errorf("close run marker: %w", err)
	}

	return func() {
		if err := os.Remove(markerPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WarnKV(ctx, "Failed to remove run marker", "path", markerPath, "error", err)
		}
	}, nil
}

// isCycleRunningNow checks presence of the marker and attempts recovery when
// it looks stale: a crashed agent leaves its marker behind, and a device
// that stops updating over a leftover file defeats the whole system.
func isCycleRunningNow(ctx context.Context, markerPath string) bool {
	info, err := os.Stat(markerPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false
		}

		logger.WarnKV(ctx, "Unable to read run marker", "path", markerPath, "error", err)

		return false
	}

	if time.Since(info.ModTime()) <= markerLifetime {
		return true
	}

	logger.Warn(ctx, "Run marker is stale, attempting recovery")

	if err = terminateStrayAgents(); err != nil {
		logger.WarnKV(ctx, "Stale marker recovery failed", "error", err)
		return true
	}

	if err = os.Remove(markerPath); err != nil {
		return true
	}

	return false
}

// terminateStrayAgents kills other courier-agent processes, so a hung cycle
// does not hold the device hostage past the marker lifetime.
func terminateStrayAgents() error {
	processes, err := ps.Processes()
	if err != nil {
		return err
	}

	thisProcessID := os.Getpid()

	for _, process := range processes {
		if process.Pid() == thisProcessID {
			continue
		}

		if process.Executable() != agentExecutable {
			continue
		}

		stray, err := os.FindProcess(process.Pid())
		if err != nil {
			return err
		}

		if err = stray.Kill(); err != nil {
			return err
		}
	}

	return nil
}
