package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/otakit/courier/internal/config"
	"github.com/otakit/courier/internal/logger"
	"github.com/otakit/courier/internal/signing"
	"github.com/otakit/courier/internal/store"
)

// errPrivateKeyExists is returned when keygen would overwrite a private key.
var errPrivateKeyExists = errors.New("private key already exists, refusing to overwrite")

// Options are inputs accepted by the publish entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// BundlePath is the artifact bundle to publish.
	BundlePath string
}

// KeygenOptions are inputs accepted by the keygen entry point.
type KeygenOptions struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Bits is the RSA modulus size; zero selects the default.
	Bits int
}

// Run executes the publish workflow and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "courier-publisher")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err = config.ValidatePublisher(cfg); err != nil {
		return err
	}

	key, err := signing.LoadPrivateKey(cfg.PrivateKeyFile)
	if err != nil {
		return err
	}

	bundle, err := os.ReadFile(filepath.Clean(opts.BundlePath))
	if err != nil {
		return fmt.Errorf("read bundle: %w", err)
	}

	st, err := store.ForURI(cfg.StoreURL, cfg.Project)
	if err != nil {
		return err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	manifest, err := New(st, key).Publish(uploadCtx, bundle, time.Now())
	if err != nil {
		logger.ErrorKV(ctx, "Publish failed", "error", err)
		return err
	}

	logger.InfoKV(ctx, "Release published",
		"instant", manifest.LastBuild.Format(time.RFC3339),
		"project", cfg.Project)

	return nil
}

// Keygen generates the project signing keypair as PEM files at the paths the
// configuration names. It refuses to overwrite an existing private key: the
// private half is the root of trust and replacing it silently would orphan
// every provisioned device.
func Keygen(ctx context.Context, opts *KeygenOptions) error {
	ctx = logger.WithName(ctx, "courier-publisher")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	if err = config.ValidatePublisher(cfg); err != nil {
		return err
	}

	if _, err = os.Stat(cfg.PrivateKeyFile); err == nil {
		return fmt.Errorf("%s: %w", cfg.PrivateKeyFile, errPrivateKeyExists)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat private key: %w", err)
	}

	key, err := signing.GenerateKeyPair(opts.Bits)
	if err != nil {
		return err
	}

	if err = signing.SaveKeyPair(key, cfg.PrivateKeyFile, cfg.PublicKeyFile); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Generated signing keypair",
		"private_key", cfg.PrivateKeyFile,
		"public_key", cfg.PublicKeyFile)
	logger.Info(ctx, "Provision the public key to every device before its first agent run")

	return nil
}
