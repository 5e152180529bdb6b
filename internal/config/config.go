package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the parameters shared by the courier binaries.
// It is an explicit struct passed into the publisher and agent entry points;
// nothing reads it as process-wide state.
type Config struct {
	// StoreURL locates the remote artifact store.
	// Supported schemes: s3://bucket/prefix?region=...[&endpoint=...] and file:///path.
	StoreURL string `yaml:"store_url"`
	// Project is the per-project path under the store where release objects live.
	Project string `yaml:"project"`
	// PrivateKeyFile is the PEM-encoded RSA private key used by the publisher.
	PrivateKeyFile string `yaml:"private_key_file"`
	// PublicKeyFile is the PEM-encoded RSA public key provisioned to agents.
	PublicKeyFile string `yaml:"public_key_file"`
	// UnitName is the logical name of the deployment unit on a device.
	UnitName string `yaml:"unit_name"`
	// StateFile is the path to the local version record on a device.
	StateFile string `yaml:"state_file"`
	// DataDir is where the agent keeps temporary downloads, unit logs and its run marker.
	DataDir string `yaml:"data_dir"`
	// ContainerdSocket is the path to the containerd socket on a device.
	ContainerdSocket string `yaml:"containerd_socket"`
	// ContainerdNamespace is the containerd namespace the agent operates in.
	ContainerdNamespace string `yaml:"containerd_namespace"`
	// Timeout bounds every remote store operation.
	Timeout time.Duration `yaml:"timeout"`
}

const (
	// DefaultConfigFilename is the default filename for courier settings.
	DefaultConfigFilename = "courier.yaml"

	// DefaultStateFilename is the default filename for the local version record.
	DefaultStateFilename = "courier-state.yaml"

	// DefaultUnitName is the default logical name of the deployment unit.
	DefaultUnitName = "courier-app"

	// DefaultDataDir is the default agent data directory.
	DefaultDataDir = "/var/lib/courier"

	// DefaultContainerdSocket is the default containerd socket path.
	DefaultContainerdSocket = "/run/containerd/containerd.sock"

	// DefaultContainerdNamespace is the default containerd namespace.
	DefaultContainerdNamespace = "courier"

	// DefaultTimeout is the default bound for remote store operations.
	// Bundle downloads dominate, hence the generous value.
	DefaultTimeout = 2 * time.Minute

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errStoreURLRequired is returned when the store URL is missing.
	errStoreURLRequired = errors.New("store URL must be provided")
	// errStoreSchemeUnknown is returned for unsupported store URL schemes.
	errStoreSchemeUnknown = errors.New("store URL scheme must be s3 or file")
	// errProjectRequired is returned when the project path is missing.
	errProjectRequired = errors.New("project must be provided")
	// errPrivateKeyRequired is returned when a publisher lacks a private key path.
	errPrivateKeyRequired = errors.New("private key file must be provided")
	// errPublicKeyRequired is returned when an agent lacks a public key path.
	errPublicKeyRequired = errors.New("public key file must be provided")
)

// Load reads configuration from the provided path and validates shared fields.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks fields needed by every binary and fills in defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.StoreURL == "" {
		return errStoreURLRequired
	}

	u, err := url.Parse(cfg.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store URL: %w", err)
	}

	switch u.Scheme {
	case "s3", "file":
	default:
		return fmt.Errorf("%q: %w", u.Scheme, errStoreSchemeUnknown)
	}

	if cfg.Project == "" {
		return errProjectRequired
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return nil
}

// ValidatePublisher checks fields required by the publisher binary.
func ValidatePublisher(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	if cfg.PrivateKeyFile == "" {
		return errPrivateKeyRequired
	}

	if cfg.PublicKeyFile == "" {
		return errPublicKeyRequired
	}

	return nil
}

// ValidateAgent checks fields required by the agent binary and fills in
// device-side defaults.
func ValidateAgent(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}

	if cfg.PublicKeyFile == "" {
		return errPublicKeyRequired
	}

	if cfg.UnitName == "" {
		cfg.UnitName = DefaultUnitName
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}

	if cfg.ContainerdSocket == "" {
		cfg.ContainerdSocket = DefaultContainerdSocket
	}

	if cfg.ContainerdNamespace == "" {
		cfg.ContainerdNamespace = DefaultContainerdNamespace
	}

	return nil
}
