package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable of a bootstrap run.
type Config struct {
	// UpdateURL is the base URL of the update service.
	UpdateURL string `yaml:"update_url" envconfig:"UPDATE_URL"`
	// Platform is the platform segment of the metadata path.
	Platform string `yaml:"platform" envconfig:"PLATFORM"`
	// Quality is the release channel, e.g. stable or insider.
	Quality string `yaml:"quality" envconfig:"QUALITY"`
	// ArchPackage is the package identifier for the target CPU architecture.
	// It is derived from runtime.GOARCH when empty.
	ArchPackage string `yaml:"arch_package" envconfig:"ARCH_PACKAGE"`
	// UserAgent is sent with every HTTP request.
	UserAgent string `yaml:"user_agent" envconfig:"USER_AGENT"`
	// WorkspacePrefix starts the name of the temporary directory.
	WorkspacePrefix string `yaml:"workspace_prefix" envconfig:"WORKSPACE_PREFIX"`
	// FilePrefix starts the name of the downloaded installer file.
	FilePrefix string `yaml:"file_prefix" envconfig:"FILE_PREFIX"`
	// InstallerArgs are passed to the installer after its path.
	InstallerArgs []string `yaml:"installer_args" envconfig:"INSTALLER_ARGS"`
	// MetadataTimeout bounds the whole release metadata request.
	MetadataTimeout time.Duration `yaml:"metadata_timeout" envconfig:"METADATA_TIMEOUT"`
	// HeaderTimeout bounds the wait for the download response headers.
	HeaderTimeout time.Duration `yaml:"header_timeout" envconfig:"HEADER_TIMEOUT"`
	// ReadTimeout bounds each chunked read of the download body.
	ReadTimeout time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	// WatchdogInterval is the stall watchdog poll period.
	WatchdogInterval time.Duration `yaml:"watchdog_interval" envconfig:"WATCHDOG_INTERVAL"`
	// MinBytesPerInterval is the least progress per poll that is not a stall.
	MinBytesPerInterval uint64 `yaml:"min_bytes_per_interval" envconfig:"MIN_BYTES_PER_INTERVAL"`
	// ChunkSize is the size of a single body read.
	ChunkSize int `yaml:"chunk_size" envconfig:"CHUNK_SIZE"`
}

const (
	// EnvPrefix prefixes every environment override, e.g. CODE_WINSTALLER_QUALITY.
	EnvPrefix = "CODE_WINSTALLER"

	// DefaultUpdateURL is the public update service.
	DefaultUpdateURL = "https://update.code.visualstudio.com"
	// DefaultPlatform is the only platform the installer targets.
	DefaultPlatform = "win32"
	// DefaultQuality is the release channel used when none is given.
	DefaultQuality = "stable"
	// DefaultUserAgent identifies the installer to the update service.
	DefaultUserAgent = "cli/vscode-winsta11er"
	// DefaultWorkspacePrefix starts the temporary directory name.
	DefaultWorkspacePrefix = "vscode-installer"
	// DefaultFilePrefix starts the installer file name.
	DefaultFilePrefix = "vscode"

	// DefaultMetadataTimeout bounds the release metadata request.
	DefaultMetadataTimeout = 30 * time.Second
	// DefaultHeaderTimeout bounds the wait for download response headers.
	DefaultHeaderTimeout = 60 * time.Second
	// DefaultReadTimeout bounds each body read.
	DefaultReadTimeout = 5 * time.Second
	// DefaultWatchdogInterval is the stall watchdog poll period.
	DefaultWatchdogInterval = 5 * time.Second
	// DefaultMinBytesPerInterval is 40 bytes per second over the default interval.
	DefaultMinBytesPerInterval uint64 = 200
	// DefaultChunkSize is 32 KiB.
	DefaultChunkSize = 32 << 10

	// DefaultFilePermissions is used when saving a config file.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnsupportedArch is returned when no package exists for the CPU architecture.
	errUnsupportedArch = errors.New("unsupported architecture")
	// errInvalidChunkSize is returned for a negative chunk size.
	errInvalidChunkSize = errors.New("chunk size must be positive")
	// errInvalidTimeout is returned for a negative duration.
	errInvalidTimeout = errors.New("durations must be positive")
)

// DefaultInstallerArgs returns the silent install flags: no prompts and no
// launch of the editor after setup completes.
func DefaultInstallerArgs() []string {
	return []string{"/verysilent", "/mergetasks=!runcode"}
}

// ArchPackageFor maps a Go architecture name to the update service package identifier.
func ArchPackageFor(goarch string) (string, bool) {
	switch goarch {
	case "amd64":
		return "x64-user", true
	case "386":
		return "user", true
	case "arm64":
		return "arm64-user", true
	default:
		return "", false
	}
}

// Default returns a configuration populated with the built-in defaults.
// ArchPackage is derived from the running architecture when it is supported.
func Default() *Config {
	archPackage, _ := ArchPackageFor(runtime.GOARCH)

	return &Config{
		UpdateURL:           DefaultUpdateURL,
		Platform:            DefaultPlatform,
		Quality:             DefaultQuality,
		ArchPackage:         archPackage,
		UserAgent:           DefaultUserAgent,
		WorkspacePrefix:     DefaultWorkspacePrefix,
		FilePrefix:          DefaultFilePrefix,
		InstallerArgs:       DefaultInstallerArgs(),
		MetadataTimeout:     DefaultMetadataTimeout,
		HeaderTimeout:       DefaultHeaderTimeout,
		ReadTimeout:         DefaultReadTimeout,
		WatchdogInterval:    DefaultWatchdogInterval,
		MinBytesPerInterval: DefaultMinBytesPerInterval,
		ChunkSize:           DefaultChunkSize,
	}
}

// Load builds a configuration from the defaults, the YAML file at path (when
// path is not empty) and CODE_WINSTALLER_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		contents, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}

		if err = yaml.Unmarshal(contents, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal settings: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to path in YAML format.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills zero values with defaults and checks the remaining fields.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	setDefault(&cfg.UpdateURL, DefaultUpdateURL)
	setDefault(&cfg.Platform, DefaultPlatform)
	setDefault(&cfg.Quality, DefaultQuality)
	setDefault(&cfg.UserAgent, DefaultUserAgent)
	setDefault(&cfg.WorkspacePrefix, DefaultWorkspacePrefix)
	setDefault(&cfg.FilePrefix, DefaultFilePrefix)

	if len(cfg.InstallerArgs) == 0 {
		cfg.InstallerArgs = DefaultInstallerArgs()
	}

	if cfg.ArchPackage == "" {
		archPackage, ok := ArchPackageFor(runtime.GOARCH)
		if !ok {
			return fmt.Errorf("%s: %w", runtime.GOARCH, errUnsupportedArch)
		}

		cfg.ArchPackage = archPackage
	}

	if _, err := url.ParseRequestURI(cfg.UpdateURL); err != nil {
		return fmt.Errorf("invalid update URL: %w", err)
	}

	for _, d := range []struct {
		name  string
		value *time.Duration
		def   time.Duration
	}{
		{"metadata_timeout", &cfg.MetadataTimeout, DefaultMetadataTimeout},
		{"header_timeout", &cfg.HeaderTimeout, DefaultHeaderTimeout},
		{"read_timeout", &cfg.ReadTimeout, DefaultReadTimeout},
		{"watchdog_interval", &cfg.WatchdogInterval, DefaultWatchdogInterval},
	} {
		if *d.value < 0 {
			return fmt.Errorf("%s: %w", d.name, errInvalidTimeout)
		}

		if *d.value == 0 {
			*d.value = d.def
		}
	}

	if cfg.ChunkSize < 0 {
		return errInvalidChunkSize
	}

	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}

	if cfg.MinBytesPerInterval == 0 {
		cfg.MinBytesPerInterval = DefaultMinBytesPerInterval
	}

	return nil
}

// MetadataURL returns the endpoint describing the latest release for cfg.
func (c *Config) MetadataURL() (string, error) {
	return url.JoinPath(
		c.UpdateURL,
		"api", "update",
		c.Platform+"-"+c.ArchPackage,
		c.Quality,
		"latest",
	)
}

// InstallerFilename returns the name used for the downloaded installer.
func (c *Config) InstallerFilename() string {
	return fmt.Sprintf("%s-%s-%s.exe", c.FilePrefix, c.Platform, c.ArchPackage)
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}
