package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oshokin/code-winstaller/internal/config"
	"github.com/oshokin/code-winstaller/internal/domain/installer"
	"github.com/oshokin/code-winstaller/internal/download"
	"github.com/oshokin/code-winstaller/internal/launcher"
	"github.com/oshokin/code-winstaller/internal/logger"
	"github.com/oshokin/code-winstaller/internal/release"
	"github.com/oshokin/code-winstaller/internal/transport"
	"github.com/oshokin/code-winstaller/internal/verify"
	"github.com/oshokin/code-winstaller/internal/workspace"
)

// errNotVerified guards the launch step against an unverified payload.
var errNotVerified = errors.New("installer has not been verified")

// Options are inputs accepted by the bootstrap entry point.
type Options struct {
	// ConfigPath is the optional path to a settings YAML file.
	ConfigPath string
	// Config is used as is when set, instead of loading ConfigPath.
	Config *config.Config
	// ArchPackage overrides the architecture package identifier.
	ArchPackage string
	// Quality overrides the release channel.
	Quality string
	// WorkspaceRoot is where the workspace is created. Defaults to the system temp root.
	WorkspaceRoot string
	// InstallerOutput receives the installer's stdout and stderr. Defaults to the process streams.
	InstallerOutput io.Writer
}

// runner holds the state of a single bootstrap execution.
// It is unexported; callers use Run.
type runner struct {
	cfg           *config.Config
	workspaceRoot string

	resolver   *release.Resolver
	downloader *download.Downloader
	launcher   *launcher.Launcher

	workspace     *workspace.Workspace
	descriptor    *release.Descriptor
	installerPath string
	digest        []byte
	verified      bool
}

// Run executes the bootstrap lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "code-winstaller")

	r, err := newRunner(opts)
	if err != nil {
		logger.ErrorKV(ctx, "Bootstrap setup failed", "error", err)

		return err
	}

	if err = r.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Bootstrap failed", "error", err, "exit_code", installer.ExitCode(err))
		r.reportRetainedWorkspace(ctx)

		return err
	}

	logger.Info(ctx, "Bootstrap completed")

	return nil
}

// newRunner loads the configuration and wires every component of the run.
func newRunner(opts *Options) (*runner, error) {
	cfg := opts.Config
	if cfg == nil {
		var err error

		cfg, err = config.Load(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("load configuration: %w", err)
		}
	}

	if opts.ArchPackage != "" {
		cfg.ArchPackage = opts.ArchPackage
	}

	if opts.Quality != "" {
		cfg.Quality = opts.Quality
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate configuration: %w", err)
	}

	metadataURL, err := cfg.MetadataURL()
	if err != nil {
		return nil, fmt.Errorf("compose metadata url: %w", err)
	}

	client := transport.NewClient(cfg.UserAgent)

	return &runner{
		cfg:           cfg,
		workspaceRoot: opts.WorkspaceRoot,
		resolver: release.NewResolver(client, release.Options{
			MetadataURL: metadataURL,
			Timeout:     cfg.MetadataTimeout,
		}),
		downloader: download.New(client, download.Options{
			HeaderTimeout: cfg.HeaderTimeout,
			ReadTimeout:   cfg.ReadTimeout,
			ChunkSize:     cfg.ChunkSize,
			Watchdog: download.Watchdog{
				Interval: cfg.WatchdogInterval,
				MinBytes: cfg.MinBytesPerInterval,
			},
		}),
		launcher: launcher.New(launcher.Options{
			Args:   cfg.InstallerArgs,
			Stdout: opts.InstallerOutput,
			Stderr: opts.InstallerOutput,
		}),
	}, nil
}

// Run walks the states Init → ResolveRelease → Download → Verify → Launch → Cleanup.
// The first failing state ends the run; cleanup is only reached on success.
func (r *runner) Run(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"create workspace", r.createWorkspace},
		{"resolve release", r.resolveRelease},
		{"download installer", r.downloadInstaller},
		{"verify installer", r.verifyInstaller},
		{"launch installer", r.launchInstaller},
		{"remove workspace", r.cleanup},
	}

	for _, step := range steps {
		if err := step.run(ctx); err != nil {
			return fmt.Errorf("%s: %w", step.name, err)
		}
	}

	return nil
}

func (r *runner) createWorkspace(ctx context.Context) error {
	var (
		ws  *workspace.Workspace
		err error
	)

	prefix := r.cfg.WorkspacePrefix + "-" + r.cfg.Quality

	if r.workspaceRoot != "" {
		ws, err = workspace.CreateIn(r.workspaceRoot, prefix)
	} else {
		ws, err = workspace.Create(prefix)
	}

	if err != nil {
		return err
	}

	r.workspace = ws
	logger.InfoKV(ctx, "Created workspace", "path", ws.Path())

	return nil
}

func (r *runner) resolveRelease(ctx context.Context) error {
	descriptor, err := r.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	r.descriptor = descriptor

	return nil
}

// downloadInstaller streams the payload into the workspace, flushes and closes it.
func (r *runner) downloadInstaller(ctx context.Context) error {
	file, err := r.workspace.CreateFile(r.cfg.InstallerFilename())
	if err != nil {
		return err
	}

	r.installerPath = file.Name()

	result, err := r.downloader.Download(ctx, r.descriptor, file)
	if err != nil {
		_ = file.Close()

		return err
	}

	if err = file.Close(); err != nil {
		return fmt.Errorf("close installer: %w: %w", installer.ErrWrite, err)
	}

	r.digest = result.Digest
	logger.InfoKV(ctx, "Download finished", "path", r.installerPath, "bytes", result.BytesRead)

	return nil
}

func (r *runner) verifyInstaller(ctx context.Context) error {
	if err := verify.SHA256(r.digest, r.descriptor.SHA256Hash); err != nil {
		return err
	}

	r.verified = true
	logger.Infof(ctx, "Downloaded installer to file %s", r.installerPath)

	return nil
}

func (r *runner) launchInstaller(ctx context.Context) error {
	if !r.verified {
		return fmt.Errorf("%s: %w", r.installerPath, errNotVerified)
	}

	result, err := r.launcher.Launch(ctx, r.installerPath)
	if err != nil {
		return err
	}

	if result.ExitCode != 0 {
		logger.WarnKV(ctx, "Installer reported a non-zero exit code", "exit_code", result.ExitCode)
	}

	return nil
}

func (r *runner) cleanup(ctx context.Context) error {
	if err := r.workspace.Destroy(); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Workspace removed", "path", r.workspace.Path())

	return nil
}

// reportRetainedWorkspace logs the workspace left behind by a failed run.
// Failed runs do not remove it.
func (r *runner) reportRetainedWorkspace(ctx context.Context) {
	if r.workspace == nil {
		return
	}

	logger.WarnKV(ctx, "Workspace was not removed", "path", r.workspace.Path())
}
