package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shaderland/backend/shared"
	"shaderland/frontend/bridge"
	"shaderland/frontend/bridge/rodsandbox"
	"shaderland/frontend/settings"
)

// browser is a sandbox factory that owns a process.
type browser interface {
	bridge.Factory
	Close() error
}

// env holds everything the commands share. Tests build one directly.
type env struct {
	Config    shared.Config
	Logger    *zap.Logger
	Store     shared.ShaderStore
	Settings  settings.Store
	Generator *shared.Generator
	Browser   func(ctx context.Context) (browser, error)

	closers []func() error
}

func (e *env) close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
	e.closers = nil
}

type rootFlags struct {
	configPath   string
	settingsPath string
	verbose      bool
}

// newRootCmd builds the command tree. A nil env is created from
// configuration before the first command runs.
func newRootCmd(e *env) *cobra.Command {
	var flags rootFlags
	holder := &envHolder{env: e}

	root := &cobra.Command{
		Use:           "shaderland",
		Short:         "Generate and explore interactive WebGL shaders",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if holder.env != nil {
				return nil
			}
			built, err := buildEnv(cmd.Context(), flags)
			if err != nil {
				return err
			}
			holder.env = built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if holder.env != nil && e == nil {
				holder.env.close()
			}
		},
	}

	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "YAML config file (overrides SHADERLAND_CONFIG)")
	root.PersistentFlags().StringVar(&flags.settingsPath, "settings", "", "settings file (default: user config dir)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newGenerateCmd(holder),
		newGetCmd(holder),
		newRecentCmd(holder),
		newPreviewCmd(holder),
		newSettingsCmd(holder),
	)
	return root
}

// envHolder lets subcommands reach the env built in PersistentPreRunE.
type envHolder struct {
	env *env
}

func buildEnv(ctx context.Context, flags rootFlags) (*env, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if flags.configPath != "" {
		os.Setenv(shared.EnvConfigFile, flags.configPath)
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := shared.NewLogger(cfg.Debug || flags.verbose)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	e := &env{Config: cfg, Logger: logger}
	e.closers = append(e.closers, func() error { _ = logger.Sync(); return nil })

	store, closeStore, err := shared.NewShaderStore(ctx, cfg, logger)
	if err != nil {
		e.close()
		return nil, err
	}
	e.Store = store
	e.closers = append(e.closers, closeStore)

	path := flags.settingsPath
	if path == "" {
		if path, err = settings.DefaultPath(); err != nil {
			e.close()
			return nil, fmt.Errorf("settings path: %w", err)
		}
	}
	e.Settings = settings.NewFileStore(path)
	e.Generator = shared.NewGenerator(cfg, store, logger)
	e.Browser = func(ctx context.Context) (browser, error) {
		b, err := rodsandbox.Launch(ctx, rodsandbox.Options{Logger: logger})
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	return e, nil
}
