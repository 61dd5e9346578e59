// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scrollstate/internal/config"
	"github.com/xkilldash9x/scrollstate/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// flagBindings maps config keys to the command line flags that override them.
// Flags are looked up on the command being run, so each subcommand only binds
// the ones it defines.
var flagBindings = map[string]string{
	"logger.level":                   "log-level",
	"scrolling.layer_representation": "representation",
	"scrolling.serialized_handoff":   "serialized",
	"scrolling.dump_behavior":        "dump",
	"metrics.enabled":                "metrics",
	"metrics.listen_addr":            "metrics-addr",
}

// newRootCmd builds the command tree. A fresh tree is built per execution so no
// flag state leaks between runs.
func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "scrollstate",
		Short:         "Scrolling state tree tooling: scenario replay and layer mapping.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(cmd, v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}

			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "scrollstate"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			observability.InitializeLogger(cfg.Logger())
			if err := observability.SetLevel(cfg.Logger().Level); err != nil {
				return fmt.Errorf("invalid log level: %w", err)
			}
			observability.GetLogger().Debug("Starting scrollstate.", zap.String("version", Version))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.PersistentFlags().String("log-level", "", "override logger.level")
	root.SetVersionTemplate("{{.Name}} version {{.Version}}\n")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newLayersCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the CLI with ctx, which should be cancelled on interrupt.
func Execute(ctx context.Context, args ...string) error {
	root := newRootCmd()
	if args != nil {
		root.SetArgs(args)
	}
	err := root.ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed.", zap.Error(err))
	}
	observability.Sync()
	return err
}

// initializeConfig layers the config file, SCROLLSTATE_* environment variables
// and the flags of cmd onto v. A missing default config file is not an error.
func initializeConfig(cmd *cobra.Command, v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("SCROLLSTATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	for key, name := range flagBindings {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// configFromContext returns the configuration stored by the root command.
func configFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}
