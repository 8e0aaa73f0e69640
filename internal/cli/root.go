package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harun/deepagent/internal/config"
	"github.com/harun/deepagent/internal/logger"
)

const version = "0.1.0"

type rootOptions struct {
	cfgFile  string
	logLevel string
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "deepagent",
		Short: "deepagent - plan, execute and evaluate answers with an LLM",
		Long: `deepagent answers a query by planning steps, executing them one by one,
synthesizing the results and scoring the answer, re-planning until the score
is good enough or the iteration limit is reached.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.deepagent/deepagent.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newServeCmd(opts),
		newAskCmd(opts),
		newConfigCmd(opts),
	)

	return rootCmd
}

// Execute runs the command tree. It is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

// loadConfig loads and validates the config, applying --log-level when given
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return nil, err
	}

	if flag := cmd.Flags().Lookup("log-level"); flag != nil && flag.Changed {
		cfg.Logging.Level = o.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// configPath resolves the path the loader reads from
func (o *rootOptions) configPath() string {
	return config.NewLoader(o.cfgFile).GetConfigPath()
}

func newLogger(cfg *config.Config, out io.Writer) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Output:    out,
	})
}
