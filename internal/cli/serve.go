package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harun/deepagent/internal/daemon"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket gateway",
		Long: `Run the gateway in the foreground. Sessions are served on /api/agent/*,
metrics on /metrics. Loop settings are reloaded when the config file changes.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Close()

			d, err := daemon.New(cfg, opts.configPath(), log)
			if err != nil {
				return err
			}

			if err := d.Start(); err != nil {
				return err
			}

			return d.Wait()
		},
	}
}
