package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/deepagent/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration with secrets masked",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := root.loadConfig(cmd)
				if err != nil {
					return err
				}

				data, err := yaml.Marshal(cfg.Redacted())
				if err != nil {
					return fmt.Errorf("failed to encode config: %w", err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", root.configPath())
				_, err = cmd.OutOrStdout().Write(data)
				return err
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Validate the configuration and list warnings",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, err := root.loadConfig(cmd)
				if err != nil {
					return err
				}

				warnings := config.NewValidator().ValidateConfig(cfg)
				for _, w := range warnings {
					fmt.Fprintf(cmd.OutOrStdout(), "warning: %v\n", w)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "config ok (%d warnings)\n", len(warnings))
				return nil
			},
		},
	)

	return cmd
}
