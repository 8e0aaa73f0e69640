package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harun/deepagent/internal/daemon"
	"github.com/harun/deepagent/pkg/agent"
	"github.com/harun/deepagent/pkg/planner"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

type askOptions struct {
	format string
	trace  bool
}

// askOutput is what json and yaml formats print
type askOutput struct {
	Result *agent.Response `json:"result" yaml:"result"`
	States []planner.State `json:"states,omitempty" yaml:"states,omitempty"`
}

func newAskCmd(root *rootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Answer one query and print the result",
		Long: `Run a single session for the query and print the answer. Logs go to
stderr so that json and yaml output can be piped.`,
		Example: `  deepagent ask "What is quantum computing?"
  deepagent ask --format json --trace "Explain REST APIs"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch opts.format {
			case formatText, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown format %q (want text, json or yaml)", opts.format)
			}

			cfg, err := root.loadConfig(cmd)
			if err != nil {
				return err
			}

			log, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer log.Close()

			runner, err := daemon.BuildRunner(cfg, log.GetZerolog())
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			out := askOutput{}
			if opts.trace {
				out.Result, out.States, err = runner.RunWithTrace(cmd.Context(), query)
			} else {
				out.Result, err = runner.Run(cmd.Context(), query)
			}
			if err != nil {
				return err
			}

			return writeAskOutput(cmd.OutOrStdout(), opts.format, out)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", formatText, "output format (text, json, yaml)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "include every intermediate state")

	return cmd
}

func writeAskOutput(w io.Writer, format string, out askOutput) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeAskText(w, out)
	}
}

func writeAskText(w io.Writer, out askOutput) error {
	var b strings.Builder
	resp := out.Result

	if len(out.States) > 0 {
		b.WriteString("Trace:\n")
		for i, s := range out.States {
			fmt.Fprintf(&b, "  %2d. next=%-8s iteration=%d step=%d/%d score=%.2f\n",
				i, s.NextAction, s.IterationCount, len(s.History), len(s.Plan), s.QualityScore)
		}
		b.WriteString("\n")
	}

	b.WriteString("Plan:\n")
	for i, step := range resp.PlanSteps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}

	b.WriteString("\nAnswer:\n")
	b.WriteString(resp.FinalAnswer)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Session: %s\n", resp.SessionID)
	fmt.Fprintf(&b, "Quality score: %.2f | Iterations: %d | Stop: %s | Duration: %dms\n",
		resp.QualityScore, resp.Iterations, resp.StopReason, resp.DurationMs)

	_, err := io.WriteString(w, b.String())
	return err
}
