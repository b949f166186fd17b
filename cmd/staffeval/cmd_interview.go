package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spboyer/staffeval/internal/interview"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newInterviewCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Run the test and verdict phases locally",
	}
	cmd.AddCommand(newInterviewTestCommand(opts))
	cmd.AddCommand(newInterviewVerdictCommand(opts))
	return cmd
}

func newInterviewTestCommand(opts *rootOptions) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "test <id>",
		Short: "Generate tasks and run them against the candidate",
		Long: `Generate tasks and run them against the candidate.

Interrupting with Ctrl-C stops after the step in flight; remaining steps are
skipped and the partial results are saved.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := a.svc.RunTest(ctx, args[0], progressPrinter(cmd.OutOrStdout(), verbose))
			if err != nil {
				return err
			}
			if results.CompletedSteps == 0 {
				return fmt.Errorf("session %s: no step completed, status stays %s", args[0], models.SessionBriefing)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print streaming progress")
	return cmd
}

func newInterviewVerdictCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "verdict <id>",
		Short: "Score a tested session and compute the automatic decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			v, err := a.svc.Verdict(cmd.Context(), args[0], progressPrinter(cmd.OutOrStdout(), false))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Reason: %s\n", v.DecisionReason) //nolint:errcheck
			if v.OverrideNote != "" {
				fmt.Fprintf(out, "Note: %s\n", v.OverrideNote) //nolint:errcheck
			}
			if v.ModeratorSummary != "" {
				fmt.Fprintf(out, "Summary: %s\n", v.ModeratorSummary) //nolint:errcheck
			}
			if v.AutoDecision == models.DecisionReject {
				return &RejectedError{SessionID: args[0]}
			}
			return nil
		},
	}
}

func newDeepAnalysisCommand(opts *rootOptions) *cobra.Command {
	var step int
	var configsPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "deep-analysis <id>",
		Short: "Re-run one step with several configurations and merge the answers",
		Long: `Re-run one step with several configurations and merge the answers.

Without --configs the precise, balanced, creative and devils_advocate
variants are used. A configs file is a YAML list:

  - label: cold
    generation: {max_tokens: 1024, temperature: 0.2, idle_timeout_ms: 30000}
  - label: critic
    adversarial: true
    system_prompt: Find every flaw in the answer.
    generation: {max_tokens: 1024, temperature: 0.7, idle_timeout_ms: 30000}`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := interview.DeepAnalysisRequest{StepIndex: &step}
			if configsPath != "" {
				configs, err := loadVariantConfigs(configsPath)
				if err != nil {
					return err
				}
				req.Configs = configs
			}

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			run, err := a.svc.DeepAnalysis(cmd.Context(), args[0], req, progressPrinter(cmd.OutOrStdout(), verbose))
			if err != nil {
				return err
			}
			if run.FinalText != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "\n%s\n", run.FinalText) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&step, "step", 0, "Step index to analyse")
	cmd.Flags().StringVar(&configsPath, "configs", "", "YAML file with variant configurations")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print streaming progress")
	_ = cmd.MarkFlagRequired("step")
	return cmd
}

// loadVariantConfigs reads a YAML list of variant configurations.
func loadVariantConfigs(path string) ([]models.VariantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading configs: %w", err)
	}
	var raw []map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing configs %s: %w", path, err)
	}
	var configs []models.VariantConfig
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &configs,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, fmt.Errorf("decoding configs %s: %w", path, err)
	}
	return configs, nil
}
