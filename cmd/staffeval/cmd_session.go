package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spboyer/staffeval/internal/interview"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newSessionCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create and inspect interview sessions",
	}
	cmd.AddCommand(newSessionCreateCommand(opts))
	cmd.AddCommand(newSessionShowCommand(opts))
	cmd.AddCommand(newSessionListCommand(opts))
	return cmd
}

func newSessionCreateCommand(opts *rootOptions) *cobra.Command {
	var req interview.CreateRequest
	var briefingPath string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a session in status briefing",
		Long: `Create a session in status briefing.

The briefing file is YAML with optional duties, knowledge, prompts, language
and system_prompt keys:

  duties:
    - Summarize the weekly status meeting
  knowledge:
    - title: Style guide
      content: |
        Keep summaries under 200 words.
  language: en`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if briefingPath != "" {
				data, err := os.ReadFile(briefingPath)
				if err != nil {
					return fmt.Errorf("reading briefing: %w", err)
				}
				if err := yaml.Unmarshal(data, &req.BriefingData); err != nil {
					return fmt.Errorf("parsing briefing %s: %w", briefingPath, err)
				}
			}

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			sess, err := a.svc.CreateSession(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), sess.ID) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Session id (generated when empty)")
	cmd.Flags().StringVar(&req.Role, "role", "", "Role identifier")
	cmd.Flags().StringVar(&req.CandidateModel, "candidate", "", "Candidate model id")
	cmd.Flags().StringVar(&briefingPath, "briefing", "", "Path to a YAML briefing file")
	cmd.Flags().IntVar(&req.BriefingTokenCount, "briefing-tokens", 0, "Token count of the briefing")
	_ = cmd.MarkFlagRequired("role")
	_ = cmd.MarkFlagRequired("candidate")
	return cmd
}

func newSessionShowCommand(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one session with its steps and verdict",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			sess, err := a.svc.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(sess)
			}
			printSession(cmd.OutOrStdout(), sess)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full session record as JSON")
	return cmd
}

func newSessionListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			sessions, err := a.svc.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			t := newTable("ID", "ROLE", "CANDIDATE", "STATUS", "STEPS", "DECISION", "UPDATED")
			for _, s := range sessions {
				steps, decision := "-", "-"
				if s.TestResults != nil {
					steps = fmt.Sprintf("%d/%d", s.TestResults.CompletedSteps, s.TestResults.TotalSteps)
				}
				if s.Verdict != nil {
					decision = string(s.Verdict.AutoDecision)
				}
				if s.FinalDecision != nil {
					decision = string(*s.FinalDecision) + " (confirmed)"
				}
				t.add(s.ID, s.Role, s.CandidateModel, string(s.Status), steps, decision, s.UpdatedAt.Format(time.DateTime))
			}
			t.render(cmd.OutOrStdout())
			return nil
		},
	}
}

func printSession(w io.Writer, s *models.InterviewSession) {
	p := func(format string, args ...any) {
		fmt.Fprintf(w, format, args...) //nolint:errcheck
	}

	p("Session:   %s\n", s.ID)
	p("Role:      %s\n", s.Role)
	p("Candidate: %s\n", s.CandidateModel)
	p("Status:    %s\n", s.Status)

	if s.TestResults != nil {
		p("\nSteps (%d/%d completed)\n", s.TestResults.CompletedSteps, s.TestResults.TotalSteps)
		t := newTable("#", "TYPE", "COMPETENCY", "STATUS", "TOKENS", "ELAPSED", "PROMPT")
		for _, st := range s.TestResults.Steps {
			t.add(
				strconv.Itoa(st.StepIndex),
				st.TaskType,
				st.Competency,
				string(st.Status),
				strconv.Itoa(st.TokenCount),
				formatDuration(time.Duration(st.ElapsedMs)*time.Millisecond),
				truncate(st.TaskPrompt, 48),
			)
		}
		t.render(w)
	}

	if n := len(s.Config.DeepAnalysis); n > 0 {
		p("\nDeep analysis runs: %d\n", n)
		for _, run := range s.Config.DeepAnalysis {
			p("  step %d: %s (%d/%d variants)\n", run.StepIndex, run.Source, run.Successful, len(run.Variants))
		}
	}

	if v := s.Verdict; v != nil {
		p("\nVerdict:   %s (%s)\n", v.AutoDecision, v.DecisionReason)
		p("Score:     %.2f\n", v.Thresholds.CandidateScore)
		p("Arbiter:   %s, confidence %.2f\n", arbiterName(v.Arbiter), v.Arbiter.Confidence)
		if v.OverrideNote != "" {
			p("Note:      %s\n", v.OverrideNote)
		}
		if v.ModeratorSummary != "" {
			p("Summary:   %s\n", v.ModeratorSummary)
		}
	}
	if s.FinalDecision != nil {
		by := ""
		if s.DecidedBy != nil {
			by = " by " + *s.DecidedBy
		}
		p("Decided:   %s%s\n", *s.FinalDecision, by)
	}
}

func arbiterName(r models.ArbiterResult) string {
	if r.Synthetic {
		return "synthetic (no evaluator answered)"
	}
	return r.Model
}

// formatDuration formats a duration in a consistent, human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(100 * time.Millisecond).String()
}
