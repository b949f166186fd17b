package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spboyer/staffeval/internal/interview"
	"github.com/spboyer/staffeval/internal/models"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// promptConfirm is a test hook for replacing the confirmation prompt in tests.
// Takes reader, writer, and question string. Returns true for yes.
var promptConfirm = defaultPromptConfirm

func defaultPromptConfirm(in io.Reader, out io.Writer, question string) bool {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return false
	}

	var confirmed bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(question).
				Affirmative("Yes").
				Negative("No").
				Value(&confirmed),
		),
	).WithInput(in).WithOutput(out).Run()

	if err != nil {
		return false
	}
	return confirmed
}

var errNotConfirmed = errors.New("decision not confirmed (pass --yes to skip the prompt)")

func newDecideCommand(opts *rootOptions) *cobra.Command {
	var req interview.DecisionRequest
	var yes bool

	cmd := &cobra.Command{
		Use:   "decide <id>",
		Short: "Record the human decision for a verdict",
		Long: `Record the human decision for a verdict.

The decision may differ from the automatic one. Confirmed hires close the
role's current assignment and open a new one for the candidate.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := models.ParseDecision(req.Decision)
			if err != nil {
				return err
			}

			a, err := openApp(opts, true)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			sess, err := a.svc.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !yes {
				question := fmt.Sprintf("Record %s for %s as %s?", decision, sess.CandidateModel, sess.Role)
				if sess.Verdict != nil && sess.Verdict.AutoDecision != decision {
					question = fmt.Sprintf("The verdict was %s. Record %s for %s as %s anyway?",
						sess.Verdict.AutoDecision, decision, sess.CandidateModel, sess.Role)
				}
				if !promptConfirm(cmd.InOrStdin(), cmd.OutOrStdout(), question) {
					return errNotConfirmed
				}
			}

			sess, err = a.svc.Decide(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s confirmed by %s\n", sess.ID, decision, req.DecidedBy) //nolint:errcheck
			if decision == models.DecisionReject {
				return &RejectedError{SessionID: sess.ID}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Decision, "decision", "", "hire, reject or retest")
	cmd.Flags().StringVar(&req.DecidedBy, "by", "", "Who made the decision")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	_ = cmd.MarkFlagRequired("decision")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}
