package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/claimsync/internal/view"
	"github.com/JaimeStill/claimsync/internal/workflow"
)

type actionDef struct {
	use   string
	short string
	do    view.Action
}

var actionDefs = []actionDef{
	{
		use:   "approve-ocr",
		short: "Approve the OCR text and start cleaning",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.ApproveOCR(ctx, s)
		},
	},
	{
		use:   "approve-anon",
		short: "Approve the anonymized text and make the claim ready for analysis",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.ApproveAnonymization(ctx, s)
		},
	},
	{
		use:   "preview-cleaning",
		short: "Show what cleaning would do to the OCR text without saving",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.PreviewCleaning(ctx, s)
		},
	},
	{
		use:   "retry",
		short: "Re-queue stuck cleaning or anonymization jobs",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.RetryAnonymization(ctx, s)
		},
	},
	{
		use:   "re-clean",
		short: "Discard cleaned and anonymized text and restart cleaning",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.ReClean(ctx, s)
		},
	},
	{
		use:   "reset",
		short: "Return an analyzing, analyzed or failed claim to ready for analysis",
		do: func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
			return w.ResetStatus(ctx, s)
		},
	},
}

type actionReport struct {
	Receipt *workflow.Receipt `json:"receipt"`
	Claim   *claimReport      `json:"claim,omitempty"`
}

func (a *app) actionCmd(def actionDef) *cobra.Command {
	return &cobra.Command{
		Use:     def.use + " <claim-id>",
		Short:   def.short,
		GroupID: "actions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.act(cmd, args[0], def.do)
		},
	}
}

func (a *app) analyzeCmd() *cobra.Command {
	var promptID string

	cmd := &cobra.Command{
		Use:     "analyze <claim-id>",
		Short:   "Start AI analysis with a prompt template",
		GroupID: "actions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.act(cmd, args[0], func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
				return w.StartAnalysis(ctx, s, promptID)
			})
		},
	}

	cmd.Flags().StringVar(&promptID, "prompt", workflow.DefaultPromptID, "analysis prompt template id")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	var confirmed bool

	cmd := &cobra.Command{
		Use:     "delete <claim-id>",
		Short:   "Delete a claim and its documents",
		GroupID: "actions",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to delete claim %s without --yes", args[0])
			}
			return a.act(cmd, args[0], func(ctx context.Context, w workflow.System, s workflow.Subject) (*workflow.Receipt, error) {
				return w.DeleteClaim(ctx, s)
			})
		},
	}

	cmd.Flags().BoolVar(&confirmed, "yes", false, "confirm the deletion")
	return cmd
}

// act opens the claim, runs the operation through its scope and reports
// the receipt along with the stage the server moved the claim to.
func (a *app) act(cmd *cobra.Command, arg string, do view.Action) error {
	s, err := a.open(cmd.Context(), arg)
	if err != nil {
		return err
	}

	receipt, err := s.Do(cmd.Context(), do)
	if err != nil {
		return err
	}

	out := actionReport{Receipt: receipt}
	if !s.Deleted() {
		r := report(s)
		out.Claim = &r
	}

	return a.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
		writeReceipt(w, receipt)
		if out.Claim != nil {
			fmt.Fprintf(w, "Status\t%s\n", out.Claim.Claim.Status.Label())
			fmt.Fprintf(w, "Actions\t%s\n", formatActions(out.Claim.Legal))
		}
	})
}

func writeReceipt(w io.Writer, r *workflow.Receipt) {
	fmt.Fprintf(w, "Operation\t%s\n", r.Operation)
	fmt.Fprintf(w, "Claim\t%s\n", r.ClaimID)
	if r.Message != "" {
		fmt.Fprintf(w, "Message\t%s\n", r.Message)
	}

	if r.Retry != nil {
		fmt.Fprintf(w, "Re-queued\t%d\n", r.Retry.Count)
	}
	if r.Reset != nil {
		fmt.Fprintf(w, "Reset\t%s -> %s\n", r.Reset.OldStatus, r.Reset.NewStatus)
	}
	if r.Preview != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "DOCUMENT\tFILENAME\tORIGINAL\tCLEANED\tREDUCTION")
		for _, d := range r.Preview.Documents {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\n",
				d.ID, d.Filename, d.Stats.OriginalLength, d.Stats.CleanedLength, d.Stats.ReductionPercent,
			)
		}
	}
}
