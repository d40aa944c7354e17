package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/claimsync/internal/activity"
	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/gate"
	"github.com/JaimeStill/claimsync/internal/view"
	"github.com/JaimeStill/claimsync/pkg/pagination"
)

type claimReport struct {
	Claim    *claims.Claim    `json:"claim"`
	Progress []claims.Marker  `json:"progress"`
	Legal    []gate.Action    `json:"legal_actions"`
	Updating bool             `json:"updating"`
	Analysis *claims.Analysis `json:"analysis,omitempty"`
}

func report(s *view.Scope) claimReport {
	r := claimReport{
		Claim:    s.Model().Claim(),
		Progress: s.Progress(),
		Legal:    s.Legal().List(),
		Updating: s.Updating(),
	}
	if r.Claim.Analyzed() {
		analysis, err := r.Claim.Analysis()
		if err != nil {
			analysis = &claims.Analysis{Recommendation: claims.RecommendError, Reasoning: err.Error()}
		}
		r.Analysis = analysis
	}
	return r
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <claim-id>",
		Short:   "Show a claim, its progress and the actions available at its stage",
		GroupID: "claims",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			r := report(s)
			return a.emit(cmd.OutOrStdout(), r, func(w io.Writer) {
				writeClaim(w, r)
			})
		},
	}
}

func writeClaim(w io.Writer, r claimReport) {
	c := r.Claim
	fmt.Fprintf(w, "Claim\t%s\n", c.ID)
	fmt.Fprintf(w, "Country\t%s\n", c.Country)
	fmt.Fprintf(w, "Status\t%s\n", c.Status.Label())
	fmt.Fprintf(w, "Created\t%s\n", formatTime(c.CreatedAt))
	fmt.Fprintf(w, "Updating\t%t\n", r.Updating)
	fmt.Fprintf(w, "Actions\t%s\n", formatActions(r.Legal))
	if c.AnalysisModel != nil {
		fmt.Fprintf(w, "Analysis model\t%s\n", *c.AnalysisModel)
	}
	if a := r.Analysis; a != nil {
		fmt.Fprintf(w, "Recommendation\t%s (%.0f%% confidence)\n", a.Recommendation, a.Confidence*100)
		if a.Reasoning != "" {
			fmt.Fprintf(w, "Reasoning\t%s\n", a.Reasoning)
		}
		if len(a.MissingInfo) > 0 {
			fmt.Fprintf(w, "Missing info\t%s\n", strings.Join(a.MissingInfo, "; "))
		}
	}

	fmt.Fprintln(w)
	for _, m := range r.Progress {
		fmt.Fprintf(w, "%s\t%s\n", markerGlyph(m.State), m.Label)
	}

	if len(c.Documents) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "DOCUMENT\tFILENAME\tOCR\tCLEANED\tANONYMIZED")
	for _, d := range c.Documents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			d.ID, d.Filename,
			textState(d.OriginalText), textState(d.CleanedText), textState(d.AnonymizedText),
		)
	}
}

func (a *app) listCmd() *cobra.Command {
	var (
		page   pagination.PageRequest
		status string
		all    bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List claims, optionally filtered by status",
		GroupID: "claims",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var filter *claims.Stage
			if status != "" {
				st := claims.Stage(strings.ToUpper(status))
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", status)
				}
				filter = &st
			}

			page.Normalize(a.infra.Config.Pagination)
			items, err := a.listClaims(cmd.Context(), page, filter, all)
			if err != nil {
				return err
			}

			return a.emit(cmd.OutOrStdout(), items, func(w io.Writer) {
				fmt.Fprintln(w, "ID\tCOUNTRY\tSTATUS\tDOCUMENTS\tCREATED")
				for _, c := range items {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
						c.ID, c.Country, c.Status, c.DocumentCount, formatTime(c.CreatedAt),
					)
				}
			})
		},
	}

	cmd.Flags().IntVar(&page.Skip, "skip", 0, "number of claims to skip")
	cmd.Flags().IntVar(&page.Limit, "limit", 0, "page size (configured default when 0)")
	cmd.Flags().StringVar(&status, "status", "", "only list claims at this status")
	cmd.Flags().BoolVar(&all, "all", false, "follow pages until the list is exhausted")
	return cmd
}

func (a *app) listClaims(
	ctx context.Context,
	page pagination.PageRequest,
	filter *claims.Stage,
	all bool,
) ([]claims.Summary, error) {
	var items []claims.Summary
	for {
		result, err := a.infra.API.ListClaims(ctx, page, filter)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)

		next, ok := result.Next()
		if !all || !ok {
			return items, nil
		}
		page = next
	}
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "watch <claim-id>...",
		Short:   "Follow claims until their background processing settles",
		GroupID: "claims",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := &lockedWriter{w: cmd.OutOrStdout()}
			g, ctx := errgroup.WithContext(cmd.Context())
			for _, arg := range args {
				g.Go(func() error {
					return a.watch(ctx, arg, out)
				})
			}
			return g.Wait()
		},
	}
}

// watch prints every stage change of one claim and returns once polling
// stops or ctx is done.
func (a *app) watch(ctx context.Context, arg string, out io.Writer) error {
	s, err := a.open(ctx, arg)
	if err != nil {
		return err
	}
	defer s.Close()

	var last claims.Stage
	changed := make(chan claims.Stage, 8)
	unsubscribe := s.Model().Subscribe(func(snap claims.Snapshot) {
		select {
		case changed <- snap.Claim.Status:
		default:
		}
	})
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		s.Poller().Wait()
		close(done)
	}()

	emitStage := func(st claims.Stage) {
		if st == last {
			return
		}
		fmt.Fprintf(out, "claim %s\t%s\n", s.ID(), st)
		last = st
	}
	emitStage(s.Stage())

	for {
		select {
		case st := <-changed:
			emitStage(st)
		case <-done:
			emitStage(s.Stage())
			return nil
		case <-ctx.Done():
			return nil
		}
	}
}

func (a *app) activityCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "activity <claim-id>",
		Short:   "Show the claim's audit timeline",
		GroupID: "claims",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := s.Activity(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), entries, func(w io.Writer) {
				writeActivity(w, entries)
			})
		},
	}
}

func writeActivity(w io.Writer, entries []activity.Entry) {
	fmt.Fprintln(w, "WHEN\tACTOR\tEVENT")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.When, e.Actor, e.Label)
		for _, c := range e.Changes {
			fmt.Fprintf(w, "\t\t  %s: %s\n", c.Key, c.Value)
		}
	}
}

func (a *app) promptsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "prompts",
		Short:   "List the analysis prompt templates",
		GroupID: "claims",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := a.infra.API.Prompts(cmd.Context())
			if err != nil {
				return err
			}
			return a.emit(cmd.OutOrStdout(), list, func(w io.Writer) {
				writePrompts(w, list)
			})
		},
	}
}

func writePrompts(w io.Writer, list *api.PromptList) {
	fmt.Fprintln(w, "ID\tNAME\tMODEL\tDEFAULT")
	for _, p := range list.Prompts {
		def := ""
		if p.ID == list.Default {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.LLMModel, def)
	}
}
