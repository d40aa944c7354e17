package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/claimsync/internal/claims"
)

type editReport struct {
	ClaimID   claims.ID   `json:"claim_id"`
	Kind      string      `json:"kind"`
	Saved     []claims.ID `json:"saved"`
	Approved  bool        `json:"approved"`
	Status    string      `json:"status"`
	Unchanged bool        `json:"unchanged,omitempty"`
}

func (a *app) editCmd(kind claims.ReviewKind) *cobra.Command {
	var (
		texts   map[string]string
		files   map[string]string
		approve bool
	)

	use := "edit-ocr"
	short := "Correct OCR text of a claim in OCR review"
	if kind == claims.ReviewAnonymization {
		use = "edit-anon"
		short = "Correct anonymized text of a claim in anonymization review"
	}

	cmd := &cobra.Command{
		Use:     use + " <claim-id>",
		Short:   short,
		GroupID: "review",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			edits, err := collectEdits(texts, files)
			if err != nil {
				return err
			}

			s, err := a.open(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			session, err := s.Review(cmd.Context(), kind)
			if err != nil {
				return err
			}
			defer s.LeaveReview()

			for _, doc := range slices.Sorted(maps.Keys(edits)) {
				if err := session.SetText(doc, edits[doc]); err != nil {
					return err
				}
			}

			out := editReport{ClaimID: s.ID(), Kind: string(kind)}
			out.Saved = slices.Sorted(maps.Keys(session.Pending()))

			switch {
			case approve:
				if err := session.Approve(cmd.Context()); err != nil {
					return err
				}
				out.Approved = true
			case session.Dirty():
				if err := session.SaveAll(cmd.Context()); err != nil {
					return err
				}
			default:
				out.Unchanged = true
			}

			if _, err := s.Refresh(cmd.Context()); err != nil {
				a.infra.Logger.Warn("refresh after edit failed", "claim_id", s.ID(), "error", err)
			}
			out.Status = s.Stage().Label()

			return a.emit(cmd.OutOrStdout(), out, func(w io.Writer) {
				writeEdit(w, out)
			})
		},
	}

	cmd.Flags().StringToStringVar(&texts, "set", nil, "replacement text per document, as <document-id>=<text>")
	cmd.Flags().StringToStringVar(&files, "from", nil, "replacement text per document read from a file, as <document-id>=<path>")
	cmd.Flags().BoolVar(&approve, "approve", false, "approve the review stage after saving")
	return cmd
}

func collectEdits(texts, files map[string]string) (map[claims.ID]string, error) {
	edits := make(map[claims.ID]string, len(texts)+len(files))

	for key, text := range texts {
		doc, err := claims.ParseID(key)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", key, err)
		}
		edits[doc] = text
	}

	for key, path := range files {
		doc, err := claims.ParseID(key)
		if err != nil {
			return nil, fmt.Errorf("invalid document id %q: %w", key, err)
		}
		if _, dup := edits[doc]; dup {
			return nil, fmt.Errorf("document %s given by both --set and --from", doc)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read replacement text: %w", err)
		}
		edits[doc] = string(data)
	}

	return edits, nil
}

func writeEdit(w io.Writer, r editReport) {
	fmt.Fprintf(w, "Claim\t%s\n", r.ClaimID)
	if r.Unchanged {
		fmt.Fprintln(w, "Edits\tnone, text matches the server")
	} else {
		fmt.Fprintf(w, "Saved\t%d document(s)\n", len(r.Saved))
	}
	if r.Approved {
		fmt.Fprintln(w, "Approved\ttrue")
	}
	fmt.Fprintf(w, "Status\t%s\n", r.Status)
}
