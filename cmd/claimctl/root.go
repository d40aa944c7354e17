package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/claimsync/internal/claims"
	"github.com/JaimeStill/claimsync/internal/config"
	"github.com/JaimeStill/claimsync/internal/infrastructure"
	"github.com/JaimeStill/claimsync/internal/view"
	"github.com/JaimeStill/claimsync/internal/workflow"
	"github.com/JaimeStill/claimsync/pkg/lifecycle"
)

const shutdownTimeout = 5 * time.Second

type app struct {
	configFile string
	jsonOutput bool
	infra      *infrastructure.Infrastructure
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)

	if a.infra != nil {
		if serr := a.infra.Lifecycle.Shutdown(shutdownTimeout); serr != nil {
			a.infra.Logger.Error("shutdown failed", "error", serr)
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", workflow.Message(err))
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:               "claimctl",
		Short:             "Follow and advance claims through the document review pipeline",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", config.BaseConfigFile, "base configuration file")
	root.PersistentFlags().BoolVar(&a.jsonOutput, "json", false, "print results as JSON")

	root.AddGroup(
		&cobra.Group{ID: "claims", Title: "Claim Commands:"},
		&cobra.Group{ID: "review", Title: "Review Commands:"},
		&cobra.Group{ID: "actions", Title: "Workflow Actions:"},
	)

	root.AddCommand(
		a.showCmd(),
		a.listCmd(),
		a.watchCmd(),
		a.activityCmd(),
		a.promptsCmd(),
		a.editCmd(claims.ReviewOCR),
		a.editCmd(claims.ReviewAnonymization),
		a.analyzeCmd(),
		a.deleteCmd(),
	)
	for _, def := range actionDefs {
		root.AddCommand(a.actionCmd(def))
	}

	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFile(a.configFile)
	if err != nil {
		return err
	}

	infra, err := infrastructure.New(cfg, lifecycle.New(cmd.Context()), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.infra = infra
	return nil
}

// open fetches the claim named by arg into a view scope that is closed on
// shutdown.
func (a *app) open(ctx context.Context, arg string) (*view.Scope, error) {
	id, err := claims.ParseID(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid claim id %q: %w", arg, err)
	}

	s, err := view.Open(ctx, a.infra.ViewDeps(), id)
	if err != nil {
		return nil, err
	}
	a.infra.Lifecycle.OnClose(s.Close)
	return s, nil
}
