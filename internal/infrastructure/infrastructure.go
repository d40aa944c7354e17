// Package infrastructure assembles the process-wide dependencies a claimsync
// front end needs: lifecycle coordination, logging, the claim API client and
// the workflow transition system.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/JaimeStill/claimsync/internal/api"
	"github.com/JaimeStill/claimsync/internal/config"
	"github.com/JaimeStill/claimsync/internal/view"
	"github.com/JaimeStill/claimsync/internal/workflow"
	"github.com/JaimeStill/claimsync/pkg/lifecycle"
)

// Infrastructure holds the systems shared by every claim view.
type Infrastructure struct {
	Config    *config.Config
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	API       *api.Client
	Workflow  workflow.System
}

// New creates an Infrastructure from the application configuration. Logs
// are written to out.
func New(cfg *config.Config, lc *lifecycle.Coordinator, out io.Writer) (*Infrastructure, error) {
	logger := NewLogger(cfg, out)

	client, err := api.New(&cfg.Client, logger)
	if err != nil {
		return nil, fmt.Errorf("api client init failed: %w", err)
	}

	return &Infrastructure{
		Config:    cfg,
		Lifecycle: lc,
		Logger:    logger,
		API:       client,
		Workflow:  workflow.New(client, logger),
	}, nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg *config.Config, out io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// ViewDeps returns the collaborators for opening claim views.
func (i *Infrastructure) ViewDeps() view.Deps {
	return view.Deps{
		Fetcher:  i.API,
		Workflow: i.Workflow,
		Poll:     &i.Config.Sync,
		Logger:   i.Logger,
	}
}
