package cli

import (
	"context"
	"fmt"

	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/keybinds"
	"github.com/studiowebux/tablesync/internal/tui"
)

// TUIOptions configures the terminal UI
type TUIOptions struct {
	Table   string
	NoPush  bool
	Version string
}

// RunTUI starts the terminal UI on a table
func RunTUI(ctx context.Context, env *Env, opts TUIOptions) error {
	registry, err := keybinds.Load(config.ConfigDir)
	if err != nil {
		return fmt.Errorf("failed to load keybindings: %w", err)
	}

	initial := opts.Table
	if initial != "" {
		if _, err := env.Table(initial); err != nil {
			return err
		}
	} else if _, ok := env.Tables.Find(env.Settings.Table); ok {
		initial = env.Settings.Table
	}

	tuiOpts := tui.Options{
		Backend:          env.Client,
		BaseURL:          env.Settings.BaseURL,
		Tables:           env.Tables,
		Initial:          initial,
		SystemDepartment: env.Settings.SystemDepartment,
		Keybinds:         registry,
		Logger:           env.Logger,
		Version:          opts.Version,
	}
	if !opts.NoPush {
		tuiOpts.Dialer = env.Dialer()
	}
	// without a session the menu stays open to everyone, as on a mock
	// backend without accounts
	if env.Auth.IsAuthenticated() {
		tuiOpts.Users = env.Auth
	}

	env.Logger.Info("starting terminal UI", "table", initial, "base_url", env.Settings.BaseURL, "push", !opts.NoPush)
	return tui.Run(ctx, tuiOpts)
}
