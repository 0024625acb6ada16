package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/mock"
)

// ServeOptions configures the mock backend
type ServeOptions struct {
	Host     string
	Port     int
	Database string
	Seed     string // YAML or JSON seed file; empty uses the built-in seed
	Token    string // static bearer token the server also accepts
}

// ServeOptionsFrom reads the mock section of settings
func ServeOptionsFrom(s *config.Settings) ServeOptions {
	return ServeOptions{
		Host:     s.Mock.Host,
		Port:     s.Mock.Port,
		Database: s.Mock.Database,
		Seed:     s.Mock.Seed,
		Token:    s.Mock.Token,
	}
}

// Serve runs the mock backend until ctx is done
func Serve(ctx context.Context, opts ServeOptions, logger *slog.Logger, out io.Writer) error {
	cfg := mock.DefaultConfig()
	if opts.Seed != "" {
		loaded, err := mock.LoadConfig(opts.Seed)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.Host != "" {
		cfg.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.Token != "" {
		cfg.Token = opts.Token
	}

	dbPath := opts.Database
	if dbPath == "" {
		dbPath = config.DatabasePath
	}
	store, err := mock.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Seed(ctx, cfg); err != nil {
		return fmt.Errorf("failed to seed mock database: %w", err)
	}

	srv := mock.NewServer(cfg, store, mock.WithLogger(logger))
	if err := srv.Start(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Mock backend listening on %s (database %s)\n", srv.GetAddress(), dbPath)
	for _, res := range cfg.Resources {
		fmt.Fprintf(out, "  %s  ws /ws/%s\n", res.Path, res.Name())
	}
	fmt.Fprintln(out, "Press Ctrl+C to stop")

	<-ctx.Done()
	logger.Info("stopping mock backend")
	return srv.Stop()
}

// WriteSeed saves the built-in seed to path, as a starting point for a
// custom one
func WriteSeed(path string) error {
	return mock.SaveConfig(mock.DefaultConfig(), path)
}
