package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/spf13/pflag"

	"github.com/studiowebux/tablesync/internal/api"
	"github.com/studiowebux/tablesync/internal/auth"
	"github.com/studiowebux/tablesync/internal/channel"
	"github.com/studiowebux/tablesync/internal/config"
	"github.com/studiowebux/tablesync/internal/logging"
)

// Env holds what the commands share: settings, table definitions, the
// session and the API client
type Env struct {
	Settings *config.Settings
	Tables   *config.Tables
	Auth     *auth.Service
	Client   *api.Client
	Logger   *slog.Logger
	Out      io.Writer

	closer io.Closer
}

// EnvOptions controls NewEnv
type EnvOptions struct {
	ConfigFile string
	Flags      *pflag.FlagSet

	// LogToFile sends logs to the rotating log file instead of stderr.
	// Set for the terminal UI, which owns the screen.
	LogToFile bool
}

// NewEnv initializes the config directory, loads settings and tables and
// restores the stored session
func NewEnv(opts EnvOptions) (*Env, error) {
	if err := config.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize config: %w", err)
	}

	settings, err := config.Load(opts.ConfigFile, opts.Flags)
	if err != nil {
		return nil, err
	}

	logOpts := logging.Options{Level: settings.LogLevel}
	if opts.LogToFile {
		logOpts.File = config.LogFile
	}
	logger, closer := logging.New(logOpts)
	slog.SetDefault(logger)

	tables, err := config.LoadTables(settings.TablesFile)
	if err != nil {
		closer.Close()
		return nil, err
	}

	svc := auth.NewService(settings.BaseURL, config.SessionFile, auth.WithLogger(logger))
	if err := svc.Load(); err != nil {
		logger.Warn("ignoring stored session", "error", err)
	}
	if settings.Token != "" {
		svc.UseToken(settings.Token)
	}

	env := &Env{
		Settings: settings,
		Tables:   tables,
		Auth:     svc,
		Logger:   logger,
		Out:      os.Stdout,
		closer:   closer,
	}
	env.Client = env.newClient()
	return env, nil
}

// newClient attaches the bearer token when a session exists
func (e *Env) newClient() *api.Client {
	base := &http.Client{Timeout: e.Settings.RequestTimeout}
	opts := []api.Option{api.WithLogger(e.Logger)}

	if e.Auth != nil && e.Auth.Token() != "" {
		opts = append(opts,
			api.WithHTTPClient(e.Auth.HTTPClient(context.Background(), base)),
			api.WithRefresher(e.Auth))
	} else {
		opts = append(opts, api.WithHTTPClient(base))
	}
	return api.New(e.Settings.BaseURL, opts...)
}

// Close releases the log file
func (e *Env) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer.Close()
}

// Table looks a table definition up by name
func (e *Env) Table(name string) (config.TableDef, error) {
	if name == "" {
		name = e.Settings.Table
	}
	def, ok := e.Tables.Find(name)
	if !ok {
		return config.TableDef{}, fmt.Errorf("unknown table %q (available: %v)", name, e.Tables.Names())
	}
	return def, nil
}

// Reconnect returns the push reconnect policy, or nil when disabled
func (e *Env) Reconnect() *channel.ReconnectPolicy {
	rc := e.Settings.Reconnect
	if !rc.Enabled {
		return nil
	}
	p := channel.DefaultReconnect()
	if rc.Initial > 0 {
		p.Initial = rc.Initial
	}
	if rc.Max > 0 {
		p.Max = rc.Max
	}
	p.MaxAttempts = rc.MaxAttempts
	return &p
}

// channelOptions are shared by the UI dialer and watch
func (e *Env) channelOptions() []channel.Option {
	opts := []channel.Option{channel.WithLogger(e.Logger)}
	if p := e.Reconnect(); p != nil {
		opts = append(opts, channel.WithReconnect(*p))
	}
	return opts
}

// Dialer opens push channels with the session token
func (e *Env) Dialer() channel.Dialer {
	return channel.NewDialer(e.token, e.channelOptions()...)
}

func (e *Env) token() string {
	if e.Auth == nil {
		return ""
	}
	return e.Auth.Token()
}
