package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/studiowebux/tablesync/internal/cli"
	"github.com/studiowebux/tablesync/internal/config"
)

var (
	version = "0.1.0"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tablesync",
	Short: "Live tables over REST and websocket push",
	Long: `tablesync keeps paginated, searchable tables in sync with a backend.

Rows are fetched over REST and replaced whenever the server pushes an update
for the active query. Rows can be edited, deleted and reordered by drag and
drop from the terminal UI or the command line.

Examples:
  tablesync                          # Start the terminal UI on the default table
  tablesync tui line                 # Start on the 'line' table
  tablesync list department -o json  # Print one page as JSON
  tablesync watch department         # Print every pushed update
  tablesync sort department 3 1      # Move row 3 to the top
  tablesync serve                    # Run the local mock backend
  tablesync login                    # Log in and store the session`,
	Version:       version,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, "")
	},
}

var tuiCmd = &cobra.Command{
	Use:   "tui [table]",
	Short: "Start the terminal UI",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table := ""
		if len(args) > 0 {
			table = args[0]
		}
		return runTUI(cmd, table)
	},
}

var listCmd = &cobra.Command{
	Use:   "list [table]",
	Short: "Print one page of a table",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.List(cmd.Context(), env, cli.ListOptions{
			Table:    argOr(args, 0),
			Search:   flagSearch,
			Page:     flagPage,
			PageSize: flagPageSize,
			Output:   env.Settings.Output,
			Query:    flagQuery,
		})
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [table]",
	Short: "Print a table and every update pushed for it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.Watch(cmd.Context(), env, cli.WatchOptions{
			Table:    argOr(args, 0),
			Search:   flagSearch,
			PageSize: flagPageSize,
			Output:   env.Settings.Output,
		})
	},
}

var sortCmd = &cobra.Command{
	Use:   "sort <table> <from> <to>",
	Short: "Move a row to another position and save the order",
	Long: `Move a row to another position and save the order.

Positions are 1-based within the first page of the (optionally searched)
table. Every row on the page gets a new sort key, as after a drag and drop.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[1])
		}
		to, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid position %q", args[2])
		}

		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.Sort(cmd.Context(), env, cli.SortOptions{
			Table:    args[0],
			Search:   flagSearch,
			PageSize: flagPageSize,
			From:     from,
			To:       to,
		})
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mock backend",
	Long: `Run a local backend that serves the tables over REST and websocket push.

Data is kept in a SQLite database and seeded from the built-in seed or a
YAML/JSON seed file on first start.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagWriteSeed != "" {
			if err := config.Initialize(); err != nil {
				return err
			}
			if err := cli.WriteSeed(flagWriteSeed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seed written to %s\n", flagWriteSeed)
			return nil
		}

		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.Serve(cmd.Context(), cli.ServeOptionsFrom(env.Settings), env.Logger, cmd.OutOrStdout())
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.Login(cmd.Context(), env, cli.LoginOptions{
			EmployeeNo: flagUser,
			Password:   flagPassword,
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "End the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.Logout(cmd.Context(), env)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged-in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := newEnv(cmd, false)
		if err != nil {
			return err
		}
		defer env.Close()

		return cli.WhoAmI(cmd.Context(), env)
	},
}

// Global flags
var (
	flagConfig string
)

// Query flags shared by list, watch and sort
var (
	flagSearch   string
	flagPage     int
	flagPageSize int
	flagQuery    string
)

// Flags for tui
var (
	flagNoPush bool
)

// Flags for serve
var (
	flagWriteSeed string
)

// Flags for login
var (
	flagUser     string
	flagPassword string
)

func init() {
	// Global flags, merged into the settings by config.Load
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "Config file (default: ~/.tablesync/config.yaml)")
	pf.String("base-url", "", "Backend base URL")
	pf.String("token", "", "Bearer token (overrides the stored session)")
	pf.String("tables", "", "Table definitions file")
	pf.String("log", "", "Log level (debug/info/warn/error)")
	pf.String("system-department", "", "Department whose admins may manage every table")

	rootCmd.Flags().BoolVar(&flagNoPush, "no-push", false, "Do not subscribe to push updates")
	tuiCmd.Flags().BoolVar(&flagNoPush, "no-push", false, "Do not subscribe to push updates")

	for _, c := range []*cobra.Command{listCmd, watchCmd, sortCmd} {
		c.Flags().StringVarP(&flagSearch, "search", "s", "", "Search text")
		c.Flags().IntVar(&flagPageSize, "page-size", 0, "Rows per page (5, 10, 20 or 50)")
	}
	for _, c := range []*cobra.Command{listCmd, watchCmd} {
		c.Flags().StringP("output", "o", "", "Output format (table/json/yaml)")
	}
	listCmd.Flags().IntVarP(&flagPage, "page", "p", 1, "Page number")
	listCmd.Flags().StringVarP(&flagQuery, "query", "q", "", "JMESPath expression applied to the rows")

	serveCmd.Flags().String("host", "", "Listen host (default: localhost)")
	serveCmd.Flags().Int("port", 0, "Listen port (default: 8000)")
	serveCmd.Flags().String("db", "", "SQLite database (default: ~/.tablesync/mock.db)")
	serveCmd.Flags().String("seed", "", "Seed file (.yaml/.yml/.json)")
	serveCmd.Flags().String("require-token", "", "Static bearer token accepted by the server")
	serveCmd.Flags().StringVar(&flagWriteSeed, "write-seed", "", "Write the built-in seed to a file and exit")

	loginCmd.Flags().StringVarP(&flagUser, "user", "u", "", "Employee number")
	loginCmd.Flags().StringVar(&flagPassword, "password", "", "Password (prompted for when omitted)")

	// Add subcommands
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(sortCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

// newEnv loads settings with the command's flags applied
func newEnv(cmd *cobra.Command, logToFile bool) (*cli.Env, error) {
	env, err := cli.NewEnv(cli.EnvOptions{
		ConfigFile: flagConfig,
		Flags:      cmd.Flags(),
		LogToFile:  logToFile,
	})
	if err != nil {
		return nil, err
	}
	env.Out = cmd.OutOrStdout()
	return env, nil
}

// runTUI starts the interactive TUI
func runTUI(cmd *cobra.Command, table string) error {
	env, err := newEnv(cmd, true)
	if err != nil {
		return err
	}
	defer env.Close()

	return cli.RunTUI(cmd.Context(), env, cli.TUIOptions{
		Table:   table,
		NoPush:  flagNoPush,
		Version: version,
	})
}

func argOr(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
