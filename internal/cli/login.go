package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/studiowebux/tablesync/internal/auth"
	"github.com/studiowebux/tablesync/internal/types"
)

// LoginOptions carries credentials given on the command line. Missing ones
// are prompted for when stdin is a terminal.
type LoginOptions struct {
	EmployeeNo string
	Password   string
}

// Login exchanges credentials for a token and stores the session
func Login(ctx context.Context, env *Env, opts LoginOptions) error {
	employeeNo, password := opts.EmployeeNo, opts.Password
	if employeeNo == "" || password == "" {
		if !isInteractive() {
			return errors.New("missing credentials (non-interactive mode): use --user and --password")
		}
		var err error
		employeeNo, password, err = promptCredentials(employeeNo)
		if err != nil {
			return err
		}
	}

	if err := env.Auth.Login(ctx, employeeNo, password); err != nil {
		return err
	}

	user, _ := env.Auth.CurrentUser()
	fmt.Fprintf(env.Out, "Logged in as %s\n", describeUser(user))
	return nil
}

// Logout ends the session on the server and removes it locally
func Logout(ctx context.Context, env *Env) error {
	if env.Auth.Token() == "" {
		fmt.Fprintln(env.Out, "Not logged in")
		return nil
	}
	if err := env.Auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(env.Out, "Logged out")
	return nil
}

// WhoAmI re-reads the current user from the server
func WhoAmI(ctx context.Context, env *Env) error {
	user, err := env.Auth.Me(ctx)
	if errors.Is(err, auth.ErrNotAuthenticated) {
		return errors.New("not logged in: run 'tablesync login'")
	}
	if err != nil {
		return fmt.Errorf("failed to read current user: %w", err)
	}
	fmt.Fprintln(env.Out, describeUser(user))
	return nil
}

func describeUser(u types.User) string {
	var deps []string
	for _, d := range u.Departments {
		name := d.Name
		if d.Admin {
			name += " (admin)"
		}
		deps = append(deps, name)
	}
	s := fmt.Sprintf("%s [%s]", u.Name, u.EmployeeNo)
	if len(deps) > 0 {
		s += ": " + strings.Join(deps, ", ")
	}
	return s
}
