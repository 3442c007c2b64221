package main

import (
	"flag"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/target/stockgate/internal/bootstrap"
	domainauth "github.com/target/stockgate/internal/domain/auth"
)

func registerNewUserFlags(fs *flag.FlagSet, in *domainauth.NewUser, role *string) {
	fs.StringVar(&in.Email, "email", "", "User email")
	fs.StringVar(&in.Password, "password", "", "User password")
	fs.StringVar(&in.FirstName, "first", "", "First name")
	fs.StringVar(&in.LastName, "last", "", "Last name")
	fs.StringVar(role, "role", "", "admin, inventory_manager or purchase_manager")
}

// parseRoleFlag accepts an empty value, which lets the directory pick the role.
func parseRoleFlag(s string) (domainauth.Role, error) {
	if strings.TrimSpace(s) == "" {
		return "", nil
	}
	role, ok := domainauth.ParseRole(s)
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", errUsage, strings.TrimSpace(s))
	}
	return role, nil
}

func runUsers(cmdCtx *commandContext, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: users list|create|update|delete [flags]", errUsage)
	}
	var profile string
	action, err := parseUsersAction(cmdCtx, args[0], args[1:], &profile)
	if err != nil {
		return err
	}
	return withProfile(cmdCtx, profile, action)
}

// parseUsersAction resolves a users subcommand into an action on the signed-in profile.
func parseUsersAction(cmdCtx *commandContext, sub string, args []string, profile *string) (profileFn, error) {
	fs := newFlagSet("users "+sub, cmdCtx.Stderr, profile)
	switch sub {
	case "list":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		return listUsers, nil

	case "create":
		var (
			in   domainauth.NewUser
			role string
		)
		registerNewUserFlags(fs, &in, &role)
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		parsed, err := parseRoleFlag(role)
		if err != nil {
			return nil, err
		}
		in.Role = parsed
		return func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
			return createUser(cmdCtx, rt, in)
		}, nil

	case "update":
		var password, first, last, role string
		fs.StringVar(&password, "password", "", "New password")
		fs.StringVar(&first, "first", "", "New first name")
		fs.StringVar(&last, "last", "", "New last name")
		fs.StringVar(&role, "role", "", "New role")
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() != 1 {
			return nil, fmt.Errorf("%w: users update [flags] <email>", errUsage)
		}
		email := fs.Arg(0)

		// Only flags given on the command line become part of the patch.
		var (
			patch   domainauth.UserPatch
			roleErr error
		)
		fs.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "password":
				patch.Password = &password
			case "first":
				patch.FirstName = &first
			case "last":
				patch.LastName = &last
			case "role":
				r, ok := domainauth.ParseRole(role)
				if !ok {
					roleErr = fmt.Errorf("%w: unknown role %q", errUsage, strings.TrimSpace(role))
				}
				patch.Role = &r
			}
		})
		if roleErr != nil {
			return nil, roleErr
		}
		if patch.IsEmpty() {
			return nil, fmt.Errorf("%w: users update needs at least one of -password, -first, -last, -role", errUsage)
		}
		return func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
			return updateUser(cmdCtx, rt, email, patch)
		}, nil

	case "delete":
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() != 1 {
			return nil, fmt.Errorf("%w: users delete [flags] <email>", errUsage)
		}
		email := fs.Arg(0)
		return func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
			return deleteUser(cmdCtx, rt, email)
		}, nil

	default:
		return nil, fmt.Errorf("%w: unknown users subcommand %q", errUsage, sub)
	}
}

func callerSession(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) (domainauth.Session, error) {
	res, err := rt.Reconciler.Resolve(cmdCtx.Ctx)
	if err != nil {
		return domainauth.Session{}, err
	}
	if err := printNotice(cmdCtx, rt); err != nil {
		return domainauth.Session{}, err
	}
	return res.Session, nil
}

func listUsers(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
	caller, err := callerSession(cmdCtx, rt)
	if err != nil {
		return err
	}
	users, err := rt.Users.List(cmdCtx.Ctx, caller)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmdCtx.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Email\tRole\tName\tCreated"); err != nil {
		return fmt.Errorf("write users header: %w", err)
	}
	for _, u := range users {
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = "-"
		}
		if err := writef(w, "%s\t%s\t%s\t%s\n", u.Email, u.Role, name, u.CreatedAt.Format(time.DateOnly)); err != nil {
			return fmt.Errorf("write user row: %w", err)
		}
	}
	return w.Flush()
}

func createUser(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, in domainauth.NewUser) error {
	caller, err := callerSession(cmdCtx, rt)
	if err != nil {
		return err
	}
	u, err := rt.Users.Create(cmdCtx.Ctx, caller, in)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "created %s (%s)\n", u.Email, u.Role)
}

func updateUser(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, email string, patch domainauth.UserPatch) error {
	caller, err := callerSession(cmdCtx, rt)
	if err != nil {
		return err
	}
	u, err := rt.Users.Update(cmdCtx.Ctx, caller, email, patch)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "updated %s (%s)\n", u.Email, u.Role)
}

func deleteUser(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, email string) error {
	caller, err := callerSession(cmdCtx, rt)
	if err != nil {
		return err
	}
	if err := rt.Users.Delete(cmdCtx.Ctx, caller, email); err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "deleted %s\n", domainauth.NormalizeEmail(email))
}
