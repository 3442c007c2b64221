package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/target/stockgate/internal/bootstrap"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/service"
)

const noticePollInterval = time.Second

type signInOptions struct {
	Profile string
	Input   service.SignInInput
}

func parseSignInFlags(cmdCtx *commandContext, args []string) (signInOptions, error) {
	var opts signInOptions
	fs := newFlagSet("signin", cmdCtx.Stderr, &opts.Profile)
	fs.StringVar(&opts.Input.Email, "email", "", "Account email")
	fs.StringVar(&opts.Input.Password, "password", "", "Account password")
	fs.BoolVar(&opts.Input.RememberMe, "remember", false, "Keep the session for 30 days")
	if err := fs.Parse(args); err != nil {
		return signInOptions{}, err
	}
	if opts.Input.Email == "" || opts.Input.Password == "" {
		return signInOptions{}, fmt.Errorf("%w: signin --email <email> --password <password>", errUsage)
	}
	return opts, nil
}

func runSignIn(cmdCtx *commandContext, args []string) error {
	opts, err := parseSignInFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	return withProfile(cmdCtx, opts.Profile, func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
		return signIn(cmdCtx, rt, opts.Input)
	})
}

func signIn(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, in service.SignInInput) error {
	res, err := rt.Auth.SignIn(cmdCtx.Ctx, in)
	if err != nil {
		return err
	}
	return printAuthResult(cmdCtx, rt, res)
}

type signUpOptions struct {
	Profile string
	Role    string
	User    domainauth.NewUser
}

func parseSignUpFlags(cmdCtx *commandContext, args []string) (signUpOptions, error) {
	var opts signUpOptions
	fs := newFlagSet("signup", cmdCtx.Stderr, &opts.Profile)
	registerNewUserFlags(fs, &opts.User, &opts.Role)
	if err := fs.Parse(args); err != nil {
		return signUpOptions{}, err
	}
	if opts.User.Email == "" || opts.User.Password == "" {
		return signUpOptions{}, fmt.Errorf("%w: signup --email <email> --password <password> [--role <role>]", errUsage)
	}
	role, err := parseRoleFlag(opts.Role)
	if err != nil {
		return signUpOptions{}, err
	}
	opts.User.Role = role
	return opts, nil
}

func runSignUp(cmdCtx *commandContext, args []string) error {
	opts, err := parseSignUpFlags(cmdCtx, args)
	if err != nil {
		return err
	}
	return withProfile(cmdCtx, opts.Profile, func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
		return signUp(cmdCtx, rt, opts.User)
	})
}

func signUp(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, in domainauth.NewUser) error {
	res, err := rt.Auth.SignUp(cmdCtx.Ctx, in)
	if err != nil {
		return err
	}
	return printAuthResult(cmdCtx, rt, res)
}

func printAuthResult(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, res *service.AuthResult) error {
	if err := writef(cmdCtx.Stdout, "signed in as %s (%s), expires %s\n",
		res.Session.Identity, res.Role, res.Session.ExpiresAt.Format(time.RFC3339)); err != nil {
		return err
	}
	// Where a browser would be sent next: a remembered page or the landing page.
	d, err := rt.Gate.Decide(cmdCtx.Ctx, rt.Gate.Table().Login(), true, res.Role)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "next: %s\n", d.Target)
}

func runSignOut(cmdCtx *commandContext, args []string) error {
	var profile string
	fs := newFlagSet("signout", cmdCtx.Stderr, &profile)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withProfile(cmdCtx, profile, signOut)
}

func signOut(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
	next, err := rt.Auth.SignOut(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "signed out, next: %s\n", next)
}

func runStatus(cmdCtx *commandContext, args []string) error {
	var profile string
	fs := newFlagSet("status", cmdCtx.Stderr, &profile)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withProfile(cmdCtx, profile, status)
}

func status(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
	res, err := rt.Reconciler.Resolve(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	if err := printNotice(cmdCtx, rt); err != nil {
		return err
	}

	sess := res.Session
	if !sess.Authenticated {
		return writeln(cmdCtx.Stdout, "not signed in")
	}
	if err := writef(cmdCtx.Stdout, "identity: %s\nrole:     %s (%s)\nexpires:  %s\nsource:   %s\n",
		sess.Identity, sess.Role, sess.Role.Label(), sess.ExpiresAt.Format(time.RFC3339), res.Source); err != nil {
		return err
	}
	if err := writeln(cmdCtx.Stdout, "pages:"); err != nil {
		return err
	}
	for _, link := range rt.Gate.Table().VisibleLinks(sess.Role) {
		if err := writef(cmdCtx.Stdout, "  %-16s %s\n", link.Page, link.Title); err != nil {
			return err
		}
	}
	return nil
}

func runVisit(cmdCtx *commandContext, args []string) error {
	var profile string
	fs := newFlagSet("visit", cmdCtx.Stderr, &profile)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: visit [--profile <name>] <page>", errUsage)
	}
	target := fs.Arg(0)
	return withProfile(cmdCtx, profile, func(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
		return visit(cmdCtx, rt, target)
	})
}

func visit(cmdCtx *commandContext, rt *bootstrap.ClientRuntime, target string) error {
	res, err := rt.Reconciler.Resolve(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	d, err := rt.Gate.Decide(cmdCtx.Ctx, target, res.Session.Authenticated, res.Session.Role)
	if err != nil {
		return err
	}

	if d.Kind != service.Allow {
		return writef(cmdCtx.Stdout, "redirect %s\n", d.Target)
	}

	if err := printNotice(cmdCtx, rt); err != nil {
		return err
	}
	return writef(cmdCtx.Stdout, "allow %s\n", d.Page)
}

// printNotice writes the pending one-shot notice, if any, to stderr.
func printNotice(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
	n, err := rt.Notices.Pop(cmdCtx.Ctx)
	if err != nil {
		return err
	}
	if n == "" {
		return nil
	}
	return writef(cmdCtx.Stderr, "notice: %s\n", n)
}

func runWatch(cmdCtx *commandContext, args []string) error {
	var profile string
	fs := newFlagSet("watch", cmdCtx.Stderr, &profile)
	if err := fs.Parse(args); err != nil {
		return err
	}
	return withProfile(cmdCtx, profile, watch)
}

// watch runs the profile's background loops and relays notices until interrupted.
func watch(cmdCtx *commandContext, rt *bootstrap.ClientRuntime) error {
	rt.Start(cmdCtx.Ctx)
	if err := writef(cmdCtx.Stderr, "watching profile %s, press Ctrl+C to stop\n", rt.ID); err != nil {
		return err
	}

	ticker := time.NewTicker(noticePollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-cmdCtx.Ctx.Done():
			rt.Stop()
			rt.Wait()
			return nil
		case <-ticker.C:
			if err := printNotice(cmdCtx, rt); err != nil && !errors.Is(err, context.Canceled) {
				cmdCtx.Logger.WarnContext(cmdCtx.Ctx, "read notice failed", "error", err)
			}
		}
	}
}
