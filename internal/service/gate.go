package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/observability/metrics"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
)

// DecisionKind is the outcome of a page access check.
type DecisionKind string

const (
	Allow           DecisionKind = "allow"
	RedirectToLogin DecisionKind = "redirect_login"
	RedirectToHome  DecisionKind = "redirect_home"
)

// Decision tells the caller whether to render the page or where to go instead.
type Decision struct {
	Kind DecisionKind `json:"decision"`
	Page string       `json:"page"`
	// Target is the redirect destination; empty when Kind is Allow.
	Target string `json:"target,omitempty"`
	// Notice is the pending one-shot notice shown with an allowed page. Redirects
	// never carry one; the notice board holds it until the next allowed page.
	Notice ports.Notice `json:"notice,omitempty"`
	// VisibleLinks lists the navigation entries the role may open. Set only on Allow.
	VisibleLinks []domainauth.NavLink `json:"visibleLinks,omitempty"`
}

// AccessGateOptions groups dependencies for AccessGate.
type AccessGateOptions struct {
	Table    *domainauth.PageTable // Optional: defaults to DefaultPageTable
	Sessions ports.SessionStore    // Required: remembers the post-login destination
	Notifier ports.Notifier        // Optional: receives "access denied"
	Metrics  statsd.Sink           // Optional: counts decisions
	Logger   *slog.Logger          // Optional
}

// AccessGate decides allow or redirect for a requested page.
type AccessGate struct {
	table    *domainauth.PageTable
	sessions ports.SessionStore
	notifier ports.Notifier
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewAccessGate constructs an AccessGate. The page table must not be able to produce a redirect loop.
func NewAccessGate(opts AccessGateOptions) (*AccessGate, error) {
	if opts.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	table := opts.Table
	if table == nil {
		table = domainauth.DefaultPageTable()
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("page table: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AccessGate{
		table:    table,
		sessions: opts.Sessions,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "access_gate"),
	}, nil
}

// Table returns the page permission table in use.
func (g *AccessGate) Table() *domainauth.PageTable { return g.table }

// Decide applies the access rules to target, the requested URL path and query.
func (g *AccessGate) Decide(
	ctx context.Context,
	target string,
	authenticated bool,
	role domainauth.Role,
) (Decision, error) {
	d, denied, err := g.decide(ctx, target, authenticated, role)
	if err == nil {
		metrics.EmitGateDecision(g.metrics, d.Page, string(d.Kind), denied)
	}
	return d, err
}

func (g *AccessGate) decide(
	ctx context.Context,
	target string,
	authenticated bool,
	role domainauth.Role,
) (Decision, bool, error) {
	page := domainauth.PageToken(target)

	if g.table.IsPublic(page) {
		if !authenticated {
			return Decision{Kind: Allow, Page: page}, false, nil
		}
		dest, err := g.rememberedDestination(ctx)
		if err != nil {
			return Decision{}, false, err
		}
		return Decision{Kind: RedirectToHome, Page: page, Target: dest}, false, nil
	}

	if !authenticated {
		if rel, ok := relativeTarget(target); ok {
			if err := g.sessions.RememberRedirect(ctx, rel); err != nil {
				return Decision{}, false, fmt.Errorf("remember redirect: %w", err)
			}
		}
		return Decision{Kind: RedirectToLogin, Page: page, Target: g.table.Login()}, false, nil
	}

	if !g.table.Allows(page, role) {
		g.logger.InfoContext(ctx, "page access denied", "page", page, "role", role)
		if g.notifier != nil {
			if err := g.notifier.Notify(ctx, ports.NoticeAccessDenied); err != nil {
				g.logger.WarnContext(ctx, "publish access notice failed", "error", err)
			}
		}
		return Decision{Kind: RedirectToHome, Page: page, Target: g.table.Landing()}, true, nil
	}

	return Decision{Kind: Allow, Page: page, VisibleLinks: g.table.VisibleLinks(role)}, false, nil
}

// rememberedDestination consumes the post-login target. Unsafe or public targets
// fall back to the landing page.
func (g *AccessGate) rememberedDestination(ctx context.Context) (string, error) {
	dest, ok, err := g.sessions.ConsumeRedirect(ctx)
	if err != nil {
		return "", fmt.Errorf("consume redirect: %w", err)
	}
	if !ok {
		return g.table.Landing(), nil
	}
	rel, safe := relativeTarget(dest)
	if !safe || g.table.IsPublic(domainauth.PageToken(rel)) {
		return g.table.Landing(), nil
	}
	return rel, nil
}

// relativeTarget accepts only same-origin paths such as "cost.html?branch=2" or "/pages/cost.html".
func relativeTarget(candidate string) (string, bool) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || strings.HasPrefix(candidate, "//") || strings.Contains(candidate, `\`) {
		return "", false
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || u.User != nil {
		return "", false
	}
	return candidate, true
}
