package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"

	"github.com/target/stockgate/internal/observability/metrics"
	"github.com/target/stockgate/internal/observability/statsd"
)

const defaultSweepInterval = time.Minute

// ExpirationSweeperOptions groups dependencies for ExpirationSweeper.
type ExpirationSweeperOptions struct {
	Reconciler *SessionReconciler // Required: performs the forced sign-out
	Interval   time.Duration      // Optional: defaults to one minute
	Metrics    statsd.Sink        // Optional: counts forced sign-outs
	Logger     *slog.Logger       // Optional
	// OnExpired is called after a session was force-signed-out.
	OnExpired func(ctx context.Context)
}

// ExpirationSweeper periodically signs out sessions that passed their expiration.
type ExpirationSweeper struct {
	reconciler *SessionReconciler
	interval   time.Duration
	metrics    statsd.Sink
	logger     *slog.Logger
	onExpired  func(ctx context.Context)
}

// NewExpirationSweeper constructs an ExpirationSweeper.
func NewExpirationSweeper(opts ExpirationSweeperOptions) (*ExpirationSweeper, error) {
	if opts.Reconciler == nil {
		return nil, errors.New("session reconciler is required")
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpirationSweeper{
		reconciler: opts.Reconciler,
		interval:   interval,
		metrics:    opts.Metrics,
		logger:     logger.With("component", "expiration_sweeper"),
		onExpired:  opts.OnExpired,
	}, nil
}

// Run ticks until ctx is canceled. Returns nil on graceful shutdown.
func (s *ExpirationSweeper) Run(ctx context.Context) error {
	s.logger.DebugContext(ctx, "starting expiration sweeper", "interval", s.interval)
	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.Tick(ctx); err != nil && !isCanceled(err) {
			s.logger.WarnContext(ctx, "expiration sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick checks the session once and reports whether it was force-signed-out.
func (s *ExpirationSweeper) Tick(ctx context.Context) (bool, error) {
	expired, err := s.reconciler.Expire(ctx)
	if err != nil {
		return false, err
	}
	if expired {
		s.logger.InfoContext(ctx, "session expired, signed out")
		metrics.EmitSessionExpired(s.metrics)
		if s.onExpired != nil {
			s.onExpired(ctx)
		}
	}
	return expired, nil
}

// waitWithJitter delays the first sweep by up to 10% of the interval.
func (s *ExpirationSweeper) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.interval / 10)
	if maxJitter <= 0 {
		return
	}
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return
	}
	jitter := time.Duration(int64(binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter))) // #nosec G115 - bounded by maxJitter

	t := time.NewTimer(jitter)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
