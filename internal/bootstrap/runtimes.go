package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/target/stockgate/config"
	"github.com/target/stockgate/internal/adapters/identitytoolkit"
	redisstore "github.com/target/stockgate/internal/adapters/redis"
	"github.com/target/stockgate/internal/data/cryptoutil"
	httpx "github.com/target/stockgate/internal/http"
	"github.com/target/stockgate/internal/observability/metrics"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
)

// RuntimesOptions groups dependencies for Runtimes.
type RuntimesOptions struct {
	Config     *config.AppConfig     // Required
	Redis      redis.UniversalClient // Required: backs every client namespace
	Documents  ports.DocumentStore   // Optional: shared store, e.g. Postgres
	Clock      ports.Clock           // Optional
	HTTPClient *http.Client          // Optional: transport for the remote identity service
	Metrics    statsd.Sink           // Optional
	Logger     *slog.Logger          // Optional
}

// Runtimes keeps the most recently used client runtimes in memory. Idle or
// evicted runtimes stop their background loops; their state stays in Redis
// and is picked up again on the next request.
type Runtimes struct {
	opts     RuntimesOptions
	identity ports.IdentityClient
	sealer   cryptoutil.Sealer
	logger   *slog.Logger

	base   context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	cache *expirable.LRU[string, *ClientRuntime]
}

var _ httpx.ClientProvider = (*Runtimes)(nil)

// NewRuntimes constructs Runtimes. Background loops of every runtime derive from ctx.
func NewRuntimes(ctx context.Context, opts RuntimesOptions) (*Runtimes, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &Runtimes{opts: opts, logger: logger.With("component", "client_runtimes")}

	identity, err := NewIdentityClient(opts.Config, opts.Clock, opts.HTTPClient, logger)
	if err != nil {
		return nil, err
	}
	r.identity = identity
	if identity != nil {
		r.sealer = NewCredentialSealer(opts.Config.Remote.CredentialKey, logger)
	}

	r.base, r.cancel = context.WithCancel(ctx)
	r.cache = expirable.NewLRU(
		opts.Config.HTTP.ClientCacheSize,
		func(id string, rt *ClientRuntime) {
			r.logger.Debug("client runtime evicted", "client_id", id)
			rt.Stop()
		},
		opts.Config.HTTP.ClientIdleTTL,
	)
	return r, nil
}

// NewIdentityClient builds the shared identity REST client, or returns nil when
// the remote is disabled.
//
//nolint:ireturn // nil interface marks the local-only mode.
func NewIdentityClient(
	cfg *config.AppConfig,
	clock ports.Clock,
	httpClient *http.Client,
	logger *slog.Logger,
) (ports.IdentityClient, error) {
	if cfg == nil || !cfg.Remote.Enabled() {
		return nil, nil
	}
	remoteCfg := cfg.Remote
	client, err := identitytoolkit.NewClient(identitytoolkit.ClientOptions{
		APIKey:      remoteCfg.APIKey,
		IdentityURL: remoteCfg.IdentityURL,
		TokenURL:    remoteCfg.TokenURL,
		Timeout:     remoteCfg.Timeout,
		RetryCount:  remoteCfg.RetryCount,
		Clock:       clock,
		HTTPClient:  httpClient,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("identity client: %w", err)
	}
	return client, nil
}

// RemoteEnabled reports whether runtimes talk to the remote identity service.
func (r *Runtimes) RemoteEnabled() bool { return r.identity != nil }

// Get returns the services for clientID.
func (r *Runtimes) Get(ctx context.Context, clientID string) (*httpx.ClientServices, error) {
	rt, err := r.Runtime(ctx, clientID)
	if err != nil {
		return nil, err
	}
	return rt.Services(), nil
}

// Runtime returns the running runtime for clientID, building and starting it on first use.
// Every call pushes back the idle deadline.
func (r *Runtimes) Runtime(ctx context.Context, clientID string) (*ClientRuntime, error) {
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.base.Err(); err != nil {
		return nil, fmt.Errorf("client runtimes closed: %w", err)
	}

	if rt, ok := r.cache.Get(clientID); ok {
		r.cache.Add(clientID, rt)
		return rt, nil
	}

	rt, err := NewClientRuntime(ClientRuntimeOptions{
		ClientID:   clientID,
		KV:         redisstore.NewKVStore(r.opts.Redis, clientID),
		Config:     r.opts.Config,
		Clock:      r.opts.Clock,
		Logger:     r.opts.Logger,
		Identity:   r.identity,
		Documents:  r.opts.Documents,
		Sealer:     r.sealer,
		HTTPClient: r.opts.HTTPClient,
		Metrics:    r.opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("build client runtime: %w", err)
	}
	rt.Start(r.base)
	r.cache.Add(clientID, rt)
	metrics.EmitActiveClients(r.opts.Metrics, r.cache.Len())
	r.logger.DebugContext(ctx, "client runtime started", "client_id", clientID)
	return rt, nil
}

// Len reports how many runtimes are cached.
func (r *Runtimes) Len() int { return r.cache.Len() }

// Close stops every runtime and waits for their loops to return.
func (r *Runtimes) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancel()

	running := make([]*ClientRuntime, 0, r.cache.Len())
	for _, id := range r.cache.Keys() {
		if rt, ok := r.cache.Peek(id); ok {
			running = append(running, rt)
		}
	}
	r.cache.Purge()
	for _, rt := range running {
		rt.Wait()
	}
}
