package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/target/stockgate/config"
	"github.com/target/stockgate/internal/adapters/firestore"
	"github.com/target/stockgate/internal/adapters/localstore"
	"github.com/target/stockgate/internal/adapters/remote"
	"github.com/target/stockgate/internal/data"
	"github.com/target/stockgate/internal/data/cryptoutil"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	httpx "github.com/target/stockgate/internal/http"
	"github.com/target/stockgate/internal/observability/statsd"
	"github.com/target/stockgate/internal/ports"
	"github.com/target/stockgate/internal/service"
	"golang.org/x/sync/errgroup"
)

// ClientRuntimeOptions groups dependencies for one client namespace.
type ClientRuntimeOptions struct {
	ClientID string                // Required
	KV       ports.KeyValueStore   // Required: the client's namespace
	Config   *config.AppConfig     // Required
	Clock    ports.Clock           // Optional: defaults to wall clock
	Logger   *slog.Logger          // Optional
	Table    *domainauth.PageTable // Optional: defaults to DefaultPageTable
	Metrics  statsd.Sink           // Optional: shared across clients

	// Identity is the shared stateless identity client; nil keeps the client local-only.
	Identity ports.IdentityClient
	// Documents is a shared document store. When nil and the remote is enabled,
	// a Firestore store authorized by this client's token is built.
	Documents  ports.DocumentStore
	// Sealer protects the persisted remote credential; nil stores it unsealed.
	Sealer     cryptoutil.Sealer
	HTTPClient *http.Client
}

// ClientRuntime is the session and authorization stack of one client.
type ClientRuntime struct {
	ID         string
	Sessions   *localstore.SessionStore
	Notices    *localstore.NoticeBoard
	Local      *localstore.Directory
	Identity   *remote.Identity // nil when the remote is disabled
	Directory  *service.FallbackDirectory
	Reconciler *service.SessionReconciler
	Gate       *service.AccessGate
	Auth       *service.AuthService
	Users      *service.UserService
	Sweeper    *service.ExpirationSweeper

	documents ports.DocumentStore
	logger    *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// NewClientRuntime wires the stack for one client.
func NewClientRuntime(opts ClientRuntimeOptions) (*ClientRuntime, error) {
	if opts.ClientID == "" {
		return nil, errors.New("client id is required")
	}
	if opts.KV == nil {
		return nil, errors.New("key-value store is required")
	}
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client_id", opts.ClientID)
	if opts.Clock == nil {
		opts.Clock = &data.RealTimeProvider{}
	}
	cfg := opts.Config

	rt := &ClientRuntime{ID: opts.ClientID, logger: logger}

	sessions, err := localstore.NewSessionStore(localstore.SessionStoreOptions{
		KV:     opts.KV,
		Clock:  opts.Clock,
		Logger: logger,
		Grace:  cfg.Session.StoreGrace,
	})
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	rt.Sessions = sessions
	rt.Notices = localstore.NewNoticeBoard(opts.KV)
	rt.Local = localstore.NewDirectory(opts.KV, opts.Clock)

	var (
		remoteIdentity ports.RemoteIdentity
		remoteDir      ports.Directory
	)
	if opts.Identity != nil {
		if err := rt.buildRemote(opts); err != nil {
			return nil, err
		}
		remoteIdentity = rt.Identity
		dir, err := remote.NewDirectory(remote.DirectoryOptions{
			Identity:  rt.Identity,
			Client:    opts.Identity,
			Documents: rt.documents,
			Logger:    logger,
		})
		if err != nil {
			return nil, fmt.Errorf("remote directory: %w", err)
		}
		remoteDir = dir
	}

	if rt.Directory, err = service.NewFallbackDirectory(service.FallbackDirectoryOptions{
		Local:   rt.Local,
		Remote:  remoteDir,
		Timeout: cfg.Remote.Timeout,
		Logger:  logger,
	}); err != nil {
		return nil, fmt.Errorf("directory: %w", err)
	}

	if rt.Reconciler, err = service.NewSessionReconciler(service.SessionReconcilerOptions{
		Sessions:      sessions,
		Remote:        remoteIdentity,
		Notifier:      rt.Notices,
		Clock:         opts.Clock,
		Logger:        logger,
		RemoteTimeout: cfg.Remote.Timeout,
		RemoteTTL:     cfg.Session.TTL,
	}); err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	if rt.Gate, err = service.NewAccessGate(service.AccessGateOptions{
		Table:    opts.Table,
		Sessions: sessions,
		Notifier: rt.Notices,
		Metrics:  opts.Metrics,
		Logger:   logger,
	}); err != nil {
		return nil, fmt.Errorf("access gate: %w", err)
	}

	if rt.Auth, err = service.NewAuthService(service.AuthServiceOptions{
		Directory:   rt.Directory,
		Reconciler:  rt.Reconciler,
		Remote:      remoteIdentity,
		Metrics:     opts.Metrics,
		Logger:      logger,
		RememberTTL: cfg.Session.RememberTTL,
		SessionTTL:  cfg.Session.TTL,
	}); err != nil {
		return nil, fmt.Errorf("auth service: %w", err)
	}

	if rt.Users, err = service.NewUserService(service.UserServiceOptions{
		Directory: rt.Directory,
		Logger:    logger,
	}); err != nil {
		return nil, fmt.Errorf("user service: %w", err)
	}

	if rt.Sweeper, err = service.NewExpirationSweeper(service.ExpirationSweeperOptions{
		Reconciler: rt.Reconciler,
		Interval:   cfg.Session.SweepInterval,
		Metrics:    opts.Metrics,
		Logger:     logger,
		OnExpired: func(ctx context.Context) {
			logger.InfoContext(ctx, "session expired by sweep")
		},
	}); err != nil {
		return nil, fmt.Errorf("sweeper: %w", err)
	}

	return rt, nil
}

// buildRemote constructs the remote identity and, when no shared store is given,
// a Firestore store that authenticates as the signed-in user.
func (rt *ClientRuntime) buildRemote(opts ClientRuntimeOptions) error {
	docs := opts.Documents
	if docs == nil {
		remoteCfg := opts.Config.Remote
		store, err := firestore.NewDocumentStore(firestore.StoreOptions{
			ProjectID:  remoteCfg.ProjectID,
			APIKey:     remoteCfg.APIKey,
			BaseURL:    remoteCfg.FirestoreURL,
			Timeout:    remoteCfg.Timeout,
			Token:      rt.idToken,
			HTTPClient: opts.HTTPClient,
			Logger:     rt.logger,
		})
		if err != nil {
			return fmt.Errorf("firestore store: %w", err)
		}
		docs = store
	}
	rt.documents = docs

	identity, err := remote.NewIdentity(remote.IdentityOptions{
		Client:    opts.Identity,
		Documents: docs,
		KV:        opts.KV,
		Clock:     opts.Clock,
		Sealer:    opts.Sealer,
		Logger:    rt.logger,
	})
	if err != nil {
		return fmt.Errorf("remote identity: %w", err)
	}
	rt.Identity = identity
	return nil
}

// idToken feeds the Firestore store; it is anonymous until the identity exists.
func (rt *ClientRuntime) idToken(ctx context.Context) (string, error) {
	if rt.Identity == nil {
		return "", nil
	}
	return rt.Identity.IDToken(ctx)
}

// Services exposes the runtime to the HTTP layer.
func (rt *ClientRuntime) Services() *httpx.ClientServices {
	return &httpx.ClientServices{
		Sessions: rt.Reconciler,
		Gate:     rt.Gate,
		Auth:     rt.Auth,
		Users:    rt.Users,
		Notices:  rt.Notices,
	}
}

// Start runs the background loops: the expiration sweep and, with a remote,
// token refresh and sign-in-state reconciliation. It is a no-op once started.
func (rt *ClientRuntime) Start(parent context.Context) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.done != nil || rt.stopped {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	rt.cancel = cancel
	rt.done = make(chan struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rt.Sweeper.Run(gctx) })
	if rt.Identity != nil {
		g.Go(func() error { return rt.Identity.RunRefresher(gctx) })
		g.Go(func() error { return rt.Reconciler.Run(gctx, rt.onRemoteChange) })
	}

	go func() {
		defer close(rt.done)
		if err := g.Wait(); err != nil {
			rt.logger.ErrorContext(ctx, "client background loop failed", "error", err)
		}
	}()
}

func (rt *ClientRuntime) onRemoteChange(ctx context.Context, state domainauth.AuthState, sess domainauth.Session) {
	rt.logger.DebugContext(ctx, "remote state applied",
		"reason", state.Reason,
		"authenticated", sess.Authenticated,
		"role", sess.Role,
	)
}

// Stop cancels the background loops without waiting for them.
func (rt *ClientRuntime) Stop() {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.stopped = true
	if rt.cancel != nil {
		rt.cancel()
	}
}

// Wait blocks until the background loops have returned.
func (rt *ClientRuntime) Wait() {
	rt.mu.Lock()
	done := rt.done
	rt.mu.Unlock()
	if done != nil {
		<-done
	}
}
