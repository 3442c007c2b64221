// Package remote adapts the hosted identity and document service to the
// stockgate ports: a stateful per-client identity and a remote user directory.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/stockgate/internal/data/cryptoutil"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	apperrors "github.com/target/stockgate/internal/errors"
	"github.com/target/stockgate/internal/ports"
)

const (
	// KeyCredential holds the persisted remote credential in the client namespace.
	KeyCredential = "remoteCredential"
	// UsersCollection holds one profile document per remote uid.
	UsersCollection = "users"

	defaultRefreshSkew = 5 * time.Minute
	idleWait           = time.Minute
	subscriberBuffer   = 8
)

// IdentityOptions groups dependencies for Identity.
type IdentityOptions struct {
	Client      ports.IdentityClient // Required
	Documents   ports.DocumentStore  // Required: role lookups
	KV          ports.KeyValueStore  // Required: credential persistence
	Clock       ports.Clock          // Optional: defaults to wall clock
	Sealer      cryptoutil.Sealer    // Optional: protects the persisted credential; plain when nil
	Logger      *slog.Logger         // Optional
	RefreshSkew time.Duration        // Optional: refresh this long before token expiry
}

// Identity is the per-client view of the hosted identity service. It keeps the
// credential in the client namespace so a new page load restores the signed-in user.
type Identity struct {
	client ports.IdentityClient
	docs   ports.DocumentStore
	kv     ports.KeyValueStore
	sealer cryptoutil.Sealer
	now    func() time.Time
	logger *slog.Logger
	skew   time.Duration

	mu     sync.Mutex
	subs   map[int]chan domainauth.AuthState
	nextID int
	wake   chan struct{}
}

var _ ports.RemoteIdentity = (*Identity)(nil)

// NewIdentity constructs an Identity.
func NewIdentity(opts IdentityOptions) (*Identity, error) {
	if opts.Client == nil {
		return nil, errors.New("identity client is required")
	}
	if opts.Documents == nil {
		return nil, errors.New("document store is required")
	}
	if opts.KV == nil {
		return nil, errors.New("key-value store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if opts.Clock != nil {
		now = opts.Clock.Now
	}
	sealer := opts.Sealer
	if sealer == nil {
		sealer = cryptoutil.PlainSealer{}
	}
	skew := opts.RefreshSkew
	if skew <= 0 {
		skew = defaultRefreshSkew
	}
	return &Identity{
		client: opts.Client,
		docs:   opts.Documents,
		kv:     opts.KV,
		sealer: sealer,
		now:    now,
		logger: logger.With("component", "remote_identity"),
		skew:   skew,
		subs:   make(map[int]chan domainauth.AuthState),
		wake:   make(chan struct{}, 1),
	}, nil
}

// SignIn verifies the credentials remotely and makes the user current.
// The principal carries an empty role when the profile could not be read.
func (i *Identity) SignIn(ctx context.Context, email, password string) (domainauth.Principal, error) {
	cred, err := i.client.SignInWithPassword(ctx, domainauth.NormalizeEmail(email), password)
	if err != nil {
		return domainauth.Principal{}, err
	}
	if err := i.storeCredential(ctx, cred); err != nil {
		return domainauth.Principal{}, err
	}

	role, err := i.GetRole(ctx, cred.UserID)
	if err != nil {
		i.logger.WarnContext(ctx, "role lookup after sign-in failed", "uid", cred.UserID, "error", err)
		role = ""
	}
	i.publish(stateFor(cred, domainauth.ReasonSignIn))
	return domainauth.Principal{UserID: cred.UserID, Email: cred.Email, Role: role}, nil
}

// SignUp creates the remote account, writes its profile document and makes the user current.
// A failed profile write does not undo the account.
func (i *Identity) SignUp(ctx context.Context, in domainauth.NewUser) (domainauth.Principal, error) {
	rec, cred, err := createAccount(ctx, i.client, i.docs, i.logger, in)
	if err != nil {
		return domainauth.Principal{}, err
	}
	if err := i.storeCredential(ctx, cred); err != nil {
		return domainauth.Principal{}, err
	}
	i.publish(stateFor(cred, domainauth.ReasonSignIn))
	return rec.Principal(), nil
}

// SignOut forgets the credential and notifies subscribers.
func (i *Identity) SignOut(ctx context.Context) error {
	if err := i.kv.Delete(ctx, KeyCredential); err != nil {
		return fmt.Errorf("delete remote credential: %w", err)
	}
	i.signal()
	i.publish(domainauth.AuthState{Reason: domainauth.ReasonSignOut})
	return nil
}

// CurrentUser reports the signed-in user, refreshing an expiring token first.
// A token the service rejects signs the user out.
func (i *Identity) CurrentUser(ctx context.Context) (domainauth.AuthState, error) {
	cred, ok, err := i.loadCredential(ctx)
	if err != nil {
		return domainauth.AuthState{}, err
	}
	if !ok {
		return domainauth.AuthState{Reason: domainauth.ReasonStartup}, nil
	}
	if i.needsRefresh(cred) {
		refreshed, err := i.refresh(ctx, cred)
		if err != nil {
			if apperrors.IsAppError(err, apperrors.ErrCodeUnauthenticated) {
				return domainauth.AuthState{Reason: domainauth.ReasonSignOut}, nil
			}
			return domainauth.AuthState{}, err
		}
		cred = refreshed
	}
	return stateFor(cred, domainauth.ReasonStartup), nil
}

// IDToken returns the current ID token, or "" when nobody is signed in.
func (i *Identity) IDToken(ctx context.Context) (string, error) {
	cred, ok, err := i.loadCredential(ctx)
	if err != nil || !ok {
		return "", err
	}
	if i.needsRefresh(cred) {
		refreshed, err := i.refresh(ctx, cred)
		if err != nil {
			return "", err
		}
		cred = refreshed
	}
	return cred.IDToken, nil
}

// GetRole reads the role stored on the user's profile document.
// A missing document, an empty role or an unknown role yields the default role.
func (i *Identity) GetRole(ctx context.Context, uid string) (domainauth.Role, error) {
	if uid == "" {
		return "", apperrors.Validation("uid is required")
	}
	doc, err := i.docs.Get(ctx, UsersCollection, uid)
	if apperrors.IsNotFound(err) {
		return domainauth.DefaultRole, nil
	}
	if err != nil {
		return "", fmt.Errorf("get user profile: %w", err)
	}
	role := domainauth.Role(doc.String("role"))
	if role != "" && !role.Valid() {
		i.logger.WarnContext(ctx, "unknown role on profile, using default", "uid", uid, "role", role)
	}
	return role.OrDefault(), nil
}

// Subscribe streams sign-in-state changes until ctx is done. The current state is sent first
// when it can be determined.
func (i *Identity) Subscribe(ctx context.Context) <-chan domainauth.AuthState {
	ch := make(chan domainauth.AuthState, subscriberBuffer)

	if state, err := i.CurrentUser(ctx); err == nil {
		ch <- state
	} else {
		i.logger.WarnContext(ctx, "initial remote state unavailable", "error", err)
	}

	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.subs[id] = ch
	i.mu.Unlock()

	go func() {
		<-ctx.Done()
		i.mu.Lock()
		delete(i.subs, id)
		i.mu.Unlock()
		close(ch)
	}()
	return ch
}

// RunRefresher keeps the ID token fresh while a user is signed in and announces
// every refresh. It returns nil when ctx is canceled.
func (i *Identity) RunRefresher(ctx context.Context) error {
	for {
		wait := idleWait
		cred, ok, err := i.loadCredential(ctx)
		switch {
		case err != nil:
			i.logger.WarnContext(ctx, "load remote credential failed", "error", err)
		case ok:
			wait = cred.ExpiresAt.Add(-i.skew).Sub(i.now())
			if wait <= 0 {
				if _, err := i.refresh(ctx, cred); err != nil && !errors.Is(err, context.Canceled) {
					i.logger.WarnContext(ctx, "token refresh failed", "error", err)
				}
				wait = idleWait
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-i.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (i *Identity) refresh(ctx context.Context, cred ports.Credential) (ports.Credential, error) {
	next, err := i.client.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		if apperrors.IsAppError(err, apperrors.ErrCodeUnauthenticated) {
			i.logger.InfoContext(ctx, "remote session revoked", "uid", cred.UserID)
			if delErr := i.kv.Delete(ctx, KeyCredential); delErr != nil {
				err = errors.Join(err, delErr)
			}
			i.publish(domainauth.AuthState{Reason: domainauth.ReasonSignOut})
		}
		return ports.Credential{}, err
	}
	if next.Email == "" {
		next.Email = cred.Email
	}
	if next.UserID == "" {
		next.UserID = cred.UserID
	}
	if next.RefreshToken == "" {
		next.RefreshToken = cred.RefreshToken
	}
	if err := i.storeCredential(ctx, next); err != nil {
		return ports.Credential{}, err
	}
	i.publish(stateFor(next, domainauth.ReasonRefresh))
	return next, nil
}

func (i *Identity) needsRefresh(cred ports.Credential) bool {
	return !i.now().Before(cred.ExpiresAt.Add(-i.skew))
}

func (i *Identity) loadCredential(ctx context.Context) (ports.Credential, bool, error) {
	raw, err := i.kv.Get(ctx, KeyCredential)
	if errors.Is(err, ports.ErrKeyNotFound) {
		return ports.Credential{}, false, nil
	}
	if err != nil {
		return ports.Credential{}, false, fmt.Errorf("load remote credential: %w", err)
	}
	var cred ports.Credential
	if raw, err = i.sealer.Open(raw); err == nil {
		err = json.Unmarshal(raw, &cred)
	}
	if err != nil || cred.UserID == "" {
		i.logger.WarnContext(ctx, "discarding unreadable remote credential", "error", err)
		_ = i.kv.Delete(ctx, KeyCredential)
		return ports.Credential{}, false, nil
	}
	return cred, true, nil
}

func (i *Identity) storeCredential(ctx context.Context, cred ports.Credential) error {
	raw, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("encode remote credential: %w", err)
	}
	if raw, err = i.sealer.Seal(raw); err != nil {
		return fmt.Errorf("seal remote credential: %w", err)
	}
	if err := i.kv.Set(ctx, KeyCredential, raw, 0); err != nil {
		return fmt.Errorf("store remote credential: %w", err)
	}
	i.signal()
	return nil
}

func (i *Identity) signal() {
	select {
	case i.wake <- struct{}{}:
	default:
	}
}

// publish delivers state to every subscriber. A full subscriber drops its oldest event.
func (i *Identity) publish(state domainauth.AuthState) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, ch := range i.subs {
		select {
		case ch <- state:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- state:
		default:
		}
	}
}

func stateFor(cred ports.Credential, reason domainauth.StateReason) domainauth.AuthState {
	return domainauth.AuthState{
		SignedIn: true,
		UserID:   cred.UserID,
		Email:    cred.Email,
		Reason:   reason,
	}
}
