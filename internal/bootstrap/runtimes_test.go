package bootstrap

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/stockgate/config"
	redisstore "github.com/target/stockgate/internal/adapters/redis"
	"github.com/target/stockgate/internal/data"
	domainauth "github.com/target/stockgate/internal/domain/auth"
	"github.com/target/stockgate/internal/mocks"
	"go.uber.org/mock/gomock"
)

func testConfig() *config.AppConfig {
	cfg := &config.AppConfig{
		HTTP: config.HTTPConfig{ClientCacheSize: 2, ClientIdleTTL: time.Hour},
	}
	cfg.Sanitize()
	return cfg
}

func newTestRuntimes(t *testing.T, cfg *config.AppConfig, opts ...func(*RuntimesOptions)) (*Runtimes, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ro := RuntimesOptions{
		Config: cfg,
		Redis:  client,
		Clock:  data.NewFixedTimeProvider(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	}
	for _, o := range opts {
		o(&ro)
	}
	r, err := NewRuntimes(context.Background(), ro)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r, mr
}

func TestNewRuntimes_Validation(t *testing.T) {
	_, err := NewRuntimes(context.Background(), RuntimesOptions{})
	require.EqualError(t, err, "config is required")

	_, err = NewRuntimes(context.Background(), RuntimesOptions{Config: testConfig()})
	require.EqualError(t, err, "redis client is required")
}

func TestRuntimes_ReusesRuntimePerClient(t *testing.T) {
	r, _ := newTestRuntimes(t, testConfig())
	ctx := context.Background()

	a1, err := r.Runtime(ctx, "client-a")
	require.NoError(t, err)
	a2, err := r.Runtime(ctx, "client-a")
	require.NoError(t, err)
	b, err := r.Runtime(ctx, "client-b")
	require.NoError(t, err)

	assert.Same(t, a1, a2)
	assert.NotSame(t, a1, b)
	assert.Equal(t, 2, r.Len())
	assert.False(t, r.RemoteEnabled())
	assert.Nil(t, a1.Identity)

	_, err = r.Runtime(ctx, "")
	require.Error(t, err)
}

func TestRuntimes_ClientsAreIsolated(t *testing.T) {
	r, mr := newTestRuntimes(t, testConfig())
	ctx := context.Background()

	a, err := r.Get(ctx, "client-a")
	require.NoError(t, err)
	res, err := a.Auth.SignUp(ctx, domainauth.NewUser{Email: "Ann@Stock.io", Password: "Secret1!"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, res.Role)

	for _, key := range mr.Keys() {
		assert.True(t, strings.HasPrefix(key, "stockgate:client:client-a:"), key)
	}

	b, err := r.Get(ctx, "client-b")
	require.NoError(t, err)
	resB, err := b.Sessions.Resolve(ctx)
	require.NoError(t, err)
	assert.False(t, resB.Session.Authenticated)

	// The second namespace has its own empty directory, so its first user is an admin too.
	res, err = b.Auth.SignUp(ctx, domainauth.NewUser{Email: "ann@stock.io", Password: "Other1!"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, res.Role)
}

func TestRuntimes_StateSurvivesEviction(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.ClientCacheSize = 1
	r, _ := newTestRuntimes(t, cfg)
	ctx := context.Background()

	a, err := r.Runtime(ctx, "client-a")
	require.NoError(t, err)
	_, err = a.Auth.SignUp(ctx, domainauth.NewUser{Email: "ann@stock.io", Password: "Secret1!"})
	require.NoError(t, err)

	_, err = r.Runtime(ctx, "client-b")
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())
	a.Wait()

	again, err := r.Runtime(ctx, "client-a")
	require.NoError(t, err)
	assert.NotSame(t, a, again)
	res, err := again.Reconciler.Resolve(ctx)
	require.NoError(t, err)
	assert.True(t, res.Session.Authenticated)
	assert.Equal(t, "ann@stock.io", res.Session.Identity)
}

func TestRuntimes_RemoteUsesSharedDocuments(t *testing.T) {
	ctrl := gomock.NewController(t)
	docs := mocks.NewMockDocumentStore(ctrl)

	cfg := testConfig()
	cfg.Remote = config.RemoteConfig{
		Mode:      config.RemoteModeFirebase,
		APIKey:    "test-key",
		Documents: config.DocumentsPostgres,
	}
	cfg.Remote.Sanitize()

	r, _ := newTestRuntimes(t, cfg, func(o *RuntimesOptions) { o.Documents = docs })
	require.True(t, r.RemoteEnabled())

	rt, err := r.Runtime(context.Background(), "client-a")
	require.NoError(t, err)
	require.NotNil(t, rt.Identity)
	assert.Same(t, docs, rt.documents)
}

func TestRuntimes_CloseRejectsNewClients(t *testing.T) {
	r, _ := newTestRuntimes(t, testConfig())
	ctx := context.Background()

	rt, err := r.Runtime(ctx, "client-a")
	require.NoError(t, err)
	r.Close()
	rt.Wait()

	assert.Equal(t, 0, r.Len())
	_, err = r.Runtime(ctx, "client-a")
	require.Error(t, err)
}

func TestClientRuntime_StartIsIdempotent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	rt, err := NewClientRuntime(ClientRuntimeOptions{
		ClientID: "client-a",
		KV:       redisstore.NewKVStore(client, "client-a"),
		Config:   testConfig(),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	rt.Start(ctx)
	rt.Start(ctx)
	cancel()
	rt.Wait()

	rt.Stop()
	rt.Start(context.Background())
	rt.Wait()
}

func TestNewClientRuntime_Validation(t *testing.T) {
	_, err := NewClientRuntime(ClientRuntimeOptions{})
	require.EqualError(t, err, "client id is required")

	_, err = NewClientRuntime(ClientRuntimeOptions{ClientID: "c"})
	require.EqualError(t, err, "key-value store is required")
}
