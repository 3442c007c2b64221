package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/target/stockgate/internal/adapters/localstore"
	"github.com/target/stockgate/internal/data"
	mocks "github.com/target/stockgate/internal/mocks/auth"
	"github.com/target/stockgate/internal/service"
)

var epoch = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

const testClientID = "6f1c2a8e-4b7d-4e0a-9c53-2f9d8b1e7a10"

// testClients builds one in-memory client namespace per id.
type testClients struct {
	clock *data.FixedTimeProvider

	mu      sync.Mutex
	clients map[string]*ClientServices
	calls   int
	err     error
}

func newTestClients() *testClients {
	return &testClients{clock: data.NewFixedTimeProvider(epoch), clients: map[string]*ClientServices{}}
}

func (p *testClients) Get(_ context.Context, clientID string) (*ClientServices, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	if s, ok := p.clients[clientID]; ok {
		return s, nil
	}
	s, err := p.build()
	if err != nil {
		return nil, err
	}
	p.clients[clientID] = s
	return s, nil
}

func (p *testClients) build() (*ClientServices, error) {
	kv := mocks.NewMemoryKV(p.clock)
	sessions, err := localstore.NewSessionStore(localstore.SessionStoreOptions{KV: kv, Clock: p.clock, Grace: time.Hour})
	if err != nil {
		return nil, err
	}
	notices := localstore.NewNoticeBoard(kv)
	local := localstore.NewDirectory(kv, p.clock)
	reconciler, err := service.NewSessionReconciler(service.SessionReconcilerOptions{
		Sessions: sessions,
		Notifier: notices,
		Clock:    p.clock,
	})
	if err != nil {
		return nil, err
	}
	gate, err := service.NewAccessGate(service.AccessGateOptions{Sessions: sessions, Notifier: notices})
	if err != nil {
		return nil, err
	}
	auth, err := service.NewAuthService(service.AuthServiceOptions{Directory: local, Reconciler: reconciler})
	if err != nil {
		return nil, err
	}
	users, err := service.NewUserService(service.UserServiceOptions{Directory: local})
	if err != nil {
		return nil, err
	}
	return &ClientServices{Sessions: reconciler, Gate: gate, Auth: auth, Users: users, Notices: notices}, nil
}

var testPages = fstest.MapFS{
	"index.html":    {Data: []byte("<h1>Dashboard</h1>")},
	"login.html":    {Data: []byte("<h1>Sign in</h1>")},
	"cost.html":     {Data: []byte("<h1>Cost</h1>")},
	"products.html": {Data: []byte("<h1>Products</h1>")},
}

type testServer struct {
	t       *testing.T
	clients *testClients
	handler http.Handler
}

func newTestServer(t *testing.T, pages fs.FS) *testServer {
	t.Helper()
	clients := newTestClients()
	return &testServer{
		t:       t,
		clients: clients,
		handler: NewRouter(RouterOptions{Clients: clients, Pages: pages}),
	}
}

type testRequest struct {
	method   string
	path     string
	body     any
	clientID string
	json     bool
}

func (s *testServer) do(req testRequest) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if req.body != nil {
		switch b := req.body.(type) {
		case string:
			body = bytes.NewBufferString(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(s.t, err)
			body = bytes.NewReader(raw)
		}
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.json {
		r.Header.Set("Accept", "application/json")
	}
	clientID := req.clientID
	if clientID == "" {
		clientID = testClientID
	}
	r.AddCookie(&http.Cookie{Name: ClientCookie, Value: clientID})
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	return rec
}

func (s *testServer) signUp(email, password, role string) {
	s.t.Helper()
	rec := s.do(testRequest{method: http.MethodPost, path: "/auth/signup", body: map[string]string{
		"email": email, "password": password, "role": role,
	}})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}
