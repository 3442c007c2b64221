package config

import (
	"log/slog"
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestAppConfig_Defaults(t *testing.T) {
	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Session.TTL != 24*time.Hour {
		t.Errorf("Session.TTL = %v, want 24h", cfg.Session.TTL)
	}
	if cfg.Session.RememberTTL != 30*24*time.Hour {
		t.Errorf("Session.RememberTTL = %v, want 720h", cfg.Session.RememberTTL)
	}
	if cfg.Session.SweepInterval != time.Minute {
		t.Errorf("Session.SweepInterval = %v, want 1m", cfg.Session.SweepInterval)
	}
	if cfg.Remote.Mode != RemoteModeNone {
		t.Errorf("Remote.Mode = %q, want none", cfg.Remote.Mode)
	}
	if cfg.Remote.Enabled() {
		t.Error("remote must be disabled by default")
	}
	if cfg.NeedsPostgres() {
		t.Error("postgres must not be needed by default")
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("HTTP.Addr = %q", cfg.HTTP.Addr)
	}
}

func TestAppConfig_ParseRemoteEnv(t *testing.T) {
	t.Setenv("REMOTE_MODE", "Firebase")
	t.Setenv("REMOTE_API_KEY", " key-123 ")
	t.Setenv("REMOTE_PROJECT_ID", "stock-prod")
	t.Setenv("REMOTE_DOCUMENTS", "postgres")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("REMOTE_IDENTITY_URL", "http://localhost:9099/")
	t.Setenv("SESSION_TTL", "12h")
	t.Setenv("DB_NAME", "inventory")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.Sanitize()

	if cfg.Remote.Mode != RemoteModeFirebase {
		t.Errorf("Remote.Mode = %q", cfg.Remote.Mode)
	}
	if cfg.Remote.APIKey != "key-123" {
		t.Errorf("Remote.APIKey = %q", cfg.Remote.APIKey)
	}
	if cfg.Remote.Timeout != 3*time.Second {
		t.Errorf("Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Remote.IdentityURL != "http://localhost:9099" {
		t.Errorf("Remote.IdentityURL = %q", cfg.Remote.IdentityURL)
	}
	if !cfg.Remote.Enabled() || !cfg.NeedsPostgres() {
		t.Error("remote with postgres documents must be enabled")
	}
	if cfg.Session.TTL != 12*time.Hour {
		t.Errorf("Session.TTL = %v", cfg.Session.TTL)
	}
	if cfg.Postgres.Name != "inventory" {
		t.Errorf("Postgres.Name = %q", cfg.Postgres.Name)
	}
}

func TestAppConfig_InvalidRemoteMode(t *testing.T) {
	t.Setenv("REMOTE_MODE", "ldap")

	var cfg AppConfig
	if err := env.Parse(&cfg); err == nil {
		t.Fatal("expected error for invalid remote mode")
	}
}

func TestRemoteConfig_Enabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  RemoteConfig
		want bool
	}{
		{name: "mode none", cfg: RemoteConfig{Mode: RemoteModeNone, APIKey: "k", ProjectID: "p"}, want: false},
		{name: "missing key", cfg: RemoteConfig{Mode: RemoteModeFirebase, ProjectID: "p"}, want: false},
		{name: "placeholder key", cfg: RemoteConfig{Mode: RemoteModeFirebase, APIKey: "YOUR_API_KEY", ProjectID: "p"}, want: false},
		{name: "firestore needs project", cfg: RemoteConfig{Mode: RemoteModeFirebase, APIKey: "k", Documents: DocumentsFirestore}, want: false},
		{name: "firestore", cfg: RemoteConfig{Mode: RemoteModeFirebase, APIKey: "k", ProjectID: "p", Documents: DocumentsFirestore}, want: true},
		{name: "postgres", cfg: RemoteConfig{Mode: RemoteModeFirebase, APIKey: "k", Documents: DocumentsPostgres}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSanitize_Guardrails(t *testing.T) {
	cfg := AppConfig{
		Session: SessionConfig{TTL: -1, StoreGrace: -time.Minute},
		Remote:  RemoteConfig{RetryCount: -3},
		HTTP:    HTTPConfig{ClientCacheSize: 0},
		Logging: LoggingConfig{Level: " DEBUG ", Format: "xml"},
	}
	cfg.Sanitize()

	if cfg.Session.TTL != 24*time.Hour || cfg.Session.StoreGrace != 0 {
		t.Errorf("session not sanitized: %+v", cfg.Session)
	}
	if cfg.Remote.Mode != RemoteModeNone || cfg.Remote.Timeout != 10*time.Second || cfg.Remote.RetryCount != 0 {
		t.Errorf("remote not sanitized: %+v", cfg.Remote)
	}
	if cfg.HTTP.ClientCacheSize != 1 || cfg.HTTP.ClientIdleTTL != 30*time.Minute {
		t.Errorf("http not sanitized: %+v", cfg.HTTP)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.SlogLevel() != slog.LevelDebug {
		t.Errorf("logging not sanitized: %+v", cfg.Logging)
	}
}

func TestDetectDevMode(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("NODE_ENV=development must enable dev mode")
	}
}

func TestMetricsConfig_Sanitize(t *testing.T) {
	cfg := MetricsConfig{Enabled: true, StatsdAddress: " ", Prefix: "stockgate"}
	cfg.Sanitize()
	if cfg.Enabled {
		t.Fatal("expected metrics to be disabled without an address")
	}

	cfg = MetricsConfig{Enabled: true, StatsdAddress: " statsd:8125 ", Prefix: " .stockgate. "}
	cfg.Sanitize()
	if !cfg.Enabled {
		t.Fatal("expected metrics to remain enabled")
	}
	if cfg.StatsdAddress != "statsd:8125" {
		t.Errorf("StatsdAddress = %q", cfg.StatsdAddress)
	}
	if cfg.Prefix != "stockgate" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
}
