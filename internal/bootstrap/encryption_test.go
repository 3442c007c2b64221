package bootstrap

import (
	"strings"
	"testing"

	"github.com/target/stockgate/config"
	"github.com/target/stockgate/internal/data/cryptoutil"
)

func TestNewCredentialSealer(t *testing.T) {
	if _, ok := NewCredentialSealer("", nil).(cryptoutil.PlainSealer); !ok {
		t.Fatal("empty key should store credentials unsealed")
	}

	for _, key := range []string{strings.Repeat("0f", 32), "a passphrase"} {
		s := NewCredentialSealer(key, nil)
		if _, ok := s.(*cryptoutil.AESGCMSealer); !ok {
			t.Fatalf("key %q: got %T, want AES-GCM sealer", key, s)
		}
		sealed, err := s.Seal([]byte("token"))
		if err != nil {
			t.Fatalf("seal: %v", err)
		}
		opened, err := s.Open(sealed)
		if err != nil || string(opened) != "token" {
			t.Fatalf("open = %q, %v", opened, err)
		}
	}
}

func TestNewMetricsClient(t *testing.T) {
	if c := NewMetricsClient(config.MetricsConfig{}, nil); c != nil {
		t.Fatal("disabled metrics should not build a client")
	}
	if c := NewMetricsClient(config.MetricsConfig{Enabled: true, StatsdAddress: "bad address"}, nil); c != nil {
		t.Fatal("failed dial should leave metrics off")
	}

	c := NewMetricsClient(config.MetricsConfig{Enabled: true, StatsdAddress: "127.0.0.1:8125", Prefix: "stockgate"}, nil)
	if c == nil || !c.Enabled() {
		t.Fatal("expected an enabled client")
	}
	infra := &Infrastructure{Metrics: c}
	if infra.MetricsSink() == nil {
		t.Fatal("expected a sink")
	}
	if err := infra.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if (&Infrastructure{}).MetricsSink() != nil {
		t.Fatal("expected nil sink without a client")
	}
}
