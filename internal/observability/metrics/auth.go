// Package metrics names the counters emitted by the session layer.
package metrics

import (
	"time"

	obserrors "github.com/target/stockgate/internal/observability/errors"
	"github.com/target/stockgate/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// Auth actions.
const (
	ActionSignIn  = "sign_in"
	ActionSignUp  = "sign_up"
	ActionSignOut = "sign_out"
)

// AuthMetric describes one sign-in, sign-up or sign-out attempt.
type AuthMetric struct {
	Action   string
	Duration time.Duration
	Err      error
}

// EmitAuth counts an auth attempt and records its latency.
func EmitAuth(sink statsd.Sink, in AuthMetric) {
	if sink == nil {
		return
	}
	tags := map[string]string{"action": in.Action, "result": ResultSuccess}
	if in.Err != nil {
		tags["result"] = ResultError
		tags["error_class"] = obserrors.Classify(in.Err)
	}
	sink.Count("auth.attempt", 1, tags)
	if in.Duration > 0 {
		sink.Timing("auth.duration", in.Duration, CloneTags(tags))
	}
}

// EmitGateDecision counts an access decision for a page.
func EmitGateDecision(sink statsd.Sink, page, decision string, denied bool) {
	if sink == nil {
		return
	}
	tags := map[string]string{"page": page, "decision": decision}
	if denied {
		tags["reason"] = "role"
	}
	sink.Count("gate.decision", 1, tags)
}

// EmitSessionExpired counts a forced sign-out by the expiration sweep.
func EmitSessionExpired(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count("session.expired", 1, nil)
}

// EmitActiveClients reports how many client runtimes are resident.
func EmitActiveClients(sink statsd.Sink, n int) {
	if sink == nil {
		return
	}
	sink.Gauge("clients.active", float64(n), nil)
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
