package tutorapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})

	if cb.config.FailureThreshold != 5 {
		t.Errorf("Expected default FailureThreshold=5, got %d", cb.config.FailureThreshold)
	}
	if cb.config.RecoveryTimeout != 60*time.Second {
		t.Errorf("Expected default RecoveryTimeout=60s, got %v", cb.config.RecoveryTimeout)
	}
	if cb.config.SuccessThreshold != 2 {
		t.Errorf("Expected default SuccessThreshold=2, got %d", cb.config.SuccessThreshold)
	}
	if cb.State() != StateClosed {
		t.Errorf("Expected initial state=closed, got %v", cb.State())
	}
}

func TestCircuitBreakerLifecycle(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  20 * time.Millisecond,
		SuccessThreshold: 2,
	})

	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("Expected closed after one failure, got %v", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("Expected open after threshold, got %v", cb.State())
	}
	if cb.Allow() {
		t.Error("Expected open breaker to reject")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Expected probe after recovery timeout")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("Expected half-open, got %v", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != StateHalfOpen {
		t.Errorf("Expected still half-open after one success, got %v", cb.State())
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Errorf("Expected closed after success threshold, got %v", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: time.Millisecond})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	cb.Allow()

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Errorf("Expected failed probe to reopen, got %v", cb.State())
	}
}

func TestCircuitStateString(t *testing.T) {
	if StateHalfOpen.String() != "half-open" || StateOpen.String() != "open" || StateClosed.String() != "closed" {
		t.Error("Unexpected state names")
	}
}

func TestClientCircuitBreakerFailsFast(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeBody(t, w, http.StatusInternalServerError, `{}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL,
		WithMaxRetries(0),
		WithCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: time.Hour}),
	)

	client.Get(context.Background(), "/a/")
	client.Get(context.Background(), "/b/")
	resp := client.Get(context.Background(), "/c/")

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("Expected the open breaker to stop the third call, got %d calls", got)
	}
	if resp.Kind != ErrorKindNetwork || resp.Error != MsgNetwork {
		t.Errorf("Expected network failure from open breaker, got %s %q", resp.Kind, resp.Error)
	}
}
