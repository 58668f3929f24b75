package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/topea/contact-backend/models"
)

var validSubmission = models.ContactSubmission{
	Name: "Jane", Email: "jane@x.com", Message: "Hi",
}

// newTestClient returns a client with deterministic timing: jitter is
// zero and sleeps are recorded instead of slept.
func newTestClient(url string) (*Client, *[]time.Duration) {
	c := New(url)
	c.BaseDelay = 10 * time.Millisecond
	c.jitter = func() time.Duration { return 0 }
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return ctx.Err()
	}
	return c, &slept
}

func TestSubmitRetriesThenSucceeds(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintln(w, `{"error":"Failed to send email. Please try again later."}`)
			return
		}
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer server.Close()

	c, slept := newTestClient(server.URL)
	var retries []int
	c.OnRetry = func(attempt int, err error) {
		retries = append(retries, attempt)
	}
	succeeded := false
	c.OnSuccess = func() { succeeded = true }

	if err := c.Submit(context.Background(), validSubmission); err != nil {
		t.Fatalf("Submit should eventually succeed, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, server saw %d", got)
	}
	if len(retries) != 2 || retries[0] != 1 || retries[1] != 2 {
		t.Errorf("retry observer should see attempts [1 2], got %v", retries)
	}
	if !succeeded {
		t.Errorf("success observer should fire")
	}
	if c.State() != StateSuccess {
		t.Errorf("state = %v, want success", c.State())
	}
	// Backoff is monotonically increasing per attempt.
	if len(*slept) != 2 || (*slept)[0] >= (*slept)[1] {
		t.Errorf("backoff delays should increase, got %v", *slept)
	}
	if (*slept)[0] != 10*time.Millisecond || (*slept)[1] != 20*time.Millisecond {
		t.Errorf("delays should follow base*2^attempt with zero jitter, got %v", *slept)
	}
}

func TestSubmitTerminalFailure(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"error":"Invalid email format"}`)
	}))
	defer server.Close()

	c, slept := newTestClient(server.URL)
	err := c.Submit(context.Background(), validSubmission)
	if err == nil {
		t.Fatalf("terminal failure should surface")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("4xx must not be retried, server saw %d calls", got)
	}
	if len(*slept) != 0 {
		t.Errorf("no backoff should be scheduled for a terminal failure")
	}
	if c.State() != StateFailed {
		t.Errorf("state = %v, want failed", c.State())
	}
}

func TestManualRetryRestartsFromZero(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n == 1 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprintln(w, `{"error":"forbidden"}`)
			return
		}
		fmt.Fprintln(w, `{"success":true}`)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	if err := c.Submit(context.Background(), validSubmission); err == nil {
		t.Fatalf("first submission should fail")
	}
	if err := c.Retry(context.Background()); err != nil {
		t.Fatalf("manual retry should succeed, got %v", err)
	}
	if c.State() != StateSuccess {
		t.Errorf("state = %v, want success", c.State())
	}
	if c.Attempts() != 0 {
		t.Errorf("manual retry restarts from attempt 0, counter = %d", c.Attempts())
	}
}

func TestRetriesExhausted(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintln(w, `{"error":"unavailable"}`)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	err := c.Submit(context.Background(), validSubmission)
	if err == nil {
		t.Fatalf("exhausted retries should fail")
	}
	// Initial attempt plus MaxRetries re-attempts.
	if got := atomic.LoadInt32(&calls); got != int32(1+c.MaxRetries) {
		t.Errorf("server saw %d calls, want %d", got, 1+c.MaxRetries)
	}
	if c.State() != StateFailed {
		t.Errorf("state = %v, want failed", c.State())
	}
}

func TestLocalValidationBlocksNetworkCall(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	err := c.Submit(context.Background(), models.ContactSubmission{
		Name: "Jane", Email: "a@b", Message: "Hi",
	})
	fieldErrs, ok := err.(FieldErrors)
	if !ok {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if _, ok := fieldErrs["email"]; !ok {
		t.Errorf("email should carry a field-level error, got %v", fieldErrs)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Errorf("invalid form must not reach the network")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle", c.State())
	}
}

func TestValidationResetsFailedState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"error":"Invalid email format"}`)
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	if err := c.Submit(context.Background(), validSubmission); err == nil {
		t.Fatalf("terminal failure should surface")
	}
	if c.State() != StateFailed {
		t.Fatalf("state = %v, want failed", c.State())
	}

	// A locally rejected form starts a new flow; the stale failure
	// does not linger.
	err := c.Submit(context.Background(), models.ContactSubmission{
		Name: "Jane", Email: "a@b", Message: "Hi",
	})
	if _, ok := err.(FieldErrors); !ok {
		t.Fatalf("expected FieldErrors, got %v", err)
	}
	if c.State() != StateIdle {
		t.Errorf("state after rejected form = %v, want idle", c.State())
	}
}

func TestCancellationDoesNotRetry(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c, slept := newTestClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := c.Submit(ctx, validSubmission)
	if err == nil {
		t.Fatalf("canceled submission should return an error")
	}
	if len(*slept) != 0 {
		t.Errorf("an aborted call must not schedule a retry")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %v, want idle after cancellation", c.State())
	}
}

func TestNonJSONResponseIsTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, "<html>gateway error page</html>")
	}))
	defer server.Close()

	c, _ := newTestClient(server.URL)
	err := c.Submit(context.Background(), validSubmission)
	if err == nil {
		t.Fatalf("non-JSON response should fail")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("non-JSON responses must not be retried, server saw %d calls", got)
	}
}

func TestSubmitWhileInFlight(t *testing.T) {
	c, _ := newTestClient("http://localhost:0")
	c.state = StateSubmitting
	if err := c.Submit(context.Background(), validSubmission); err != ErrInFlight {
		t.Errorf("expected ErrInFlight, got %v", err)
	}
}
