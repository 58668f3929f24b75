package api

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ulule/limiter"
	"github.com/ulule/limiter/drivers/middleware/stdlib"
	"github.com/ulule/limiter/drivers/store/memory"
)

func TestThrottleRejectsOverLimit(t *testing.T) {
	// throttleHandler bypasses itself under the test flag, so build
	// the same middleware it constructs in production.
	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  2,
	}
	rateLimiter := stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate),
		stdlib.WithForwardHeader(true))
	handler := rateLimiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	server := httptest.NewServer(handler)
	defer server.Close()

	status := func() int {
		req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode
	}

	for i := 0; i < 2; i++ {
		if got := status(); got != http.StatusOK {
			t.Fatalf("request %d status = %d, want 200", i+1, got)
		}
	}
	if got := status(); got != http.StatusTooManyRequests {
		t.Errorf("3rd request status = %d, want 429", got)
	}
}

func TestPanicRecovery(t *testing.T) {
	server := httptest.NewServer(recoveryHandler(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			panic(errors.New("unexpected failure"))
		})))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
