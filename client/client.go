// Package client submits contact forms to the backend with local
// validation, a bounded retry loop and exponential backoff with
// jitter. The submission flow is an explicit state machine
// (idle, submitting, then success or failed) so a form can show progress and
// offer a manual retry after a terminal failure.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/topea/contact-backend/models"
	"github.com/topea/contact-backend/validator"
)

// State of the submission flow.
type State int

// Flow states. Failed transitions back to Submitting on retry.
const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Defaults for a zero-configured client.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
	DefaultTimeout    = 10 * time.Second
	maxJitter         = time.Second
)

// ErrInFlight is returned when Submit is called while another
// submission is still running. Only one flow is active at a time.
var ErrInFlight = errors.New("a submission is already in flight")

// FieldErrors maps form field names to validation messages. It is
// returned by Submit when local validation fails; no network call is
// made in that case.
type FieldErrors map[string]string

func (e FieldErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// StatusError is a non-2xx HTTP response from the backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP %d", e.Status)
}

// Result is the decoded success envelope.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Client submits contact forms. The zero value is not usable;
// construct with New.
type Client struct {
	// URL is the contact endpoint.
	URL string
	// HTTPClient carries the per-request timeout.
	HTTPClient *http.Client
	// MaxRetries bounds automatic re-attempts after the first try.
	MaxRetries int
	// BaseDelay seeds the backoff schedule: BaseDelay * 2^attempt.
	BaseDelay time.Duration
	// OnRetry observes each scheduled retry with the 1-based attempt
	// number about to run.
	OnRetry func(attempt int, err error)
	// OnSuccess observes a completed submission.
	OnSuccess func()

	// sleep and jitter are swapped out in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration

	mu       sync.Mutex
	state    State
	attempts int
	last     *models.ContactSubmission
}

// New returns a Client for the given contact endpoint URL.
func New(url string) *Client {
	return &Client{
		URL:        url,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		sleep:      sleepCtx,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(maxJitter)))
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State reports the current flow state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Attempts reports how many retries the last submission consumed.
func (c *Client) Attempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts
}

// Validate mirrors the server-side rules for name, email and message.
func Validate(sub models.ContactSubmission) FieldErrors {
	errs := FieldErrors{}
	for _, field := range validator.MissingRequired(sub) {
		errs[field] = "this field is required"
	}
	if sub.Email != "" && !validator.ValidEmail(sub.Email) {
		errs["email"] = "invalid email format"
	}
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Submit validates the form locally and drives the submission through
// the retry loop. Retryable failures (network errors and HTTP
// 408/429/500/502/503/504) back off and re-attempt up to MaxRetries;
// anything else fails immediately. A canceled context aborts the flow
// without scheduling a retry.
func (c *Client) Submit(ctx context.Context, sub models.ContactSubmission) error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrInFlight
	}
	if errs := Validate(sub); errs != nil {
		// A rejected form starts the flow over; any earlier outcome
		// no longer applies.
		c.state = StateIdle
		c.mu.Unlock()
		return errs
	}
	c.state = StateSubmitting
	c.attempts = 0
	c.last = &sub
	c.mu.Unlock()

	return c.run(ctx, sub)
}

// Retry restarts the last submission from attempt 0. It is the manual
// affordance offered after a terminal failure.
func (c *Client) Retry(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateSubmitting {
		c.mu.Unlock()
		return ErrInFlight
	}
	if c.last == nil {
		c.mu.Unlock()
		return errors.New("nothing to retry")
	}
	sub := *c.last
	c.state = StateSubmitting
	c.attempts = 0
	c.mu.Unlock()

	return c.run(ctx, sub)
}

func (c *Client) run(ctx context.Context, sub models.ContactSubmission) error {
	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, sub)
		if err == nil {
			c.setState(StateSuccess)
			if c.OnSuccess != nil {
				c.OnSuccess()
			}
			return nil
		}
		// An aborted call counts as neither success nor failure and
		// must not schedule a retry.
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			c.setState(StateIdle)
			return err
		}
		if attempt >= c.MaxRetries || !retryable(err) {
			c.setState(StateFailed)
			return err
		}

		c.mu.Lock()
		c.attempts = attempt + 1
		c.mu.Unlock()
		if c.OnRetry != nil {
			c.OnRetry(attempt+1, err)
		}

		delay := c.BaseDelay*(1<<attempt) + c.jitter()
		if err := c.sleep(ctx, delay); err != nil {
			c.setState(StateIdle)
			return err
		}
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) attempt(ctx context.Context, sub models.ContactSubmission) error {
	payload, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var result Result
	if err := json.Unmarshal(body, &result); err != nil {
		// A non-JSON response is a terminal failure; the backend
		// always answers JSON, so retrying would hit the same wall.
		return fmt.Errorf("server returned non-JSON response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return &StatusError{Status: resp.StatusCode, Message: result.Error}
	}
	if !result.Success {
		return &StatusError{Status: resp.StatusCode, Message: result.Error}
	}
	return nil
}

// retryable classifies failures worth re-attempting: network-type
// errors (timeouts included) and a fixed set of transient HTTP
// statuses.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	// url.Error wraps every transport-level failure (timeouts,
	// connection refused, DNS, reset). Cancellation never reaches
	// here; the run loop checks the context first.
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
