package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	raven "github.com/getsentry/raven-go"

	"github.com/topea/contact-backend/models"
	"github.com/topea/contact-backend/monitor"
	"github.com/topea/contact-backend/ratelimit"
	"github.com/topea/contact-backend/validator"
)

// Largest request body we will decode.
const maxBodyBytes = 1 << 20

// RateLimiter wraps the per-client submission limiter.
type RateLimiter interface {
	Allow(key string) bool
}

// EmailSender interface wraps a back-end that can send e-mails.
type EmailSender interface {
	// SendSubmission dispatches the operator notification and the
	// submitter auto-reply for one contact form submission.
	SendSubmission(models.ContactSubmission) error
}

// API is the HTTP API that this service provides.
// All responses are a small JSON envelope: {"success":true} on
// success, {"error":"..."} otherwise.
type API struct {
	Limiter RateLimiter
	Emailer EmailSender
	// Monitor is optional; a nil monitor disables security tracking.
	Monitor *monitor.Monitor
	// AllowedOrigins is the fixed CORS allow-list (production domains
	// plus local dev ports).
	AllowedOrigins []string
	// ReportToken protects /api/security-report. Empty disables the
	// endpoint.
	ReportToken string
}

type response struct {
	StatusCode int    `json:"-"`
	Success    bool   `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
}

type apiHandler func(r *http.Request) response

func (api *API) wrapper(handler apiHandler) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		response := handler(r)
		if response.StatusCode == http.StatusInternalServerError {
			packet := raven.NewPacket(response.Error, raven.NewHttp(r))
			raven.Capture(packet, nil)
		}
		api.writeJSON(w, response)
	}
}

func pingHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}

// RegisterHandlers binds API functions to the given http server,
// and returns the resulting handler.
func (api *API) RegisterHandlers(mux *http.ServeMux) http.Handler {
	mux.HandleFunc("/api/contact", api.contactHandler)
	mux.HandleFunc("/api/security-report", api.securityReportHandler)
	mux.HandleFunc("/api/ping", pingHandler)
	return middleware(mux, api.AllowedOrigins)
}

// contactHandler serves POST /api/contact: rate check, honeypot,
// required fields, email format, then dual mail dispatch. OPTIONS
// preflights are always answered 200 before any of that runs.
func (api *API) contactHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		api.writeJSON(w, response{
			StatusCode: http.StatusMethodNotAllowed,
			Error:      fmt.Sprintf("Method %s Not Allowed", r.Method),
		})
		return
	}
	api.wrapper(api.contact)(w, r)
}

func (api *API) contact(r *http.Request) response {
	clientKey := ratelimit.ClientKey(r)

	if !api.Limiter.Allow(clientKey) {
		if api.Monitor != nil {
			api.Monitor.Log(monitor.Event{
				Type:      monitor.RateLimitExceeded,
				IP:        clientKey,
				UserAgent: r.UserAgent(),
				Severity:  monitor.SeverityMedium,
			})
		}
		return response{
			StatusCode: http.StatusTooManyRequests,
			Error:      "Too many requests, please try again later.",
		}
	}

	// Read one byte past the cap so oversized bodies are detectable.
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return badRequest("Name, email, and message are required")
	}
	if api.Monitor != nil {
		api.Monitor.Inspect(r, body)
	}

	var sub models.ContactSubmission
	if err := json.Unmarshal(body, &sub); err != nil {
		if api.Monitor != nil {
			api.Monitor.Log(monitor.Event{
				Type:      monitor.InvalidRequest,
				IP:        clientKey,
				UserAgent: r.UserAgent(),
				Severity:  monitor.SeverityLow,
				Details:   map[string]string{"reason": "malformed JSON body"},
			})
		}
		return badRequest("Name, email, and message are required")
	}

	// A populated honeypot means a bot. Reply exactly like a success
	// so the detection stays invisible, and send nothing.
	if sub.IsSpam() {
		if api.Monitor != nil {
			api.Monitor.Log(monitor.Event{
				Type:      monitor.SuspiciousActivity,
				IP:        clientKey,
				UserAgent: r.UserAgent(),
				Severity:  monitor.SeverityLow,
				Details:   map[string]string{"reason": "honeypot field populated"},
			})
		}
		return response{StatusCode: http.StatusOK, Success: true}
	}

	if missing := validator.MissingRequired(sub); len(missing) > 0 {
		return badRequest("Name, email, and message are required")
	}
	if !validator.ValidEmail(sub.Email) {
		return badRequest("Invalid email format")
	}

	if err := api.Emailer.SendSubmission(sub); err != nil {
		log.Printf("contact submission from %s: %v", clientKey, err)
		return response{
			StatusCode: http.StatusInternalServerError,
			Error:      "Failed to send email. Please try again later.",
		}
	}
	return response{StatusCode: http.StatusOK, Success: true}
}

// securityReportHandler serves GET /api/security-report: a read-only,
// bearer-token protected aggregate of the security monitor.
func (api *API) securityReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		api.writeJSON(w, response{
			StatusCode: http.StatusMethodNotAllowed,
			Error:      fmt.Sprintf("Method %s Not Allowed", r.Method),
		})
		return
	}
	if api.ReportToken == "" || api.Monitor == nil {
		api.writeJSON(w, response{StatusCode: http.StatusNotFound, Error: "Not Found"})
		return
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if token == "" || token != api.ReportToken {
		api.writeJSON(w, response{StatusCode: http.StatusUnauthorized, Error: "Unauthorized"})
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.Monitor.Report()); err != nil {
		log.Println(err)
	}
}

// Writes the response envelope as a JSON object to w.
func (api *API) writeJSON(w http.ResponseWriter, apiResponse response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(apiResponse.StatusCode)
	b, err := json.Marshal(apiResponse)
	if err != nil {
		msg := fmt.Sprintf("Internal error: could not format JSON. (%s)\n", err)
		http.Error(w, msg, http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "%s\n", b)
}

func badRequest(format string, a ...interface{}) response {
	return response{
		StatusCode: http.StatusBadRequest,
		Error:      fmt.Sprintf(format, a...),
	}
}
