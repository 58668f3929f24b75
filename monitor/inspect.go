package monitor

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/topea/contact-backend/ratelimit"
)

// maxBodySize is the request size past which a submission is flagged
// as suspicious.
const maxBodySize = 1 << 20

var xssPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<script`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)on\w+\s*=`),
	regexp.MustCompile(`(?i)<iframe`),
	regexp.MustCompile(`(?i)eval\(`),
	regexp.MustCompile(`(?i)document\.cookie`),
}

var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)union\s+select`),
	regexp.MustCompile(`(?i)drop\s+table`),
	regexp.MustCompile(`(?i)insert\s+into`),
	regexp.MustCompile(`(?i)delete\s+from`),
	regexp.MustCompile(`(?i)update\s+set`),
	regexp.MustCompile(`(?i)'\s*or\s*'1'\s*=\s*'1`),
	regexp.MustCompile(`(?i)'\s*or\s*1\s*=\s*1`),
}

var suspiciousAgents = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bot`),
	regexp.MustCompile(`(?i)crawler`),
	regexp.MustCompile(`(?i)spider`),
	regexp.MustCompile(`(?i)scraper`),
	regexp.MustCompile(`(?i)curl`),
	regexp.MustCompile(`(?i)wget`),
	regexp.MustCompile(`(?i)python`),
	regexp.MustCompile(`(?i)php`),
}

func matchesAny(patterns []*regexp.Regexp, inputs ...string) bool {
	for _, p := range patterns {
		for _, in := range inputs {
			if p.MatchString(in) {
				return true
			}
		}
	}
	return false
}

// Inspect pattern-matches a request and its decoded body for
// injection and XSS signatures and logs whatever it finds. It never
// blocks the request; detection is advisory and the sanitizer is the
// actual defense.
func (m *Monitor) Inspect(r *http.Request, body []byte) {
	ip := ratelimit.ClientKey(r)
	agent := r.UserAgent()
	if agent == "" {
		agent = "unknown"
	}
	url := strings.ToLower(r.URL.String())
	payload := strings.ToLower(string(body))

	if matchesAny(xssPatterns, url, payload) {
		m.Log(Event{
			Type:      XSSAttempt,
			IP:        ip,
			UserAgent: agent,
			Severity:  SeverityCritical,
			Details:   map[string]string{"url": r.URL.String(), "method": r.Method},
		})
	}
	if matchesAny(sqlPatterns, url, payload) {
		m.Log(Event{
			Type:      SQLInjectionAttempt,
			IP:        ip,
			UserAgent: agent,
			Severity:  SeverityCritical,
			Details:   map[string]string{"url": r.URL.String(), "method": r.Method},
		})
	}
	if matchesAny(suspiciousAgents, agent) {
		m.Log(Event{
			Type:      SuspiciousActivity,
			IP:        ip,
			UserAgent: agent,
			Severity:  SeverityMedium,
			Details:   map[string]string{"reason": "suspicious user agent"},
		})
	}
	if len(body) > maxBodySize {
		m.Log(Event{
			Type:      SuspiciousActivity,
			IP:        ip,
			UserAgent: agent,
			Severity:  SeverityMedium,
			Details:   map[string]string{"reason": "large request size"},
		})
	}
}
