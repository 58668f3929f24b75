// Package monitor tracks security events, suspicious activity and
// potential threats observed by the contact endpoint. Events live only
// in process memory; the monitor exists to aggregate and alert, not to
// persist.
package monitor

import (
	"fmt"
	"sort"
	"sync"
	"time"

	raven "github.com/getsentry/raven-go"
)

// EventType classifies a security event.
type EventType string

// Event types recognized by the monitor.
const (
	RateLimitExceeded   EventType = "RATE_LIMIT_EXCEEDED"
	SuspiciousActivity  EventType = "SUSPICIOUS_ACTIVITY"
	BlockedIP           EventType = "BLOCKED_IP"
	InvalidRequest      EventType = "INVALID_REQUEST"
	XSSAttempt          EventType = "XSS_ATTEMPT"
	SQLInjectionAttempt EventType = "SQL_INJECTION_ATTEMPT"
)

// Severity grades an event.
type Severity string

// Severity levels, least to most urgent.
const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Event is one append-only security observation.
type Event struct {
	Type      EventType         `json:"type"`
	IP        string            `json:"ip"`
	UserAgent string            `json:"userAgent"`
	Timestamp time.Time         `json:"timestamp"`
	Severity  Severity          `json:"severity"`
	Details   map[string]string `json:"details,omitempty"`
}

// Number of same-type events from one IP within an hour before an
// alert fires.
var alertThresholds = map[EventType]int{
	RateLimitExceeded:   5,
	SuspiciousActivity:  3,
	BlockedIP:           1,
	InvalidRequest:      3,
	XSSAttempt:          1,
	SQLInjectionAttempt: 1,
}

const (
	maxEvents     = 10000
	retention     = 24 * time.Hour
	pruneInterval = time.Hour
	alertWindow   = time.Hour
)

// Monitor aggregates security events. Construct with New, call Start
// to begin the periodic prune, Close on shutdown. Safe for concurrent
// use.
type Monitor struct {
	mu     sync.Mutex
	events []Event

	capacity int
	now      func() time.Time
	// alert is called when an event type crosses its threshold for an
	// IP. Defaults to a sentry capture; a test hook otherwise.
	alert func(Event, int)

	done chan struct{}
	once sync.Once
}

// New returns a Monitor with sentry-backed alerting.
func New() *Monitor {
	m := &Monitor{
		capacity: maxEvents,
		now:      time.Now,
		done:     make(chan struct{}),
	}
	m.alert = m.reportToSentry
	return m
}

// Log appends an event, stamping it with the current time, and fires
// an alert if this IP has crossed the threshold for the event's type
// within the last hour. The oldest events are evicted beyond capacity.
func (m *Monitor) Log(e Event) {
	m.mu.Lock()
	e.Timestamp = m.now()
	m.events = append(m.events, e)
	if len(m.events) > m.capacity {
		m.events = m.events[len(m.events)-m.capacity:]
	}
	count := m.recentCountLocked(e.IP, e.Type)
	m.mu.Unlock()

	if count >= alertThresholds[e.Type] {
		m.alert(e, count)
	}
}

// recentCountLocked counts same-type events from ip inside the alert
// window. Callers hold mu.
func (m *Monitor) recentCountLocked(ip string, t EventType) int {
	cutoff := m.now().Add(-alertWindow)
	count := 0
	for _, e := range m.events {
		if e.IP == ip && e.Type == t && e.Timestamp.After(cutoff) {
			count++
		}
	}
	return count
}

func (m *Monitor) reportToSentry(e Event, count int) {
	raven.CaptureMessage(
		fmt.Sprintf("security alert: %s from %s (%d events in last hour)", e.Type, e.IP, count),
		map[string]string{
			"eventType": string(e.Type),
			"ip":        e.IP,
			"severity":  string(e.Severity),
		})
}

// Start launches the hourly prune of events older than the retention
// period.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.prune()
			case <-m.done:
				return
			}
		}
	}()
}

// Close stops the prune timer and clears all recorded events. Safe to
// call more than once.
func (m *Monitor) Close() {
	m.once.Do(func() { close(m.done) })
	m.mu.Lock()
	m.events = nil
	m.mu.Unlock()
}

func (m *Monitor) prune() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.now().Add(-retention)
	kept := m.events[:0]
	for _, e := range m.events {
		if e.Timestamp.After(cutoff) {
			kept = append(kept, e)
		}
	}
	m.events = kept
}

// IPCount pairs an IP with its event count for the report.
type IPCount struct {
	IP         string `json:"ip"`
	EventCount int    `json:"eventCount"`
}

// Report is the aggregate view served by the security-report endpoint.
type Report struct {
	TotalEvents          int               `json:"totalEvents"`
	EventsByType         map[EventType]int `json:"eventsByType"`
	TopOffendingIPs      []IPCount         `json:"topOffendingIPs"`
	RecentCriticalEvents []Event           `json:"recentCriticalEvents"`
}

// Report aggregates the recorded events: totals, per-type counts, the
// ten busiest IPs and the last twenty critical events.
func (m *Monitor) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[EventType]int)
	byIP := make(map[string]int)
	var critical []Event
	for _, e := range m.events {
		byType[e.Type]++
		byIP[e.IP]++
		if e.Severity == SeverityCritical {
			critical = append(critical, e)
		}
	}

	top := make([]IPCount, 0, len(byIP))
	for ip, count := range byIP {
		top = append(top, IPCount{IP: ip, EventCount: count})
	}
	sort.Slice(top, func(i, j int) bool { return top[i].EventCount > top[j].EventCount })
	if len(top) > 10 {
		top = top[:10]
	}
	if len(critical) > 20 {
		critical = critical[len(critical)-20:]
	}

	return Report{
		TotalEvents:          len(m.events),
		EventsByType:         byType,
		TopOffendingIPs:      top,
		RecentCriticalEvents: critical,
	}
}
