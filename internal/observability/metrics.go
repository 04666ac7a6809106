package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	updateCount  map[string]int64
	eventCount   map[string]int64
	trackerCalls map[string]int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests map[string]int64 `json:"requests"`
	Errors   map[string]int64 `json:"errors"`
	Updates  map[string]int64 `json:"updates"`
	Events   map[string]int64 `json:"events"`
	Tracker  map[string]int64 `json:"tracker"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		updateCount:  make(map[string]int64),
		eventCount:   make(map[string]int64),
		trackerCalls: make(map[string]int64),
	}
}

// RecordRequest increments counters for HTTP requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordUpdate counts chat updates by kind and outcome.
func (m *Metrics) RecordUpdate(kind string, failed bool) {
	if m == nil {
		return
	}
	key := kind + "|ok"
	if failed {
		key = kind + "|error"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCount[key]++
}

// RecordEvent counts published lifecycle events.
func (m *Metrics) RecordEvent(eventType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.eventCount[eventType]++
}

// RecordTrackerCall counts outbound tracker requests by operation and status.
func (m *Metrics) RecordTrackerCall(op string, status int) {
	if m == nil {
		return
	}
	key := op + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackerCalls[key]++
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests: copyCounts(m.requestCount),
		Errors:   copyCounts(m.errorCount),
		Updates:  copyCounts(m.updateCount),
		Events:   copyCounts(m.eventCount),
		Tracker:  copyCounts(m.trackerCalls),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
