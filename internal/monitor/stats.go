package monitor

import (
	"encoding/json"
	"fmt"
	"time"
)

const DefaultHealthWindow = 5 * time.Minute

type Stats struct {
	TotalCalls   int            `json:"totalCalls"`
	SuccessCalls int            `json:"successCalls"`
	ErrorCalls   int            `json:"errorCalls"`
	SuccessRate  float64        `json:"successRate"`
	AvgDuration  time.Duration  `json:"avgDuration"`
	ErrorsByType map[string]int `json:"errorsByType"`
}

const (
	Healthy  = "healthy"
	Degraded = "degraded"
	Down     = "down"
)

type HealthStatus struct {
	Status      string  `json:"status"`
	SuccessRate float64 `json:"successRate"`
	RecentCalls int     `json:"recentCalls"`
}

// Stats aggregates over every retained entry. Any entry that has not
// succeeded, in flight included, counts as an error; one without a
// status is bucketed as "network".
func (m *Monitor) Stats() Stats {
	return computeStats(m.Logs())
}

func computeStats(logs []CallLogEntry) Stats {
	s := Stats{TotalCalls: len(logs), ErrorsByType: map[string]int{}}

	var total time.Duration
	var timed int
	for _, e := range logs {
		if e.Success {
			s.SuccessCalls++
		} else {
			status := 0
			if e.Status != nil {
				status = *e.Status
			}
			s.ErrorsByType[errorType(status)]++
		}
		if e.Duration != nil {
			total += *e.Duration
			timed++
		}
	}

	s.ErrorCalls = s.TotalCalls - s.SuccessCalls
	if s.TotalCalls > 0 {
		s.SuccessRate = float64(s.SuccessCalls) / float64(s.TotalCalls) * 100
	}
	if timed > 0 {
		s.AvgDuration = total / time.Duration(timed)
	}
	return s
}

func errorType(status int) string {
	if status == 0 {
		return "network"
	}
	return fmt.Sprintf("status_%d", status)
}

// Health scores the calls started within the trailing window. No data
// is reported as healthy.
func (m *Monitor) Health(window time.Duration) HealthStatus {
	if window <= 0 {
		window = DefaultHealthWindow
	}
	cutoff := m.now().Add(-window)

	var recent, ok int
	for _, e := range m.Logs() {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		recent++
		if e.Success {
			ok++
		}
	}

	if recent == 0 {
		return HealthStatus{Status: Healthy, SuccessRate: 100}
	}
	rate := float64(ok) / float64(recent) * 100
	status := Down
	switch {
	case rate >= 95:
		status = Healthy
	case rate >= 80:
		status = Degraded
	}
	return HealthStatus{Status: status, SuccessRate: rate, RecentCalls: recent}
}

type exportDoc struct {
	Timestamp time.Time      `json:"timestamp"`
	Stats     Stats          `json:"stats"`
	Logs      []CallLogEntry `json:"logs"`
}

// Export renders the buffer and its stats as indented JSON. Entries are
// exported as recorded, headers and payloads included.
func (m *Monitor) Export() ([]byte, error) {
	logs := m.Logs()
	doc := exportDoc{Timestamp: m.now(), Stats: computeStats(logs), Logs: logs}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export monitor logs: %w", err)
	}
	return b, nil
}
