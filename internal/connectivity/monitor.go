package connectivity

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/vytor/kotoflash/internal/logger"
)

// Monitor probes an HTTP endpoint on a fixed interval. Any response below
// 500 counts as online; transport errors and 5xx count as offline.
type Monitor struct {
	notifier
	url        string
	interval   time.Duration
	httpClient *http.Client
	log        *logger.Logger
}

func NewMonitor(url string, interval time.Duration) *Monitor {
	timeout := interval
	if timeout <= 0 || timeout > 10*time.Second {
		timeout = 10 * time.Second
	}
	return &Monitor{
		url:        url,
		interval:   interval,
		httpClient: &http.Client{Timeout: timeout},
		log:        logger.Default().WithPrefix("connectivity"),
	}
}

// Run probes until ctx is cancelled. The first probe runs immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.log.Info("monitoring %s every %v", m.url, m.interval)
	m.check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	online := m.Probe(ctx)
	if ctx.Err() != nil {
		return
	}
	if m.set(online) {
		m.log.Info("connectivity changed: online=%t", online)
	}
}

// Probe performs a single request against the probe URL.
func (m *Monitor) Probe(ctx context.Context) bool {
	log := m.log.WithField("url", m.url)
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		log.Error("failed to create request: %v", err)
		return false
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Debug("probe failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))

	log.Debug("probe response in %v, status=%d", time.Since(start), resp.StatusCode)
	return resp.StatusCode < http.StatusInternalServerError
}
