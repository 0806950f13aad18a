// Package keepalive keeps the remote analysis service warm. Free-tier
// hosts spin the service down after idle periods, turning the first
// analysis of a session into a multi-minute cold start; a periodic ping
// prevents that.
package keepalive

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Stats is a snapshot of the poller's activity.
type Stats struct {
	Pings       int
	Failures    int
	LastPing    time.Time
	LastLatency time.Duration
	LastErr     string
	Healthy     bool
}

// Poller pings the analyzer's /ping endpoint at a fixed interval. Callers
// own its lifecycle: Start launches the loop, Stop tears it down. There is
// no ambient global.
type Poller struct {
	baseURL  string
	interval time.Duration
	httpc    *http.Client

	mu     sync.Mutex
	stats  Stats
	cancel context.CancelFunc
	done   chan struct{}
}

// NewPoller creates a poller for the analyzer at baseURL. Interval
// defaults to 10 minutes, which is well under the typical idle cutoff.
func NewPoller(baseURL string, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Poller{
		baseURL:  strings.TrimRight(baseURL, "/"),
		interval: interval,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Start launches the ping loop. It pings once immediately so the service
// starts waking before the first upload. Calling Start twice is an error.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return fmt.Errorf("keepalive poller already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	slog.Info("starting keepalive poller",
		"target", p.baseURL,
		"interval", p.interval,
	)

	go p.run(ctx)
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call on a poller
// that was never started.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	slog.Info("keepalive poller stopped")
}

// Status returns a copy of the current stats.
func (p *Poller) Status() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	p.ping(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.ping(ctx)
		}
	}
}

func (p *Poller) ping(ctx context.Context) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/ping", nil)
	if err != nil {
		p.record(0, err)
		return
	}

	started := time.Now()
	resp, err := p.httpc.Do(req)
	latency := time.Since(started)
	if err != nil {
		p.record(latency, err)
		slog.Warn("keepalive ping failed", "error", err)
		return
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err = fmt.Errorf("ping returned %d", resp.StatusCode)
		p.record(latency, err)
		slog.Warn("keepalive ping failed", "error", err)
		return
	}

	p.record(latency, nil)
	slog.Debug("keepalive ping ok", "latency", latency.Round(time.Millisecond))
}

func (p *Poller) record(latency time.Duration, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Pings++
	p.stats.LastPing = time.Now()
	p.stats.LastLatency = latency
	if err != nil {
		p.stats.Failures++
		p.stats.LastErr = err.Error()
		p.stats.Healthy = false
		return
	}
	p.stats.LastErr = ""
	p.stats.Healthy = true
}
