package cli

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-authgate/memberguard/internal/core"

	"go.uber.org/zap"
)

const probeTimeout = 3 * time.Second

// consoleNavigator tracks the route the member would be looking at. A
// terminal has no pages, so route changes are only recorded and logged.
type consoleNavigator struct {
	mu      sync.Mutex
	current string
	logger  *zap.Logger
}

func newConsoleNavigator(logger *zap.Logger) *consoleNavigator {
	return &consoleNavigator{current: core.RouteLogin, logger: logger}
}

func (n *consoleNavigator) Current() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

func (n *consoleNavigator) Replace(route string) {
	n.mu.Lock()
	from := n.current
	n.current = route
	n.mu.Unlock()

	if from != route {
		n.logger.Debug("route changed", zap.String("from", from), zap.String("to", route))
	}
}

// healthProbe decides connectivity from the backend's /health endpoint.
// Online reports the last observed result and starts out optimistic.
type healthProbe struct {
	url    string
	client *http.Client
	online atomic.Bool
}

func newHealthProbe(serverURL string) *healthProbe {
	p := &healthProbe{
		url:    strings.TrimRight(serverURL, "/") + "/health",
		client: &http.Client{Timeout: probeTimeout},
	}
	p.online.Store(true)
	return p
}

func (p *healthProbe) Online() bool {
	return p.online.Load()
}

// Check probes the server once and reports whether the result changed. Any
// HTTP response counts as reachable; an unhealthy backend is still online.
func (p *healthProbe) Check(ctx context.Context) (online, changed bool) {
	online = p.reach(ctx)
	return online, p.online.Swap(online) != online
}

func (p *healthProbe) reach(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
