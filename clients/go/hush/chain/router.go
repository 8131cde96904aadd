package chain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// DefaultEndpoints are public Sepolia RPC nodes used when no endpoints are
// configured.
var DefaultEndpoints = []string{
	"https://starknet-sepolia-rpc.publicnode.com",
	"https://rpc.starknet-testnet.lava.build:443",
}

// EndpointHealth holds last-write-wins counters for one RPC candidate.
type EndpointHealth struct {
	URL         string
	Successes   int64
	Failures    int64
	LastLatency time.Duration
	LastError   string
}

// Dialer opens a ChainClient against one endpoint. Injectable so the router
// is testable without network access.
type Dialer func(nodeURL string) (ChainClient, error)

// Router picks the first healthy endpoint from an ordered candidate list.
// It is an explicit injectable service object: construct one per process and
// pass it by reference. Health counters are read-mostly shared state;
// updates are last-write-wins under a light mutex.
type Router struct {
	endpoints []string
	dial      Dialer
	probeTTL  time.Duration

	mu     sync.Mutex
	health map[string]*EndpointHealth
}

// NewRouter builds a router over ordered candidate endpoints.
func NewRouter(endpoints []string, dial Dialer) *Router {
	if len(endpoints) == 0 {
		endpoints = DefaultEndpoints
	}
	if dial == nil {
		dial = NewStarknetClient
	}
	health := make(map[string]*EndpointHealth, len(endpoints))
	for _, url := range endpoints {
		health[url] = &EndpointHealth{URL: url}
	}
	return &Router{
		endpoints: endpoints,
		dial:      dial,
		probeTTL:  10 * time.Second,
		health:    health,
	}
}

// Pick returns a client for the first candidate that answers a ChainID
// probe, in configuration order. It fails only when every candidate is down.
func (r *Router) Pick(ctx context.Context) (ChainClient, error) {
	var lastErr error
	for _, url := range r.endpoints {
		client, err := r.dial(url)
		if err != nil {
			r.recordFailure(url, err)
			lastErr = err
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, r.probeTTL)
		start := time.Now()
		_, err = client.ChainID(probeCtx)
		cancel()
		if err != nil {
			r.recordFailure(url, err)
			lastErr = err
			continue
		}

		r.recordSuccess(url, time.Since(start))
		return client, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no endpoints configured")
	}
	return nil, fmt.Errorf("no healthy RPC endpoint: %w", lastErr)
}

// Health returns a snapshot of per-endpoint counters.
func (r *Router) Health() []EndpointHealth {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EndpointHealth, 0, len(r.endpoints))
	for _, url := range r.endpoints {
		out = append(out, *r.health[url])
	}
	return out
}

func (r *Router) recordSuccess(url string, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[url]
	h.Successes++
	h.LastLatency = latency
	h.LastError = ""
}

func (r *Router) recordFailure(url string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.health[url]
	h.Failures++
	h.LastError = err.Error()
}
