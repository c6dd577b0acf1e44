package llm

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/opspilot/opspilot/internal/logging"
)

// MetricsProvider wraps an AI provider with timing and call metrics.
type MetricsProvider struct {
	provider Provider
	name     string
	log      *logging.Logger

	// Atomic counters
	totalCalls        int64
	totalErrors       int64
	totalTokens       int64
	totalInputTokens  int64
	totalOutputTokens int64

	// Protected by mutex
	mu             sync.Mutex
	totalLatency   time.Duration
	minLatency     time.Duration
	maxLatency     time.Duration
	latencyBuckets []int64 // <100ms, <500ms, <1s, <2s, <5s, 5s+
}

// NewMetricsProvider wraps a provider with metrics collection.
func NewMetricsProvider(provider Provider) *MetricsProvider {
	return &MetricsProvider{
		provider:       provider,
		name:           provider.Name(),
		log:            logging.Global().WithComponent("llm-metrics"),
		minLatency:     time.Hour, // replaced on first call
		latencyBuckets: make([]int64, 6),
	}
}

// Name returns the wrapped provider's identifier.
func (m *MetricsProvider) Name() string {
	return m.name
}

// Available delegates to the wrapped provider.
func (m *MetricsProvider) Available() bool {
	return m.provider.Available()
}

// Chat implements Provider with metrics collection around the call.
func (m *MetricsProvider) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()

	resp, err := m.provider.Chat(ctx, req)
	latency := time.Since(start)

	atomic.AddInt64(&m.totalCalls, 1)
	if err != nil {
		atomic.AddInt64(&m.totalErrors, 1)
	}
	if resp != nil && resp.TokensUsed > 0 {
		atomic.AddInt64(&m.totalTokens, int64(resp.TokensUsed))
		atomic.AddInt64(&m.totalInputTokens, int64(resp.PromptTokens))
		atomic.AddInt64(&m.totalOutputTokens, int64(resp.CompletionTokens))
	}

	m.mu.Lock()
	m.totalLatency += latency
	if latency < m.minLatency {
		m.minLatency = latency
	}
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	switch {
	case latency < 100*time.Millisecond:
		m.latencyBuckets[0]++
	case latency < 500*time.Millisecond:
		m.latencyBuckets[1]++
	case latency < time.Second:
		m.latencyBuckets[2]++
	case latency < 2*time.Second:
		m.latencyBuckets[3]++
	case latency < 5*time.Second:
		m.latencyBuckets[4]++
	default:
		m.latencyBuckets[5]++
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("%s call failed after %v: %v", m.name, latency, err)
	} else {
		m.log.Debug("%s call completed in %v", m.name, latency)
	}

	return resp, err
}

// GetMetrics returns a snapshot of this provider's counters.
func (m *MetricsProvider) GetMetrics() map[string]interface{} {
	totalCalls := atomic.LoadInt64(&m.totalCalls)

	m.mu.Lock()
	avgLatency := time.Duration(0)
	if totalCalls > 0 {
		avgLatency = m.totalLatency / time.Duration(totalCalls)
	}
	minLatency := m.minLatency
	if totalCalls == 0 {
		minLatency = 0
	}
	buckets := make([]int64, len(m.latencyBuckets))
	copy(buckets, m.latencyBuckets)
	maxLatency := m.maxLatency
	m.mu.Unlock()

	return map[string]interface{}{
		"total_calls":     totalCalls,
		"total_errors":    atomic.LoadInt64(&m.totalErrors),
		"total_tokens":    atomic.LoadInt64(&m.totalTokens),
		"input_tokens":    atomic.LoadInt64(&m.totalInputTokens),
		"output_tokens":   atomic.LoadInt64(&m.totalOutputTokens),
		"avg_latency_ms":  avgLatency.Milliseconds(),
		"min_latency_ms":  minLatency.Milliseconds(),
		"max_latency_ms":  maxLatency.Milliseconds(),
		"latency_buckets": buckets,
	}
}

// Reset clears all counters.
func (m *MetricsProvider) Reset() {
	atomic.StoreInt64(&m.totalCalls, 0)
	atomic.StoreInt64(&m.totalErrors, 0)
	atomic.StoreInt64(&m.totalTokens, 0)
	atomic.StoreInt64(&m.totalInputTokens, 0)
	atomic.StoreInt64(&m.totalOutputTokens, 0)

	m.mu.Lock()
	m.totalLatency = 0
	m.minLatency = time.Hour
	m.maxLatency = 0
	m.latencyBuckets = make([]int64, 6)
	m.mu.Unlock()
}
