package llm

import "sync"

// MetricsRegistry tracks all MetricsProvider instances for aggregated
// reporting at the metrics endpoint.
type MetricsRegistry struct {
	mu        sync.RWMutex
	providers map[string]*MetricsProvider
}

// globalRegistry is the singleton metrics registry.
var globalRegistry = &MetricsRegistry{
	providers: make(map[string]*MetricsProvider),
}

// Register adds a MetricsProvider to the registry. Re-registering a
// name replaces the entry, which is what a gateway reload wants.
func (r *MetricsRegistry) Register(provider *MetricsProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[provider.Name()] = provider
}

// Get retrieves a specific provider's MetricsProvider.
func (r *MetricsRegistry) Get(name string) *MetricsProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// GetAllMetrics returns aggregated metrics from all providers.
func (r *MetricsRegistry) GetAllMetrics() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]interface{}, len(r.providers))
	for name, provider := range r.providers {
		result[name] = provider.GetMetrics()
	}
	return result
}

// GetSummary returns a high-level summary across all providers.
func (r *MetricsRegistry) GetSummary() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		totalCalls  int64
		totalErrors int64
		totalTokens int64
	)

	for _, provider := range r.providers {
		metrics := provider.GetMetrics()

		if calls, ok := metrics["total_calls"].(int64); ok {
			totalCalls += calls
		}
		if errs, ok := metrics["total_errors"].(int64); ok {
			totalErrors += errs
		}
		if tokens, ok := metrics["total_tokens"].(int64); ok {
			totalTokens += tokens
		}
	}

	return map[string]interface{}{
		"total_calls":    totalCalls,
		"total_errors":   totalErrors,
		"total_tokens":   totalTokens,
		"provider_count": len(r.providers),
	}
}

// Reset clears all metrics across all providers.
func (r *MetricsRegistry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, provider := range r.providers {
		provider.Reset()
	}
}

// RegisterMetricsProvider adds a provider to the global registry.
func RegisterMetricsProvider(provider *MetricsProvider) {
	globalRegistry.Register(provider)
}

// GetAllMetrics returns metrics from all registered providers.
func GetAllMetrics() map[string]interface{} {
	return globalRegistry.GetAllMetrics()
}

// GetMetricsSummary returns a high-level summary across all providers.
func GetMetricsSummary() map[string]interface{} {
	return globalRegistry.GetSummary()
}

// ResetAllMetrics clears metrics across all providers.
func ResetAllMetrics() {
	globalRegistry.Reset()
}
