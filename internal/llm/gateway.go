package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/opspilot/opspilot/internal/config"
	"github.com/opspilot/opspilot/internal/logging"
)

// SystemPreamble is the fixed system role sent with every
// interpretation request.
const SystemPreamble = "You are an automation assistant for a server operator. " +
	"Translate the operator's request into the appropriate shell command or a " +
	"concise answer. Respond with the command or answer only, no commentary."

// Gateway is the unified client over all configured AI backends. Lookup
// and retry policy live here; the fallback chain across providers is a
// caller concern.
//
// The provider set is built whole from a Config and replaced whole on
// reload, so a request in flight sees either the old set or the new
// one, never a mix.
type Gateway struct {
	mu   sync.RWMutex
	snap *gatewaySnapshot
	log  *logging.Logger
}

// gatewaySnapshot is one immutable generation of the provider registry.
type gatewaySnapshot struct {
	providers       map[string]Provider
	defaultProvider string
	maxRetries      int
	retryDelay      time.Duration
}

// NewGateway builds a gateway from configuration. Providers that fail
// to construct are skipped with a warning; the gateway itself only
// fails when the config names zero usable providers.
func NewGateway(cfg *config.Config) (*Gateway, error) {
	g := &Gateway{log: logging.Global().WithComponent("gateway")}
	if err := g.Reload(cfg); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload builds a fresh provider set from cfg and swaps it in
// atomically.
func (g *Gateway) Reload(cfg *config.Config) error {
	providers := make(map[string]Provider, len(cfg.LLM.Providers))

	for name, pc := range cfg.LLM.Providers {
		provider, err := NewProviderByName(name, buildProviderConfig(name, pc))
		if err != nil {
			g.log.Warn("skipping provider %s: %v", name, err)
			continue
		}
		providers[name] = provider
	}

	if len(providers) == 0 {
		return fmt.Errorf("no usable providers in configuration")
	}

	snap := &gatewaySnapshot{
		providers:       providers,
		defaultProvider: cfg.LLM.DefaultProvider,
		maxRetries:      cfg.LLM.MaxRetries,
		retryDelay:      cfg.LLM.RetryDelay,
	}

	g.mu.Lock()
	g.snap = snap
	g.mu.Unlock()

	g.log.Info("provider registry loaded: %d providers, default=%s", len(providers), snap.defaultProvider)
	return nil
}

// snapshot returns the current registry generation.
func (g *Gateway) snapshot() *gatewaySnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// DefaultProvider returns the name of the configured default provider.
func (g *Gateway) DefaultProvider() string {
	return g.snapshot().defaultProvider
}

// Query sends a single interpretation request to the named provider.
// An empty providerName selects the default. Attempts are bounded by
// max_retries with a fixed delay between them; the last error surfaces
// as a *ProviderError.
func (g *Gateway) Query(ctx context.Context, providerName, request string) (string, error) {
	snap := g.snapshot()

	if providerName == "" {
		providerName = snap.defaultProvider
	}

	provider, ok := snap.providers[providerName]
	if !ok {
		return "", &ProviderError{Kind: ErrUnknownProvider, Provider: providerName}
	}
	if !provider.Available() {
		return "", &ProviderError{Kind: ErrMissingCredential, Provider: providerName}
	}

	req := &ChatRequest{
		SystemPrompt: SystemPreamble,
		Messages:     []Message{{Role: "user", Content: request}},
	}

	var lastErr error
	for attempt := 1; attempt <= snap.maxRetries; attempt++ {
		resp, err := provider.Chat(ctx, req)
		if err == nil {
			return resp.Content, nil
		}
		lastErr = err

		// Credential and unknown-provider failures won't heal on retry.
		if pe, ok := AsProviderError(err); ok && pe.Kind == ErrMissingCredential {
			break
		}
		if ctx.Err() != nil {
			break
		}

		g.log.Warn("provider %s attempt %d/%d failed: %v", providerName, attempt, snap.maxRetries, err)
		if attempt < snap.maxRetries {
			select {
			case <-time.After(snap.retryDelay):
			case <-ctx.Done():
				return "", &ProviderError{Kind: ErrNetwork, Provider: providerName, Err: ctx.Err()}
			}
		}
	}

	if _, ok := AsProviderError(lastErr); ok {
		return "", lastErr
	}
	return "", &ProviderError{Kind: ErrNetwork, Provider: providerName, Err: lastErr}
}

// ProviderStatus describes one registered provider for the boundary
// layer.
type ProviderStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Default   bool   `json:"default"`
}

// Providers lists the registered providers, sorted by name.
func (g *Gateway) Providers() []ProviderStatus {
	snap := g.snapshot()

	statuses := make([]ProviderStatus, 0, len(snap.providers))
	for name, p := range snap.providers {
		statuses = append(statuses, ProviderStatus{
			Name:      name,
			Available: p.Available(),
			Default:   name == snap.defaultProvider,
		})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}
