package architect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/opspilot/opspilot/internal/llm"
)

// Backend produces raw planning output for a request. Implementations
// return BackendError so the pipeline can tell unavailability apart
// from malformed output.
type Backend interface {
	Name() string
	Generate(ctx context.Context, request string) (string, error)
}

// ScriptBackend shells out to an external planning executable. The
// structured prompt is passed as the first argument and the plan is
// read from stdout. A run is bounded by the configured timeout; on expiry the
// process is killed and the backend reports Timeout.
type ScriptBackend struct {
	path    string
	timeout time.Duration
}

// DefaultScriptTimeout bounds a planning script run when no timeout
// is configured.
const DefaultScriptTimeout = 30 * time.Second

func NewScriptBackend(path string, timeout time.Duration) *ScriptBackend {
	if timeout <= 0 {
		timeout = DefaultScriptTimeout
	}
	return &ScriptBackend{path: path, timeout: timeout}
}

func (b *ScriptBackend) Name() string { return "script" }

// Available reports whether the planning executable exists on disk.
func (b *ScriptBackend) Available() bool {
	if b.path == "" {
		return false
	}
	info, err := os.Stat(b.path)
	return err == nil && !info.IsDir()
}

func (b *ScriptBackend) Generate(ctx context.Context, request string) (string, error) {
	if !b.Available() {
		return "", &BackendError{
			Kind:    BackendUnavailable,
			Backend: b.Name(),
			Err:     fmt.Errorf("planning script not found at %s", b.path),
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, b.path, BuildPrompt(request))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", &BackendError{
			Kind:    Timeout,
			Backend: b.Name(),
			Err:     fmt.Errorf("planning script exceeded %s", b.timeout),
		}
	}
	if err != nil {
		return "", &BackendError{
			Kind:    BackendUnavailable,
			Backend: b.Name(),
			Err:     fmt.Errorf("planning script failed: %w (stderr: %s)", err, stderr.String()),
		}
	}

	return stdout.String(), nil
}

// ProviderBackend asks the AI gateway for a plan.
type ProviderBackend struct {
	gateway  *llm.Gateway
	provider string
}

// NewProviderBackend builds a backend over the gateway. An empty
// provider name uses the gateway's default.
func NewProviderBackend(gateway *llm.Gateway, provider string) *ProviderBackend {
	return &ProviderBackend{gateway: gateway, provider: provider}
}

func (b *ProviderBackend) Name() string { return "provider" }

func (b *ProviderBackend) Generate(ctx context.Context, request string) (string, error) {
	if b.gateway == nil {
		return "", &BackendError{
			Kind:    BackendUnavailable,
			Backend: b.Name(),
			Err:     errors.New("no gateway configured"),
		}
	}

	out, err := b.gateway.Query(ctx, b.provider, BuildPrompt(request))
	if err != nil {
		return "", &BackendError{
			Kind:    BackendUnavailable,
			Backend: b.Name(),
			Err:     err,
		}
	}
	return out, nil
}
