package adapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stresslab-project/stresslab/pkg/aggregator"
	"github.com/stresslab-project/stresslab/pkg/scenario"
)

// HTTPAdapter dispatches an HttpApi step. Grounded on the teacher's
// pkg/client/client.go Ask method: build a request with context, run it
// through a shared *http.Client, drain and discard the body.
type HTTPAdapter interface {
	Send(ctx context.Context, cfg *scenario.HTTPStepConfig) (aggregator.Outcome, error)
}

// DefaultHTTPAdapter wraps a single *http.Client, reused across dispatches
// the way the teacher's client.Client reuses its http.Client's transport and
// connection pool.
type DefaultHTTPAdapter struct {
	client *http.Client
}

func NewHTTPAdapter(client *http.Client) *DefaultHTTPAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &DefaultHTTPAdapter{client: client}
}

func (a *DefaultHTTPAdapter) Send(ctx context.Context, cfg *scenario.HTTPStepConfig) (aggregator.Outcome, error) {
	var body io.Reader
	if cfg.Body != "" {
		body = bytes.NewReader([]byte(cfg.Body))
	}

	req, err := http.NewRequestWithContext(ctx, cfg.Method, cfg.URL, body)
	if err != nil {
		return aggregator.OutcomeFailRequest, fmt.Errorf("build request: %w", err)
	}
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		// Anything client.Do can return — DNS, connection refused, TLS
		// handshake, timeout, ctx cancellation — fails below the HTTP
		// protocol layer, so it's a transport failure per spec.md §4.3's
		// outcome split.
		return aggregator.OutcomeFailTransport, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return aggregator.OutcomeFailRequest, fmt.Errorf("http status %d", resp.StatusCode)
	}
	return aggregator.OutcomeOK, nil
}
