package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// providerClient talks to the realtime model provider's REST API with the
// long-lived key. The key never leaves this process; sessions hand out only
// the ephemeral credential minted here.
type providerClient struct {
	config     ProviderConfig
	httpClient *http.Client
}

func newProviderClient(config ProviderConfig) *providerClient {
	return &providerClient{
		config:     config,
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
}

// MintSession creates an ephemeral realtime session and returns its client
// secret.
func (p *providerClient) MintSession(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "mint provider session")
	defer span.End()

	var body struct {
		ClientSecret struct {
			Value string `json:"value"`
		} `json:"client_secret"`
	}
	err := p.post(ctx, "/realtime/sessions", map[string]any{
		"model": p.config.Model,
		"voice": p.config.Voice,
	}, &body)
	if err != nil {
		return "", fmt.Errorf("failed to mint provider session: %w", err)
	}
	if body.ClientSecret.Value == "" {
		return "", fmt.Errorf("provider returned an empty client secret")
	}
	return body.ClientSecret.Value, nil
}

// Embed computes the embedding vector for one text.
func (p *providerClient) Embed(ctx context.Context, text string) ([]float32, error) {
	var body struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	err := p.post(ctx, "/embeddings", map[string]any{
		"model": p.config.EmbeddingModel,
		"input": text,
	}, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, fmt.Errorf("provider returned no embedding")
	}
	return body.Data[0].Embedding, nil
}

func (p *providerClient) post(ctx context.Context, path string, payload, out any) error {
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	endpoint := strings.TrimSuffix(p.config.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.config.APIKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
