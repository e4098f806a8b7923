package clients

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/frontdesk-ai/frontdesk-core/core/transport"
)

// CredentialClient mints ephemeral session credentials from the backend.
// It satisfies the session's CredentialSource.
type CredentialClient struct {
	baseURL    string
	httpClient httpDoer
}

// NewCredentialClient builds a client against the backend base URL.
func NewCredentialClient(baseURL string, opts ...ClientOption) *CredentialClient {
	c := &CredentialClient{
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(&c.baseURL, &c.httpClient)
	}
	return c
}

// ClientOption configures any of the backend clients.
type ClientOption func(baseURL *string, client *httpDoer)

// WithHTTPClient replaces the default instrumented HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(_ *string, doer *httpDoer) {
		*doer = client
	}
}

// Issue mints a fresh time-limited credential.
func (c *CredentialClient) Issue(ctx context.Context) (transport.Credential, error) {
	ctx, span := tracer.Start(ctx, "issue session credential")
	defer span.End()

	var body credentialResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL, "/realtime/session", nil, &body); err != nil {
		return transport.Credential{}, fmt.Errorf("failed to mint session credential: %w", err)
	}
	if body.Credential == "" {
		return transport.Credential{}, fmt.Errorf("backend returned an empty credential")
	}

	return transport.Credential{
		Secret:    body.Credential,
		ExpiresIn: time.Duration(body.ExpiresInMs) * time.Millisecond,
	}, nil
}

// ExpiryWindow reports how long minted credentials stay valid.
func (c *CredentialClient) ExpiryWindow(ctx context.Context) (time.Duration, error) {
	var body configResponse
	if err := getJSON(ctx, c.httpClient, c.baseURL, "/realtime/config", nil, &body); err != nil {
		return 0, fmt.Errorf("failed to fetch realtime config: %w", err)
	}
	return time.Duration(body.KeyExpirationTime) * time.Millisecond, nil
}

type credentialResponse struct {
	Credential  string `json:"credential"`
	ExpiresInMs int64  `json:"expiresInMs"`
}

type configResponse struct {
	KeyExpirationTime int64 `json:"keyExpirationTime"`
}
