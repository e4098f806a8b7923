package clients

import (
	"context"
	"fmt"
	"net/url"
)

// KnowledgeClient retrieves ranked knowledge-base snippets for a query. It
// satisfies the session's KnowledgeBase.
type KnowledgeClient struct {
	baseURL    string
	httpClient httpDoer
}

func NewKnowledgeClient(baseURL string, opts ...ClientOption) *KnowledgeClient {
	c := &KnowledgeClient{
		baseURL:    baseURL,
		httpClient: defaultHTTPClient(),
	}
	for _, opt := range opts {
		opt(&c.baseURL, &c.httpClient)
	}
	return c
}

// Retrieve returns snippet contents ordered by relevance, best first.
func (c *KnowledgeClient) Retrieve(ctx context.Context, query string) ([]string, error) {
	var body retrieveResponse
	params := url.Values{"query": {query}}
	if err := getJSON(ctx, c.httpClient, c.baseURL, "/context/retrieve", params, &body); err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}

	contents := make([]string, 0, len(body.Results))
	for _, result := range body.Results {
		contents = append(contents, result.Content)
	}
	return contents, nil
}

type retrieveResponse struct {
	Results []struct {
		Content string `json:"content"`
	} `json:"results"`
}
