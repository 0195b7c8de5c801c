package tavily

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"websearch-agent/internal/domain"
	"websearch-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL    = "https://api.tavily.com"
	defaultMaxResults = 5
	defaultRetries    = 3
)

type searchRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type searchResponse struct {
	Query   string `json:"query"`
	Results []struct {
		Title      string  `json:"title"`
		URL        string  `json:"url"`
		Content    *string `json:"content"`
		Score      float64 `json:"score"`
		RawContent *string `json:"raw_content"`
	} `json:"results"`
}

// HTTPStatusError captures non-2xx responses from Tavily.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("tavily: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the Tavily search API. It is the retrieval collaborator that
// fills ConversationState.SearchResults between the two workflow stages.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getter     paramstore.Getter
	credential string
	depth      string
	maxResults int
	retries    int
	backoff    time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/") }
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithDepth sets search_depth ("basic" or "advanced").
func WithDepth(depth string) Option {
	return func(c *Client) {
		if depth = strings.TrimSpace(depth); depth != "" {
			c.depth = depth
		}
	}
}

func WithMaxResults(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithBackoff sets the initial delay between retries of rate limited calls.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// NewClient constructs a Tavily client whose API key lives in the SSM
// parameter named credential.
func NewClient(g paramstore.Getter, credential string, opts ...Option) (*Client, error) {
	if g == nil {
		return nil, errors.New("tavily: paramstore getter must not be nil")
	}
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return nil, errors.New("tavily: credential must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		getter:     g,
		credential: credential,
		depth:      "basic",
		maxResults: defaultMaxResults,
		retries:    defaultRetries,
		backoff:    time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Search runs query and returns results in Tavily's ranking order. Results
// with no content keep a nil Content.
func (c *Client) Search(ctx context.Context, query string) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("tavily: query must not be empty")
	}
	apiKey, err := paramstore.Token(ctx, c.getter, c.credential)
	if err != nil {
		return nil, fmt.Errorf("tavily: resolve api key: %w", err)
	}

	payload, err := json.Marshal(searchRequest{Query: query, SearchDepth: c.depth, MaxResults: c.maxResults})
	if err != nil {
		return nil, fmt.Errorf("tavily: marshal request: %w", err)
	}

	raw, err := c.postWithRetry(ctx, apiKey, payload)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]domain.SearchResult, 0, len(response.Results))
	for _, r := range response.Results {
		sr := domain.SearchResult{
			Content: r.Content,
			Title:   r.Title,
			URL:     r.URL,
			Score:   r.Score,
		}
		if r.RawContent != nil {
			sr.Metadata = map[string]any{"raw_content": *r.RawContent}
		}
		results = append(results, sr)
		if len(results) >= c.maxResults {
			break
		}
	}
	return results, nil
}

// postWithRetry backs off and retries on 429, doubling the delay each time.
func (c *Client) postWithRetry(ctx context.Context, apiKey string, payload []byte) ([]byte, error) {
	delay := c.backoff
	for attempt := 0; ; attempt++ {
		raw, err := c.post(ctx, apiKey, payload)
		var statusErr *HTTPStatusError
		if err == nil || !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests || attempt >= c.retries {
			return raw, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}

func (c *Client) post(ctx context.Context, apiKey string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("tavily: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tavily: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	buf, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("tavily: read response body: %w", err)
	}
	return buf, nil
}
