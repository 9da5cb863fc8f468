package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/amishk599/jobfeed/internal/model"
	"github.com/amishk599/jobfeed/internal/ratelimit"
)

const maxRenderedBytes = 8 << 20

// RenderClient fetches fully rendered HTML through a headless-browser API
// (ScrapingBee style: GET endpoint?api_key=..&url=..&render_js=true). Every
// request waits on the shared render gate first, so only one outstanding
// request is released per minimum delay no matter how many adapters use it.
type RenderClient struct {
	endpoint string
	apiKey   string
	limiter  *ratelimit.Limiter
	client   *http.Client
}

func NewRenderClient(endpoint, apiKey string, limiter *ratelimit.Limiter, client *http.Client) *RenderClient {
	return &RenderClient{endpoint: endpoint, apiKey: apiKey, limiter: limiter, client: client}
}

// Fetch returns the rendered HTML of pageURL.
func (c *RenderClient) Fetch(ctx context.Context, pageURL string) (string, error) {
	if err := c.limiter.Wait(ctx, ratelimit.RenderKey); err != nil {
		return "", err
	}

	params := url.Values{}
	params.Set("url", pageURL)
	params.Set("render_js", "true")
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("render request for %s: %w", pageURL, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("render request for %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.HTTPError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        fmt.Errorf("render request for %s: unexpected status %d", pageURL, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderedBytes))
	if err != nil {
		return "", fmt.Errorf("reading rendered page %s: %w", pageURL, err)
	}
	return string(body), nil
}
