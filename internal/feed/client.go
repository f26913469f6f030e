package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/wonny/picker/pkg/config"
	"github.com/wonny/picker/pkg/httputil"
	"github.com/wonny/picker/pkg/logger"
)

// Client fetches quotes and instrument metadata from the quote gateway.
// All market data acquisition goes through this client.
type Client struct {
	httpClient  *httputil.Client
	logger      *logger.Logger
	klineBase   string
	listBase    string
	profileBase string
}

// NewClient creates a new quote gateway client
func NewClient(cfg *config.Config, httpClient *httputil.Client, log *logger.Logger) *Client {
	return &Client{
		httpClient:  httpClient,
		logger:      log.WithField("module", "feed"),
		klineBase:   cfg.Feed.KlineBaseURL,
		listBase:    cfg.Feed.ListBaseURL,
		profileBase: cfg.Feed.ProfileBaseURL,
	}
}

// SecID converts a bare instrument code to the exchange-qualified id the
// quote endpoints expect: 1.600519 for Shanghai, 0.000001 for Shenzhen.
func SecID(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	switch code[0] {
	case '5', '6', '9':
		return "1." + code
	}
	return "0." + code
}

// fetchJSON performs a GET with browser-like headers and returns the body.
func (c *Client) fetchJSON(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", "https://quote.eastmoney.com/")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return body, nil
}
