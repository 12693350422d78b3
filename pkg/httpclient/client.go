package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// snippetLimit bounds the body excerpt carried by FormatError
const snippetLimit = 200

// Random User-Agent pool
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Mobile Safari/537.36",
}

// HTTPError is returned when the upstream answers with a non-2xx status
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// FormatError is returned when a 2xx body is not JSON
type FormatError struct {
	Snippet string
	Err     error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid JSON response: %v", e.Err)
	}
	return fmt.Sprintf("unexpected non-JSON response: %s", e.Snippet)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Client performs one-shot JSON requests against an external API.
// There are no retries and no client-side timeout; cancellation comes
// only from the caller's context.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new HTTP client
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// NewClientWith wraps an existing http.Client
func NewClientWith(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{httpClient: hc}
}

func getRandomUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// Fetch performs a GET and returns the raw JSON body
func (c *Client) Fetch(ctx context.Context, targetURL string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	return c.Do(req)
}

// Do sends req and validates the response body as JSON
func (c *Client) Do(req *http.Request) (json.RawMessage, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", getRandomUserAgent())
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("url", req.URL.String()).Msg("Request failed")
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	trimmed := bytes.TrimSpace(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().
			Int("status", resp.StatusCode).
			Str("url", req.URL.String()).
			Msg("Upstream returned error status")
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(trimmed)}
	}

	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return nil, &FormatError{Snippet: truncate(string(trimmed), snippetLimit)}
	}

	if !json.Valid(trimmed) {
		var probe any
		perr := json.Unmarshal(trimmed, &probe)
		return nil, &FormatError{Snippet: truncate(string(trimmed), snippetLimit), Err: perr}
	}

	return json.RawMessage(trimmed), nil
}

// FetchJSON fetches targetURL and decodes it into dest
func (c *Client) FetchJSON(ctx context.Context, targetURL string, dest any) error {
	data, err := c.Fetch(ctx, targetURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return &FormatError{Snippet: truncate(string(data), snippetLimit), Err: err}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	// avoid cutting a multi-byte rune in half
	return strings.ToValidUTF8(s, "")
}
