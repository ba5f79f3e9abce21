// Package moviepilot is a thin HTTP client for the server's messaging API.
package moviepilot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pilotdeck/pilotdeck/internal/chat"
	pderrors "github.com/pilotdeck/pilotdeck/internal/errors"
	"github.com/pilotdeck/pilotdeck/pkg/version"
)

// APIPrefix is the versioned API root under the server base URL.
const APIPrefix = "/api/v1"

// ErrUnauthorized is returned for 401 responses. The stored token has been
// cleared by the time it is returned.
var ErrUnauthorized = errors.New("unauthorized: token rejected by server")

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status: %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status: %d: %s", e.StatusCode, e.Body)
}

// TokenStore supplies the bearer token and forgets it when the server
// rejects it.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	Clear() error
}

// Client talks to the messaging endpoints. It implements chat.Messenger.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	logger     zerolog.Logger
}

var _ chat.Messenger = (*Client)(nil)

// NewClient creates a client for baseURL, e.g. https://movie-pilot.example.
func NewClient(baseURL string, tokens TokenStore, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + APIPrefix,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens: tokens,
		logger: logger.With().Str("component", "moviepilot").Logger(),
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type sendRequest struct {
	Content string `json:"content"`
}

// SendMessage posts a chat message and returns the server's reply.
func (c *Client) SendMessage(ctx context.Context, content string) (chat.Message, error) {
	var reply chat.Message
	if err := c.do(ctx, http.MethodPost, "/message/", nil, sendRequest{Content: content}, &reply); err != nil {
		return chat.Message{}, err
	}
	return reply, nil
}

// History returns one page of the web chat history. Pages start at 1.
func (c *Client) History(ctx context.Context, page int) (chat.HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{"page": []string{strconv.Itoa(page)}}

	var out chat.HistoryPage
	if err := c.do(ctx, http.MethodGet, "/message/web", query, nil, &out); err != nil {
		return chat.HistoryPage{}, err
	}
	if out.Page == 0 {
		out.Page = page
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		// Send without auth and let the server decide.
		c.logger.Warn().Err(err).Msg("Failed to read auth token")
	} else if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer pderrors.DeferClose(c.logger, resp.Body, "Failed to close response body")

	if resp.StatusCode == http.StatusUnauthorized {
		if err := c.tokens.Clear(); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to clear rejected token")
		}
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
