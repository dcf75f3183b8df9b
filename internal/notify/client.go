package notify

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
)

// DefaultAPIBase is the chat platform's REST endpoint.
const DefaultAPIBase = "https://discord.com/api/v10"

// requestTimeout bounds a single message send. There are no retries; a
// failed send is logged and dropped.
const requestTimeout = 10 * time.Second

// ErrNotConfigured is returned when the bot credentials are absent or
// still carry template placeholder values. Callers treat it as "chat
// announcements disabled", not as a failure.
var ErrNotConfigured = errors.New("chat notifications not configured")

// placeholderMarkers are substrings that identify never-filled-in config
// template values.
var placeholderMarkers = []string{
	"YOUR_", "CHANGEME", "REPLACE_ME", "PLACEHOLDER",
}

// IsPlaceholder reports whether a config value is empty or still a
// template placeholder.
func IsPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}

	upper := strings.ToUpper(v)
	for _, marker := range placeholderMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}

	return false
}

// Message is an outbound channel message.
type Message struct {
	Content    string      `json:"content,omitempty"`
	Embeds     []Embed     `json:"embeds,omitempty"`
	Components []ActionRow `json:"components,omitempty"`
}

// Client posts messages through the platform's bot REST API. One attempt
// per message; robustness here is the dispatcher's job, and the
// dispatcher's policy is to drop.
type Client struct {
	baseURL  string
	botToken string
	http     *http.Client
}

// ClientConfig configures the REST client.
type ClientConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests. Defaults to
	// DefaultAPIBase.
	BaseURL string

	// BotToken authenticates requests. A placeholder token produces a
	// client whose sends return ErrNotConfigured.
	BotToken string

	// HTTPClient overrides the underlying client, mainly for tests.
	HTTPClient *http.Client
}

// NewClient creates the bot REST client.
func NewClient(cfg ClientConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultAPIBase
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: requestTimeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(base, "/"),
		botToken: strings.TrimSpace(cfg.BotToken),
		http:     httpClient,
	}
}

// Configured reports whether the client holds usable credentials.
func (c *Client) Configured() bool {
	return !IsPlaceholder(c.botToken)
}

// CreateMessage posts a message to the given channel.
func (c *Client) CreateMessage(ctx context.Context, channelID string,
	msg *Message) error {

	if !c.Configured() {
		return ErrNotConfigured
	}
	if IsPlaceholder(channelID) {
		return fmt.Errorf("%w: missing channel id", ErrNotConfigured)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	url := fmt.Sprintf("%s/channels/%s/messages", c.baseURL, channelID)
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, url, bytes.NewReader(payload),
	)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.botToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Read a slice of the body for the log line, then drop it.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send message: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	return nil
}
