// Package openrouter is a minimal chat-completions client for the /ask
// feature. The scheduled daily payload never touches it.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultBaseURL = "https://openrouter.ai/api/v1/chat/completions"

// Error is a classified upstream failure carrying an HTTP-like status and a
// cause suitable for showing to the user.
type Error struct {
	Status int
	Cause  string
}

func (e *Error) Error() string { return fmt.Sprintf("[%d] %s", e.Status, e.Cause) }

func friendly(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "malformed completion request"
	case http.StatusUnauthorized:
		return "OpenRouter key rejected; check openrouter.api_key"
	case http.StatusForbidden:
		return "no access to the selected model"
	case http.StatusNotFound:
		return "completions endpoint not found; check openrouter.base_url"
	case http.StatusTooManyRequests:
		return "free-tier rate limit exceeded; try again later"
	case http.StatusInternalServerError:
		return "OpenRouter internal error; try again later"
	case http.StatusBadGateway:
		return "bad gateway; upstream likely overloaded"
	case http.StatusServiceUnavailable:
		return "service temporarily unavailable"
	case http.StatusGatewayTimeout:
		return "upstream did not answer in time"
	default:
		return "service unavailable; try again later"
	}
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Config struct {
	APIKey      string
	BaseURL     string        // default: the public OpenRouter endpoint
	Timeout     time.Duration // whole-request bound; default 30s
	Temperature float64
	MaxTokens   int
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 400
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// Configured reports whether an API key is present. The bot degrades
// gracefully (/ask disabled) instead of failing at startup.
func (c *Client) Configured() bool { return strings.TrimSpace(c.cfg.APIKey) != "" }

// Chat performs one completion call and returns the reply text plus the
// round-trip time. All failures are *Error.
func (c *Client) Chat(ctx context.Context, model string, messages []Message) (string, time.Duration, error) {
	if !c.Configured() {
		return "", 0, &Error{Status: http.StatusUnauthorized, Cause: "openrouter.api_key is not set"}
	}

	payload := struct {
		Model       string    `json:"model"`
		Messages    []Message `json:"messages"`
		Temperature float64   `json:"temperature"`
		MaxTokens   int       `json:"max_tokens"`
	}{Model: model, Messages: messages, Temperature: c.cfg.Temperature, MaxTokens: c.cfg.MaxTokens}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", 0, &Error{Status: http.StatusInternalServerError, Cause: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", 0, &Error{Status: http.StatusInternalServerError, Cause: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return "", elapsed, &Error{Status: http.StatusGatewayTimeout, Cause: friendly(http.StatusGatewayTimeout)}
		}
		return "", elapsed, &Error{Status: http.StatusServiceUnavailable, Cause: friendly(http.StatusServiceUnavailable)}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", elapsed, &Error{Status: resp.StatusCode, Cause: friendly(resp.StatusCode)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil || len(out.Choices) == 0 {
		return "", elapsed, &Error{Status: http.StatusInternalServerError, Cause: "unexpected OpenRouter response shape"}
	}
	return out.Choices[0].Message.Content, elapsed, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
