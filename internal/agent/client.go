package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ashureev/stresssense/internal/domain"
)

// maxDiagnosticBody bounds how much of a remote error body is shown to the user.
const maxDiagnosticBody = 300

var (
	errInvalidURL   = errors.New("agent url must be an absolute http(s) url")
	errNotAnObject  = errors.New("response body is not a JSON object")
	errMissingReply = errors.New("response has no message")
)

// Client is the HTTP gateway to the agent webhook.
type Client struct {
	http   *http.Client
	cfg    Config
	logger *slog.Logger
}

// NewClient creates a gateway for cfg. Zero fields take their defaults.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	def := DefaultConfig()
	if cfg.URL == "" {
		cfg.URL = def.URL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", errInvalidURL, cfg.URL)
	}

	logger.Info("Agent gateway configured", "url", cfg.URL, "timeout", cfg.Timeout.String())

	return &Client{
		// Deadlines come from the per-call context.
		http:   &http.Client{},
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Assess posts text for sessionID and classifies the response.
//
// Once dispatched the call is not cancellable by the caller; it ends with a
// response or when the configured timeout expires.
func (c *Client) Assess(ctx context.Context, sessionID domain.SessionID, text string) Result {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res := c.do(ctx, sessionID, text)

	attrs := []any{
		"session_id", sessionID,
		"outcome", res.Kind,
		"status", res.Status,
		"elapsed_ms", time.Since(start).Milliseconds(),
	}
	if res.Err != nil {
		attrs = append(attrs, "error", res.Err)
	}
	if res.OK() {
		c.logger.Info("Agent replied", attrs...)
	} else {
		c.logger.Warn("Agent call did not succeed", attrs...)
	}
	return res
}

func (c *Client) do(ctx context.Context, sessionID domain.SessionID, text string) Result {
	payload, err := json.Marshal(request{
		SessionID: string(sessionID),
		Body:      requestBody{Messages: []requestMessage{{Text: text}}},
	})
	if err != nil {
		return transportFailure(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return transportFailure(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return transportFailure(err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			c.logger.Warn("failed to close agent response body", "error", closeErr)
		}
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes))
	if err != nil {
		return transportFailure(fmt.Errorf("read response: %w", err))
	}

	return classify(resp.StatusCode, body)
}

// classify maps a received response onto a Result.
func classify(status int, body []byte) Result {
	if status != http.StatusOK {
		text := fmt.Sprintf("%s %d", msgRemotePrefix, status)
		if b := boundBody(body); b != "" {
			text += ": " + b
		}
		return Result{Kind: KindRemoteError, AssistantText: text, Status: status}
	}

	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return Result{Kind: KindMalformedResponse, AssistantText: msgNonJSON, Status: status, Err: err}
	}
	obj, ok := decoded.(map[string]any)
	if !ok {
		return Result{Kind: KindMalformedResponse, AssistantText: msgMissingMessage, Status: status, Err: errNotAnObject}
	}

	message, _ := obj["message"].(string)
	if strings.TrimSpace(message) == "" {
		return Result{Kind: KindMalformedResponse, AssistantText: msgMissingMessage, Status: status, Err: errMissingReply}
	}

	label, _ := obj["stress_level"].(string)
	if strings.TrimSpace(label) == "" {
		label = NotAssessed
	}

	return Result{Kind: KindSuccess, AssistantText: message, StressLabel: label, Status: status}
}

func transportFailure(err error) Result {
	return Result{
		Kind:          KindTransportFailure,
		AssistantText: msgNetworkPrefix + " " + err.Error(),
		Err:           err,
	}
}

// boundBody trims body and cuts it to maxDiagnosticBody runes.
func boundBody(body []byte) string {
	s := strings.TrimSpace(strings.ToValidUTF8(string(body), "�"))
	if utf8.RuneCountInString(s) <= maxDiagnosticBody {
		return s
	}
	return string([]rune(s)[:maxDiagnosticBody]) + "..."
}
