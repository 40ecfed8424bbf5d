// Package gateway wraps the remote subscription-verification API. It is pure
// I/O: every transport failure degrades to OutcomeUnavailable, which callers
// treat as "no information", never as task denial.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a verification result.
type Kind int

const (
	// OutcomeVerified: the provider confirms the user satisfies all
	// outstanding requirements; Links carries the currently advertised tasks.
	OutcomeVerified Kind = iota
	// OutcomeUnverified: the provider reports outstanding subscriptions.
	OutcomeUnverified
	// OutcomeUnavailable: network error, timeout, non-2xx or bad payload.
	OutcomeUnavailable
)

// Outcome is the sum type returned by Check.
type Outcome struct {
	Kind  Kind
	Links []string
}

// Checker is the surface the services depend on.
type Checker interface {
	Check(ctx context.Context, userID, chatID int64, taskLink string, maxResults int) Outcome
}

// Client talks to a SubGram-compatible verification endpoint.
type Client struct {
	url    string
	key    string
	client *http.Client
}

func NewClient(url, key string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		key: key,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type checkRequest struct {
	UserID   string `json:"UserId"`
	ChatID   string `json:"ChatId"`
	TaskLink string `json:"TaskLink"`
	MaxOP    int    `json:"MaxOP"`
}

type checkResponse struct {
	Status string   `json:"status"`
	Links  []string `json:"links"`
}

// Check asks the provider whether the user satisfies its requirements and
// which task links are currently advertised. It never returns an error; the
// Outcome kind is the result.
func (c *Client) Check(ctx context.Context, userID, chatID int64, taskLink string, maxResults int) Outcome {
	payload, err := json.Marshal(checkRequest{
		UserID:   strconv.FormatInt(userID, 10),
		ChatID:   strconv.FormatInt(chatID, 10),
		TaskLink: taskLink,
		MaxOP:    maxResults,
	})
	if err != nil {
		return Outcome{Kind: OutcomeUnavailable}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return Outcome{Kind: OutcomeUnavailable}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth", c.key)

	resp, err := c.client.Do(req)
	if err != nil {
		slog.Warn("gateway request failed", "user_id", userID, "error", err)
		return Outcome{Kind: OutcomeUnavailable}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("gateway returned non-2xx", "user_id", userID, "status", resp.StatusCode)
		return Outcome{Kind: OutcomeUnavailable}
	}

	var body checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		slog.Warn("gateway returned bad payload", "user_id", userID, "error", err)
		return Outcome{Kind: OutcomeUnavailable}
	}

	kind := OutcomeUnverified
	if strings.EqualFold(body.Status, "ok") {
		kind = OutcomeVerified
	}
	return Outcome{Kind: kind, Links: body.Links}
}

func (k Kind) String() string {
	switch k {
	case OutcomeVerified:
		return "verified"
	case OutcomeUnverified:
		return "unverified"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}
