package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"marketchat/internal/app/chatsync"
	"marketchat/internal/app/dto"
	"marketchat/internal/domain/chat"
	"marketchat/internal/infra/obs"
)

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: backend returned %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("%s %s: backend returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Temporary reports whether retrying the call later may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code >= http.StatusInternalServerError || e.Code == http.StatusTooManyRequests
}

// BreakerSettings mirror the gobreaker knobs exposed through configuration.
type BreakerSettings struct {
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	MaxFailures uint32
}

// Client talks to the marketplace REST backend on behalf of one session.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *slog.Logger

	cb *gobreaker.CircuitBreaker
}

var _ chatsync.Gateway = (*Client)(nil)

// NewClient builds a gateway for baseURL (including the /api prefix).
func NewClient(baseURL, token string, httpClient *http.Client, breaker BreakerSettings, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	if breaker.MaxFailures == 0 {
		breaker.MaxFailures = 5
	}
	if breaker.MaxRequests == 0 {
		breaker.MaxRequests = 1
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    httpClient,
		Logger:  logger,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "marketchat-api",
		MaxRequests: breaker.MaxRequests,
		Interval:    breaker.Interval,
		Timeout:     breaker.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breaker.MaxFailures
		},
		// client errors and abandoned calls say nothing about backend health
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			return errors.As(err, &se) && !se.Temporary()
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state", "name", name, "from", from.String(), "to", to.String())
			}
		},
	})
	return c
}

// ListConversations fetches GET /conversations.
func (c *Client) ListConversations(ctx context.Context) ([]chat.Conversation, error) {
	var out dto.ConversationList
	if err := c.do(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	convs := make([]chat.Conversation, 0, len(out.Conversations))
	for _, item := range out.Conversations {
		convs = append(convs, item.ToDomain())
	}
	return convs, nil
}

// GetThread fetches GET /conversations/{id}. The backend marks the thread read.
func (c *Client) GetThread(ctx context.Context, conversationID string) (chatsync.Thread, error) {
	if conversationID == "" {
		return chatsync.Thread{}, errors.New("rest: conversation id is required")
	}
	var out dto.Thread
	if err := c.do(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, &out); err != nil {
		return chatsync.Thread{}, err
	}
	th := chatsync.Thread{Messages: make([]chat.Message, 0, len(out.Messages))}
	for _, m := range out.Messages {
		msg := m.ToDomain()
		if msg.ConversationID == "" {
			msg.ConversationID = conversationID
		}
		th.Messages = append(th.Messages, msg)
	}
	if out.OtherUser != nil {
		th.OtherUser = out.OtherUser.ToDomain()
	}
	return th, nil
}

// SendMessage posts POST /messages.
func (c *Client) SendMessage(ctx context.Context, req chatsync.SendRequest) (chatsync.SendResult, error) {
	body := dto.SendMessageRequest{AdID: req.AdID, ReceiverID: req.ReceiverID, Content: req.Content}
	var out dto.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/messages", body, &out); err != nil {
		return chatsync.SendResult{}, err
	}
	return chatsync.SendResult{
		MessageID:      out.ID,
		ConversationID: out.ConversationID,
		CreatedAt:      out.CreatedAt,
	}, nil
}

// UnreadCount fetches GET /messages/unread-count.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out dto.UnreadCount
	if err := c.do(ctx, http.MethodGet, "/messages/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, method, path, in, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if id := obs.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return fmt.Errorf("%s %s: backend timeout: %w", method, path, err)
		}
		return fmt.Errorf("%s %s: backend unavailable: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: errorMessage(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// errorMessage extracts {"error": "..."} bodies and falls back to raw text.
func errorMessage(raw []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(raw))
}
