package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/eslint-node/internal/events"
	"github.com/mattjoyce/eslint-node/internal/journal"
	"github.com/mattjoyce/eslint-node/internal/linter"
)

// Error is a non-2xx answer from the daemon.
type Error struct {
	Status  int
	Message string
	Kind    string
	Version string
}

func (e *Error) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("daemon: %s (%s, HTTP %d)", e.Message, e.Kind, e.Status)
	}
	return fmt.Sprintf("daemon: %s (HTTP %d)", e.Message, e.Status)
}

// Client talks to a running daemon.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient returns a client for the daemon listening on addr, which may be
// a host:port or a full URL.
func NewClient(addr, token string) *Client {
	base := addr
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		BaseURL: strings.TrimRight(base, "/"),
		Token:   token,
		HTTP:    &http.Client{},
	}
}

// Health fetches /healthz with a short timeout.
func (c *Client) Health(ctx context.Context) (*HealthzResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	var out HealthzResponse
	if err := c.do(ctx, http.MethodGet, "/healthz", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Lint runs POST /v1/lint.
func (c *Client) Lint(ctx context.Context, req linter.Request) (*linter.LintReport, error) {
	var out linter.LintReport
	if err := c.do(ctx, http.MethodPost, "/v1/lint", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Fix runs POST /v1/fix.
func (c *Client) Fix(ctx context.Context, req linter.Request) (*linter.FixReport, error) {
	var out linter.FixReport
	if err := c.do(ctx, http.MethodPost, "/v1/fix", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Debug runs POST /v1/debug.
func (c *Client) Debug(ctx context.Context, req linter.Request) (*linter.DebugReport, error) {
	var out linter.DebugReport
	if err := c.do(ctx, http.MethodPost, "/v1/debug", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClearCache runs POST /v1/cache/clear.
func (c *Client) ClearCache(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/cache/clear", nil, &ClearCacheResponse{})
}

// History runs GET /v1/history.
func (c *Client) History(ctx context.Context, limit int) ([]journal.Entry, error) {
	path := "/v1/history"
	if limit > 0 {
		path += "?" + url.Values{"limit": {strconv.Itoa(limit)}}.Encode()
	}
	var out HistoryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Stream reads /v1/events and calls fn for each event until the stream
// ends, ctx is done, or fn returns an error. Events with an ID at or below
// lastID are not replayed. A non-empty filter limits the event types sent.
func (c *Client) Stream(ctx context.Context, lastID int64, filter events.Filter, fn func(events.Event) error) error {
	target := c.BaseURL + "/v1/events"
	if len(filter) > 0 {
		target += "?types=" + url.QueryEscape(strings.Join(filter, ","))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	c.authorize(req)
	req.Header.Set("Accept", "text/event-stream")
	if lastID > 0 {
		req.Header.Set("Last-Event-ID", strconv.FormatInt(lastID, 10))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}
	return ReadSSE(resp.Body, fn)
}

// ReadSSE parses a text/event-stream body.
func ReadSSE(r io.Reader, fn func(events.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var cur events.Event
	var data []byte
	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if len(data) > 0 {
				cur.Data = data
				cur.At = time.Now().UTC()
				if err := fn(cur); err != nil {
					return err
				}
			}
			cur, data = events.Event{}, nil
			continue
		}

		switch {
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "id: "):
			if id, err := strconv.ParseInt(line[4:], 10, 64); err == nil {
				cur.ID = id
			}
		case strings.HasPrefix(line, "event: "):
			cur.Type = line[7:]
		case strings.HasPrefix(line, "data: "):
			data = append(data, line[6:]...)
		}
	}
	return scanner.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	c.authorize(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Kind = body.Kind
		apiErr.Version = body.Version
	}
	return apiErr
}
