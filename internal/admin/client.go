package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/cheese-checkers/internal/archive"
	"github.com/park285/cheese-checkers/internal/match"
)

// ErrNotFound is returned when the admin API answers 404.
var ErrNotFound = errors.New("admin: not found")

// Client talks to a running admin API.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type ClientOption func(*Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) ClientOption {
	return func(c *Client) { c.retryMax = max }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 8},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/healthz")
	return err
}

func (c *Client) Games(ctx context.Context) ([]match.Summary, error) {
	var out []match.Summary
	if err := c.getJSON(ctx, "/games", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Game(ctx context.Context, id string) (*match.Summary, error) {
	var out match.Summary
	if err := c.getJSON(ctx, "/games/"+id, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Live(ctx context.Context) ([]match.Summary, error) {
	var out []match.Summary
	if err := c.getJSON(ctx, "/live", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Archive(ctx context.Context, limit int) ([]archive.Match, error) {
	path := "/archive"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []archive.Match
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) BoardPNG(ctx context.Context, id string, flip bool) ([]byte, error) {
	path := "/games/" + id + "/board.png"
	if flip {
		path += "?flip=1"
	}
	return c.get(ctx, path)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	body, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get issues a GET with retries on transport errors and 5xx answers.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + path)

	attempts := c.retryMax
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
		} else {
			status := resp.StatusCode()
			switch {
			case status == fasthttp.StatusNotFound:
				return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
			case status >= 200 && status < 300:
				return append([]byte(nil), resp.Body()...), nil
			default:
				lastErr = fmt.Errorf("admin api error: status=%d body=%s", status, truncate(string(resp.Body()), 512))
				if !shouldRetryStatus(status) {
					return nil, lastErr
				}
			}
		}
		if attempt == attempts {
			break
		}
		if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
			return nil, lastErr
		}
	}
	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return nil, lastErr
}

// ctx 마감과 클라이언트 기본 타임아웃 중 빠른 쪽을 사용.
func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

// 5xx 중 일시 장애로 보이는 코드만 재시도.
func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
