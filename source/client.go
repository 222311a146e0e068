package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"

	"github.com/Modou1ngom/cofidash/hierarchy"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// HTTPError is a non-2xx answer from the proxy.
type HTTPError struct {
	Dataset Dataset
	Status  int
	Detail  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("analytics proxy %s: status %d: %s", e.Dataset, e.Status, e.Detail)
}

// Client fetches datasets over HTTP.
type Client struct {
	baseURL  string
	timeout  time.Duration
	timeouts map[Dataset]time.Duration
	http     *fasthttp.Client
}

type ClientOption func(*Client)

// WithTimeout sets the default request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithDatasetTimeout overrides the timeout of one dataset. Prepaid card
// sales are computed on the fly by the proxy and need minutes.
func WithDatasetTimeout(ds Dataset, d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeouts[ds] = d
		}
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		timeout:  defaultTimeout,
		timeouts: make(map[Dataset]time.Duration),
		http: &fasthttp.Client{
			Name:                "cofidash",
			MaxIdleConnDuration: time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL is the full request URL for (ds, p).
func (c *Client) URL(ds Dataset, p Params) string {
	u := c.baseURL + ds.Path()
	if q := p.Values().Encode(); q != "" {
		u += "?" + q
	}
	return u
}

// Fetch performs the GET and decodes the JSON object. The request is
// bounded by the dataset timeout and by ctx's deadline, whichever is
// sooner.
func (c *Client) Fetch(ctx context.Context, ds Dataset, p Params) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.URL(ds, p))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")

	if err := c.http.DoTimeout(req, resp, c.timeoutFor(ctx, ds)); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", ds, err)
	}

	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, &HTTPError{Dataset: ds, Status: status, Detail: errorDetail(resp.Body())}
	}

	payload, err := hierarchy.Unmarshal(resp.Body())
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", ds, err)
	}
	return payload, nil
}

func (c *Client) timeoutFor(ctx context.Context, ds Dataset) time.Duration {
	timeout := c.timeout
	if d, ok := c.timeouts[ds]; ok {
		timeout = d
	}
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	return timeout
}

// errorDetail extracts {"detail": ...} from an error body, else returns
// the (truncated) body itself.
func errorDetail(body []byte) string {
	var payload struct {
		Detail any `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Detail != nil {
		if s, ok := payload.Detail.(string); ok {
			return s
		}
		if b, err := json.Marshal(payload.Detail); err == nil {
			return string(b)
		}
	}
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		s = s[:maxErrorBody] + "..."
	}
	return s
}

var _ DataSource = (*Client)(nil)
