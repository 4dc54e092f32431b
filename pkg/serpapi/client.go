// Package serpapi is a client for SerpApi's Google Flights engine.
package serpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/tmirko/flight-price-tracker/internal/resilience"
)

const (
	defaultBaseURL = "https://serpapi.com"
	engine         = "google_flights"
	maxErrorBody   = 512
)

// Client runs Google Flights searches.
type Client interface {
	Search(ctx context.Context, params Params) (*Response, error)
}

// Response is a decoded search result. Raw holds the canonical JSON encoding
// of the result object (sorted keys) and is what gets persisted as evidence.
type Response struct {
	Raw  []byte
	Body gjson.Result
}

// Error is returned for every failed search. Its message never contains the API key.
type Error struct {
	StatusCode int
	msg        string
}

func (e *Error) Error() string {
	return e.msg
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMinInterval spaces consecutive requests at least d apart. Zero disables pacing.
func WithMinInterval(d time.Duration) Option {
	return func(c *httpClient) {
		if d <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithRetry overrides the retry policy for transient failures.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a SerpApi client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.retry.OnRetry == nil {
		c.retry.OnRetry = resilience.RetryLogger("serpapi", "search")
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, params Params) (*Response, error) {
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Response, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "serpapi: rate limit wait")
		}
		return c.do(ctx, params)
	})
	if err != nil {
		return nil, redact(err)
	}
	return resp, nil
}

func (c *httpClient) do(ctx context.Context, params Params) (*Response, error) {
	q := params.values()
	q.Set("engine", engine)
	q.Set("api_key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "serpapi: read response"), 0)
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("serpapi: unexpected status %d: %s", resp.StatusCode, truncate(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, &Error{StatusCode: resp.StatusCode, msg: err.Error()}
	}

	return decode(body)
}

// decode canonicalizes a 200 body. A single-element array wrapping an
// object is unwrapped; anything else that is not an object is rejected.
func decode(body []byte) (*Response, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data any
	if err := dec.Decode(&data); err != nil {
		return nil, eris.Wrap(err, "serpapi: decode response")
	}
	if data == nil {
		return nil, eris.New("serpapi: returned no data")
	}
	if arr, ok := data.([]any); ok && len(arr) == 1 {
		if obj, ok := arr[0].(map[string]any); ok {
			data = obj
		}
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return nil, eris.Errorf("serpapi: unexpected response type %T", data)
	}
	if msg, ok := obj["error"].(string); ok && msg != "" {
		return nil, eris.Errorf("serpapi: %s", msg)
	}

	raw, err := canonicalJSON(obj)
	if err != nil {
		return nil, eris.Wrap(err, "serpapi: encode response")
	}
	return &Response{Raw: raw, Body: gjson.ParseBytes(raw)}, nil
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}

var secretPattern = regexp.MustCompile(`(api_key=)[^&\s]+`)

// RedactSecret masks api_key query values in text.
func RedactSecret(text string) string {
	return secretPattern.ReplaceAllString(text, "${1}***")
}

func redact(err error) error {
	var serr *Error
	if errors.As(err, &serr) {
		return &Error{StatusCode: serr.StatusCode, msg: RedactSecret(serr.msg)}
	}
	status := 0
	var te *resilience.TransientError
	if errors.As(err, &te) {
		status = te.StatusCode
	}
	return &Error{StatusCode: status, msg: RedactSecret(err.Error())}
}
