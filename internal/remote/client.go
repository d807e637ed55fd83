package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Client is the HTTP implementation of API: JSON over REST, bearer token,
// a bounded timeout on every call.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	timeout    time.Duration
	log        zerolog.Logger
}

// ClientOption tweaks a Client.
type ClientOption func(*Client)

// WithTimeout bounds each remote call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient substitutes the transport (tests use httptest clients).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a remote API client.
func NewClient(baseURL, token string, log zerolog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		timeout: 10 * time.Second,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:    20,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		log: log.With().Str("component", "remote").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Create issues POST /{resource}.
func (c *Client) Create(ctx context.Context, resource string, payload Record) (Record, error) {
	return c.send(ctx, http.MethodPost, c.baseURL+"/"+resource, resource, payload)
}

// Update issues PUT /{resource}/{id}.
func (c *Client) Update(ctx context.Context, resource, id string, payload Record) (Record, error) {
	return c.send(ctx, http.MethodPut, c.baseURL+"/"+resource+"/"+id, resource, payload)
}

// List issues GET /{resource}?limit=N and returns the authoritative remote
// set. Pagination, when the remote pages, is handled here and invisible to
// the engine.
func (c *Client) List(ctx context.Context, resource string, limit int) ([]Record, error) {
	url := c.baseURL + "/" + resource
	if limit > 0 {
		url = fmt.Sprintf("%s?limit=%d", url, limit)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Resource: resource, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.toAPIError(resource, resp)
	}

	var body struct {
		Records []Record `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, &APIError{Kind: KindTransient, Resource: resource, Message: "decode list: " + err.Error()}
	}
	return body.Records, nil
}

func (c *Client) send(ctx context.Context, method, url, resource string, payload Record) (Record, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &APIError{Kind: KindValidation, Resource: resource, Message: "encode payload: " + err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &APIError{Kind: KindTransient, Resource: resource, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.toAPIError(resource, resp)
	}

	var rec Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, &APIError{Kind: KindTransient, Resource: resource, Message: "decode response: " + err.Error()}
	}
	return rec, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// toAPIError maps an HTTP failure onto the engine's taxonomy. A duplicate
// create (409 with code "already_exists") carries the remote's existing copy
// so the caller can retry as an update.
func (c *Client) toAPIError(resource string, resp *http.Response) *APIError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body struct {
		Code     string `json:"code"`
		Message  string `json:"message"`
		Existing Record `json:"existing,omitempty"`
	}
	_ = json.Unmarshal(raw, &body)
	msg := body.Message
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	ae := &APIError{Status: resp.StatusCode, Resource: resource, Message: msg}
	switch {
	case resp.StatusCode == http.StatusConflict && body.Code == "already_exists":
		ae.Kind = KindAlreadyExists
		ae.Existing = body.Existing
	case resp.StatusCode == http.StatusConflict:
		ae.Kind = KindConflict
		ae.Existing = body.Existing
	case resp.StatusCode == http.StatusNotFound:
		ae.Kind = KindNotFound
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		ae.Kind = KindTransient
	default:
		ae.Kind = KindValidation
	}
	return ae
}
