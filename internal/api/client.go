package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"secure-agent-cli/internal/model"

	"github.com/google/uuid"
)

const DefaultBaseURL = "http://127.0.0.1:8000"

// Client talks to the document-access service. It never retries.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: invalid base url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api: base url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

func (c *Client) BaseURL() string { return c.baseURL.String() }

func (c *Client) Users(ctx context.Context) ([]model.Identity, error) {
	var ws []wireIdentity
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &ws); err != nil {
		return nil, err
	}
	out := make([]model.Identity, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (c *Client) Documents(ctx context.Context) ([]model.Document, error) {
	var ws []wireDocument
	if err := c.do(ctx, http.MethodGet, "/api/documents", nil, &ws); err != nil {
		return nil, err
	}
	out := make([]model.Document, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.toModel())
	}
	return out, nil
}

func (c *Client) Permissions(ctx context.Context, identityID string) (model.PermissionSnapshot, error) {
	var w wirePermissions
	path := "/api/permissions/" + url.PathEscape(identityID)
	if err := c.do(ctx, http.MethodGet, path, nil, &w); err != nil {
		return model.PermissionSnapshot{}, err
	}
	return w.toModel(identityID), nil
}

func (c *Client) Query(ctx context.Context, identityID, question string) (model.QueryResult, error) {
	var w wireQueryResponse
	body := wireQueryRequest{UserID: identityID, Question: question}
	if err := c.do(ctx, http.MethodPost, "/api/query", body, &w); err != nil {
		return model.QueryResult{}, err
	}
	return w.toModel(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var rd io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	// path is already escaped; join as a string so escaped segments survive.
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL.String(), "/")+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newStatusError(method, path, resp.StatusCode, b)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func unmarshalStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
