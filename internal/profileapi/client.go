package profileapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/daap14/affconsole/internal/api/response"
)

var (
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrEmptyData is returned when a successful response carries no data.
	ErrEmptyData = errors.New("response has no data")
)

// APIError is a non-2xx response from the profile service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("profile service: %s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("profile service: %s", e.Message)
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

// Client calls the profile service with a bearer token.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithBaseTransport sets the transport under the bearer-token transport.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if t, ok := c.httpClient.Transport.(*oauth2.Transport); ok {
			t.Base = rt
			return
		}
		c.httpClient.Transport = rt
	}
}

// NewClient creates a Client for the service at baseURL. Every request is
// authorized with a token from src; a nil src sends no Authorization header.
func NewClient(baseURL string, src oauth2.TokenSource, opts ...Option) *Client {
	hc := &http.Client{Timeout: 15 * time.Second}
	if src != nil {
		hc.Transport = &oauth2.Transport{Source: src}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: hc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetMe handles GET /users/me.
func (c *Client) GetMe(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile handles PUT /profiles/{id}.
func (c *Client) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*Profile, error) {
	var p Profile
	path := "/profiles/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProfile handles POST /profiles.
func (c *Client) CreateProfile(ctx context.Context, in CreateProfileInput) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodPost, "/profiles", nil, in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrganization handles GET /organizations/{id}?withExtra=bool.
func (c *Client) GetOrganization(ctx context.Context, id int64, withExtra bool) (*Organization, error) {
	var o Organization
	path := "/organizations/" + strconv.FormatInt(id, 10)
	query := url.Values{"withExtra": {strconv.FormatBool(withExtra)}}
	if err := c.do(ctx, http.MethodGet, path, query, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env struct {
		Data  json.RawMessage `json:"data"`
		Error *response.Error `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}
		if decodeErr == nil && env.Error != nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if decodeErr != nil {
		return fmt.Errorf("decoding %s response: %w", path, decodeErr)
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return fmt.Errorf("%s %s: %w", method, path, ErrEmptyData)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
