package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport/auth error classes. A sync aborts on any of these; the connection
// records the message.
var (
	ErrInvalidCredentials = errors.New("jira: invalid credentials")
	ErrForbidden          = errors.New("jira: access forbidden")
	ErrNotFound           = errors.New("jira: resource not found")
)

// APIError covers non-2xx responses outside the named classes.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jira: API error %d: %s", e.StatusCode, e.Body)
}

// Client talks to one Jira instance with user+token credentials.
type Client struct {
	baseURL    string
	email      string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the given instance.
func NewClient(baseURL, email, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		email:      email,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// get performs an authenticated GET and decodes the JSON response into dest.
func (c *Client) get(ctx context.Context, path string, query url.Values, dest interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.email, c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resp.StatusCode, body)
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("JSON parsing error: %w", err)
	}
	return nil
}

func (c *Client) statusError(status int, body []byte) error {
	switch status {
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	default:
		msg := string(body)
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return &APIError{StatusCode: status, Body: msg}
	}
}

// Myself returns the identity behind the credentials. Used by connection tests.
func (c *Client) Myself(ctx context.Context) (*Myself, error) {
	me := &Myself{}
	if err := c.get(ctx, "/rest/api/3/myself", nil, me); err != nil {
		return nil, err
	}
	return me, nil
}

// Project looks up the tracker project by key.
func (c *Client) Project(ctx context.Context, key string) (*ProjectInfo, error) {
	info := &ProjectInfo{}
	if err := c.get(ctx, "/rest/api/3/project/"+url.PathEscape(key), nil, info); err != nil {
		return nil, err
	}
	return info, nil
}

// Fields returns the instance's field metadata.
func (c *Client) Fields(ctx context.Context) ([]Field, error) {
	var fields []Field
	if err := c.get(ctx, "/rest/api/3/field", nil, &fields); err != nil {
		return nil, err
	}
	return fields, nil
}
