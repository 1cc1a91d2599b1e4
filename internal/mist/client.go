// Package mist is a thin client for the Mist cloud API. It owns
// authentication, retries, pagination, and binary asset transfer; all
// resource semantics live in the clone package.
package mist

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/mistops/org-clone-workbench/internal/models"
)

const (
	connectTimeout = 5 * time.Second
	requestTimeout = 30 * time.Second

	// Transient statuses are retried with exponential backoff, up to
	// maxAttempts total tries.
	maxAttempts = 5
	pageLimit   = 1000
)

var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client talks to one Mist cloud tenant using token authentication.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient builds a client for the given connection.
func NewClient(conn *models.Connection, log zerolog.Logger) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: connectTimeout}).DialContext,
	}
	if conn.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		baseURL: strings.TrimSuffix(conn.BaseURL, "/"),
		token:   conn.Token,
		httpClient: &http.Client{
			Timeout:   requestTimeout,
			Transport: transport,
		},
		log: log.With().Str("cloud", conn.Name).Logger(),
	}
}

// BaseURL returns the API base URL this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do performs one API request with retries on transient failures.
// path is relative to the base URL (e.g. "/orgs/<id>/sites").
func (c *Client) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s %s: encoding payload: %w", method, path, err)
		}
	}

	url := c.baseURL + path
	var out []byte

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Token "+c.token)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("%s %s: reading response: %w", method, path, err)
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			out = data
			return nil
		}

		apiErr := fmt.Errorf("%s %s: HTTP %d: %s", method, path, resp.StatusCode, truncate(string(data), 200))
		if retryableStatus[resp.StatusCode] {
			c.log.Debug().Int("status", resp.StatusCode).Str("path", path).Msg("retrying request")
			return apiErr
		}
		return backoff.Permanent(apiErr)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	return out, backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, maxAttempts-1), ctx))
}

// Get performs a GET and returns the raw response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// GetJSON performs a GET and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out interface{}) error {
	data, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}

// GetResource performs a GET and decodes a single object.
func (c *Client) GetResource(ctx context.Context, path string) (models.Resource, error) {
	var res models.Resource
	if err := c.GetJSON(ctx, path, &res); err != nil {
		return nil, err
	}
	return res, nil
}

// GetList performs a GET and decodes a list of objects.
func (c *Client) GetList(ctx context.Context, path string) ([]models.Resource, error) {
	var items []models.Resource
	if err := c.GetJSON(ctx, path, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// Paginate fetches a list endpoint page by page until a short page is
// returned. A non-list response body ends the loop and is returned as a
// single-element slice.
func (c *Client) Paginate(ctx context.Context, path string) ([]models.Resource, error) {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	var results []models.Resource
	for page := 1; ; page++ {
		paged := fmt.Sprintf("%s%spage=%d&limit=%d", path, sep, page, pageLimit)
		data, err := c.Get(ctx, paged)
		if err != nil {
			return nil, err
		}
		var items []models.Resource
		if err := json.Unmarshal(data, &items); err != nil {
			var single models.Resource
			if err := json.Unmarshal(data, &single); err != nil {
				return nil, fmt.Errorf("GET %s: decoding response: %w", paged, err)
			}
			return []models.Resource{single}, nil
		}
		results = append(results, items...)
		if len(items) < pageLimit {
			return results, nil
		}
	}
}

// Post performs a POST and decodes the created object, if any.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) (models.Resource, error) {
	data, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return models.Resource{}, nil
	}
	var res models.Resource
	if err := json.Unmarshal(data, &res); err != nil {
		return models.Resource{}, nil
	}
	return res, nil
}

// Put performs a PUT.
func (c *Client) Put(ctx context.Context, path string, payload interface{}) error {
	_, err := c.do(ctx, http.MethodPut, path, payload)
	return err
}

// Delete performs a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil)
	return err
}

// Download fetches an absolute URL (e.g. a signed floor-plan image URL) and
// returns the content and its content type. No auth header is sent; asset
// URLs carry their own signature.
func (c *Client) Download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("GET %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("GET %s: HTTP %d", rawURL, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return data, contentType, nil
}

// UploadFile POSTs a multipart file (field name "file") to an API path.
func (c *Client) UploadFile(ctx context.Context, path, filename, contentType string, content []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("POST %s: HTTP %d: %s", path, resp.StatusCode, truncate(string(body), 200))
	}
	return nil
}

// truncate shortens long response bodies in error messages.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
