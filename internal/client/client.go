package client

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

	"trustlabel/internal/api"
	"trustlabel/internal/queue"
)

const defaultHTTPTimeout = 15 * time.Second

// Client is a typed HTTP client for the trustlabel daemon API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// New constructs a client against the given base address. The address may be
// a bare host:port or a full URL.
func New(address, token string, opts ...Option) *Client {
	address = strings.TrimSpace(address)
	if address != "" && !strings.Contains(address, "://") {
		address = "http://" + address
	}
	client := &Client{
		baseURL:    strings.TrimRight(address, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// CreateEntryRequest mirrors the create endpoint payload.
type CreateEntryRequest struct {
	ProductID         string         `json:"productId"`
	Category          string         `json:"category"`
	Priority          string         `json:"priority,omitempty"`
	EstimatedDuration int            `json:"estimatedDuration,omitempty"`
	Notes             string         `json:"notes,omitempty"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// ListOptions narrows and pages the queue listing.
type ListOptions struct {
	Status    string
	Priority  string
	Category  string
	Page      int
	Limit     int
	SortBy    string
	SortOrder string
}

// CreateEntry submits a new validation request.
func (c *Client) CreateEntry(ctx context.Context, req CreateEntryRequest) (*api.QueueEntry, error) {
	var entry api.QueueEntry
	if err := c.do(ctx, http.MethodPost, "/api/queue", nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListQueue fetches a page of queue entries.
func (c *Client) ListQueue(ctx context.Context, opts ListOptions) (*api.QueuePage, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}
	if opts.Priority != "" {
		query.Set("priority", opts.Priority)
	}
	if opts.Category != "" {
		query.Set("category", opts.Category)
	}
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.SortBy != "" {
		query.Set("sortBy", opts.SortBy)
	}
	if opts.SortOrder != "" {
		query.Set("sortOrder", opts.SortOrder)
	}

	var page api.QueuePage
	if err := c.do(ctx, http.MethodGet, "/api/queue", query, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetEntry fetches a single queue entry.
func (c *Client) GetEntry(ctx context.Context, id string) (*api.QueueEntry, error) {
	var entry api.QueueEntry
	if err := c.do(ctx, http.MethodGet, "/api/queue/"+url.PathEscape(id), nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Assign hands a pending entry to a validator.
func (c *Client) Assign(ctx context.Context, id, validatorID string) (*api.QueueEntry, error) {
	var entry api.QueueEntry
	body := map[string]string{"validatorId": validatorID}
	if err := c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/assign", nil, body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateStatus advances an entry through its lifecycle.
func (c *Client) UpdateStatus(ctx context.Context, id, status, reason string) (*api.QueueEntry, error) {
	var entry api.QueueEntry
	body := map[string]string{"status": status, "reason": reason}
	if err := c.do(ctx, http.MethodPost, "/api/queue/"+url.PathEscape(id)+"/status", nil, body, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// History fetches an entry's audit trail.
func (c *Client) History(ctx context.Context, id string) ([]api.HistoryRecord, error) {
	var records []api.HistoryRecord
	if err := c.do(ctx, http.MethodGet, "/api/queue/"+url.PathEscape(id)+"/history", nil, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Metrics fetches queue rollups.
func (c *Client) Metrics(ctx context.Context) (*queue.Metrics, error) {
	var metrics queue.Metrics
	if err := c.do(ctx, http.MethodGet, "/api/metrics", nil, nil, &metrics); err != nil {
		return nil, err
	}
	return &metrics, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.baseURL == "" {
		return errors.New("client: api address is required")
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var parsed struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &parsed); err == nil && parsed.Error != "" {
		return fmt.Errorf("api error (%d): %s", resp.StatusCode, parsed.Error)
	}
	return fmt.Errorf("api error (%d)", resp.StatusCode)
}
