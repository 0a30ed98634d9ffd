package airtable

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
	"time"
)

// DefaultBaseURL is the public Airtable REST endpoint.
const DefaultBaseURL = "https://api.airtable.com/v0"

const maxPageSize = 100

// Record is one Airtable row.
type Record struct {
	ID          string                 `json:"id,omitempty"`
	CreatedTime string                 `json:"createdTime,omitempty"`
	Fields      map[string]interface{} `json:"fields"`
}

// Sort orders a listing by one field.
type Sort struct {
	Field     string
	Direction string
}

// ListOptions narrows a table listing.
type ListOptions struct {
	Formula  string
	Sort     []Sort
	Fields   []string
	MaxItems int
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	BaseID     string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to one Airtable base.
type Client struct {
	baseURL    string
	baseID     string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for the configured base.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseID == "" {
		return nil, errors.New("airtable: base id is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("airtable: api key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		baseID:     cfg.BaseID,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
	}, nil
}

type listResponse struct {
	Records []Record `json:"records"`
	Offset  string   `json:"offset"`
}

type recordsPayload struct {
	Records  []Record `json:"records"`
	Typecast bool     `json:"typecast,omitempty"`
}

// List returns every record matching opts, following pagination offsets.
func (c *Client) List(ctx context.Context, table string, opts ListOptions) ([]Record, error) {
	query := url.Values{}
	if opts.Formula != "" {
		query.Set("filterByFormula", opts.Formula)
	}
	for i, s := range opts.Sort {
		query.Set(fmt.Sprintf("sort[%d][field]", i), s.Field)
		direction := s.Direction
		if direction == "" {
			direction = "asc"
		}
		query.Set(fmt.Sprintf("sort[%d][direction]", i), direction)
	}
	for _, f := range opts.Fields {
		query.Add("fields[]", f)
	}
	query.Set("pageSize", strconv.Itoa(maxPageSize))

	var records []Record
	for {
		var page listResponse
		if err := c.do(ctx, http.MethodGet, c.tablePath(table, ""), query, nil, &page); err != nil {
			return nil, err
		}
		records = append(records, page.Records...)
		if opts.MaxItems > 0 && len(records) >= opts.MaxItems {
			return records[:opts.MaxItems], nil
		}
		if page.Offset == "" {
			return records, nil
		}
		query.Set("offset", page.Offset)
	}
}

// Get fetches one record by Airtable record id.
func (c *Client) Get(ctx context.Context, table, recordID string) (*Record, error) {
	var rec Record
	if err := c.do(ctx, http.MethodGet, c.tablePath(table, recordID), nil, nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts one record and returns it with its id.
func (c *Client) Create(ctx context.Context, table string, fields map[string]interface{}) (*Record, error) {
	var out recordsPayload
	payload := recordsPayload{Records: []Record{{Fields: fields}}, Typecast: true}
	if err := c.do(ctx, http.MethodPost, c.tablePath(table, ""), nil, payload, &out); err != nil {
		return nil, err
	}
	if len(out.Records) == 0 {
		return nil, errors.New("airtable: create returned no records")
	}
	return &out.Records[0], nil
}

// Update patches the given fields of one record.
func (c *Client) Update(ctx context.Context, table, recordID string, fields map[string]interface{}) (*Record, error) {
	var rec Record
	payload := struct {
		Fields   map[string]interface{} `json:"fields"`
		Typecast bool                   `json:"typecast"`
	}{Fields: fields, Typecast: true}
	if err := c.do(ctx, http.MethodPatch, c.tablePath(table, recordID), nil, payload, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Delete removes one record.
func (c *Client) Delete(ctx context.Context, table, recordID string) error {
	return c.do(ctx, http.MethodDelete, c.tablePath(table, recordID), nil, nil, nil)
}

// Ping lists a single record to verify credentials and reachability.
func (c *Client) Ping(ctx context.Context, table string) error {
	query := url.Values{}
	query.Set("pageSize", "1")
	query.Set("maxRecords", "1")
	return c.do(ctx, http.MethodGet, c.tablePath(table, ""), query, nil, &listResponse{})
}

func (c *Client) tablePath(table, recordID string) string {
	path := c.baseURL + "/" + url.PathEscape(c.baseID) + "/" + url.PathEscape(table)
	if recordID != "" {
		path += "/" + url.PathEscape(recordID)
	}
	return path
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("airtable: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("airtable: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Op: method + " " + req.URL.Path, Err: err}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp.StatusCode, raw)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("airtable: decode response: %w", err)
	}
	return nil
}
