package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "amoclient/1.0"
)

// HTTPClient talks to the amoCRM v2 REST API.
type HTTPClient struct {
	httpClient *http.Client
	baseURL    *url.URL
	creds      Credentials
	account    Account
	userAgent  string
}

// HTTPOption customizes an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default *http.Client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(c *HTTPClient) { c.userAgent = ua }
}

// BaseURLFor returns the API root of an account subdomain, e.g.
// https://example.amocrm.ru for ("example", "ru").
func BaseURLFor(domain, zone string) string {
	if zone == "" {
		zone = "ru"
	}
	return fmt.Sprintf("https://%s.amocrm.%s", domain, zone)
}

// NewHTTPClient validates baseURL and creds and resolves the account identity.
func NewHTTPClient(baseURL string, creds Credentials, opts ...HTTPOption) (*HTTPClient, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("baseURL cannot be empty")
	}
	if creds == nil {
		return nil, fmt.Errorf("credentials are required: %w", ErrInvalidCredentials)
	}

	parsed, err := url.ParseRequestURI(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid baseURL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("baseURL must include scheme and host")
	}

	account, err := creds.Identity()
	if err != nil {
		return nil, err
	}

	c := &HTTPClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    parsed,
		creds:      creds,
		account:    account,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *HTTPClient) Account() Account {
	return c.account
}

func (c *HTTPClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Do executes a list or batch request.
func (c *HTTPClient) Do(ctx context.Context, r Request) ([]models.Record, error) {
	if strings.TrimSpace(r.Entity) == "" {
		return nil, fmt.Errorf("entity cannot be empty")
	}

	var (
		req *http.Request
		err error
	)
	switch r.Operation {
	case OpList:
		req, err = c.newRequest(ctx, http.MethodGet, r.Entity, encodeParams(r.Params), nil)
	case OpAdd, OpUpdate:
		rows := r.Rows
		if rows == nil {
			rows = []models.Record{}
		}
		body := map[string][]models.Record{string(r.Operation): rows}
		req, err = c.newRequest(ctx, http.MethodPost, r.Entity, nil, body)
	default:
		return nil, fmt.Errorf("unsupported operation %q", r.Operation)
	}
	if err != nil {
		return nil, err
	}

	return c.doRequest(req)
}

func (c *HTTPClient) newRequest(ctx context.Context, method, entity string, query url.Values, body any) (*http.Request, error) {
	rel, err := url.Parse(common.APIPathPrefix + url.PathEscape(entity))
	if err != nil {
		return nil, fmt.Errorf("failed to parse path: %w", err)
	}
	full := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		full.RawQuery = query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, full.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	c.creds.Apply(req)

	return req, nil
}

type envelope struct {
	Embedded struct {
		Items []models.Record `json:"items"`
	} `json:"_embedded"`
}

func (c *HTTPClient) doRequest(req *http.Request) ([]models.Record, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: data}
		if len(data) > 0 && len(data) < 512 {
			apiErr.Message = string(data)
		} else {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w", err)
	}
	return env.Embedded.Items, nil
}

// encodeParams renders list arguments in key order. Slice values are sent
// as repeated key[] arguments.
func encodeParams(params map[string]any) url.Values {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := url.Values{}
	for _, k := range keys {
		v := params[k]
		if v == nil {
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
			for i := 0; i < rv.Len(); i++ {
				q.Add(k+"[]", fmt.Sprint(rv.Index(i).Interface()))
			}
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}
	return q
}
