package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// PostgRESTStore talks to a Supabase project through its REST endpoint
// ({url}/rest/v1) using the service role key.
type PostgRESTStore struct {
	baseURL string
	key     string
	client  *http.Client
}

func NewPostgRESTStore(projectURL, key string, client *http.Client) *PostgRESTStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &PostgRESTStore{
		baseURL: strings.TrimRight(projectURL, "/") + "/rest/v1",
		key:     key,
		client:  client,
	}
}

// apiError is the body PostgREST sends with non-2xx responses.
type apiError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (p *PostgRESTStore) Select(ctx context.Context, table Table, q Query) ([]Record, error) {
	params := url.Values{}
	columns := "*"
	if len(q.Columns) > 0 {
		columns = strings.Join(q.Columns, ",")
	}
	params.Set("select", columns)

	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		params.Set(k, "eq."+fmt.Sprint(q.Filter[k]))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	var records []Record
	if err := p.do(ctx, OpSelect, http.MethodGet, table, params, nil, "", &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}
	return records, nil
}

func (p *PostgRESTStore) Upsert(ctx context.Context, table Table, records ...Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, rec := range records {
		if _, err := keyOf(table, rec); err != nil {
			return opError(OpUpsert, table, err)
		}
	}

	params := url.Values{}
	params.Set("on_conflict", table.Key)
	return p.do(ctx, OpUpsert, http.MethodPost, table, params, records, "resolution=merge-duplicates,return=minimal", nil)
}

func (p *PostgRESTStore) Delete(ctx context.Context, table Table, id string) error {
	params := url.Values{}
	params.Set(table.Key, "eq."+id)
	return p.do(ctx, OpDelete, http.MethodDelete, table, params, nil, "return=minimal", nil)
}

// Close is a no-op; the HTTP client keeps no per-store resources.
func (p *PostgRESTStore) Close() error { return nil }

func (p *PostgRESTStore) do(ctx context.Context, op, method string, table Table, params url.Values, body any, prefer string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return opError(op, table, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := p.baseURL + "/" + url.PathEscape(table.Name)
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return opError(op, table, err)
	}
	req.Header.Set("apikey", p.key)
	req.Header.Set("Authorization", "Bearer "+p.key)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return opError(op, table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return opError(op, table, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(op, table, resp, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return opError(op, table, fmt.Errorf("decode %s response: %w", table.Name, err))
	}
	return nil
}

func decodeAPIError(op string, table Table, resp *http.Response, data []byte) error {
	var apiErr apiError
	_ = json.Unmarshal(data, &apiErr)

	message := apiErr.Message
	if message == "" {
		message = strings.TrimSpace(string(data))
	}
	if message == "" {
		message = resp.Status
	}
	return &OpError{
		Op:      op,
		Table:   table.Name,
		Code:    apiErr.Code,
		Message: message,
		Err:     fmt.Errorf("postgrest %s %s: %s", op, table.Name, resp.Status),
	}
}
