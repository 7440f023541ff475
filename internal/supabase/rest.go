// Package supabase is the remote record store backend: PostgREST for reads
// and writes, and the Realtime websocket for owner-scoped change events.
package supabase

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

	"github.com/yuqie6/Folio/internal/store"
)

// Config 远端配置
type Config struct {
	URL    string
	APIKey string
	// AccessToken 当前用户的 JWT；为空时用 APIKey（仅适合 service role）
	AccessToken string
	HTTPClient  *http.Client
}

// Client PostgREST 客户端
type Client struct {
	baseURL     string
	apiKey      string
	accessToken string
	httpClient  *http.Client
}

// New 创建客户端
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase url 不能为空")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase api_key 不能为空")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.URL, "/"),
		apiKey:      cfg.APIKey,
		accessToken: cfg.AccessToken,
		httpClient:  httpClient,
	}, nil
}

// query PostgREST 查询构造器
type query struct {
	client  *Client
	table   string
	columns string
	filters url.Values
	orders  []string
	limit   int
}

func (c *Client) from(table string) *query {
	return &query{client: c, table: table, filters: url.Values{}}
}

func (q *query) selectCols(columns string) *query {
	q.columns = columns
	return q
}

func (q *query) eq(column string, value any) *query {
	q.filters.Add(column, fmt.Sprintf("eq.%v", value))
	return q
}

// order nullsLast 对应 PostgREST 的 .nullslast
func (q *query) order(column string, ascending, nullsLast bool) *query {
	dir := "asc"
	if !ascending {
		dir = "desc"
	}
	o := column + "." + dir
	if nullsLast {
		o += ".nullslast"
	}
	q.orders = append(q.orders, o)
	return q
}

func (q *query) limitN(n int) *query {
	q.limit = n
	return q
}

func (q *query) buildURL(withRead bool) string {
	params := url.Values{}
	for k, vs := range q.filters {
		for _, v := range vs {
			params.Add(k, v)
		}
	}
	if withRead {
		if q.columns != "" {
			params.Set("select", q.columns)
		}
		if len(q.orders) > 0 {
			params.Set("order", strings.Join(q.orders, ","))
		}
		if q.limit > 0 {
			params.Set("limit", fmt.Sprintf("%d", q.limit))
		}
	}
	u := fmt.Sprintf("%s/rest/v1/%s", q.client.baseURL, q.table)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (q *query) get(ctx context.Context, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.buildURL(true), nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

func (q *query) insert(ctx context.Context, data any, upsert bool, out any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.buildURL(false), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	prefer := "return=representation"
	if upsert {
		prefer = "resolution=merge-duplicates," + prefer
	}
	req.Header.Set("Prefer", prefer)
	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// insertIgnore 主键冲突时保留原行
func (q *query) insertIgnore(ctx context.Context, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.buildURL(false), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=ignore-duplicates,return=minimal")
	_, err = q.client.do(req)
	return err
}

func (q *query) update(ctx context.Context, data any, out any) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, q.buildURL(false), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

func (q *query) delete(ctx context.Context, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, q.buildURL(false), nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Prefer", "return=representation")
	resp, err := q.client.do(req)
	if err != nil {
		return err
	}
	return resp.JSON(out)
}

// Response 原始响应
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON 反序列化响应体
func (r *Response) JSON(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	return nil
}

// APIError PostgREST 返回的 4xx 错误
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("supabase 错误 %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("supabase 错误 %d", e.StatusCode)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("apikey", c.apiKey)
	token := c.accessToken
	if token == "" {
		token = c.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
}

// do 发送请求。网络错误与 5xx 归为 store.ErrUnavailable，调用方保留旧状态即可。
func (c *Client) do(req *http.Request) (*Response, error) {
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: 读取响应失败: %v", store.ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("%w: status %d", store.ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return nil, apiErr
	}
	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// IsAPIError 是否为 4xx 业务错误
func IsAPIError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}
