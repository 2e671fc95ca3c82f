package http

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
)

// Requester is one buildable, executable HTTP call.
type Requester interface {
	Execute(ctx context.Context) (*Response, error)
	AddHeader(key, value string)
	AddQueryParam(key, value string)
	SetBody(body string)
	Method() string
	URL() string
	Headers() map[string]string
}

// BaseRequest holds what every request variant shares: where it goes and
// what it carries. Variants decide which parts are sent.
type BaseRequest struct {
	client      *Client
	baseURL     string
	endpoint    string
	headers     map[string]string
	queryParams map[string]string
	body        string
}

func newBaseRequest(client *Client, baseURL, endpoint string) BaseRequest {
	if client == nil {
		client = NewClient()
	}
	return BaseRequest{
		client:      client,
		baseURL:     baseURL,
		endpoint:    endpoint,
		headers:     make(map[string]string),
		queryParams: make(map[string]string),
	}
}

// AddHeader sets a header, replacing any previous value for key.
func (r *BaseRequest) AddHeader(key, value string) {
	r.headers[key] = value
}

// AddQueryParam sets a query parameter, replacing any previous value for key.
func (r *BaseRequest) AddQueryParam(key, value string) {
	r.queryParams[key] = value
}

func (r *BaseRequest) SetBody(body string) {
	r.body = body
}

func (r *BaseRequest) Body() string {
	return r.body
}

func (r *BaseRequest) Headers() map[string]string {
	return r.headers
}

func (r *BaseRequest) QueryParams() map[string]string {
	return r.queryParams
}

// URL joins the base URL and endpoint and appends the encoded query string.
// Endpoint segments are path-escaped, so "/name/South Africa" is sent as
// "/name/South%20Africa". A query written inline in the endpoint is kept as
// is and parameters added with AddQueryParam follow it.
func (r *BaseRequest) URL() string {
	path, inline, _ := strings.Cut(r.endpoint, "?")

	u := strings.TrimRight(r.baseURL, "/") + escapePath(path)
	var q []string
	if inline != "" {
		q = append(q, inline)
	}

	keys := make([]string, 0, len(r.queryParams))
	for k := range r.queryParams {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q = append(q, url.QueryEscape(k)+"="+url.QueryEscape(r.queryParams[k]))
	}

	if len(q) == 0 {
		return u
	}
	return u + "?" + strings.Join(q, "&")
}

func escapePath(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	segments := strings.Split(strings.TrimLeft(endpoint, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return "/" + strings.Join(segments, "/")
}

// GetRequest sends headers and query parameters. The body is never sent.
type GetRequest struct {
	BaseRequest
}

func NewGetRequest(client *Client, baseURL, endpoint string) *GetRequest {
	return &GetRequest{BaseRequest: newBaseRequest(client, baseURL, endpoint)}
}

func (r *GetRequest) Method() string {
	return http.MethodGet
}

func (r *GetRequest) Execute(ctx context.Context) (*Response, error) {
	return r.client.do(ctx, r.Method(), r.URL(), r.headers, "")
}

// PostRequest sends headers, query parameters and the raw body.
type PostRequest struct {
	BaseRequest
}

func NewPostRequest(client *Client, baseURL, endpoint string) *PostRequest {
	return &PostRequest{BaseRequest: newBaseRequest(client, baseURL, endpoint)}
}

func (r *PostRequest) Method() string {
	return http.MethodPost
}

func (r *PostRequest) Execute(ctx context.Context) (*Response, error) {
	return r.client.do(ctx, r.Method(), r.URL(), r.headers, r.body)
}
