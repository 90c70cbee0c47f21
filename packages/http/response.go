package http

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

var ErrNotJSON = errors.New("response body is not valid JSON")

// SentRequest is the outbound request as it went over the wire, after the
// session attached cookies and auth.
type SentRequest struct {
	Method  string
	URL     string
	Headers http.Header
	Body    []byte
}

// Response is the read-only result of one call.
type Response struct {
	StatusCode int
	Status     string
	URL        string
	Headers    http.Header
	Cookies    []*http.Cookie
	Duration   time.Duration
	Request    *SentRequest

	once    sync.Once
	body    []byte
	bodyErr error
	stream  io.ReadCloser

	jsonOnce sync.Once
	json     gjson.Result
	jsonErr  error
}

// NewResponse builds a fully buffered response, mostly useful in tests.
func NewResponse(statusCode int, headers http.Header, body []byte) *Response {
	if headers == nil {
		headers = http.Header{}
	}
	return &Response{
		StatusCode: statusCode,
		Status:     statusLine(statusCode),
		Headers:    headers,
		body:       body,
	}
}

func statusLine(code int) string {
	text := http.StatusText(code)
	if text == "" {
		return strconv.Itoa(code)
	}
	return strconv.Itoa(code) + " " + text
}

func (r *Response) load() {
	r.once.Do(func() {
		if r.stream == nil {
			return
		}
		defer r.stream.Close()
		r.body, r.bodyErr = io.ReadAll(r.stream)
		r.stream = nil
	})
}

// Content returns the raw body. For streamed responses the body is read on
// first access.
func (r *Response) Content() []byte {
	r.load()
	return r.body
}

// BodyErr reports a failure while reading a streamed body.
func (r *Response) BodyErr() error {
	r.load()
	return r.bodyErr
}

func (r *Response) BodyString() string {
	return string(r.Content())
}

// JSON parses the body once and caches the result.
func (r *Response) JSON() (gjson.Result, error) {
	r.jsonOnce.Do(func() {
		body := r.Content()
		if r.bodyErr != nil {
			r.jsonErr = r.bodyErr
			return
		}
		if !gjson.ValidBytes(body) {
			r.jsonErr = ErrNotJSON
			return
		}
		r.json = gjson.ParseBytes(body)
	})
	return r.json, r.jsonErr
}

// Header returns all values of a header joined by ", ", matching the name
// case-insensitively.
func (r *Response) Header(key string) string {
	v, _ := HeaderValue(r.Headers, key)
	return v
}

// HeaderValue looks a header up case-insensitively, including keys that were
// stored without canonicalisation.
func HeaderValue(h http.Header, key string) (string, bool) {
	if vals, ok := h[http.CanonicalHeaderKey(key)]; ok {
		return strings.Join(vals, ", "), true
	}
	for k, vals := range h {
		if strings.EqualFold(k, key) {
			return strings.Join(vals, ", "), true
		}
	}
	return "", false
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// Encoding is the charset declared by the Content-Type header, if any.
func (r *Response) Encoding() string {
	_, params, err := mime.ParseMediaType(r.ContentType())
	if err != nil {
		return ""
	}
	return params["charset"]
}

// Reason is the status text without the numeric code, e.g. "OK".
func (r *Response) Reason() string {
	if _, reason, ok := strings.Cut(r.Status, " "); ok {
		return reason
	}
	return http.StatusText(r.StatusCode)
}

// OK reports whether the status code is below 400.
func (r *Response) OK() bool {
	return r.StatusCode < 400
}

// CookieMap returns the cookies set by this response by name.
func (r *Response) CookieMap() map[string]any {
	m := make(map[string]any, len(r.Cookies))
	for _, c := range r.Cookies {
		m[c.Name] = c.Value
	}
	return m
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
