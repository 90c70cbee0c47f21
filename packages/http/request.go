package http

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"time"
)

// Request carries every transport parameter of a single call. Nil or zero
// fields are not sent.
type Request struct {
	Method  string
	URL     string
	Params  map[string]any
	Data    any // string, []byte, io.Reader, url.Values or a mapping
	JSON    any
	Headers map[string]string
	Cookies map[string]string
	Files   []*File
	Auth    Auth
	Timeout time.Duration
	// AllowRedirects nil means follow, like the client default.
	AllowRedirects *bool
	Proxy          string
	Hooks          []Hook
	Stream         bool
	Verify         *bool
	Cert           *ClientCert
}

// ClientCert names a PEM certificate and key pair presented during the TLS handshake.
type ClientCert struct {
	CertFile string
	KeyFile  string
}

// Hook is called with every response before it is handed back to the caller.
type Hook func(*Response)

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

// Header returns the value of a request header, matching the name case-insensitively.
func (r *Request) Header(key string) (string, bool) {
	return lookupFold(r.Headers, key)
}

// BuildURL merges Params into the query string of URL. Slice values become
// repeated keys; nil values are dropped.
func (r *Request) BuildURL() (string, error) {
	if len(r.Params) == 0 {
		return r.URL, nil
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}

	q := u.Query()
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := r.Params[k]
		if v == nil {
			continue
		}
		q.Del(k)
		for _, s := range queryValues(v) {
			q.Add(k, s)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func queryValues(v any) []string {
	switch val := v.(type) {
	case string:
		return []string{val}
	case []string:
		return val
	case []byte:
		return []string{string(val)}
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out = append(out, fmt.Sprint(rv.Index(i).Interface()))
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}
