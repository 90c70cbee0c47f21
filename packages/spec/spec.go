package spec

import (
	"encoding/json"
	"fmt"
	"maps"
	nethttp "net/http"
	"net/url"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/core/env"
	"github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/output"
)

// BuildError is recorded when a merge setter is given something that is not
// a mapping.
type BuildError struct {
	Op    string
	Value any
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: expected a mapping, got %T", e.Op, e.Value)
}

// Spec describes one HTTP call and holds the response of its last run.
type Spec struct {
	method         string
	url            string
	params         map[string]any
	data           any
	json           any
	headers        map[string]string
	cookies        map[string]string
	files          []*http.File
	auth           http.Auth
	timeout        time.Duration
	allowRedirects bool
	proxy          string
	hooks          []http.Hook
	stream         bool
	verify         *bool
	cert           *http.ClientCert

	vars     *env.Resolver
	tb       testing.TB
	response *http.Response
	err      error
}

// New returns a spec for method and url with every other field at its default.
func New(method, url string) *Spec {
	if method == "" {
		method = nethttp.MethodGet
	}
	return &Spec{
		method:         strings.ToUpper(method),
		url:            url,
		allowRedirects: true,
	}
}

func Get(url string) *Spec     { return New(nethttp.MethodGet, url) }
func Post(url string) *Spec    { return New(nethttp.MethodPost, url) }
func Put(url string) *Spec     { return New(nethttp.MethodPut, url) }
func Patch(url string) *Spec   { return New(nethttp.MethodPatch, url) }
func Delete(url string) *Spec  { return New(nethttp.MethodDelete, url) }
func Head(url string) *Spec    { return New(nethttp.MethodHead, url) }
func Options(url string) *Spec { return New(nethttp.MethodOptions, url) }

// T binds the spec to a test. Every error recorded from now on, and one
// already recorded, fails the test with a rendered report.
func (s *Spec) T(tb testing.TB) *Spec {
	tb.Helper()
	s.tb = tb
	if s.err != nil {
		s.report(s.err)
	}
	return s
}

// WithVars binds the resolver used to interpolate {{name}} placeholders and
// to store captures.
func (s *Spec) WithVars(r *env.Resolver) *Spec {
	s.vars = r
	return s
}

// Vars returns the bound resolver, binding a fresh one if there is none.
func (s *Spec) Vars() *env.Resolver {
	if s.vars == nil {
		s.vars = env.NewResolver()
	}
	return s.vars
}

// Err returns the first error recorded by the chain.
func (s *Spec) Err() error {
	return s.err
}

func (s *Spec) fail(err error) {
	if s.err == nil {
		s.err = err
	}
	if s.tb != nil {
		s.tb.Helper()
		s.report(err)
	}
}

func (s *Spec) report(err error) {
	s.tb.Helper()
	s.tb.Fatal("\n" + output.NewConsoleFormatter().FormatFailure(err))
}

func (s *Spec) Method() string { return s.method }
func (s *Spec) URL() string    { return s.url }

// Params returns a copy of the query parameters, nil if none were set.
func (s *Spec) Params() map[string]any { return maps.Clone(s.params) }

// Headers returns a copy of the request headers with keys as supplied.
func (s *Spec) Headers() map[string]string { return maps.Clone(s.headers) }

func (s *Spec) Cookies() map[string]string { return maps.Clone(s.cookies) }
func (s *Spec) Data() any                  { return s.data }
func (s *Spec) JSON() any                  { return s.json }

// SetParams merges m into the query parameters. Keys in m win.
func (s *Spec) SetParams(m any) *Spec {
	if s.err != nil {
		return s
	}
	values, ok := toMapping(m)
	if !ok {
		s.fail(&BuildError{Op: "SetParams", Value: m})
		return s
	}
	if s.params == nil {
		s.params = make(map[string]any, len(values))
	}
	maps.Copy(s.params, values)
	return s
}

func (s *Spec) SetParam(key string, value any) *Spec {
	return s.SetParams(map[string]any{key: value})
}

// ReplaceParams discards the current query parameters in favour of m.
func (s *Spec) ReplaceParams(m any) *Spec {
	if s.err != nil {
		return s
	}
	s.params = nil
	if m == nil {
		return s
	}
	return s.SetParams(m)
}

// SetHeaders merges m into the headers. Key case is kept as given; lookups on
// the response are case-insensitive.
func (s *Spec) SetHeaders(m any) *Spec {
	if s.err != nil {
		return s
	}
	values, ok := toStringMapping(m)
	if !ok {
		s.fail(&BuildError{Op: "SetHeaders", Value: m})
		return s
	}
	if s.headers == nil {
		s.headers = make(map[string]string, len(values))
	}
	maps.Copy(s.headers, values)
	return s
}

func (s *Spec) SetHeader(key, value string) *Spec {
	return s.SetHeaders(map[string]string{key: value})
}

func (s *Spec) ReplaceHeaders(m any) *Spec {
	if s.err != nil {
		return s
	}
	s.headers = nil
	if m == nil {
		return s
	}
	return s.SetHeaders(m)
}

func (s *Spec) SetCookies(m any) *Spec {
	if s.err != nil {
		return s
	}
	values, ok := toStringMapping(m)
	if !ok {
		s.fail(&BuildError{Op: "SetCookies", Value: m})
		return s
	}
	if s.cookies == nil {
		s.cookies = make(map[string]string, len(values))
	}
	maps.Copy(s.cookies, values)
	return s
}

func (s *Spec) SetCookie(key, value string) *Spec {
	return s.SetCookies(map[string]string{key: value})
}

func (s *Spec) ReplaceCookies(m any) *Spec {
	if s.err != nil {
		return s
	}
	s.cookies = nil
	if m == nil {
		return s
	}
	return s.SetCookies(m)
}

// SetJSON replaces the structured body. It is sent as application/json
// unless Data is also set, in which case Data is sent.
func (s *Spec) SetJSON(v any) *Spec {
	s.json = v
	return s
}

// SetData replaces the raw body. A mapping is form-encoded, or JSON-encoded
// when the headers declare a JSON content type.
func (s *Spec) SetData(v any) *Spec {
	s.data = v
	return s
}

// SetFile adds a multipart part read from path when the request is sent.
func (s *Spec) SetFile(field, path string) *Spec {
	s.files = append(s.files, &http.File{Field: field, Path: path})
	return s
}

func (s *Spec) SetFileContent(field, name string, content []byte) *Spec {
	s.files = append(s.files, &http.File{Field: field, Name: name, Content: content})
	return s
}

func (s *Spec) SetAuth(a http.Auth) *Spec {
	s.auth = a
	return s
}

func (s *Spec) SetBasicAuth(username, password string) *Spec {
	return s.SetAuth(&http.BasicAuth{Username: username, Password: password})
}

func (s *Spec) SetDigestAuth(username, password string) *Spec {
	return s.SetAuth(&http.DigestCredentials{Username: username, Password: password})
}

func (s *Spec) SetBearerToken(token string) *Spec {
	return s.SetAuth(&http.BearerAuth{Token: token})
}

func (s *Spec) SetTimeout(d time.Duration) *Spec {
	s.timeout = d
	return s
}

func (s *Spec) SetAllowRedirects(allow bool) *Spec {
	s.allowRedirects = allow
	return s
}

func (s *Spec) SetProxy(proxyURL string) *Spec {
	s.proxy = proxyURL
	return s
}

// SetVerify toggles TLS certificate verification for this request only.
func (s *Spec) SetVerify(verify bool) *Spec {
	s.verify = &verify
	return s
}

func (s *Spec) SetCert(certFile, keyFile string) *Spec {
	s.cert = &http.ClientCert{CertFile: certFile, KeyFile: keyFile}
	return s
}

// SetStream defers reading the response body until it is first needed.
func (s *Spec) SetStream(stream bool) *Spec {
	s.stream = stream
	return s
}

func (s *Spec) AddHook(h http.Hook) *Spec {
	s.hooks = append(s.hooks, h)
	return s
}

// Clone returns an independent copy of the request description. The response,
// the recorded error and the bound test are not copied; the resolver is shared.
func (s *Spec) Clone() *Spec {
	c := &Spec{
		method:         s.method,
		url:            s.url,
		params:         deepCopy(s.params),
		data:           copyValue(s.data),
		json:           copyValue(s.json),
		headers:        maps.Clone(s.headers),
		cookies:        maps.Clone(s.cookies),
		auth:           s.auth,
		timeout:        s.timeout,
		allowRedirects: s.allowRedirects,
		proxy:          s.proxy,
		stream:         s.stream,
		vars:           s.vars,
	}
	for _, f := range s.files {
		fc := *f
		c.files = append(c.files, &fc)
	}
	c.hooks = append(c.hooks, s.hooks...)
	if s.verify != nil {
		v := *s.verify
		c.verify = &v
	}
	if s.cert != nil {
		cert := *s.cert
		c.cert = &cert
	}
	return c
}

func deepCopy(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopy(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	case map[string]string:
		return maps.Clone(val)
	case []string:
		return append([]string(nil), val...)
	case url.Values:
		out := make(url.Values, len(val))
		for k, vs := range val {
			out[k] = append([]string(nil), vs...)
		}
		return out
	}
	return v
}

// toMapping accepts any map keyed by strings, url.Values, http.Header, or a
// struct, which is read through its JSON encoding.
func toMapping(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[string]string:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[k] = val
		}
		return out, true
	case url.Values:
		return multiValues(m), true
	case nethttp.Header:
		return multiValues(m), true
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, false
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
			return nil, false
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return out, true
	case reflect.Struct:
		return structToMap(rv.Interface())
	}
	return nil, false
}

func structToMap(v any) (map[string]any, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	return out, true
}

func multiValues(m map[string][]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, vals := range m {
		if len(vals) == 1 {
			out[k] = vals[0]
		} else {
			out[k] = append([]string(nil), vals...)
		}
	}
	return out
}

func toStringMapping(v any) (map[string]string, bool) {
	if m, ok := v.(map[string]string); ok {
		return m, true
	}
	values, ok := toMapping(v)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(values))
	for k, val := range values {
		out[k] = stringify(val)
	}
	return out, true
}

// stringify renders a value the way it would appear in a header or a query
// string.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []byte:
		return string(val)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
	return fmt.Sprint(v)
}
