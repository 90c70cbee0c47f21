package spec

import (
	"context"
	"maps"

	"github.com/abdul-hamid-achik/reqspec/packages/core/env"
	"github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/logger"
	"go.uber.org/zap"
)

// Run sends the request through session and stores the response. A nil
// session gets a fresh one that lives for this call only.
func (s *Spec) Run(session *http.Client) *Spec {
	return s.RunContext(context.Background(), session)
}

// RunContext is Run with a context that bounds the whole call. Transport
// errors are recorded exactly as the client returned them.
func (s *Spec) RunContext(ctx context.Context, session *http.Client) *Spec {
	if s.err != nil {
		return s
	}
	if session == nil {
		session = http.NewSession()
	}

	s.response = nil
	req := s.Request()

	logger.Debug("running request spec",
		zap.String("method", req.Method),
		zap.String("url", req.URL),
		zap.Int("params", len(req.Params)),
		zap.Int("headers", len(req.Headers)),
	)

	resp, err := session.Do(ctx, req)
	if err != nil {
		s.fail(err)
		return s
	}
	s.response = resp
	return s
}

// Request assembles the transport request, with placeholders resolved
// through the bound resolver. The spec's own maps are not shared with it.
func (s *Spec) Request() *http.Request {
	req := http.NewRequest(s.method, s.url)
	req.Params = deepCopy(s.params)
	req.Data = copyValue(s.data)
	req.JSON = copyValue(s.json)
	req.Headers = maps.Clone(s.headers)
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	req.Cookies = maps.Clone(s.cookies)
	req.Files = s.files
	req.Auth = s.auth
	req.Timeout = s.timeout
	req.Proxy = s.proxy
	req.Hooks = s.hooks
	req.Stream = s.stream
	req.Verify = s.verify
	req.Cert = s.cert
	if !s.allowRedirects {
		follow := false
		req.AllowRedirects = &follow
	}

	if s.vars != nil {
		interpolate(req, s.vars)
	}
	return req
}

func interpolate(req *http.Request, vars *env.Resolver) {
	req.URL = vars.Resolve(req.URL)
	if req.Params != nil {
		req.Params = vars.ResolveValue(req.Params).(map[string]any)
	}
	req.Headers = vars.ResolveAll(req.Headers)
	if req.Cookies != nil {
		req.Cookies = vars.ResolveAll(req.Cookies)
	}
	if req.Data != nil {
		req.Data = vars.ResolveValue(req.Data)
	}
	if req.JSON != nil {
		req.JSON = vars.ResolveValue(req.JSON)
	}
	if req.Auth != nil {
		req.Auth = resolveAuth(req.Auth, vars.Resolve)
	}
}

func resolveAuth(a http.Auth, resolve func(string) string) http.Auth {
	switch auth := a.(type) {
	case *http.BasicAuth:
		return &http.BasicAuth{Username: resolve(auth.Username), Password: resolve(auth.Password)}
	case *http.BearerAuth:
		return &http.BearerAuth{Token: resolve(auth.Token)}
	case *http.DigestCredentials:
		return &http.DigestCredentials{Username: resolve(auth.Username), Password: resolve(auth.Password)}
	case *http.APIKeyAuth:
		return &http.APIKeyAuth{Header: auth.Header, Key: resolve(auth.Key)}
	case *http.AWSAuth:
		return &http.AWSAuth{
			AccessKey: resolve(auth.AccessKey),
			SecretKey: resolve(auth.SecretKey),
			Region:    resolve(auth.Region),
			Service:   resolve(auth.Service),
		}
	}
	return a
}

// Response returns the response of the last run, nil before any run.
func (s *Spec) Response() *http.Response {
	return s.response
}
