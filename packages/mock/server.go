// Package mock provides an httpbin-style echo server for exercising request
// specs in tests without network access.
package mock

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/logger"
	"go.uber.org/zap"
)

// ServerHeader is sent with every response.
const ServerHeader = "reqspec-mock"

// Server routes requests to the built-in endpoints and any stubs.
type Server struct {
	router *Router
	delay  time.Duration
	log    *zap.Logger
}

// Option is a functional option for Server
type Option func(*Server)

// WithDelay adds a delay to all responses
func WithDelay(delay time.Duration) Option {
	return func(s *Server) {
		s.delay = delay
	}
}

// WithLogger logs every request; the package logger is used otherwise.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		s.log = l
	}
}

// NewServer creates a server with the httpbin-style endpoints registered.
func NewServer(opts ...Option) *Server {
	s := &Server{
		router: NewRouter(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.GetLogger()
	}
	s.registerEndpoints()
	return s
}

// Handle registers a custom handler. The pattern may contain {{name}} segments.
func (s *Server) Handle(method, pattern string, h HandlerFunc) {
	s.router.AddRoute(&Route{
		Method:      method,
		PathPattern: extractPathPattern(pattern),
		Name:        method + " " + pattern,
		Handler:     h,
	})
}

// Stub serves a canned response. {{name}} segments of the pattern are
// substituted into the body.
func (s *Server) Stub(method, pattern string, resp *MockResponse) {
	s.router.AddRoute(&Route{
		Method:      method,
		PathPattern: extractPathPattern(pattern),
		Name:        method + " " + pattern,
		Response:    resp,
	})
}

// GetRoutes returns all registered routes
func (s *Server) GetRoutes() []*Route {
	return s.router.routes
}

// Handler returns the server as an http.Handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleRequest)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if s.delay > 0 {
		time.Sleep(s.delay)
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	rec.Header().Set("Server", ServerHeader)

	route, params := s.router.Match(r.Method, r.URL.Path)
	switch {
	case route == nil:
		writeJSONStatus(rec, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path)})
	case route.Handler != nil:
		route.Handler(rec, r, params)
	default:
		serveStub(rec, route.Response, params)
	}

	s.log.Debug("mock request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", rec.status),
		zap.Duration("duration", time.Since(start)),
	)
}

func serveStub(w http.ResponseWriter, resp *MockResponse, params map[string]string) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)

	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resolveBodyParams(resp.Body, params)))
}

func resolveBodyParams(body string, params map[string]string) string {
	result := body
	for key, value := range params {
		result = strings.ReplaceAll(result, "{{"+key+"}}", value)
	}
	return result
}
