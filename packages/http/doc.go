// Package http sends the requests a spec describes and captures what came back.
//
// It wraps the standard library's http package with additional features:
//   - Cookie-carrying sessions
//   - Query parameters, form, JSON and multipart bodies
//   - Per-request timeouts, redirect policy, proxy and TLS settings
//   - Basic, bearer, API key, digest and AWS SigV4 authentication
//   - Lazily read streamed bodies and response hooks
package http
