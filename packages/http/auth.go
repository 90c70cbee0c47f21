package http

import (
	"net/http"
)

// Auth decorates an outbound request with credentials. body is the encoded
// request body, for schemes that sign the payload.
type Auth interface {
	Apply(req *http.Request, body []byte) error
}

// BasicAuth sends an RFC 7617 Authorization header.
type BasicAuth struct {
	Username string
	Password string
}

func (a *BasicAuth) Apply(req *http.Request, _ []byte) error {
	req.SetBasicAuth(a.Username, a.Password)
	return nil
}

// BearerAuth sends "Authorization: Bearer <token>".
type BearerAuth struct {
	Token string
}

func (a *BearerAuth) Apply(req *http.Request, _ []byte) error {
	req.Header.Set("Authorization", "Bearer "+a.Token)
	return nil
}

// APIKeyAuth sends a key in a custom header, X-API-Key unless Header is set.
type APIKeyAuth struct {
	Header string
	Key    string
}

func (a *APIKeyAuth) Apply(req *http.Request, _ []byte) error {
	header := a.Header
	if header == "" {
		header = "X-API-Key"
	}
	req.Header.Set(header, a.Key)
	return nil
}

// challenger is implemented by schemes that answer a 401 challenge.
type challenger interface {
	Auth
	// Authorize returns the Authorization header for a retry, or "" when the
	// challenge is not one the scheme understands.
	Authorize(wwwAuthenticate string, req *http.Request) (string, error)
}
