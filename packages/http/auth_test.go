package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicAndBearerAuth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("Authorization") + "|" + r.Header.Get("X-Key")))
	}))
	defer server.Close()

	client := NewClient()

	tests := []struct {
		name string
		auth Auth
		want string
	}{
		{"basic", &BasicAuth{Username: "user", Password: "passwd"}, "Basic dXNlcjpwYXNzd2Q=|"},
		{"bearer", &BearerAuth{Token: "tok"}, "Bearer tok|"},
		{"api key", &APIKeyAuth{Header: "X-Key", Key: "k1"}, "|k1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Do(context.Background(), &Request{Method: http.MethodGet, URL: server.URL, Auth: tt.auth})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.BodyString())
		})
	}
}

func TestAPIKeyAuth_DefaultHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	require.NoError(t, (&APIKeyAuth{Key: "secret"}).Apply(req, nil))
	assert.Equal(t, "secret", req.Header.Get("X-API-Key"))
}

func digestServer(t *testing.T, user, pass string) *httptest.Server {
	const realm, nonce, opaque = "me@example.com", "dcd98b7102dd2f0e8b11d0f600bfb0c093", "5ccc069c403ebaf9f0171e9517f40e41"

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Digest ") {
			w.Header().Set("WWW-Authenticate",
				`Digest realm="`+realm+`", qop="auth", nonce="`+nonce+`", opaque="`+opaque+`"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		params := ParseWWWAuthenticate(header)
		expected := (&DigestAuth{
			Username: user,
			Password: pass,
			Realm:    realm,
			Nonce:    nonce,
			URI:      params["uri"],
			Qop:      params["qop"],
			Nc:       params["nc"],
			Cnonce:   params["cnonce"],
			Method:   r.Method,
		}).ComputeDigestResponse()

		if params["username"] != user || params["response"] != expected || params["uri"] != r.URL.RequestURI() {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, opaque, params["opaque"])
		_, _ = w.Write([]byte(`{"authenticated": true}`))
	}))
}

func TestDigestCredentials_AnswersChallenge(t *testing.T) {
	server := digestServer(t, "user", "passwd")
	defer server.Close()

	resp, err := NewClient().Do(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    server.URL + "/digest-auth?x=1",
		Auth:   &DigestCredentials{Username: "user", Password: "passwd"},
	})

	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Request.Headers.Get("Authorization"), `username="user"`)
}

func TestDigestCredentials_WrongPassword(t *testing.T) {
	server := digestServer(t, "user", "passwd")
	defer server.Close()

	resp, err := NewClient().Do(context.Background(), &Request{
		Method: http.MethodGet,
		URL:    server.URL,
		Auth:   &DigestCredentials{Username: "user", Password: "nope"},
	})

	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestDigestCredentials_IgnoresOtherChallenges(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "http://example.com/", nil)
	header, err := (&DigestCredentials{Username: "u", Password: "p"}).Authorize(`Basic realm="x"`, req)
	require.NoError(t, err)
	assert.Empty(t, header)
}

type failingChallenger struct{}

func (failingChallenger) Apply(*http.Request, []byte) error { return nil }

func (failingChallenger) Authorize(string, *http.Request) (string, error) {
	return "", errors.New("no entropy")
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestClient_ChallengeErrorClosesBody(t *testing.T) {
	body := &closeTracker{Reader: strings.NewReader("denied")}
	client := NewClient(WithTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusUnauthorized,
			Status:     "401 Unauthorized",
			Header:     http.Header{"Www-Authenticate": {`Digest realm="x", nonce="n"`}},
			Body:       body,
			Request:    r,
		}, nil
	})))

	for _, stream := range []bool{false, true} {
		body.closed = false
		_, err := client.Do(context.Background(), &Request{
			Method: http.MethodGet,
			URL:    "http://example.com/secret",
			Auth:   failingChallenger{},
			Stream: stream,
		})
		require.ErrorContains(t, err, "no entropy")
		assert.True(t, body.closed, "stream=%v", stream)
	}
}

func TestDigestAuth_ComputeDigestResponse(t *testing.T) {
	// RFC 2617 section 3.5 example
	d := &DigestAuth{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Realm:    "testrealm@host.com",
		Nonce:    "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		URI:      "/dir/index.html",
		Qop:      "auth",
		Nc:       "00000001",
		Cnonce:   "0a4f113b",
		Method:   "GET",
	}
	assert.Equal(t, "6629fae49393a05397450978507c4ef1", d.ComputeDigestResponse())
}

func TestAWSAuth_Apply(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	auth := &AWSAuth{
		AccessKey: "AKIDEXAMPLE",
		SecretKey: "secret",
		Region:    "us-east-1",
		Service:   "execute-api",
		now:       func() time.Time { return fixed },
	}

	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/items?b=2&a=1", nil)
	require.NoError(t, auth.Apply(req, []byte(`{}`)))

	assert.Equal(t, "20240102T030405Z", req.Header.Get("X-Amz-Date"))
	assert.Equal(t, sha256Hash([]byte(`{}`)), req.Header.Get("X-Amz-Content-Sha256"))
	authz := req.Header.Get("Authorization")
	assert.True(t, strings.HasPrefix(authz,
		"AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/20240102/us-east-1/execute-api/aws4_request, SignedHeaders=host;x-amz-date, Signature="))

	// Signing is deterministic for a fixed clock
	again, _ := http.NewRequest(http.MethodPost, "https://api.example.com/items?a=1&b=2", nil)
	require.NoError(t, auth.Apply(again, []byte(`{}`)))
	assert.Equal(t, authz, again.Header.Get("Authorization"))
}

func TestAWSAuth_MissingCredentials(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/", nil)
	err := (&AWSAuth{Region: "us-east-1"}).Apply(req, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "credentials not provided")
}
