package catalog

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/spec"
)

// Template is one named request in a catalog.
type Template struct {
	Name           string            `yaml:"-"`
	Method         string            `yaml:"method"`
	URL            string            `yaml:"url"`
	Params         map[string]any    `yaml:"params"`
	Headers        map[string]string `yaml:"headers"`
	Cookies        map[string]string `yaml:"cookies"`
	JSON           any               `yaml:"json"`
	Data           any               `yaml:"data"`
	Files          map[string]string `yaml:"files"`
	Auth           *Auth             `yaml:"auth"`
	Timeout        time.Duration     `yaml:"timeout"`
	AllowRedirects *bool             `yaml:"allow_redirects"`
	Verify         *bool             `yaml:"verify"`
	Tags           []string          `yaml:"tags"`
	Depends        []string          `yaml:"depends"`
	Skip           string            `yaml:"skip"`
	Retry          int               `yaml:"retry"`
	RetryDelay     time.Duration     `yaml:"retry_delay"`
	RetryOn        []int             `yaml:"retry_on"`
	Expect         []Expectation     `yaml:"expect"`
	Capture        map[string]string `yaml:"capture"`
}

// Auth selects one of the supported schemes: basic, digest, bearer, apikey
// or aws.
type Auth struct {
	Type     string `yaml:"type"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Token    string `yaml:"token"`
	Header   string `yaml:"header"`
	Key      string `yaml:"key"`

	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Service   string `yaml:"service"`
}

// Expectation checks the value at Path with Op, which defaults to equality.
type Expectation struct {
	Path  string              `yaml:"path"`
	Op    assertions.Operator `yaml:"op"`
	Value any                 `yaml:"value"`
}

func (t *Template) validate() error {
	if t.URL == "" {
		return fmt.Errorf("request %q: url is required", t.Name)
	}
	for i, e := range t.Expect {
		if e.Path == "" {
			return fmt.Errorf("request %q: expect[%d]: path is required", t.Name, i)
		}
	}
	if t.Auth != nil {
		if _, err := t.Auth.build(); err != nil {
			return fmt.Errorf("request %q: %w", t.Name, err)
		}
	}
	return nil
}

func (a *Auth) build() (http.Auth, error) {
	switch strings.ToLower(a.Type) {
	case "basic":
		return &http.BasicAuth{Username: a.Username, Password: a.Password}, nil
	case "digest":
		return &http.DigestCredentials{Username: a.Username, Password: a.Password}, nil
	case "bearer":
		return &http.BearerAuth{Token: a.Token}, nil
	case "apikey", "api_key":
		return &http.APIKeyAuth{Header: a.Header, Key: a.Key}, nil
	case "aws":
		return &http.AWSAuth{AccessKey: a.AccessKey, SecretKey: a.SecretKey, Region: a.Region, Service: a.Service}, nil
	}
	return nil, fmt.Errorf("unsupported auth type %q", a.Type)
}

// Spec builds a fresh spec. Relative file paths resolve against dir.
func (t *Template) Spec(dir string) (*spec.Spec, error) {
	s := spec.New(t.Method, t.URL)

	if t.Params != nil {
		s.SetParams(t.Params)
	}
	if t.Headers != nil {
		s.SetHeaders(t.Headers)
	}
	if t.Cookies != nil {
		s.SetCookies(t.Cookies)
	}
	if t.JSON != nil {
		s.SetJSON(t.JSON)
	}
	if t.Data != nil {
		s.SetData(t.Data)
	}

	fields := make([]string, 0, len(t.Files))
	for field := range t.Files {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		p := t.Files[field]
		if !filepath.IsAbs(p) && dir != "" {
			p = filepath.Join(dir, p)
		}
		s.SetFile(field, p)
	}

	if t.Auth != nil {
		a, err := t.Auth.build()
		if err != nil {
			return nil, err
		}
		s.SetAuth(a)
	}
	if t.Timeout > 0 {
		s.SetTimeout(t.Timeout)
	}
	if t.AllowRedirects != nil {
		s.SetAllowRedirects(*t.AllowRedirects)
	}
	if t.Verify != nil {
		s.SetVerify(*t.Verify)
	}

	if err := s.Err(); err != nil {
		return nil, err
	}
	// The decoded body and params belong to the template.
	return s.Clone(), nil
}

// Check evaluates every expectation against the last response of s and
// returns all failures, not just the first.
func (t *Template) Check(s *spec.Spec) []error {
	var failures []error
	for _, e := range t.Expect {
		if err := s.Check(e.Path, e.Op, e.Value); err != nil {
			failures = append(failures, err)
		}
	}
	return failures
}
