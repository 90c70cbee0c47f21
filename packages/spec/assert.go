package spec

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/extract"
	"github.com/abdul-hamid-achik/reqspec/packages/path"
)

// Extract resolves a dotted path against the last response.
func (s *Spec) Extract(p string) (any, error) {
	return extract.Resolve(s.response, p)
}

// ExtractString is Extract with the value rendered as text. Whole numbers
// have no fraction and structured values are rendered as JSON.
func (s *Spec) ExtractString(p string) (string, error) {
	v, err := s.Extract(p)
	if err != nil {
		return "", err
	}
	return text(v), nil
}

func text(v any) string {
	switch val := v.(type) {
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
	return stringify(v)
}

// Capture stores the value at path under name in the bound resolver, so
// later specs sharing the resolver can use {{name}}.
func (s *Spec) Capture(name, p string) *Spec {
	if s.err != nil {
		return s
	}
	v, err := s.Extract(p)
	if err != nil {
		s.fail(err)
		return s
	}
	s.Vars().SetCapture("", name, v)
	return s
}

// Validate resolves path and requires it to equal expected.
func (s *Spec) Validate(p string, expected any) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	return s.AssertThat(p, assertions.OpEquals, expected)
}

// Assert is an alias of Validate.
func (s *Spec) Assert(p string, expected any) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	return s.AssertThat(p, assertions.OpEquals, expected)
}

// Check resolves path and applies op without recording the result. A
// missing key satisfies !exists and fails exists like any other mismatch.
func (s *Spec) Check(p string, op assertions.Operator, expected any) error {
	actual, err := s.Extract(p)
	if err != nil {
		if !errors.Is(err, extract.ErrNotFound) || (op != assertions.OpExists && op != assertions.OpNotExists) {
			return err
		}
		actual = nil
	}
	return assertions.Check(p, actual, op, expected)
}

// AssertThat records the failure of Check, if any.
func (s *Spec) AssertThat(p string, op assertions.Operator, expected any) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	if s.err != nil {
		return s
	}
	if err := s.Check(p, op, expected); err != nil {
		s.fail(err)
	}
	return s
}

func (s *Spec) AssertStatusCode(code int) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	return s.AssertThat("status_code", assertions.OpEquals, code)
}

// AssertHeader compares a response header by name, ignoring case. Values of
// repeated headers are joined with ", ".
func (s *Spec) AssertHeader(name, expected string) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	p, err := path.Join("headers", name)
	if err != nil {
		if s.err == nil {
			s.fail(err)
		}
		return s
	}
	return s.AssertThat(p, assertions.OpEquals, expected)
}

// AssertBody compares a value inside the decoded body. subpath is itself a
// dotted path; an empty subpath compares the whole body.
func (s *Spec) AssertBody(subpath string, expected any) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	return s.AssertThat(bodyPath(subpath), assertions.OpEquals, expected)
}

// AssertSchema validates the value at path against a JSON schema given
// inline, as a file path or as a mapping.
func (s *Spec) AssertSchema(p string, schema any) *Spec {
	if s.tb != nil {
		s.tb.Helper()
	}
	return s.AssertThat(p, assertions.OpSchema, schema)
}

func bodyPath(subpath string) string {
	if subpath == "" {
		return "body"
	}
	return "body." + subpath
}
