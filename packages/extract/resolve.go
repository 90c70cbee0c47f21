package extract

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/path"
	"github.com/tidwall/gjson"
)

// JSONSegment parses the response body strictly as JSON.
const JSONSegment = "json()"

var (
	ErrNoResponse    = errors.New("no response: Run has not been called")
	ErrNotFound      = errors.New("no such key or attribute")
	ErrCannotDescend = errors.New("cannot descend into value")
)

// LookupError names the segment at which a path stopped resolving. Err is one
// of ErrNotFound, ErrCannotDescend, http.ErrNotJSON or a body read error.
type LookupError struct {
	Path    string
	Segment string
	Err     error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("cannot resolve %q at segment %q: %v", e.Path, e.Segment, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Resolve walks path from the response object and returns the value it
// addresses. JSON integers come back as int64, other numbers as float64,
// objects as map[string]any and arrays as []any.
func Resolve(resp *http.Response, p string) (any, error) {
	if resp == nil {
		return nil, ErrNoResponse
	}

	segments, err := path.Parse(p)
	if err != nil {
		return nil, err
	}

	current := responseNode(resp)
	for _, seg := range segments {
		next, err := current.child(seg)
		if err != nil {
			return nil, &LookupError{Path: p, Segment: seg, Err: err}
		}
		current = next
	}
	return current.value(), nil
}

type kind int

const (
	kindResponse kind = iota
	kindRequest
	kindHeaders
	kindMapping
	kindJSON
	kindLeaf
)

// node is the value a walk currently stands on. Exactly the field matching
// kind is set.
type node struct {
	kind    kind
	resp    *http.Response
	req     *http.SentRequest
	headers nethttp.Header
	mapping map[string]any
	json    gjson.Result
	leaf    any
}

func responseNode(r *http.Response) node { return node{kind: kindResponse, resp: r} }
func requestNode(r *http.SentRequest) node { return node{kind: kindRequest, req: r} }
func headersNode(h nethttp.Header) node { return node{kind: kindHeaders, headers: h} }
func mappingNode(m map[string]any) node { return node{kind: kindMapping, mapping: m} }
func jsonNode(r gjson.Result) node { return node{kind: kindJSON, json: r} }
func leafNode(v any) node { return node{kind: kindLeaf, leaf: v} }

func (n node) value() any {
	switch n.kind {
	case kindResponse:
		return n.resp
	case kindRequest:
		return n.req
	case kindHeaders:
		return n.headers
	case kindMapping:
		return n.mapping
	case kindJSON:
		return jsonValue(n.json)
	default:
		return n.leaf
	}
}

func (n node) child(seg string) (node, error) {
	switch n.kind {
	case kindResponse:
		return responseAttr(n.resp, seg)
	case kindRequest:
		return requestAttr(n.req, seg)
	case kindHeaders:
		v, ok := http.HeaderValue(n.headers, seg)
		if !ok {
			return node{}, ErrNotFound
		}
		return leafNode(v), nil
	case kindMapping:
		v, ok := n.mapping[seg]
		if !ok {
			return node{}, ErrNotFound
		}
		return wrap(v), nil
	case kindJSON:
		return jsonChild(n.json, seg)
	default:
		return node{}, fmt.Errorf("%w of type %T", ErrCannotDescend, n.leaf)
	}
}

func responseAttr(r *http.Response, seg string) (node, error) {
	switch seg {
	case JSONSegment:
		result, err := r.JSON()
		if err != nil {
			return node{}, err
		}
		return jsonNode(result), nil
	case "body":
		return bodyNode(r.Content(), r.BodyErr())
	case "status_code":
		return leafNode(r.StatusCode), nil
	case "status":
		return leafNode(r.Status), nil
	case "reason":
		return leafNode(r.Reason()), nil
	case "ok":
		return leafNode(r.OK()), nil
	case "url":
		return leafNode(r.URL), nil
	case "text":
		return leafNode(r.BodyString()), nil
	case "content":
		return leafNode(r.Content()), nil
	case "encoding":
		return leafNode(r.Encoding()), nil
	case "elapsed":
		return leafNode(r.Duration), nil
	case "headers":
		return headersNode(r.Headers), nil
	case "cookies":
		return mappingNode(r.CookieMap()), nil
	case "request":
		if r.Request == nil {
			return node{}, ErrNotFound
		}
		return requestNode(r.Request), nil
	}
	return node{}, ErrNotFound
}

func requestAttr(r *http.SentRequest, seg string) (node, error) {
	switch seg {
	case "method":
		return leafNode(r.Method), nil
	case "url":
		return leafNode(r.URL), nil
	case "headers":
		return headersNode(r.Headers), nil
	case "cookies":
		cookies := (&nethttp.Request{Header: r.Headers}).Cookies()
		m := make(map[string]any, len(cookies))
		for _, c := range cookies {
			m[c.Name] = c.Value
		}
		return mappingNode(m), nil
	case "body":
		return bodyNode(r.Body, nil)
	}
	return node{}, ErrNotFound
}

// bodyNode is lenient: a body that is not JSON resolves to its text.
func bodyNode(body []byte, readErr error) (node, error) {
	if readErr != nil {
		return node{}, readErr
	}
	if gjson.ValidBytes(body) {
		return jsonNode(gjson.ParseBytes(body)), nil
	}
	return leafNode(string(body)), nil
}

func jsonChild(r gjson.Result, seg string) (node, error) {
	switch {
	case r.IsObject():
		var found gjson.Result
		ok := false
		// Keys are matched exactly, without gjson path syntax.
		r.ForEach(func(key, value gjson.Result) bool {
			// The last duplicate key wins, as with encoding/json.
			if key.String() == seg {
				found, ok = value, true
			}
			return true
		})
		if !ok {
			return node{}, ErrNotFound
		}
		return jsonNode(found), nil
	case r.IsArray():
		idx, err := strconv.Atoi(seg)
		if err != nil || idx < 0 {
			return node{}, fmt.Errorf("%w: array index %q is not a non-negative integer", ErrNotFound, seg)
		}
		items := r.Array()
		if idx >= len(items) {
			return node{}, fmt.Errorf("%w: index %d out of range (length %d)", ErrNotFound, idx, len(items))
		}
		return jsonNode(items[idx]), nil
	}
	return node{}, fmt.Errorf("%w of JSON type %s", ErrCannotDescend, r.Type)
}

// jsonValue is gjson's Value with integers kept exact. Integers that do not
// fit in an int64 fall back to float64.
func jsonValue(r gjson.Result) any {
	switch {
	case r.IsObject():
		m := make(map[string]any)
		r.ForEach(func(key, value gjson.Result) bool {
			m[key.String()] = jsonValue(value)
			return true
		})
		return m
	case r.IsArray():
		items := r.Array()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = jsonValue(item)
		}
		return out
	case r.Type == gjson.Number && !strings.ContainsAny(r.Raw, ".eE"):
		if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
			return i
		}
	}
	return r.Value()
}

func wrap(v any) node {
	if m, ok := v.(map[string]any); ok {
		return mappingNode(m)
	}
	return leafNode(v)
}
