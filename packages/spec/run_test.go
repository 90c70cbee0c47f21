package spec

import (
	"context"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/core/env"
	"github.com/abdul-hamid-achik/reqspec/packages/extract"
	reqhttp "github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/mock"
	"github.com/abdul-hamid-achik/reqspec/packages/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(mock.NewServer().Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestRun_StatusCode(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL + "/get").T(t).Run(nil)
	v, err := s.Extract("status_code")
	require.NoError(t, err)
	assert.Equal(t, 200, v)

	s.AssertStatusCode(200)
}

func TestRun_EchoesQuery(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/get").T(t).
		SetParams(map[string]any{"abc": "111"}).
		SetParam("de", "222").
		Run(nil)

	v, err := s.Extract("body.args.abc")
	require.NoError(t, err)
	assert.Equal(t, "111", v)

	s.AssertBody("args.de", "222").
		Validate("json().args", map[string]any{"abc": "111", "de": "222"})
}

func TestRun_HeaderCaseInsensitive(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/response-headers").T(t).
		SetParam("content-type", "application/json").
		Run(nil)

	s.AssertHeader("Content-Type", "application/json").
		AssertHeader("CONTENT-TYPE", "application/json").
		Validate(`headers."Content-Type"`, "application/json").
		Validate("headers.content-type", "application/json")
}

func TestRun_QuotedSegment(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/headers").T(t).
		SetHeader("User-Agent", "reqspec-test").
		SetHeader("X.Dotted", "yes").
		Run(nil)

	s.Validate(`body.headers."User-Agent"`, "reqspec-test").
		Validate(`request.headers."User-Agent"`, "reqspec-test")

	// net/http canonicalises the name before it reaches the server.
	dotted, err := path.Join("headers", "X.dotted")
	require.NoError(t, err)
	s.AssertBody(dotted, "yes")
}

func TestAssertHeader_QuoteInName(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/get").Run(nil).AssertHeader(`X"Odd`, "v")
	var syntaxErr *path.SyntaxError
	require.ErrorAs(t, s.Err(), &syntaxErr)

	s.AssertStatusCode(500)
	assert.ErrorAs(t, s.Err(), &syntaxErr, "first error is kept")
}

func TestRun_SessionCarriesCookies(t *testing.T) {
	ts := newServer(t)
	session := reqhttp.NewSession()

	Get(ts.URL + "/cookies/set/freeform/567").T(t).Run(session).AssertStatusCode(200)

	s := Get(ts.URL + "/get").T(t).Run(session)
	s.Validate("request.cookies.freeform", "567").
		AssertBody("headers.Cookie", "freeform=567")

	fresh := Get(ts.URL + "/cookies").T(t).Run(nil)
	fresh.AssertBody("cookies", map[string]any{})
}

func TestRun_TransientSessionPerCall(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL + "/cookies/set/a/1").T(t).Run(nil)
	s.AssertBody("cookies.a", "1")

	Get(ts.URL+"/cookies").T(t).Run(nil).AssertBody("cookies", map[string]any{})
}

func TestRun_SpecCookiesSent(t *testing.T) {
	ts := newServer(t)

	Get(ts.URL+"/cookies").T(t).
		SetCookies(map[string]string{"a": "1"}).
		SetCookie("b", "2").
		Run(nil).
		AssertBody("cookies", map[string]any{"a": "1", "b": "2"})
}

func TestRun_ReplacesPreviousResponse(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL + "/get").T(t).Run(nil)
	first := s.Response()
	s.SetParam("n", "2").Run(nil)

	assert.NotSame(t, first, s.Response())
	s.AssertBody("args.n", "2")
}

func TestRun_DataForms(t *testing.T) {
	ts := newServer(t)

	t.Run("mapping is form encoded", func(t *testing.T) {
		Post(ts.URL+"/post").T(t).
			SetData(map[string]any{"a": "1"}).
			Run(nil).
			AssertBody("form.a", "1").
			AssertBody("json", nil)
	})

	t.Run("json content type encodes mapping as json", func(t *testing.T) {
		Post(ts.URL+"/post").T(t).
			SetHeader("content-type", "application/json").
			SetData(map[string]any{"a": "1"}).
			Run(nil).
			AssertBody("json.a", "1").
			AssertBody("form", map[string]any{})
	})

	t.Run("raw string", func(t *testing.T) {
		Post(ts.URL+"/post").T(t).
			SetData("plain text").
			Run(nil).
			AssertBody("data", "plain text").
			Validate("request.body", "plain text")
	})

	t.Run("url values", func(t *testing.T) {
		Post(ts.URL+"/post").T(t).
			SetData(url.Values{"tag": {"a", "b"}}).
			Run(nil).
			AssertBody("form.tag", []any{"a", "b"})
	})
}

func TestRun_JSONBody(t *testing.T) {
	ts := newServer(t)

	Patch(ts.URL+"/patch").T(t).
		SetJSON(map[string]any{"name": "ada", "tags": []string{"x"}, "n": 3}).
		Run(nil).
		AssertBody("json", map[string]any{"name": "ada", "tags": []any{"x"}, "n": 3}).
		AssertBody("json.tags.0", "x").
		AssertBody("json.n", 3).
		AssertHeader("Content-Type", "application/json")
}

func TestRun_DataWinsOverJSON(t *testing.T) {
	ts := newServer(t)

	Post(ts.URL+"/post").T(t).
		SetJSON(map[string]any{"ignored": true}).
		SetData(map[string]string{"k": "v"}).
		Run(nil).
		AssertBody("form.k", "v").
		AssertBody("json", nil)
}

func TestRun_EmptyDataDefersToJSON(t *testing.T) {
	ts := newServer(t)

	Post(ts.URL+"/post").T(t).
		SetJSON(map[string]any{"kept": true}).
		SetData("").
		Run(nil).
		AssertBody("json", map[string]any{"kept": true}).
		Validate("request.headers.content-type", "application/json")
}

func TestRun_Files(t *testing.T) {
	ts := newServer(t)
	file := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(file, []byte("on disk"), 0o644))

	Post(ts.URL+"/post").T(t).
		SetFile("report", file).
		SetFileContent("inline", "inline.txt", []byte("in memory")).
		SetData(map[string]any{"kind": "upload"}).
		Run(nil).
		AssertBody("files.report", "on disk").
		AssertBody("files.inline", "in memory").
		AssertBody("form.kind", "upload")
}

func TestRun_Auth(t *testing.T) {
	ts := newServer(t)

	Get(ts.URL+"/basic-auth/user/pass").T(t).
		SetBasicAuth("user", "pass").
		Run(nil).
		AssertStatusCode(200).
		AssertBody("authenticated", true)

	Get(ts.URL+"/bearer").T(t).
		SetBearerToken("abc").
		Run(nil).
		AssertBody("token", "abc")

	Get(ts.URL+"/digest-auth/auth/user/pass").T(t).
		SetDigestAuth("user", "pass").
		Run(nil).
		AssertStatusCode(200).
		AssertBody("user", "user")
}

func TestRun_Redirects(t *testing.T) {
	ts := newServer(t)

	Get(ts.URL+"/redirect/2").T(t).Run(nil).
		AssertStatusCode(200).
		Validate("url", ts.URL+"/get")

	Get(ts.URL+"/redirect/2").T(t).
		SetAllowRedirects(false).
		Run(nil).
		AssertStatusCode(302).
		AssertHeader("Location", "/redirect/1")
}

func TestRun_Hooks(t *testing.T) {
	ts := newServer(t)
	var seen []int

	Get(ts.URL+"/status/204").T(t).
		AddHook(func(r *reqhttp.Response) { seen = append(seen, r.StatusCode) }).
		Run(nil)

	assert.Equal(t, []int{204}, seen)
}

func TestRun_TransportErrorIsUnwrapped(t *testing.T) {
	ts := newServer(t)
	addr := ts.URL
	ts.Close()

	s := Get(addr + "/get").Run(nil)
	require.Error(t, s.Err())
	assert.True(t, errors.Is(s.Err(), syscall.ECONNREFUSED), "got %v", s.Err())
	assert.Nil(t, s.Response())

	_, err := s.Extract("status_code")
	assert.ErrorIs(t, err, extract.ErrNoResponse)
}

func TestRun_Timeout(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL + "/delay/2000").SetTimeout(50 * time.Millisecond).Run(nil)
	assert.ErrorIs(t, s.Err(), context.DeadlineExceeded)
}

func TestRunContext_Canceled(t *testing.T) {
	ts := newServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := Get(ts.URL+"/get").RunContext(ctx, nil)
	assert.ErrorIs(t, s.Err(), context.Canceled)
}

func TestExtract_BeforeRun(t *testing.T) {
	s := Get("http://example.test")

	_, err := s.Extract("status_code")
	assert.ErrorIs(t, err, extract.ErrNoResponse)
	assert.Nil(t, s.Response())

	s.AssertStatusCode(200)
	assert.ErrorIs(t, s.Err(), extract.ErrNoResponse)
}

func TestValidate_MismatchNamesPathExpectedActual(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/get").SetParam("abc", "222").Run(nil).
		Validate("body.args.abc", "111")

	var assertErr *assertions.AssertionError
	require.ErrorAs(t, s.Err(), &assertErr)
	assert.Equal(t, "body.args.abc", assertErr.Path)
	assert.Equal(t, "111", assertErr.Expected)
	assert.Equal(t, "222", assertErr.Actual)

	msg := s.Err().Error()
	assert.Contains(t, msg, "body.args.abc")
	assert.Contains(t, msg, `"111"`)
	assert.Contains(t, msg, `"222"`)
}

func TestValidate_StrictTypes(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL + "/get").Run(nil).AssertStatusCode(200).Validate("status_code", "200")
	var assertErr *assertions.AssertionError
	require.ErrorAs(t, s.Err(), &assertErr)
	assert.Equal(t, "status_code", assertErr.Path)
}

func TestValidate_LargeIntegers(t *testing.T) {
	ts := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 9007199254740993}`))
	}))
	t.Cleanup(ts.Close)

	s := Get(ts.URL).Run(nil).Validate("body.id", int64(9007199254740992))
	var assertErr *assertions.AssertionError
	require.ErrorAs(t, s.Err(), &assertErr)
	assert.Equal(t, int64(9007199254740993), assertErr.Actual)

	exact := Get(ts.URL).T(t).Run(nil).Validate("body.id", int64(9007199254740993))
	id, err := exact.ExtractString("body.id")
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", id)
}

func TestValidate_StopsAtFirstError(t *testing.T) {
	ts := newServer(t)

	s := Get(ts.URL+"/get").Run(nil).
		Validate("body.missing", 1).
		Validate("status_code", 500)

	var lookupErr *extract.LookupError
	require.ErrorAs(t, s.Err(), &lookupErr)
	assert.Equal(t, "missing", lookupErr.Segment)
}

func TestAssertThat_Operators(t *testing.T) {
	ts := newServer(t)

	Get(ts.URL+"/json").T(t).Run(nil).
		AssertThat("status_code", assertions.OpLessThan, 300).
		AssertThat("body.slideshow.slides", assertions.OpLength, 2).
		AssertThat("body.slideshow.title", assertions.OpContains, "Slide").
		AssertThat("body.slideshow.missing", assertions.OpNotExists, nil).
		AssertThat("body.slideshow.author", assertions.OpExists, nil).
		AssertThat("headers.Server", assertions.OpMatches, "^reqspec").
		AssertThat("body.slideshow.slides", assertions.OpEach, map[string]any{"operator": "exists", "value": nil})

	s := Get(ts.URL+"/json").Run(nil).AssertThat("body.slideshow.missing", assertions.OpExists, nil)
	var assertErr *assertions.AssertionError
	require.ErrorAs(t, s.Err(), &assertErr)
}

func TestAssertSchema(t *testing.T) {
	ts := newServer(t)
	schema := `{
		"type": "object",
		"required": ["uuid"],
		"properties": {"uuid": {"type": "string", "minLength": 36}}
	}`

	Get(ts.URL+"/uuid").T(t).Run(nil).AssertSchema("body", schema)

	s := Get(ts.URL+"/uuid").Run(nil).AssertSchema("body", `{"type": "array"}`)
	var assertErr *assertions.AssertionError
	require.ErrorAs(t, s.Err(), &assertErr)
	assert.Equal(t, assertions.OpSchema, assertErr.Operator)
}

func TestCapture_FlowsIntoNextSpec(t *testing.T) {
	ts := newServer(t)
	vars := env.NewResolver()
	vars.SetVariable("baseUrl", ts.URL)

	Get("{{baseUrl}}/get").T(t).WithVars(vars).
		SetParam("abc", "111").
		Run(nil).
		Capture("abc", "body.args.abc").
		Capture("code", "status_code")

	Post("{{baseUrl}}/post").T(t).WithVars(vars).
		SetParam("from", "{{abc}}").
		SetJSON(map[string]any{"abc": "{{abc}}", "code": "{{code}}"}).
		Run(nil).
		AssertBody("args.from", "111").
		AssertBody("json", map[string]any{"abc": "111", "code": 200})
}

func TestExtractString(t *testing.T) {
	ts := newServer(t)
	s := Get(ts.URL+"/get").SetParam("abc", "111").Run(nil)
	require.NoError(t, s.Err())

	code, err := s.ExtractString("status_code")
	require.NoError(t, err)
	assert.Equal(t, "200", code)

	abc, err := s.ExtractString("body.args.abc")
	require.NoError(t, err)
	assert.Equal(t, "111", abc)

	args, err := s.ExtractString("body.args")
	require.NoError(t, err)
	assert.JSONEq(t, `{"abc": "111"}`, args)
}

type recordingTB struct {
	testing.TB
	fatals []string
}

func (r *recordingTB) Helper() {}

func (r *recordingTB) Fatal(args ...any) {
	for _, a := range args {
		r.fatals = append(r.fatals, a.(string))
	}
}

func TestT_ReportsFailure(t *testing.T) {
	ts := newServer(t)
	tb := &recordingTB{TB: t}

	Get(ts.URL+"/status/404").T(tb).Run(nil).AssertStatusCode(200)

	require.Len(t, tb.fatals, 1)
	assert.Contains(t, tb.fatals[0], "status_code")
	assert.Contains(t, tb.fatals[0], "200 (int)")
	assert.Contains(t, tb.fatals[0], "404 (int)")
}

func TestT_ReportsEarlierError(t *testing.T) {
	tb := &recordingTB{TB: t}
	Get("u").SetParams("bad").T(tb)

	require.Len(t, tb.fatals, 1)
	assert.Contains(t, tb.fatals[0], "expected a mapping")
}
