package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/extract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "[array with 2 items]", formatValue([]any{1, 2}, 100))
	assert.Equal(t, "{object with 1 keys}", formatValue(map[string]any{"a": 1}, 100))
	assert.Equal(t, `"abc"`, formatValue("abc", 100))
	assert.Equal(t, `"abcd...`, formatValue("abcdefgh", 5))
	assert.Equal(t, "200 (int)", formatValue(200, 100))
}

func TestConsoleFormatter_FormatFailure(t *testing.T) {
	f := NewConsoleFormatter(WithNoColor(true))

	t.Run("assertion", func(t *testing.T) {
		err := assertions.Check("body.args.abc", "222", assertions.OpEquals, "111")
		out := f.FormatFailure(err)
		assert.Contains(t, out, "assertion failed: body.args.abc")
		assert.Contains(t, out, `Expected: "111"`)
		assert.Contains(t, out, `Actual:   "222"`)
	})

	t.Run("assertion with diff", func(t *testing.T) {
		err := assertions.Check("body", map[string]any{"a": 2.0}, assertions.OpEquals, map[string]any{"a": 1})
		out := f.FormatFailure(err)
		assert.Contains(t, out, "Diff:")
	})

	t.Run("operator", func(t *testing.T) {
		err := assertions.Check("headers.Server", "nginx", assertions.OpContains, "gunicorn")
		out := f.FormatFailure(err)
		assert.Contains(t, out, "headers.Server contains")
		assert.Contains(t, out, "to contain")
	})

	t.Run("lookup", func(t *testing.T) {
		err := &extract.LookupError{Path: "body.x", Segment: "x", Err: extract.ErrNotFound}
		out := f.FormatFailure(err)
		assert.Contains(t, out, "cannot resolve path: body.x")
		assert.Contains(t, out, "Segment: x")
	})

	t.Run("other", func(t *testing.T) {
		out := f.FormatFailure(errors.New("connection refused"))
		assert.Equal(t, "Error: connection refused\n", out)
	})
}

func sampleOutcomes() []*Outcome {
	return []*Outcome{
		{
			Name:       "httpbin_get",
			Method:     "GET",
			URL:        "http://httpbin.test/get",
			StatusCode: 200,
			Duration:   12 * time.Millisecond,
			Captures:   map[string]any{"origin": "127.0.0.1"},
		},
		{
			Name:       "httpbin_post",
			Method:     "POST",
			URL:        "http://httpbin.test/post",
			StatusCode: 500,
			Failures:   []error{assertions.Check("status_code", 500, assertions.OpEquals, 200)},
		},
		{
			Name: "unreachable",
			Err:  errors.New("dial tcp: connection refused"),
		},
		{
			Name:       "after_unreachable",
			SkipReason: "dependency failed",
		},
	}
}

func TestConsoleFormatter_Outcomes(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	for _, o := range sampleOutcomes() {
		f.FormatOutcome(o)
	}
	require.NoError(t, f.Flush(50*time.Millisecond))

	out := buf.String()
	assert.Contains(t, out, "✓ httpbin_get (12ms)")
	assert.Contains(t, out, "GET http://httpbin.test/get -> 200")
	assert.Contains(t, out, "origin = 127.0.0.1")
	assert.Contains(t, out, "✗ httpbin_post")
	assert.Contains(t, out, "assertion failed: status_code")
	assert.Contains(t, out, "x unreachable (dial tcp: connection refused)")
	assert.Contains(t, out, "- after_unreachable (skipped: dependency failed)")
	assert.Contains(t, out, "1 passed, 2 failed, 1 skipped, 4 total")
	assert.Contains(t, out, "Time:     50ms")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := NewJSONFormatter(JSONWithWriter(&buf))

	for _, o := range sampleOutcomes() {
		f.FormatOutcome(o)
	}
	require.NoError(t, f.Flush(time.Second))

	var out JSONOutput
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	assert.Equal(t, JSONSummary{Total: 4, Passed: 1, Failed: 2, Skipped: 1}, out.Summary)
	assert.Equal(t, float64(1000), out.Duration)
	require.Len(t, out.Requests, 4)

	post := out.Requests[1]
	assert.False(t, post.Passed)
	require.Len(t, post.Failures, 1)
	assert.Equal(t, "status_code", post.Failures[0].Path)
	assert.Equal(t, "==", post.Failures[0].Operator)
	assert.Equal(t, float64(200), post.Failures[0].Expected)

	assert.Equal(t, "dial tcp: connection refused", out.Requests[2].Error)
	assert.True(t, out.Requests[3].Skipped)
	assert.False(t, out.Requests[3].Passed)
	assert.Equal(t, "dependency failed", out.Requests[3].SkipReason)
}
