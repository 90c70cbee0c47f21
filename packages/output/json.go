package output

import (
	"encoding/json"
	"errors"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary   `json:"summary"`
	Requests []JSONRequest `json:"requests"`
	Duration float64       `json:"duration"`
	Time     string        `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONRequest represents a single executed request
type JSONRequest struct {
	Name       string          `json:"name"`
	Method     string          `json:"method,omitempty"`
	URL        string          `json:"url,omitempty"`
	StatusCode int             `json:"statusCode,omitempty"`
	Passed     bool            `json:"passed"`
	Skipped    bool            `json:"skipped,omitempty"`
	SkipReason string          `json:"skipReason,omitempty"`
	Duration   float64         `json:"duration"`
	Error      string          `json:"error,omitempty"`
	Failures   []JSONAssertion `json:"failures,omitempty"`
	Captures   map[string]any  `json:"captures,omitempty"`
}

// JSONAssertion represents a failed check
type JSONAssertion struct {
	Path     string `json:"path,omitempty"`
	Operator string `json:"operator,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Actual   any    `json:"actual,omitempty"`
	Message  string `json:"message"`
}

// JSONFormatter formats outcomes as JSON
type JSONFormatter struct {
	writer   io.Writer
	outcomes []*Outcome
	results  []JSONRequest
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONRequest, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatOutcome(o *Outcome) {
	f.outcomes = append(f.outcomes, o)

	req := JSONRequest{
		Name:       o.Name,
		Method:     o.Method,
		URL:        o.URL,
		StatusCode: o.StatusCode,
		Passed:     o.Passed(),
		Skipped:    o.Skipped(),
		SkipReason: o.SkipReason,
		Duration:   float64(o.Duration.Milliseconds()),
	}

	if o.Err != nil {
		req.Error = o.Err.Error()
	}

	for _, failure := range o.Failures {
		entry := JSONAssertion{Message: failure.Error()}
		var assertErr *assertions.AssertionError
		if errors.As(failure, &assertErr) {
			entry.Path = assertErr.Path
			entry.Operator = assertErr.Operator.String()
			entry.Expected = assertErr.Expected
			entry.Actual = assertErr.Actual
		}
		req.Failures = append(req.Failures, entry)
	}

	if len(o.Captures) > 0 {
		req.Captures = o.Captures
	}

	f.results = append(f.results, req)
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	passed, failed, skipped := tally(f.outcomes)

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Requests: f.results,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
