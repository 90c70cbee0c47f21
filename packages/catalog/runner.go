package catalog

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/reqspec/packages/assertions"
	"github.com/abdul-hamid-achik/reqspec/packages/core/env"
	"github.com/abdul-hamid-achik/reqspec/packages/http"
	"github.com/abdul-hamid-achik/reqspec/packages/logger"
	"github.com/abdul-hamid-achik/reqspec/packages/output"
	"go.uber.org/zap"
)

const (
	// DefaultRetryDelay is the pause between attempts when a template sets
	// retry without retry_delay
	DefaultRetryDelay = time.Second
)

// Runner executes catalog templates in dependency order against one shared
// session, so cookies and captures flow from one request to the next.
type Runner struct {
	catalog   *Catalog
	session   *http.Client
	resolver  *env.Resolver
	formatter output.Formatter
	config    *Config
}

type Config struct {
	// Bail stops the run at the first failed request.
	Bail bool
	// NameFilter keeps templates matching a glob with a leading or trailing *.
	NameFilter string
	TagsFilter []string
}

type RunnerOption func(*Runner)

func WithSession(session *http.Client) RunnerOption {
	return func(r *Runner) {
		r.session = session
	}
}

// WithResolver shares variables and captures with code outside the run.
func WithResolver(resolver *env.Resolver) RunnerOption {
	return func(r *Runner) {
		r.resolver = resolver
	}
}

func WithFormatter(f output.Formatter) RunnerOption {
	return func(r *Runner) {
		r.formatter = f
	}
}

func WithConfig(cfg *Config) RunnerOption {
	return func(r *Runner) {
		r.config = cfg
	}
}

func NewRunner(c *Catalog, opts ...RunnerOption) *Runner {
	r := &Runner{
		catalog: c,
		config:  &Config{},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.session == nil {
		r.session = http.NewSession()
	}
	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	r.resolver.SetVariables(c.Variables)
	return r
}

type RunResult struct {
	Outcomes []*output.Outcome
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
}

// Run executes the named templates, or every template when names is empty.
// Dependencies listed under depends run first when they are part of the
// selection; a request whose dependency failed is skipped.
func (r *Runner) Run(ctx context.Context, names ...string) (*RunResult, error) {
	start := time.Now()

	selected, err := r.selectTemplates(names)
	if err != nil {
		return nil, err
	}

	sorted, err := topologicalSort(selected)
	if err != nil {
		return nil, err
	}

	result := &RunResult{}
	record := func(o *output.Outcome) {
		result.Outcomes = append(result.Outcomes, o)
		switch {
		case o.Skipped():
			result.Skipped++
		case o.Passed():
			result.Passed++
		default:
			result.Failed++
		}
		if r.formatter != nil {
			r.formatter.FormatOutcome(o)
		}
	}

	executed := make(map[string]*output.Outcome)
	for _, t := range sorted {
		if !r.shouldRun(t) {
			record(skipped(t, "filtered out"))
			continue
		}
		if reason := skipReason(t, executed); reason != "" {
			o := skipped(t, reason)
			executed[t.Name] = o
			record(o)
			continue
		}

		o := r.runWithRetry(ctx, t)
		executed[t.Name] = o
		record(o)

		if !o.Passed() && r.config.Bail {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	result.Duration = time.Since(start)
	if r.formatter != nil {
		if err := r.formatter.Flush(result.Duration); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *Runner) selectTemplates(names []string) ([]*Template, error) {
	if len(names) == 0 {
		names = r.catalog.Names()
	}
	selected := make([]*Template, 0, len(names))
	for _, name := range names {
		t, ok := r.catalog.Template(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
		}
		selected = append(selected, t)
	}
	return selected, nil
}

func skipped(t *Template, reason string) *output.Outcome {
	return &output.Outcome{Name: t.Name, Method: t.Method, URL: t.URL, SkipReason: reason}
}

func (r *Runner) shouldRun(t *Template) bool {
	if r.config.NameFilter != "" && !matchesPattern(t.Name, r.config.NameFilter) {
		return false
	}
	if len(r.config.TagsFilter) > 0 && !hasAnyTag(t.Tags, r.config.TagsFilter) {
		return false
	}
	return true
}

const (
	reasonDependencyFailed  = "dependency failed"
	reasonDependencySkipped = "dependency skipped"
)

// skipReason reports why t must not run: an explicit skip, or a dependency
// that did not pass. A failure anywhere up the chain outranks a skip.
func skipReason(t *Template, executed map[string]*output.Outcome) string {
	if t.Skip != "" {
		return t.Skip
	}
	reason := ""
	for _, dep := range t.Depends {
		o, ok := executed[dep]
		if !ok || o.Passed() {
			continue
		}
		if !o.Skipped() || o.SkipReason == reasonDependencyFailed {
			return reasonDependencyFailed
		}
		reason = reasonDependencySkipped
	}
	return reason
}

// runWithRetry retries a failed request up to t.Retry times. With retry_on
// set, only those status codes are retried.
func (r *Runner) runWithRetry(ctx context.Context, t *Template) *output.Outcome {
	delay := t.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}

	var o *output.Outcome
	for attempt := 0; attempt <= t.Retry; attempt++ {
		o = r.execute(ctx, t)
		if o.Passed() {
			return o
		}
		if len(t.RetryOn) > 0 && !slices.Contains(t.RetryOn, o.StatusCode) {
			return o
		}
		if attempt < t.Retry {
			logger.Debug("retrying request",
				zap.String("name", t.Name),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return o
			}
		}
	}
	return o
}

func (r *Runner) execute(ctx context.Context, t *Template) *output.Outcome {
	o := &output.Outcome{
		Name:     t.Name,
		Method:   t.Method,
		Captures: make(map[string]any),
	}

	s, err := r.catalog.Spec(t.Name)
	if err != nil {
		o.Err = err
		return o
	}
	s.WithVars(r.resolver)
	o.Method = s.Method()
	o.URL = s.Request().URL

	s.RunContext(ctx, r.session)
	resp := s.Response()
	if resp == nil {
		o.Err = s.Err()
		return o
	}
	o.StatusCode = resp.StatusCode
	o.Duration = resp.Duration

	if len(t.Expect) > 0 {
		o.Failures = t.Check(s)
	} else if !resp.IsSuccess() {
		o.Failures = append(o.Failures, &assertions.AssertionError{
			Path:     "status_code",
			Operator: assertions.OpIn,
			Expected: "2xx",
			Actual:   resp.StatusCode,
			Message:  "expected a 2xx status when no expectations are given",
		})
	}

	for name, p := range t.Capture {
		v, err := s.Extract(p)
		if err != nil {
			o.Failures = append(o.Failures, fmt.Errorf("capture %q: %w", name, err))
			continue
		}
		o.Captures[name] = v
		r.resolver.SetCapture(t.Name, name, v)
	}

	return o
}

// topologicalSort orders templates so that dependencies come first, keeping
// document order otherwise. Dependencies outside the selection are ignored.
func topologicalSort(templates []*Template) ([]*Template, error) {
	inDegree := make(map[string]int, len(templates))
	adjacency := make(map[string][]string)
	byName := make(map[string]*Template, len(templates))

	for _, t := range templates {
		inDegree[t.Name] = 0
		byName[t.Name] = t
	}

	for _, t := range templates {
		for _, dep := range t.Depends {
			if _, ok := byName[dep]; !ok {
				logger.Warn("dependency not selected",
					zap.String("request", t.Name),
					zap.String("depends", dep),
				)
				continue
			}
			adjacency[dep] = append(adjacency[dep], t.Name)
			inDegree[t.Name]++
		}
	}

	// Kahn's algorithm; the ready set is scanned in document order.
	sorted := make([]*Template, 0, len(templates))
	done := make(map[string]bool, len(templates))
	for len(sorted) < len(templates) {
		progressed := false
		for _, t := range templates {
			if done[t.Name] || inDegree[t.Name] > 0 {
				continue
			}
			done[t.Name] = true
			sorted = append(sorted, t)
			for _, next := range adjacency[t.Name] {
				inDegree[next]--
			}
			progressed = true
			break
		}
		if !progressed {
			return nil, fmt.Errorf("circular dependency detected in requests")
		}
	}

	return sorted, nil
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	switch {
	case prefix && suffix && len(pattern) > 1:
		return strings.Contains(name, pattern[1:len(pattern)-1])
	case prefix:
		return strings.HasSuffix(name, pattern[1:])
	case suffix:
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}
	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		if slices.Contains(tags, filter) {
			return true
		}
	}
	return false
}
