package output

import "time"

// Outcome is the result of executing and checking one named request.
type Outcome struct {
	Name       string
	Method     string
	URL        string
	StatusCode int
	Duration   time.Duration
	// Err is a build, transport or resolution error that stopped the request.
	Err      error
	Failures []error
	Captures map[string]any
	// SkipReason is set when the request was never sent.
	SkipReason string
}

func (o *Outcome) Skipped() bool {
	return o.SkipReason != ""
}

func (o *Outcome) Passed() bool {
	return !o.Skipped() && o.Err == nil && len(o.Failures) == 0
}

// Formatter receives outcomes one at a time and writes a summary on Flush.
type Formatter interface {
	FormatOutcome(o *Outcome)
	Flush(total time.Duration) error
}

func tally(outcomes []*Outcome) (passed, failed, skipped int) {
	for _, o := range outcomes {
		switch {
		case o.Skipped():
			skipped++
		case o.Passed():
			passed++
		default:
			failed++
		}
	}
	return passed, failed, skipped
}
