// internal/probe/probe.go - Single-shot HTTP(S) probe execution
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"watchtower/internal/store"
)

// Outcome is the classified result of one probe attempt. Exactly one of
// ResponseCode, Err or TimedOut is populated. Canceled marks an attempt
// that was aborted by the caller's context rather than the check's own
// timeout; it never appears on the wire and callers must discard the
// outcome instead of classifying it.
type Outcome struct {
	ResponseCode int
	Err          error
	TimedOut     bool
	Canceled     bool
}

// outcomeJSON is the wire form of an outcome inside a log line. Absent
// values are encoded as false so archived logs stay line-compatible with
// logs written by earlier deployments of this system.
type outcomeJSON struct {
	Error        interface{} `json:"error"`
	ResponseCode interface{} `json:"responseCode"`
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	enc := outcomeJSON{Error: false, ResponseCode: false}
	switch {
	case o.TimedOut:
		enc.Error = "timeout"
	case o.Err != nil:
		enc.Error = o.Err.Error()
	}
	if o.ResponseCode != 0 {
		enc.ResponseCode = o.ResponseCode
	}
	return json.Marshal(enc)
}

func (o *Outcome) UnmarshalJSON(data []byte) error {
	var dec outcomeJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}

	*o = Outcome{}
	if s, ok := dec.Error.(string); ok {
		if s == "timeout" {
			o.TimedOut = true
		} else {
			o.Err = errors.New(s)
		}
	}
	if n, ok := dec.ResponseCode.(float64); ok {
		o.ResponseCode = int(n)
	}
	return nil
}

// Executor performs one outbound request per check with a bounded timeout.
// Retry policy, if any, belongs to the scheduler via the next cycle.
type Executor struct {
	client *http.Client
}

func NewExecutor() *Executor {
	return &Executor{
		client: &http.Client{
			// Redirect responses are reported as-is, not followed; the
			// success-code set decides whether a 3xx counts as up.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Run probes the check's target once and reports a single outcome. A
// one-shot latch guarantees that a slow response arriving after the
// timeout has fired (or vice versa) cannot double-report.
func (e *Executor) Run(ctx context.Context, check store.Check) Outcome {
	timeout := time.Duration(check.TimeoutSeconds) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := check.Protocol + "://" + check.URL
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(check.Method), target, nil)
	if err != nil {
		return Outcome{Err: err}
	}

	var once sync.Once
	done := make(chan Outcome, 1)

	go func() {
		resp, err := e.client.Do(req)

		var outcome Outcome
		switch {
		case err != nil && ctx.Err() == context.Canceled:
			outcome.Canceled = true
		case err != nil && ctx.Err() == context.DeadlineExceeded:
			outcome.TimedOut = true
		case err != nil:
			outcome.Err = err
		default:
			resp.Body.Close()
			outcome.ResponseCode = resp.StatusCode
		}

		once.Do(func() { done <- outcome })
	}()

	select {
	case outcome := <-done:
		return outcome
	case <-ctx.Done():
		// The in-flight request is cancelled by the shared context; if its
		// response still lands, the latch discards it. Only the check's own
		// deadline counts as a timeout; a cancelled parent context means the
		// caller is shutting down, not that the target is slow.
		if ctx.Err() == context.Canceled {
			return Outcome{Canceled: true}
		}
		return Outcome{TimedOut: true}
	}
}
