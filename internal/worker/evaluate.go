// internal/worker/evaluate.go - Per-check evaluation
package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
	"watchtower/internal/probe"
	"watchtower/internal/store"
)

// Entry is the immutable audit record appended to the check's log file,
// one JSON object per line per probe attempt. The same value is published
// to websocket subscribers.
type Entry struct {
	Check   store.Check   `json:"check"`
	Outcome probe.Outcome `json:"outcome"`
	State   string        `json:"state"`
	Alert   bool          `json:"alert"`
	Time    int64         `json:"time"`
}

// EvaluateCheck runs one full evaluation of a stored check: read,
// re-validate, probe, classify, log, persist, and alert on transition.
// The steps are strictly sequential for a single check; errors never
// propagate to the evaluations of other checks.
func (w *Worker) EvaluateCheck(ctx context.Context, id string) {
	var check store.Check
	if err := w.store.Read(store.CollectionChecks, id, &check); err != nil {
		logrus.WithError(err).WithField("check", id).Error("Failed to read check record")
		return
	}

	// Records written by an older schema, or corrupted by a partial
	// write, are skipped for this cycle rather than deleted.
	check.Normalize()
	if err := check.Validate(); err != nil {
		logrus.WithError(err).WithField("check", id).Warn("Skipping malformed check record")
		w.metrics.RecordValidationFailure()
		return
	}

	previousState := check.State
	firstEvaluation := check.LastChecked == 0

	start := time.Now()
	outcome := w.prober.Run(ctx, check)
	duration := time.Since(start)

	// A cancelled probe means the process is shutting down, not that the
	// target is unreachable. Abort without logging, persisting or alerting.
	if outcome.Canceled {
		logrus.WithField("check", check.ID).Debug("Evaluation aborted by shutdown")
		return
	}

	newState := store.StateDown
	if outcome.Err == nil && !outcome.TimedOut && containsCode(check.SuccessCodes, outcome.ResponseCode) {
		newState = store.StateUp
	}

	// A first-ever evaluation has no baseline, so "change" is undefined
	// and no alert fires even if the initial state is down.
	alertWarranted := !firstEvaluation && previousState != newState

	check.State = newState
	check.LastChecked = time.Now().UnixMilli()

	entry := Entry{
		Check:   check,
		Outcome: outcome,
		State:   newState,
		Alert:   alertWarranted,
		Time:    check.LastChecked,
	}
	w.appendEntry(entry)

	w.metrics.RecordProbe(newState, outcomeLabel(outcome), duration)
	w.metrics.UpdateCheckState(check.ID, newState)

	if err := w.store.Update(store.CollectionChecks, check.ID, &check); err != nil {
		// The state change is lost, but the next cycle re-derives it from
		// a fresh probe.
		logrus.WithError(err).WithField("check", check.ID).Error("Failed to persist check state")
		w.publish(entry)
		return
	}

	if alertWarranted {
		if err := w.alerter.StatusChange(ctx, check); err != nil {
			logrus.WithError(err).WithField("check", check.ID).Error("Failed to deliver alert")
			w.metrics.RecordAlert(false)
		} else {
			w.metrics.RecordAlert(true)
		}
	} else {
		logrus.WithFields(logrus.Fields{
			"check": check.ID,
			"state": newState,
		}).Debug("Check outcome has not changed, no alert needed")
	}

	w.publish(entry)
}

func (w *Worker) appendEntry(entry Entry) {
	line, err := json.Marshal(entry)
	if err != nil {
		logrus.WithError(err).WithField("check", entry.Check.ID).Error("Failed to encode log entry")
		return
	}

	// The entry may not have landed on any I/O error; nothing downstream
	// assumes it did.
	if err := w.logs.Append(entry.Check.ID, string(line)); err != nil {
		logrus.WithError(err).WithField("check", entry.Check.ID).Error("Failed to append log entry")
	}
}

func containsCode(codes []int, code int) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func outcomeLabel(o probe.Outcome) string {
	switch {
	case o.TimedOut:
		return "timeout"
	case o.Err != nil:
		return "error"
	default:
		return "status"
	}
}
