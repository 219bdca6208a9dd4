// internal/worker/worker.go - Monitoring worker: probe and rotation loops
package worker

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"watchtower/internal/config"
	"watchtower/internal/logstore"
	"watchtower/internal/metrics"
	"watchtower/internal/probe"
	"watchtower/internal/store"
)

// Prober executes one probe attempt for a check.
type Prober interface {
	Run(ctx context.Context, check store.Check) probe.Outcome
}

// Alerter is notified when a check's state transitioned.
type Alerter interface {
	StatusChange(ctx context.Context, check store.Check) error
}

// Worker runs the two periodic loops of the monitoring core: the probe
// cycle, which enumerates and evaluates every stored check, and the
// rotation cycle, which compresses and truncates the per-check logs. The
// loops are independently timed; both run once immediately at startup.
type Worker struct {
	config  *config.Config
	store   store.Store
	logs    *logstore.LogStore
	prober  Prober
	alerter Alerter
	metrics *metrics.Collector

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	subs    []chan Entry
}

func New(cfg *config.Config, st store.Store, logs *logstore.LogStore, prober Prober, alerter Alerter, collector *metrics.Collector) *Worker {
	return &Worker{
		config:  cfg,
		store:   st,
		logs:    logs,
		prober:  prober,
		alerter: alerter,
		metrics: collector,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.quit = make(chan struct{})
	quit := w.quit
	w.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"probe_interval":    w.config.Worker.ProbeInterval,
		"rotation_interval": w.config.Worker.RotationInterval,
	}).Info("Starting monitoring worker")

	go w.probeLoop(ctx, quit)
	go w.rotationLoop(ctx, quit)

	return nil
}

// Stop halts the loops started by the matching Start. The quit channel is
// owned per Start call, so a later Start on a still-live context does not
// race with loops from an earlier run.
func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	logrus.Info("Stopping monitoring worker")
	close(w.quit)
	w.running = false
}

// Subscribe returns a channel receiving every evaluation entry the worker
// produces. Slow subscribers miss entries rather than stall the cycle.
func (w *Worker) Subscribe() <-chan Entry {
	ch := make(chan Entry, 64)

	w.mu.Lock()
	w.subs = append(w.subs, ch)
	w.mu.Unlock()

	return ch
}

func (w *Worker) publish(entry Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ch := range w.subs {
		select {
		case ch <- entry:
		default:
		}
	}
}

func (w *Worker) probeLoop(ctx context.Context, quit <-chan struct{}) {
	w.runCycle(ctx)

	ticker := time.NewTicker(w.config.Worker.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

// runCycle enumerates all checks and evaluates each concurrently. There is
// no join: a slow evaluation from one tick may still be in flight when the
// next tick begins, which is an accepted race of the single-record-store
// design.
func (w *Worker) runCycle(ctx context.Context) {
	ids, err := w.store.List(store.CollectionChecks)
	if err != nil {
		logrus.WithError(err).Error("Failed to list checks")
		return
	}

	if len(ids) == 0 {
		logrus.Debug("No checks to process")
		return
	}

	logrus.WithField("count", len(ids)).Debug("Starting probe cycle")

	for _, id := range ids {
		go w.EvaluateCheck(ctx, id)
	}
}

func (w *Worker) rotationLoop(ctx context.Context, quit <-chan struct{}) {
	w.RotateLogs(ctx)

	ticker := time.NewTicker(w.config.Worker.RotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-quit:
			return
		case <-ticker.C:
			w.RotateLogs(ctx)
		}
	}
}

// RotateLogs compresses every live log to a timestamp-suffixed archive and
// truncates the source. A failure for one log does not block the others;
// the failed log simply accumulates lines until the next rotation tick.
func (w *Worker) RotateLogs(ctx context.Context) {
	names, err := w.logs.List(false)
	if err != nil {
		logrus.WithError(err).Error("Failed to list logs for rotation")
		return
	}

	for _, name := range names {
		select {
		case <-ctx.Done():
			return
		default:
		}

		archiveID := name + "-" + strconv.FormatInt(time.Now().Unix(), 10)
		if err := w.logs.Compress(name, archiveID); err != nil {
			logrus.WithError(err).WithField("log", name).Error("Failed to compress log, will retry next rotation")
			w.metrics.RecordRotation(false)
			continue
		}

		if err := w.logs.Truncate(name); err != nil {
			logrus.WithError(err).WithField("log", name).Error("Failed to truncate rotated log")
			w.metrics.RecordRotation(false)
			continue
		}

		w.metrics.RecordRotation(true)
		logrus.WithFields(logrus.Fields{
			"log":     name,
			"archive": archiveID,
		}).Debug("Rotated log")
	}
}
