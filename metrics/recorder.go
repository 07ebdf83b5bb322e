// Package metrics exports bootstrap startup steps to Prometheus.
//
// Usage:
//
//	rec := metrics.NewRecorder()
//	prometheus.MustRegister(metrics.NewPrometheusCollector(rec, "extpoint"))
//	orch := extpoint.NewOrchestrator(extpoint.WithStartupRecorder(rec))
package metrics

import (
	"maps"
	"sync"
	"time"

	"github.com/GoCodeAlone/extpoint"
)

// StepStats are cumulative statistics of one step name.
type StepStats struct {
	Count    uint64
	Duration time.Duration
	// Hooks counts steps per hook tag.
	Hooks map[string]uint64
}

// Recorder implements extpoint.StartupRecorder by accumulating step counts
// and durations. Exporters pull from Stats.
type Recorder struct {
	mu    sync.Mutex
	steps map[string]*StepStats
	now   func() time.Time
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		steps: make(map[string]*StepStats),
		now:   time.Now,
	}
}

// Start implements extpoint.StartupRecorder.
func (r *Recorder) Start(name string) extpoint.StartupStep {
	return &step{recorder: r, name: name, start: r.now()}
}

// Stats returns a snapshot keyed by step name.
func (r *Recorder) Stats() map[string]StepStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]StepStats, len(r.steps))
	for name, s := range r.steps {
		out[name] = StepStats{Count: s.Count, Duration: s.Duration, Hooks: maps.Clone(s.Hooks)}
	}
	return out
}

func (r *Recorder) record(name, hook string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.steps[name]
	if !ok {
		s = &StepStats{Hooks: make(map[string]uint64)}
		r.steps[name] = s
	}
	s.Count++
	s.Duration += d
	if hook != "" {
		s.Hooks[hook]++
	}
}

type step struct {
	recorder *Recorder
	name     string
	start    time.Time
	hook     string
	ended    bool
}

func (s *step) Tag(key, value string) extpoint.StartupStep {
	if key == "hook" {
		s.hook = value
	}
	return s
}

func (s *step) End() {
	if s.ended {
		return
	}
	s.ended = true
	s.recorder.record(s.name, s.hook, s.recorder.now().Sub(s.start))
}
