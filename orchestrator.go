package extpoint

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"sync/atomic"
)

// Phases reported in invocations and events.
const (
	PhaseRegistry       = "definition-registry"
	PhaseDefinitions    = "definition-set"
	PhaseInstances      = "instance-processor"
	PhaseMerged         = "merged-definition"
	ineligibleCheckerID = "(ineligible-component-checker)"
)

// Invocation is one hook callback run by the orchestrator.
type Invocation struct {
	Phase string `json:"phase"`
	Hook  string `json:"hook"`
	// Round is 0 for hooks passed in by the caller, 1-3 for the registry
	// rounds and the tier index + 1 for definition processors.
	Round int    `json:"round"`
	Error string `json:"error,omitempty"`
}

// Report describes what the orchestrator did.
type Report struct {
	Invocations []Invocation `json:"invocations"`
	// Processed lists discovered definition-phase hooks in processing order.
	Processed []string `json:"processed"`
	// Chain lists installed instance processors in install order.
	Chain []string `json:"chain"`
}

// Orchestrator runs the hook protocols against a factory. It is meant to be
// used by a single bootstrap goroutine; Report may be read concurrently.
type Orchestrator struct {
	logger         Logger
	startup        StartupRecorder
	observers      []Observer
	warnIneligible atomic.Bool

	mu        sync.RWMutex
	report    Report
	installed map[any]struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStartupRecorder sets the startup step recorder.
func WithStartupRecorder(recorder StartupRecorder) OrchestratorOption {
	return func(o *Orchestrator) {
		if recorder != nil {
			o.startup = recorder
		}
	}
}

// WithObservers adds observers notified of bootstrap events.
func WithObservers(observers ...Observer) OrchestratorOption {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, observers...)
	}
}

// WithIneligibleWarnings turns the ineligible-component checker's warnings on
// or off. They are on by default.
func WithIneligibleWarnings(enabled bool) OrchestratorOption {
	return func(o *Orchestrator) {
		o.warnIneligible.Store(enabled)
	}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		logger:    NopLogger(),
		startup:   NopStartupRecorder(),
		installed: make(map[any]struct{}),
	}
	o.warnIneligible.Store(true)
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// SetIneligibleWarnings toggles checker warnings at runtime.
func (o *Orchestrator) SetIneligibleWarnings(enabled bool) {
	o.warnIneligible.Store(enabled)
}

// Report returns a copy of what the orchestrator has done so far.
func (o *Orchestrator) Report() Report {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Report{
		Invocations: slices.Clone(o.report.Invocations),
		Processed:   slices.Clone(o.report.Processed),
		Chain:       slices.Clone(o.report.Chain),
	}
}

func (o *Orchestrator) recordInvocation(inv Invocation) {
	o.mu.Lock()
	o.report.Invocations = append(o.report.Invocations, inv)
	o.mu.Unlock()
}

func (o *Orchestrator) recordProcessed(name string) {
	o.mu.Lock()
	o.report.Processed = append(o.report.Processed, name)
	o.mu.Unlock()
}

func (o *Orchestrator) recordChain(names ...string) {
	o.mu.Lock()
	o.report.Chain = append(o.report.Chain, names...)
	o.mu.Unlock()
}

// invoke runs one hook callback inside a startup step and records it.
func (o *Orchestrator) invoke(step, phase, name string, round int, fn func() error) error {
	s := o.startup.Start(step).Tag("hook", name)
	defer s.End()

	o.logger.Debug("Invoking hook", "phase", phase, "hook", name, "round", round)
	if err := fn(); err != nil {
		o.recordInvocation(Invocation{Phase: phase, Hook: name, Round: round, Error: err.Error()})
		o.notify(EventTypeHookFailed, HookEventData{Phase: phase, Hook: name, Round: round, Error: err.Error()})
		return fmt.Errorf("%w: %s hook %q: %w", ErrHookInvocation, phase, name, err)
	}
	o.recordInvocation(Invocation{Phase: phase, Hook: name, Round: round})
	o.notify(EventTypeHookInvoked, HookEventData{Phase: phase, Hook: name, Round: round})
	return nil
}

// notify delivers an event to every observer synchronously.
func (o *Orchestrator) notify(eventType string, data any) {
	if len(o.observers) == 0 {
		return
	}
	event := NewCloudEvent(eventType, EventSource, data, nil)
	for _, obs := range o.observers {
		if err := obs.OnEvent(context.Background(), event); err != nil {
			o.logger.Error("Observer error", "observerID", obs.ObserverID(), "event", eventType, "error", err)
		}
	}
}

// install appends processors to the factory's chain, in bulk when supported.
func (o *Orchestrator) install(sink ProcessorSink, hooks []named[InstanceProcessor]) error {
	if len(hooks) == 0 {
		return nil
	}
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	if bulk, ok := sink.(BulkProcessorSink); ok {
		ps := make([]InstanceProcessor, len(hooks))
		for i, h := range hooks {
			ps[i] = h.hook
		}
		if err := bulk.AddInstanceProcessors(ps); err != nil {
			return fmt.Errorf("failed to install instance processors %v: %w", names, err)
		}
	} else {
		for _, h := range hooks {
			if err := sink.AddInstanceProcessor(h.hook); err != nil {
				return fmt.Errorf("failed to install instance processor %q: %w", h.name, err)
			}
		}
	}
	o.recordChain(names...)
	o.mu.Lock()
	for _, h := range hooks {
		if reflect.ValueOf(h.hook).Comparable() {
			o.installed[h.hook] = struct{}{}
		}
	}
	o.mu.Unlock()
	return nil
}

// notInstalled drops the hooks that already have an install point in the
// factory's chain, or that this orchestrator installed when the factory
// cannot list its chain. Hooks that are not comparable are always kept.
func (o *Orchestrator) notInstalled(factory ListableFactory, hooks []named[InstanceProcessor]) []named[InstanceProcessor] {
	present := make(map[any]struct{})
	if lister, ok := factory.(InstalledProcessorLister); ok {
		for _, p := range lister.InstalledProcessors() {
			if reflect.ValueOf(p).Comparable() {
				present[p] = struct{}{}
			}
		}
	} else {
		o.mu.RLock()
		for p := range o.installed {
			present[p] = struct{}{}
		}
		o.mu.RUnlock()
	}

	out := make([]named[InstanceProcessor], 0, len(hooks))
	for _, h := range hooks {
		if reflect.ValueOf(h.hook).Comparable() {
			if _, ok := present[h.hook]; ok {
				continue
			}
		}
		out = append(out, h)
	}
	return out
}

// hookName names a hook that was not discovered through the registry.
func hookName(hook any) string {
	return fmt.Sprintf("%T", hook)
}

// indexedHookName names the i-th hook passed in by the caller, so hooks of
// the same type stay distinguishable.
func indexedHookName(hook any, i int) string {
	return fmt.Sprintf("%T#%d", hook, i)
}

// processedSet holds the names of definition-phase hooks already handled.
// A name is added at most once.
type processedSet struct {
	names map[string]struct{}
}

func newProcessedSet() *processedSet {
	return &processedSet{names: make(map[string]struct{})}
}

func (s *processedSet) has(name string) bool {
	_, ok := s.names[name]
	return ok
}

// add returns false if name was already present.
func (s *processedSet) add(name string) bool {
	if s.has(name) {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

func (s *processedSet) len() int {
	return len(s.names)
}
