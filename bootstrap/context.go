// Package bootstrap provides Context, the lifecycle container that drives
// the extpoint orchestrator over a factory: definition processors, instance
// processor registration, the merged-definition pass and eager creation of
// singletons.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/config"
	"github.com/GoCodeAlone/extpoint/factory"
	"github.com/GoCodeAlone/extpoint/metrics"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Context errors
var (
	ErrContextNotRefreshed = errors.New("context has not been refreshed")
	ErrContextFailed       = errors.New("context refresh failed")
	ErrAlreadyRefreshed    = errors.New("context already refreshed")
)

// Refresh event types.
const (
	EventTypeRefreshStarted   = "com.extpoint.refresh.started"
	EventTypeRefreshCompleted = "com.extpoint.refresh.completed"
	EventTypeRefreshFailed    = "com.extpoint.refresh.failed"
)

// EventSource is the CloudEvents source of context events.
const EventSource = "extpoint/bootstrap"

// RefreshEventData is the payload of refresh events.
type RefreshEventData struct {
	Definitions int    `json:"definitions"`
	Processors  int    `json:"processors"`
	Listeners   int    `json:"listeners"`
	Error       string `json:"error,omitempty"`
}

// Factory is what the context needs from its factory.
type Factory interface {
	extpoint.MergedDefinitionFactory
	extpoint.DefinitionRegistry
	PreInstantiateSingletons() error
	Singleton(name string) (any, bool)
	SingletonNames() []string
	Chain() *extpoint.ProcessorChain
}

type state int32

const (
	stateNew state = iota
	stateRefreshing
	stateRefreshed
	stateFailed
)

// Context owns a factory and bootstraps it once.
type Context struct {
	logger      extpoint.Logger
	cfg         *config.Config
	factory     Factory
	orch        *extpoint.Orchestrator
	initial     []extpoint.DefinitionProcessor
	observers   []extpoint.Observer
	startup     extpoint.StartupRecorder
	recorder    *metrics.Recorder
	multicaster *multicaster
	emitEvents  atomic.Bool

	mu      sync.Mutex
	state   state
	failure error
}

// NewContext creates a context. Definitions are registered on Factory()
// before Refresh.
func NewContext(opts ...Option) (*Context, error) {
	c := &Context{
		multicaster: newMulticaster(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.cfg == nil {
		c.cfg = config.Default()
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bootstrap config: %w", err)
	}
	if c.logger == nil {
		level, _ := c.cfg.SlogLevel()
		c.logger = extpoint.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}
	if c.factory == nil {
		c.factory = factory.New(
			factory.WithLogger(c.logger),
			factory.WithConfig(factory.Config{AllowDefinitionOverriding: c.cfg.Factory.AllowDefinitionOverriding}),
		)
	}
	if c.startup == nil && c.cfg.Metrics.Enabled {
		c.recorder = metrics.NewRecorder()
		c.startup = c.recorder
	}
	c.emitEvents.Store(c.cfg.Diagnostics.EmitEvents)

	c.orch = extpoint.NewOrchestrator(
		extpoint.WithLogger(c.logger),
		extpoint.WithStartupRecorder(c.startup),
		extpoint.WithObservers(extpoint.NewFunctionalObserver("bootstrap", c.forward)),
		extpoint.WithIneligibleWarnings(c.cfg.Diagnostics.WarnIneligible),
	)
	return c, nil
}

// Factory returns the context's factory.
func (c *Context) Factory() Factory {
	return c.factory
}

// Config returns the settings the context was created with.
func (c *Context) Config() *config.Config {
	return c.cfg
}

// MetricsCollector returns a Prometheus collector of startup steps, or nil
// when metrics are disabled.
func (c *Context) MetricsCollector() *metrics.PrometheusCollector {
	if c.recorder == nil {
		return nil
	}
	return metrics.NewPrometheusCollector(c.recorder, c.cfg.Metrics.Namespace)
}

// RegisterDefinition registers a definition on the factory.
func (c *Context) RegisterDefinition(name string, def *extpoint.Definition) error {
	return c.factory.RegisterDefinition(name, def)
}

// Refresh bootstraps the factory. It can succeed only once; after a failure
// every call returns ErrContextFailed.
func (c *Context) Refresh(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case stateRefreshed, stateRefreshing:
		c.mu.Unlock()
		return ErrAlreadyRefreshed
	case stateFailed:
		err := c.failure
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrContextFailed, err)
	}
	c.state = stateRefreshing
	c.mu.Unlock()

	c.emit(ctx, EventTypeRefreshStarted, RefreshEventData{Definitions: c.factory.DefinitionCount()}, false)

	if err := c.refresh(ctx); err != nil {
		c.mu.Lock()
		c.state = stateFailed
		c.failure = err
		c.mu.Unlock()
		c.logger.Error("Context refresh failed", "error", err)
		c.emit(ctx, EventTypeRefreshFailed, RefreshEventData{
			Definitions: c.factory.DefinitionCount(),
			Error:       err.Error(),
		}, false)
		return fmt.Errorf("%w: %w", ErrContextFailed, err)
	}

	c.mu.Lock()
	c.state = stateRefreshed
	c.mu.Unlock()

	data := RefreshEventData{
		Definitions: c.factory.DefinitionCount(),
		Processors:  c.factory.InstanceProcessorCount(),
		Listeners:   c.multicaster.len(),
	}
	c.logger.Info("Context refreshed", "definitions", data.Definitions, "processors", data.Processors, "listeners", data.Listeners)
	c.emit(ctx, EventTypeRefreshCompleted, data, true)
	return nil
}

func (c *Context) refresh(ctx context.Context) error {
	if err := c.orch.InvokeDefinitionProcessors(c.factory, c.initial); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	detector := &listenerDetector{multicaster: c.multicaster, logger: c.logger}
	if err := c.orch.RegisterInstanceProcessors(c.factory, detector); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if c.cfg.Merged.Enabled {
		if err := c.orch.InvokeMergedDefinitionProcessors(c.factory); err != nil {
			return err
		}
	}

	if c.cfg.Factory.PreInstantiate {
		if err := c.factory.PreInstantiateSingletons(); err != nil {
			return err
		}
	}

	// Listeners created before the detector was installed.
	for _, name := range c.factory.SingletonNames() {
		s, _ := c.factory.Singleton(name)
		if l, ok := s.(Listener); ok {
			c.multicaster.add(name, l)
		}
	}

	c.factory.Chain().Freeze()
	return nil
}

// PublishEvent delivers an event to every listener. Listener errors are
// joined and returned after all listeners ran.
func (c *Context) PublishEvent(ctx context.Context, event cloudevents.Event) error {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	switch st {
	case stateFailed:
		return ErrContextFailed
	case stateRefreshed:
	default:
		return ErrContextNotRefreshed
	}
	return c.multicaster.multicast(ctx, event)
}

// emit sends a context event to observers and, when toListeners is set,
// to listeners.
func (c *Context) emit(ctx context.Context, eventType string, data RefreshEventData, toListeners bool) {
	event := extpoint.NewCloudEvent(eventType, EventSource, data, nil)
	if err := c.forward(ctx, event); err != nil {
		c.logger.Error("Observer error", "event", eventType, "error", err)
	}
	if toListeners {
		if err := c.multicaster.multicast(ctx, event); err != nil {
			c.logger.Error("Listener error", "event", eventType, "error", err)
		}
	}
}

// forward passes an event to the registered observers when events are on.
func (c *Context) forward(ctx context.Context, event cloudevents.Event) error {
	if !c.emitEvents.Load() {
		return nil
	}
	var errs []error
	for _, obs := range c.observers {
		if err := obs.OnEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("observer %s: %w", obs.ObserverID(), err))
		}
	}
	return errors.Join(errs...)
}

// Report returns what the orchestrator did.
func (c *Context) Report() extpoint.Report {
	return c.orch.Report()
}

// Processors returns the effective instance processor chain by type.
func (c *Context) Processors() []string {
	chain := c.factory.Chain().Effective()
	out := make([]string, len(chain))
	for i, p := range chain {
		out[i] = fmt.Sprintf("%T", p)
	}
	return out
}

// Definitions describes every registered definition in registration order.
func (c *Context) Definitions() []extpoint.DefinitionInfo {
	names := c.factory.DefinitionNames()
	out := make([]extpoint.DefinitionInfo, 0, len(names))
	for _, name := range names {
		def, err := c.factory.MergedDefinition(name)
		if err != nil {
			def, err = c.factory.Definition(name)
			if err != nil {
				continue
			}
		}
		info := def.Info(name)
		_, info.Created = c.factory.Singleton(name)
		out = append(out, info)
	}
	return out
}

// ApplyRuntimeConfig applies the settings that may change after creation:
// ineligible-component warnings and event emission.
func (c *Context) ApplyRuntimeConfig(cfg *config.Config) {
	c.orch.SetIneligibleWarnings(cfg.Diagnostics.WarnIneligible)
	c.emitEvents.Store(cfg.Diagnostics.EmitEvents)
	c.logger.Info("Runtime config applied",
		"warnIneligible", cfg.Diagnostics.WarnIneligible, "emitEvents", cfg.Diagnostics.EmitEvents)
}

// WatchConfig applies runtime settings from the file at path whenever it
// changes. It blocks until ctx is done.
func (c *Context) WatchConfig(ctx context.Context, path string) error {
	return config.Watch(ctx, path, c.ApplyRuntimeConfig, c.logger)
}
