package bootstrap

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"sync"

	"github.com/GoCodeAlone/extpoint"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var errHookFailed = errors.New("hook failed")

// trace records callbacks in order.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(call string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.calls = append(tr.calls, call)
}

func (tr *trace) get() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return slices.Clone(tr.calls)
}

func hookDef(hook any) *extpoint.Definition {
	return &extpoint.Definition{
		Type:     reflect.TypeOf(hook),
		Supplier: func() (any, error) { return hook, nil },
	}
}

type mutator struct {
	id    string
	trace *trace
	adds  map[string]any
}

func (m *mutator) PostProcessDefinitionRegistry(r extpoint.DefinitionRegistry) error {
	m.trace.add(m.id)
	for name, hook := range m.adds {
		if err := r.RegisterDefinition(name, hookDef(hook)); err != nil {
			return err
		}
	}
	return nil
}

func (m *mutator) PostProcessDefinitions(extpoint.ListableFactory) error { return nil }

type orderedMutator struct {
	mutator
	order int
}

func (m *orderedMutator) Order() int { return m.order }

type priorityMutator struct {
	mutator
	order int
}

func (m *priorityMutator) Order() int       { return m.order }
func (m *priorityMutator) PriorityOrdered() {}

type failingProcessor struct{}

func (failingProcessor) PostProcessDefinitions(extpoint.ListableFactory) error { return errHookFailed }

type passthrough struct{}

func (passthrough) BeforeInitialization(instance any, _ string) (any, error) { return instance, nil }
func (passthrough) AfterInitialization(instance any, _ string) (any, error)  { return instance, nil }

type auditProcessor struct {
	passthrough
	order int
	mu    sync.Mutex
	seen  []string
}

func (p *auditProcessor) Order() int { return p.order }

func (p *auditProcessor) PostProcessMergedDefinition(_ *extpoint.Definition, _ reflect.Type, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, name)
	return nil
}

type plainProcessor struct {
	passthrough
}

// greeter is a component that listens for application events.
type greeter struct {
	mu     sync.Mutex
	events []string
	err    error
}

func (g *greeter) OnEvent(_ context.Context, event cloudevents.Event) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.events = append(g.events, event.Type())
	return g.err
}

func (g *greeter) received() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.events)
}

// eventRecorder is an observer that keeps event types.
type eventRecorder struct {
	mu     sync.Mutex
	events []cloudevents.Event
}

func (r *eventRecorder) observer() extpoint.Observer {
	return extpoint.NewFunctionalObserver("recorder", func(_ context.Context, e cloudevents.Event) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
		return nil
	})
}

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type()
	}
	return out
}
