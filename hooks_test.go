package extpoint_test

import (
	"reflect"
	"slices"
	"sync"
	"testing"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/factory"
	"github.com/stretchr/testify/require"
)

// callLog records hook callbacks in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(call string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, call)
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.calls)
}

// singletonDef returns a definition whose supplier returns hook itself.
func singletonDef(hook any) *extpoint.Definition {
	return &extpoint.Definition{
		Type:     reflect.TypeOf(hook),
		Supplier: func() (any, error) { return hook, nil },
	}
}

func register(t *testing.T, f *factory.DefaultFactory, name string, hook any) {
	t.Helper()
	require.NoError(t, f.RegisterDefinition(name, singletonDef(hook)))
}

type namedHook struct {
	name string
	hook any
}

// Registry mutators

type plainMutator struct {
	id   string
	log  *callLog
	adds []namedHook
	err  error
}

func (m *plainMutator) PostProcessDefinitionRegistry(r extpoint.DefinitionRegistry) error {
	m.log.add(m.id + ".registry")
	if m.err != nil {
		return m.err
	}
	for _, a := range m.adds {
		if err := r.RegisterDefinition(a.name, singletonDef(a.hook)); err != nil {
			return err
		}
	}
	return nil
}

func (m *plainMutator) PostProcessDefinitions(extpoint.ListableFactory) error {
	m.log.add(m.id + ".definitions")
	return nil
}

type orderedMutator struct {
	plainMutator
	order int
}

func (m *orderedMutator) Order() int { return m.order }

type priorityMutator struct {
	plainMutator
	order int
}

func (m *priorityMutator) Order() int       { return m.order }
func (m *priorityMutator) PriorityOrdered() {}

// Definition processors

type plainProcessor struct {
	id  string
	log *callLog
	err error
}

func (p *plainProcessor) PostProcessDefinitions(extpoint.ListableFactory) error {
	p.log.add(p.id)
	return p.err
}

type orderedProcessor struct {
	plainProcessor
	order int
}

func (p *orderedProcessor) Order() int { return p.order }

type priorityProcessor struct {
	plainProcessor
	order int
}

func (p *priorityProcessor) Order() int       { return p.order }
func (p *priorityProcessor) PriorityOrdered() {}

// Instance processors

type plainInstance struct {
	id  string
	log *callLog
}

func (p *plainInstance) BeforeInitialization(instance any, name string) (any, error) {
	if p.log != nil {
		p.log.add(p.id + ".before:" + name)
	}
	return instance, nil
}

func (p *plainInstance) AfterInitialization(instance any, name string) (any, error) {
	if p.log != nil {
		p.log.add(p.id + ".after:" + name)
	}
	return instance, nil
}

type orderedInstance struct {
	plainInstance
	order int
}

func (p *orderedInstance) Order() int { return p.order }

type priorityInstance struct {
	plainInstance
	order int
}

func (p *priorityInstance) Order() int       { return p.order }
func (p *priorityInstance) PriorityOrdered() {}

type mergedInstance struct {
	plainInstance
	seen  []string
	types map[string]reflect.Type
	err   error
}

func (m *mergedInstance) PostProcessMergedDefinition(def *extpoint.Definition, typ reflect.Type, name string) error {
	m.seen = append(m.seen, name)
	if m.types == nil {
		m.types = make(map[string]reflect.Type)
	}
	m.types[name] = typ
	return m.err
}

type orderedMergedInstance struct {
	mergedInstance
	order int
}

func (m *orderedMergedInstance) Order() int { return m.order }

// component is a regular application component.
type component struct {
	name string
}

func componentDef(name string) *extpoint.Definition {
	return extpoint.DefinitionFor(func() (*component, error) { return &component{name: name}, nil })
}
