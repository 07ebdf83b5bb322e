package extpoint_test

import (
	"context"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/factory"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvokeDefinitionProcessors_TierOrder(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	// Registered in reverse tier order so discovery order cannot explain the result.
	register(t, f, "x", &plainMutator{id: "x", log: log})
	register(t, f, "o", &orderedMutator{plainMutator: plainMutator{id: "o", log: log}, order: 1})
	register(t, f, "p", &priorityMutator{plainMutator: plainMutator{id: "p", log: log}, order: 1})
	register(t, f, "xd", &plainProcessor{id: "xd", log: log})
	register(t, f, "od", &orderedProcessor{plainProcessor: plainProcessor{id: "od", log: log}, order: 1})
	register(t, f, "pd", &priorityProcessor{plainProcessor: plainProcessor{id: "pd", log: log}, order: 1})

	initial := []extpoint.DefinitionProcessor{
		&plainProcessor{id: "initProc", log: log},
		&plainMutator{id: "init", log: log},
	}

	orch := extpoint.NewOrchestrator(extpoint.WithLogger(&logger{t}))
	require.NoError(t, orch.InvokeDefinitionProcessors(f, initial))

	assert.Equal(t, []string{
		"init.registry", "p.registry", "o.registry", "x.registry",
		"init.definitions", "p.definitions", "o.definitions", "x.definitions",
		"initProc",
		"pd", "od", "xd",
	}, log.get())

	report := orch.Report()
	assert.Equal(t, []string{"p", "o", "x", "pd", "od", "xd"}, report.Processed)
}

func TestInvokeDefinitionProcessors_NestedRegistrationScenario(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	c := &priorityMutator{plainMutator: plainMutator{id: "C", log: log}, order: 10}
	a := &priorityMutator{plainMutator: plainMutator{id: "A", log: log, adds: []namedHook{{"c", c}}}, order: 0}
	b := &orderedMutator{plainMutator: plainMutator{id: "B", log: log}, order: -100}
	register(t, f, "a", a)
	register(t, f, "b", b)

	orch := extpoint.NewOrchestrator(extpoint.WithLogger(&logger{t}))
	require.NoError(t, orch.InvokeDefinitionProcessors(f, nil))

	var registryCalls []string
	for _, call := range log.get() {
		if strings.HasSuffix(call, ".registry") {
			registryCalls = append(registryCalls, call)
		}
	}
	assert.Equal(t, []string{"A.registry", "C.registry", "B.registry"}, registryCalls)

	rounds := map[string]int{}
	for _, inv := range orch.Report().Invocations {
		if inv.Phase == extpoint.PhaseRegistry {
			rounds[inv.Hook] = inv.Round
		}
	}
	assert.Equal(t, 1, rounds["a"])
	assert.GreaterOrEqual(t, rounds["c"], rounds["a"], "a registered hook never runs in an earlier round")
}

func TestInvokeDefinitionProcessors_Fixpoint(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	third := &plainMutator{id: "third", log: log}
	second := &plainMutator{id: "second", log: log, adds: []namedHook{{"third", third}}}
	first := &plainMutator{id: "first", log: log, adds: []namedHook{{"second", second}}}
	register(t, f, "first", first)

	orch := extpoint.NewOrchestrator()
	require.NoError(t, orch.InvokeDefinitionProcessors(f, nil))

	assert.Equal(t, []string{
		"first.registry", "second.registry", "third.registry",
		"first.definitions", "second.definitions", "third.definitions",
	}, log.get())
	for _, inv := range orch.Report().Invocations {
		if inv.Phase == extpoint.PhaseRegistry {
			assert.Equal(t, 3, inv.Round, inv.Hook)
		}
	}
}

func TestInvokeDefinitionProcessors_NoDoubleProcessing(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	register(t, f, "p", &priorityMutator{plainMutator: plainMutator{id: "p", log: log}})
	register(t, f, "o", &orderedMutator{plainMutator: plainMutator{id: "o", log: log}})
	register(t, f, "x", &plainMutator{id: "x", log: log})

	orch := extpoint.NewOrchestrator()
	require.NoError(t, orch.InvokeDefinitionProcessors(f, nil))

	counts := map[string]int{}
	for _, call := range log.get() {
		counts[call]++
	}
	for call, n := range counts {
		assert.Equal(t, 1, n, call)
	}
	assert.Len(t, counts, 6)

	processed := orch.Report().Processed
	sorted := slices.Clone(processed)
	slices.Sort(sorted)
	assert.Equal(t, len(sorted), len(slices.Compact(sorted)), "no name processed twice")
}

func TestInvokeDefinitionProcessors_FailureAborts(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	register(t, f, "first", &orderedProcessor{plainProcessor: plainProcessor{id: "first", log: log, err: errProcessorBoom}, order: 1})
	register(t, f, "second", &orderedProcessor{plainProcessor: plainProcessor{id: "second", log: log}, order: 2})

	orch := extpoint.NewOrchestrator()
	err := orch.InvokeDefinitionProcessors(f, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, extpoint.ErrHookInvocation)
	assert.ErrorIs(t, err, errProcessorBoom)
	assert.Contains(t, err.Error(), `"first"`)

	assert.Equal(t, []string{"first"}, log.get())
	invocations := orch.Report().Invocations
	require.Len(t, invocations, 1)
	assert.Equal(t, errProcessorBoom.Error(), invocations[0].Error)
}

func TestInvokeDefinitionProcessors_MutatorFailureAborts(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	register(t, f, "broken", &priorityMutator{plainMutator: plainMutator{id: "broken", log: log, err: errProcessorBoom}})
	register(t, f, "later", &plainMutator{id: "later", log: log})

	err := extpoint.NewOrchestrator().InvokeDefinitionProcessors(f, nil)
	assert.ErrorIs(t, err, errProcessorBoom)
	assert.Equal(t, []string{"broken.registry"}, log.get())
}

// listableOnly hides the registry half of a factory.
type listableOnly struct {
	extpoint.ListableFactory
}

func TestInvokeDefinitionProcessors_NonRegistryFactory(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	f := factory.New()
	register(t, f, "discovered", &plainProcessor{id: "discovered", log: log})

	initial := []extpoint.DefinitionProcessor{&plainMutator{id: "init", log: log}}
	require.NoError(t, extpoint.NewOrchestrator().InvokeDefinitionProcessors(listableOnly{f}, initial))

	assert.Equal(t, []string{"init.definitions", "discovered"}, log.get())
}

func TestInvokeDefinitionProcessors_CallerHooksOfSameType(t *testing.T) {
	t.Parallel()

	log := &callLog{}
	initial := []extpoint.DefinitionProcessor{
		&plainProcessor{id: "first", log: log},
		&plainProcessor{id: "second", log: log},
	}

	orch := extpoint.NewOrchestrator()
	require.NoError(t, orch.InvokeDefinitionProcessors(factory.New(), initial))

	invocations := orch.Report().Invocations
	require.Len(t, invocations, 2)
	assert.Equal(t, "*extpoint_test.plainProcessor#0", invocations[0].Hook)
	assert.Equal(t, "*extpoint_test.plainProcessor#1", invocations[1].Hook)
	assert.Equal(t, []string{"first", "second"}, log.get())
}

// describingProcessor rewrites a raw definition's description.
type describingProcessor struct {
	target string
}

func (p *describingProcessor) PostProcessDefinitions(f extpoint.ListableFactory) error {
	def, err := f.Definition(p.target)
	if err != nil {
		return err
	}
	def.Description = "rewritten"
	return nil
}

func TestInvokeDefinitionProcessors_ClearsMetadataCache(t *testing.T) {
	t.Parallel()

	f := factory.New()
	def := componentDef("svc")
	def.Description = "original"
	require.NoError(t, f.RegisterDefinition("svc", def))
	register(t, f, "describer", &describingProcessor{target: "svc"})

	merged, err := f.MergedDefinition("svc")
	require.NoError(t, err)
	assert.Equal(t, "original", merged.Description)

	require.NoError(t, extpoint.NewOrchestrator().InvokeDefinitionProcessors(f, nil))

	merged, err = f.MergedDefinition("svc")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", merged.Description)
}

// stepRecorder is an in-memory extpoint.StartupRecorder.
type stepRecorder struct {
	mu    sync.Mutex
	ended []string
}

type recordedStep struct {
	r    *stepRecorder
	name string
	hook string
}

func (r *stepRecorder) Start(name string) extpoint.StartupStep {
	return &recordedStep{r: r, name: name}
}

func (s *recordedStep) Tag(key, value string) extpoint.StartupStep {
	if key == "hook" {
		s.hook = value
	}
	return s
}

func (s *recordedStep) End() {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	s.r.ended = append(s.r.ended, s.name+"|"+s.hook)
}

func TestInvokeDefinitionProcessors_StartupStepsAndEvents(t *testing.T) {
	t.Parallel()

	f := factory.New()
	register(t, f, "m", &plainMutator{id: "m", log: &callLog{}})
	register(t, f, "d", &plainProcessor{id: "d", log: &callLog{}})

	var mu sync.Mutex
	var events []cloudevents.Event
	observer := extpoint.NewFunctionalObserver("test", func(_ context.Context, e cloudevents.Event) error {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
		return nil
	})
	recorder := &stepRecorder{}

	orch := extpoint.NewOrchestrator(extpoint.WithStartupRecorder(recorder), extpoint.WithObservers(observer))
	require.NoError(t, orch.InvokeDefinitionProcessors(f, nil))

	assert.Equal(t, []string{
		extpoint.StepRegistryPostProcess + "|m",
		extpoint.StepDefinitionPostProcess + "|m",
		extpoint.StepDefinitionPostProcess + "|d",
	}, recorder.ended)

	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, extpoint.EventTypeHookInvoked, e.Type())
		assert.Equal(t, extpoint.EventSource, e.Source())
		require.NoError(t, extpoint.ValidateCloudEvent(e))
	}
	var data extpoint.HookEventData
	require.NoError(t, events[0].DataAs(&data))
	assert.Equal(t, extpoint.HookEventData{Phase: extpoint.PhaseRegistry, Hook: "m", Round: 3}, data)
}
