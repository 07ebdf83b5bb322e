package extpoint

import (
	"fmt"
	"sync"
)

// RegisterInstanceProcessors installs every instance processor registered in
// the factory. It must run after InvokeDefinitionProcessors, against the
// final definition set.
//
// The resulting chain is, in order:
//
//  1. the ineligible-component checker
//  2. PriorityOrdered processors, sorted
//  3. Ordered processors, sorted
//  4. all other processors
//  5. every processor from 2-4 that is also a MergedDefinitionProcessor,
//     sorted and installed a second time
//  6. detector, if not nil
//
// Step 5 is deliberate: merged-definition processors occupy both their tier
// position and a tail position, and ProcessorChain.Effective runs them at the
// tail. Hooks that rely on running last, such as proxying decorators, depend
// on this layout.
func (o *Orchestrator) RegisterInstanceProcessors(factory InstanceProcessorFactory, detector InstanceProcessor) error {
	names := factory.NamesForCapability(CapabilityInstanceProcessor)

	// The checker counts itself.
	target := factory.InstanceProcessorCount() + 1 + len(names)
	checker := newIneligibleChecker(o, factory, names, target)
	if err := o.install(factory, []named[InstanceProcessor]{{name: ineligibleCheckerID, hook: checker}}); err != nil {
		return err
	}

	var priority, internal []named[InstanceProcessor]
	var orderedNames, plainNames []string
	for _, name := range names {
		tier, err := ClassifyTier(factory, name)
		if err != nil {
			return fmt.Errorf("failed to classify instance processor %q: %w", name, err)
		}
		switch tier {
		case TierPriority:
			h, err := instanceProcessor(factory, name)
			if err != nil {
				return err
			}
			priority = append(priority, h)
			if _, ok := h.hook.(MergedDefinitionProcessor); ok {
				internal = append(internal, h)
			}
		case TierOrdered:
			orderedNames = append(orderedNames, name)
		default:
			plainNames = append(plainNames, name)
		}
	}

	sortNamed(priority, factory)
	if err := o.install(factory, priority); err != nil {
		return err
	}

	ordered := make([]named[InstanceProcessor], 0, len(orderedNames))
	for _, name := range orderedNames {
		h, err := instanceProcessor(factory, name)
		if err != nil {
			return err
		}
		ordered = append(ordered, h)
		if _, ok := h.hook.(MergedDefinitionProcessor); ok {
			internal = append(internal, h)
		}
	}
	sortNamed(ordered, factory)
	if err := o.install(factory, ordered); err != nil {
		return err
	}

	plain := make([]named[InstanceProcessor], 0, len(plainNames))
	for _, name := range plainNames {
		h, err := instanceProcessor(factory, name)
		if err != nil {
			return err
		}
		plain = append(plain, h)
		if _, ok := h.hook.(MergedDefinitionProcessor); ok {
			internal = append(internal, h)
		}
	}
	sortNamed(plain, factory)
	if err := o.install(factory, plain); err != nil {
		return err
	}

	sortNamed(internal, factory)
	if err := o.install(factory, internal); err != nil {
		return err
	}

	if detector != nil {
		if err := o.install(factory, []named[InstanceProcessor]{{name: hookName(detector), hook: detector}}); err != nil {
			return err
		}
	}

	chain := o.Report().Chain
	o.logger.Info("Instance processors installed", "discovered", len(names), "installed", factory.InstanceProcessorCount())
	o.notify(EventTypeProcessorsInstalled, ProcessorsInstalledEventData{Discovered: len(names), Chain: chain})
	return nil
}

// LoadInstanceProcessors instantiates every processor of capability c
// registered in the factory and returns them sorted.
func LoadInstanceProcessors[T any](factory ListableFactory, c Capability) ([]T, error) {
	hooks, err := loadNamed[T](factory, c)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(hooks))
	for i, h := range hooks {
		out[i] = h.hook
	}
	return out, nil
}

func loadNamed[T any](factory ListableFactory, c Capability) ([]named[T], error) {
	names := factory.NamesForCapability(c)
	hooks := make([]named[T], 0, len(names))
	for _, name := range names {
		instance, err := factory.Instance(name, c)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s %q: %w", c, name, err)
		}
		hook, ok := instance.(T)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T, not a %s", ErrCapabilityMismatch, name, instance, c)
		}
		hooks = append(hooks, named[T]{name: name, hook: hook})
	}
	sortNamed(hooks, factory)
	return hooks, nil
}

func instanceProcessor(factory ListableFactory, name string) (named[InstanceProcessor], error) {
	instance, err := factory.Instance(name, CapabilityInstanceProcessor)
	if err != nil {
		return named[InstanceProcessor]{}, fmt.Errorf("failed to get instance processor %q: %w", name, err)
	}
	p, ok := instance.(InstanceProcessor)
	if !ok {
		return named[InstanceProcessor]{}, fmt.Errorf("%w: %q is %T, not an instance processor",
			ErrCapabilityMismatch, name, instance)
	}
	return named[InstanceProcessor]{name: name, hook: p}, nil
}

// ineligibleChecker warns about components that are fully built while the
// chain is still being installed. Such components were most likely created
// because a processor depends on them, and missed the processors installed
// after them.
type ineligibleChecker struct {
	orch           *Orchestrator
	factory        ListableFactory
	processorNames []string
	target         int

	mu     sync.Mutex
	warned map[string]struct{}
}

func newIneligibleChecker(orch *Orchestrator, factory ListableFactory, processorNames []string, target int) *ineligibleChecker {
	return &ineligibleChecker{
		orch:           orch,
		factory:        factory,
		processorNames: processorNames,
		target:         target,
		warned:         make(map[string]struct{}),
	}
}

func (c *ineligibleChecker) BeforeInitialization(instance any, _ string) (any, error) {
	return instance, nil
}

func (c *ineligibleChecker) AfterInitialization(instance any, name string) (any, error) {
	if _, ok := instance.(InstanceProcessor); ok {
		return instance, nil
	}
	if c.isInfrastructure(name) {
		return instance, nil
	}
	installed := c.factory.InstanceProcessorCount()
	if installed >= c.target || !c.orch.warnIneligible.Load() {
		return instance, nil
	}

	c.mu.Lock()
	if _, done := c.warned[name]; done {
		c.mu.Unlock()
		return instance, nil
	}
	c.warned[name] = struct{}{}
	c.mu.Unlock()

	var inCreation []string
	for _, ppName := range c.processorNames {
		if c.factory.IsCurrentlyInCreation(ppName) {
			inCreation = append(inCreation, ppName)
		}
	}

	typeName := fmt.Sprintf("%T", instance)
	if len(inCreation) == 1 && c.ownsFactory(inCreation[0], name) {
		c.orch.logger.Warn("Component is not eligible for processing by all instance processors: "+
			"the processor being created is built by a supplier on this component; register it with a standalone supplier instead",
			"component", name, "type", typeName, "processor", inCreation[0])
	} else {
		c.orch.logger.Warn("Component is not eligible for processing by all instance processors: "+
			"is it injected into a processor that is being created?",
			"component", name, "type", typeName, "processorsInCreation", inCreation)
	}
	c.orch.notify(EventTypeIneligibleComponent, IneligibleComponentEventData{
		Component:            name,
		Type:                 typeName,
		ProcessorsInCreation: inCreation,
		Installed:            installed,
		Target:               c.target,
	})
	return instance, nil
}

func (c *ineligibleChecker) isInfrastructure(name string) bool {
	if name == "" || !c.factory.ContainsDefinition(name) {
		return false
	}
	def, err := c.factory.Definition(name)
	if err != nil {
		return false
	}
	return def.Role == RoleInfrastructure
}

// ownsFactory reports whether the processor's definition is built by the
// named component.
func (c *ineligibleChecker) ownsFactory(processorName, componentName string) bool {
	if !c.factory.ContainsDefinition(processorName) {
		return false
	}
	def, err := c.factory.Definition(processorName)
	if err != nil {
		return false
	}
	return def.FactoryName == componentName
}
