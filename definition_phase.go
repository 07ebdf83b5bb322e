package extpoint

import (
	"fmt"
)

// InvokeDefinitionProcessors runs the definition phase.
//
// Hooks in initial are supplied by the caller and are not registered as
// definitions. Registry mutators among them run first, in input order, so
// the definitions they add are visible to discovery. Registry mutators
// found in the factory then run in rounds, querying the factory afresh each
// round: PriorityOrdered first, then Ordered, then the rest until a round
// finds nothing new. Only after every mutation has completed does
// PostProcessDefinitions run: on all mutators in the order they ran, then on
// the remaining caller hooks, then on the factory's definition processors
// tier by tier.
//
// The first hook error aborts the phase. Definitions already mutated are
// left as they are.
func (o *Orchestrator) InvokeDefinitionProcessors(factory ListableFactory, initial []DefinitionProcessor) error {
	processed := newProcessedSet()

	if registry, ok := factory.(DefinitionRegistry); ok {
		var regular []named[DefinitionProcessor]
		var mutators []named[RegistryMutator]

		for i, p := range initial {
			if p == nil {
				continue
			}
			if m, ok := p.(RegistryMutator); ok {
				h := named[RegistryMutator]{name: indexedHookName(m, i), hook: m}
				if err := o.invokeMutator(h, registry, 0); err != nil {
					return err
				}
				mutators = append(mutators, h)
			} else {
				regular = append(regular, named[DefinitionProcessor]{name: indexedHookName(p, i), hook: p})
			}
		}

		priorityOnly := func(name string) (bool, error) {
			return factory.IsTypeMatch(name, CapabilityPriorityOrdered)
		}
		current, err := o.mutatorRound(factory, registry, processed, 1, priorityOnly)
		if err != nil {
			return err
		}
		mutators = append(mutators, current...)

		// PriorityOrdered hooks registered during round 1 are also Ordered
		// and are picked up here, sorted ahead of plain Ordered hooks.
		orderedOnly := func(name string) (bool, error) {
			return factory.IsTypeMatch(name, CapabilityOrdered)
		}
		current, err = o.mutatorRound(factory, registry, processed, 2, orderedOnly)
		if err != nil {
			return err
		}
		mutators = append(mutators, current...)

		all := func(string) (bool, error) { return true, nil }
		for {
			current, err = o.mutatorRound(factory, registry, processed, 3, all)
			if err != nil {
				return err
			}
			if len(current) == 0 {
				break
			}
			mutators = append(mutators, current...)
		}

		for _, m := range mutators {
			h := named[DefinitionProcessor]{name: m.name, hook: m.hook}
			if err := o.invokeDefinitionProcessor(h, factory, 0); err != nil {
				return err
			}
		}
		for _, h := range regular {
			if err := o.invokeDefinitionProcessor(h, factory, 0); err != nil {
				return err
			}
		}
	} else {
		o.logger.Debug("Factory is not a definition registry, skipping registry mutation")
		for i, p := range initial {
			if p == nil {
				continue
			}
			if err := o.invokeDefinitionProcessor(named[DefinitionProcessor]{name: indexedHookName(p, i), hook: p}, factory, 0); err != nil {
				return err
			}
		}
	}

	if err := o.invokeFactoryDefinitionProcessors(factory, processed); err != nil {
		return err
	}

	// Mutations may have changed raw definitions, e.g. replaced placeholders.
	factory.ClearMetadataCache()

	o.logger.Info("Definition phase complete", "processed", processed.len())
	return nil
}

// mutatorRound collects the unprocessed registry mutators accepted by the
// filter, marks them processed, sorts and invokes them.
func (o *Orchestrator) mutatorRound(factory ListableFactory, registry DefinitionRegistry, processed *processedSet,
	round int, accept func(name string) (bool, error)) ([]named[RegistryMutator], error) {
	var current []named[RegistryMutator]
	for _, name := range factory.NamesForCapability(CapabilityRegistryMutator) {
		if processed.has(name) {
			continue
		}
		ok, err := accept(name)
		if err != nil {
			return nil, fmt.Errorf("failed to classify registry mutator %q: %w", name, err)
		}
		if !ok {
			continue
		}
		instance, err := factory.Instance(name, CapabilityRegistryMutator)
		if err != nil {
			return nil, fmt.Errorf("failed to get registry mutator %q: %w", name, err)
		}
		m, ok := instance.(RegistryMutator)
		if !ok {
			return nil, fmt.Errorf("%w: %q is %T, not a registry mutator", ErrCapabilityMismatch, name, instance)
		}
		current = append(current, named[RegistryMutator]{name: name, hook: m})
		processed.add(name)
		o.recordProcessed(name)
	}
	if len(current) == 0 {
		return nil, nil
	}

	sortNamed(current, factory)
	o.logger.Debug("Registry mutator round", "round", round, "hooks", len(current))
	for _, h := range current {
		if err := o.invokeMutator(h, registry, round); err != nil {
			return nil, err
		}
	}
	return current, nil
}

// invokeFactoryDefinitionProcessors runs the definition processors registered
// in the factory that were not already handled as registry mutators.
func (o *Orchestrator) invokeFactoryDefinitionProcessors(factory ListableFactory, processed *processedSet) error {
	var priority []named[DefinitionProcessor]
	var orderedNames, plainNames []string

	for _, name := range factory.NamesForCapability(CapabilityDefinitionProcessor) {
		if processed.has(name) {
			continue
		}
		tier, err := ClassifyTier(factory, name)
		if err != nil {
			return fmt.Errorf("failed to classify definition processor %q: %w", name, err)
		}
		switch tier {
		case TierPriority:
			h, err := o.definitionProcessor(factory, name)
			if err != nil {
				return err
			}
			priority = append(priority, h)
		case TierOrdered:
			orderedNames = append(orderedNames, name)
		default:
			plainNames = append(plainNames, name)
		}
	}

	sortNamed(priority, factory)
	for _, h := range priority {
		if err := o.invokeDefinitionProcessor(h, factory, 1); err != nil {
			return err
		}
	}

	ordered := make([]named[DefinitionProcessor], 0, len(orderedNames))
	for _, name := range orderedNames {
		h, err := o.definitionProcessor(factory, name)
		if err != nil {
			return err
		}
		ordered = append(ordered, h)
	}
	sortNamed(ordered, factory)
	for _, h := range ordered {
		if err := o.invokeDefinitionProcessor(h, factory, 2); err != nil {
			return err
		}
	}

	plain := make([]named[DefinitionProcessor], 0, len(plainNames))
	for _, name := range plainNames {
		h, err := o.definitionProcessor(factory, name)
		if err != nil {
			return err
		}
		plain = append(plain, h)
	}
	sortNamed(plain, factory)
	for _, h := range plain {
		if err := o.invokeDefinitionProcessor(h, factory, 3); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) definitionProcessor(factory ListableFactory, name string) (named[DefinitionProcessor], error) {
	instance, err := factory.Instance(name, CapabilityDefinitionProcessor)
	if err != nil {
		return named[DefinitionProcessor]{}, fmt.Errorf("failed to get definition processor %q: %w", name, err)
	}
	p, ok := instance.(DefinitionProcessor)
	if !ok {
		return named[DefinitionProcessor]{}, fmt.Errorf("%w: %q is %T, not a definition processor",
			ErrCapabilityMismatch, name, instance)
	}
	o.recordProcessed(name)
	return named[DefinitionProcessor]{name: name, hook: p}, nil
}

func (o *Orchestrator) invokeMutator(h named[RegistryMutator], registry DefinitionRegistry, round int) error {
	return o.invoke(StepRegistryPostProcess, PhaseRegistry, h.name, round, func() error {
		return h.hook.PostProcessDefinitionRegistry(registry)
	})
}

func (o *Orchestrator) invokeDefinitionProcessor(h named[DefinitionProcessor], factory ListableFactory, round int) error {
	return o.invoke(StepDefinitionPostProcess, PhaseDefinitions, h.name, round, func() error {
		return h.hook.PostProcessDefinitions(factory)
	})
}
