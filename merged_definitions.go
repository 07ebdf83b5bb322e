package extpoint

import (
	"fmt"
	"reflect"
)

// InvokeMergedDefinitionProcessors lets every MergedDefinitionProcessor see
// every merged definition, including inner definitions reachable through
// property values and constructor arguments, exactly once. Definitions
// already marked post-processed are skipped, so a second run does nothing.
//
// Type resolution failures are logged and the hooks run with a nil type.
// Finally the loaded processors that have no install point yet are appended
// to the chain; those installed by RegisterInstanceProcessors are left where
// they are.
func (o *Orchestrator) InvokeMergedDefinitionProcessors(factory MergedDefinitionFactory) error {
	processors, err := loadNamed[MergedDefinitionProcessor](factory, CapabilityMergedDefinitionProcessor)
	if err != nil {
		return err
	}

	visited := 0
	for _, name := range factory.DefinitionNames() {
		merged, err := factory.MergedDefinition(name)
		if err != nil {
			return fmt.Errorf("failed to merge definition %q: %w", name, err)
		}
		if merged.IsPostProcessed() {
			continue
		}
		typ := o.resolveType(merged, factory.TypeResolver(), name)
		n, err := o.postProcessDefinition(factory, processors, name, typ, merged)
		if err != nil {
			return err
		}
		merged.MarkPostProcessed()
		visited += n
	}

	hooks := make([]named[InstanceProcessor], len(processors))
	for i, p := range processors {
		hooks[i] = named[InstanceProcessor]{name: p.name, hook: p.hook}
	}
	// Processors already in the chain keep their install points, so a
	// detector installed last stays last.
	if err := o.install(factory, o.notInstalled(factory, hooks)); err != nil {
		return err
	}

	o.logger.Debug("Merged definitions post-processed", "definitions", visited, "processors", len(processors))
	o.notify(EventTypeDefinitionsProcessed, DefinitionsProcessedEventData{Definitions: visited, Processors: len(processors)})
	return nil
}

// postProcessDefinition runs the hooks on def and recurses into its values.
// It returns the number of definitions visited.
func (o *Orchestrator) postProcessDefinition(factory MergedDefinitionFactory, processors []named[MergedDefinitionProcessor],
	name string, typ reflect.Type, def *Definition) (int, error) {
	for _, p := range processors {
		err := o.invoke(StepMergedPostProcess, PhaseMerged, p.name, 0, func() error {
			return p.hook.PostProcessMergedDefinition(def, typ, name)
		})
		if err != nil {
			return 0, err
		}
	}

	visited := 1
	visit := func(value any) error {
		n, err := o.postProcessValue(factory, processors, name, def, value)
		visited += n
		return err
	}
	for _, pv := range def.Properties {
		if err := visit(pv.Value); err != nil {
			return visited, err
		}
	}
	for _, i := range def.ConstructorArgs.Indexes() {
		if err := visit(def.ConstructorArgs.Indexed[i].Value); err != nil {
			return visited, err
		}
	}
	for _, vh := range def.ConstructorArgs.Generic {
		if err := visit(vh.Value); err != nil {
			return visited, err
		}
	}
	return visited, nil
}

func (o *Orchestrator) postProcessValue(factory MergedDefinitionFactory, processors []named[MergedDefinitionProcessor],
	outerName string, outer *Definition, value any) (int, error) {
	switch v := value.(type) {
	case *DefinitionHolder:
		if v == nil || v.Definition == nil {
			return 0, nil
		}
		return o.postProcessInner(factory, processors, outerName, outer, v.Name, v.Definition)
	case *Definition:
		if v == nil {
			return 0, nil
		}
		return o.postProcessInner(factory, processors, outerName, outer, "", v)
	case *TypedStringValue:
		if v == nil || v.TargetTypeName == "" {
			return 0, nil
		}
		if _, err := v.ResolveTargetType(factory.TypeResolver()); err != nil {
			o.logger.Debug("Could not resolve typed value target", "definition", outerName, "type", v.TargetTypeName, "error", err)
		}
	}
	return 0, nil
}

func (o *Orchestrator) postProcessInner(factory MergedDefinitionFactory, processors []named[MergedDefinitionProcessor],
	outerName string, outer *Definition, innerName string, inner *Definition) (int, error) {
	innerType := o.resolveType(inner, factory.TypeResolver(), innerName)
	visited := 0
	err := factory.ResolveInnerDefinition(outerName, outer, innerName, inner, func(name string, merged *Definition) error {
		if merged.IsPostProcessed() {
			return nil
		}
		typ := innerType
		if typ == nil {
			typ = merged.Type
		}
		n, err := o.postProcessDefinition(factory, processors, name, typ, merged)
		visited += n
		if err != nil {
			return err
		}
		merged.MarkPostProcessed()
		return nil
	})
	if err != nil {
		return visited, fmt.Errorf("failed to resolve inner definition of %q: %w", outerName, err)
	}
	return visited, nil
}

// resolveType resolves def's type, swallowing failures.
func (o *Orchestrator) resolveType(def *Definition, resolver TypeResolver, name string) reflect.Type {
	if def.HasType() {
		return def.Type
	}
	if def.TypeName == "" {
		return nil
	}
	typ, err := def.ResolveType(resolver)
	if err != nil {
		o.logger.Debug("Could not resolve definition type", "definition", name, "type", def.TypeName, "error", err)
		return nil
	}
	return typ
}
