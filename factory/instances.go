package factory

import (
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/extpoint"
)

// NamesForCapability returns the names of definitions, then manually
// registered singletons, that implement c. Existing singletons are checked
// directly; otherwise the merged definition's type decides, and nothing is
// instantiated. Abstract definitions and definitions whose type cannot be
// determined are skipped.
func (f *DefaultFactory) NamesForCapability(c extpoint.Capability) []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, name := range f.names {
		if s, ok := f.singletons[name]; ok {
			if c.Matches(s) {
				out = append(out, name)
			}
			continue
		}
		merged, err := f.mergedLocked(name, nil)
		if err != nil {
			f.logger.Debug("Skipping definition in capability query", "name", name, "error", err)
			continue
		}
		if merged.Abstract {
			continue
		}
		typ := f.typeOf(name, merged)
		if typ == nil {
			continue
		}
		if c.MatchesType(typ) {
			out = append(out, name)
		}
	}
	for _, name := range f.manual {
		if c.Matches(f.singletons[name]) {
			out = append(out, name)
		}
	}
	return out
}

// typeOf resolves the component type, logging failures.
func (f *DefaultFactory) typeOf(name string, def *extpoint.Definition) reflect.Type {
	if def.HasType() {
		return def.Type
	}
	if def.TypeName == "" {
		return nil
	}
	typ, err := def.ResolveType(f.TypeResolver())
	if err != nil {
		f.logger.Debug("Could not resolve definition type", "name", name, "type", def.TypeName, "error", err)
		return nil
	}
	return typ
}

// IsTypeMatch reports whether the named component implements c without
// creating it. A definition of unknown type does not match.
func (f *DefaultFactory) IsTypeMatch(name string, c extpoint.Capability) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s, ok := f.singletons[name]; ok {
		return c.Matches(s), nil
	}
	if _, ok := f.definitions[name]; !ok {
		return false, fmt.Errorf("%w: %s", extpoint.ErrDefinitionNotFound, name)
	}
	merged, err := f.mergedLocked(name, nil)
	if err != nil {
		return false, err
	}
	return c.MatchesType(f.typeOf(name, merged)), nil
}

// IsCurrentlyInCreation reports whether the named singleton is being built.
func (f *DefaultFactory) IsCurrentlyInCreation(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.inCreation[name]
	return ok
}

// Instance returns the named singleton, creating it on first use, and checks
// it implements c.
//
// Creation marks the name as in creation, materializes the component named by
// FactoryName, calls the supplier, then runs the chain's before-initialization
// callbacks, Init and the after-initialization callbacks. A name requested
// again while in creation fails with extpoint.ErrCurrentlyInCreation.
func (f *DefaultFactory) Instance(name string, c extpoint.Capability) (any, error) {
	instance, err := f.singleton(name)
	if err != nil {
		return nil, err
	}
	if !c.Matches(instance) {
		return nil, fmt.Errorf("%w: %q is %T, not a %s", extpoint.ErrCapabilityMismatch, name, instance, c)
	}
	return instance, nil
}

func (f *DefaultFactory) singleton(name string) (any, error) {
	f.mu.RLock()
	s, ok := f.singletons[name]
	f.mu.RUnlock()
	if ok {
		return s, nil
	}

	f.mu.Lock()
	if s, ok := f.singletons[name]; ok {
		f.mu.Unlock()
		return s, nil
	}
	if _, busy := f.inCreation[name]; busy {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", extpoint.ErrCurrentlyInCreation, name)
	}
	merged, err := f.mergedLocked(name, nil)
	if err != nil {
		f.mu.Unlock()
		return nil, err
	}
	if merged.Abstract {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", extpoint.ErrAbstractDefinition, name)
	}
	if merged.Supplier == nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", extpoint.ErrNoSupplier, name)
	}
	f.inCreation[name] = struct{}{}
	f.mu.Unlock()

	f.logger.Debug("Creating singleton", "name", name)
	instance, err := f.create(name, merged)

	f.mu.Lock()
	delete(f.inCreation, name)
	if err == nil {
		f.singletons[name] = instance
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return instance, nil
}

func (f *DefaultFactory) create(name string, def *extpoint.Definition) (any, error) {
	if def.FactoryName != "" {
		if _, err := f.singleton(def.FactoryName); err != nil {
			return nil, fmt.Errorf("failed to get factory component %q of %q: %w", def.FactoryName, name, err)
		}
	}
	raw, err := def.Supplier()
	if err != nil {
		return nil, fmt.Errorf("failed to create %q: %w", name, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: supplier of %q returned nil", extpoint.ErrNoSupplier, name)
	}

	instance, err := f.chain.ApplyBeforeInitialization(raw, name)
	if err != nil {
		return nil, err
	}
	if init, ok := instance.(Initializer); ok {
		if err := init.Init(); err != nil {
			return nil, fmt.Errorf("failed to initialize %q: %w", name, err)
		}
	}
	return f.chain.ApplyAfterInitialization(instance, name)
}

// PreInstantiateSingletons creates every non-abstract, non-lazy singleton in
// registration order.
func (f *DefaultFactory) PreInstantiateSingletons() error {
	for _, name := range f.DefinitionNames() {
		merged, err := f.MergedDefinition(name)
		if err != nil {
			return err
		}
		if merged.Abstract || merged.Lazy {
			continue
		}
		if _, err := f.singleton(name); err != nil {
			return fmt.Errorf("failed to pre-instantiate %q: %w", name, err)
		}
	}
	return nil
}
