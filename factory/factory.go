// Package factory provides DefaultFactory, an in-memory definition registry
// and singleton factory that implements every interface the extpoint
// orchestrator consumes.
package factory

import (
	"fmt"
	"slices"
	"sync"

	"github.com/GoCodeAlone/extpoint"
)

// Initializer is implemented by components that need a callback between the
// before- and after-initialization processors.
type Initializer interface {
	Init() error
}

// Config holds factory settings.
type Config struct {
	// AllowDefinitionOverriding lets RegisterDefinition replace an existing
	// definition instead of failing with extpoint.ErrDefinitionExists.
	AllowDefinitionOverriding bool
}

// Option configures a DefaultFactory.
type Option func(*DefaultFactory)

// WithConfig applies factory settings.
func WithConfig(cfg Config) Option {
	return func(f *DefaultFactory) {
		f.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger extpoint.Logger) Option {
	return func(f *DefaultFactory) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTypeRegistry sets the resolver for definitions that only carry a type name.
func WithTypeRegistry(types *TypeRegistry) Option {
	return func(f *DefaultFactory) {
		f.types = types
	}
}

// WithDependencyComparator overrides hook ordering.
func WithDependencyComparator(c extpoint.Comparator) Option {
	return func(f *DefaultFactory) {
		f.comparator = c
	}
}

type innerEntry struct {
	name   string
	merged *extpoint.Definition
}

// DefaultFactory stores definitions in registration order and creates
// singletons on demand, running them through its processor chain.
//
// Singleton creation is expected to happen on the bootstrap goroutine.
// Lookups of existing singletons and definitions are safe for concurrent use.
type DefaultFactory struct {
	mu          sync.RWMutex
	definitions map[string]*extpoint.Definition
	names       []string
	merged      map[string]*extpoint.Definition
	inner       map[*extpoint.Definition]innerEntry
	innerSeq    int
	singletons  map[string]any
	manual      []string
	inCreation  map[string]struct{}

	chain      *extpoint.ProcessorChain
	types      *TypeRegistry
	comparator extpoint.Comparator
	config     Config
	logger     extpoint.Logger
}

// New creates an empty factory.
func New(opts ...Option) *DefaultFactory {
	f := &DefaultFactory{
		definitions: make(map[string]*extpoint.Definition),
		merged:      make(map[string]*extpoint.Definition),
		inner:       make(map[*extpoint.Definition]innerEntry),
		singletons:  make(map[string]any),
		inCreation:  make(map[string]struct{}),
		chain:       extpoint.NewProcessorChain(),
		types:       NewTypeRegistry(),
		logger:      extpoint.NopLogger(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Chain returns the factory's instance processor chain.
func (f *DefaultFactory) Chain() *extpoint.ProcessorChain {
	return f.chain
}

// Types returns the factory's type registry.
func (f *DefaultFactory) Types() *TypeRegistry {
	return f.types
}

// SetDefinitionOverriding toggles definition overriding.
func (f *DefaultFactory) SetDefinitionOverriding(allow bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.config.AllowDefinitionOverriding = allow
}

// RegisterDefinition implements extpoint.DefinitionRegistry.
func (f *DefaultFactory) RegisterDefinition(name string, def *extpoint.Definition) error {
	if name == "" {
		return extpoint.ErrDefinitionNameEmpty
	}
	if def == nil {
		return fmt.Errorf("%w: %s", extpoint.ErrDefinitionNil, name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.definitions[name]; exists {
		if !f.config.AllowDefinitionOverriding {
			return fmt.Errorf("%w: %s", extpoint.ErrDefinitionExists, name)
		}
		f.logger.Debug("Overriding definition", "name", name)
		delete(f.singletons, name)
	} else {
		f.names = append(f.names, name)
	}
	f.definitions[name] = def

	// Children may inherit from the replaced definition.
	clear(f.merged)
	return nil
}

// RemoveDefinition implements extpoint.DefinitionRegistry.
func (f *DefaultFactory) RemoveDefinition(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.definitions[name]; !exists {
		return fmt.Errorf("%w: %s", extpoint.ErrDefinitionNotFound, name)
	}
	delete(f.definitions, name)
	delete(f.singletons, name)
	f.names = slices.DeleteFunc(f.names, func(n string) bool { return n == name })
	clear(f.merged)
	return nil
}

// ContainsDefinition reports whether a definition is registered under name.
func (f *DefaultFactory) ContainsDefinition(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.definitions[name]
	return ok
}

// Definition returns the raw definition registered under name.
func (f *DefaultFactory) Definition(name string) (*extpoint.Definition, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	def, ok := f.definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", extpoint.ErrDefinitionNotFound, name)
	}
	return def, nil
}

// DefinitionNames returns definition names in registration order.
func (f *DefaultFactory) DefinitionNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.names)
}

// DefinitionCount returns the number of definitions.
func (f *DefaultFactory) DefinitionCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.names)
}

// RegisterSingleton registers an already built instance. It is visible to
// capability queries after all definitions.
func (f *DefaultFactory) RegisterSingleton(name string, instance any) error {
	if name == "" {
		return extpoint.ErrDefinitionNameEmpty
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.singletons[name]; exists {
		return fmt.Errorf("%w: %s", extpoint.ErrDefinitionExists, name)
	}
	f.singletons[name] = instance
	if _, hasDef := f.definitions[name]; !hasDef {
		f.manual = append(f.manual, name)
	}
	return nil
}

// Singleton returns the instance created for name, if any.
func (f *DefaultFactory) Singleton(name string) (any, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.singletons[name]
	return s, ok
}

// SingletonNames returns the names of all created or registered singletons,
// definitions first.
func (f *DefaultFactory) SingletonNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []string
	for _, name := range f.names {
		if _, ok := f.singletons[name]; ok {
			out = append(out, name)
		}
	}
	return append(out, f.manual...)
}

// MergedDefinition returns the definition with its parent chain applied. The
// result is cached until ClearMetadataCache or a registry change.
func (f *DefaultFactory) MergedDefinition(name string) (*extpoint.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mergedLocked(name, nil)
}

func (f *DefaultFactory) mergedLocked(name string, visiting map[string]struct{}) (*extpoint.Definition, error) {
	if m, ok := f.merged[name]; ok {
		return m, nil
	}
	def, ok := f.definitions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", extpoint.ErrDefinitionNotFound, name)
	}
	m, err := f.mergeLocked(name, def, visiting)
	if err != nil {
		return nil, err
	}
	f.merged[name] = m
	return m, nil
}

// mergeLocked applies def on top of its merged parent.
func (f *DefaultFactory) mergeLocked(name string, def *extpoint.Definition, visiting map[string]struct{}) (*extpoint.Definition, error) {
	if def.ParentName == "" {
		return def.Clone(), nil
	}
	if visiting == nil {
		visiting = make(map[string]struct{})
	}
	if name != "" {
		if _, seen := visiting[name]; seen {
			return nil, fmt.Errorf("%w: %s", extpoint.ErrParentCycle, name)
		}
		visiting[name] = struct{}{}
	}
	if _, seen := visiting[def.ParentName]; seen {
		return nil, fmt.Errorf("%w: %s -> %s", extpoint.ErrParentCycle, name, def.ParentName)
	}
	parent, err := f.mergedLocked(def.ParentName, visiting)
	if err != nil {
		return nil, fmt.Errorf("failed to merge parent %q of %q: %w", def.ParentName, name, err)
	}
	return overlay(parent, def), nil
}

// overlay returns a copy of parent with child's settings applied. Abstract
// and Lazy are never inherited.
func overlay(parent, child *extpoint.Definition) *extpoint.Definition {
	m := parent.Clone()
	if child.TypeName != "" || child.Type != nil {
		m.TypeName = child.TypeName
		m.Type = child.Type
	}
	if child.Supplier != nil {
		m.Supplier = child.Supplier
	}
	if child.FactoryName != "" {
		m.FactoryName = child.FactoryName
	}
	if child.Description != "" {
		m.Description = child.Description
	}
	m.ParentName = child.ParentName
	m.Role = child.Role
	m.Lazy = child.Lazy
	m.Abstract = child.Abstract
	m.Properties = append(m.Properties, child.Properties...)
	childArgs := child.ConstructorArgs.Clone()
	for i, vh := range childArgs.Indexed {
		if m.ConstructorArgs.Indexed == nil {
			m.ConstructorArgs.Indexed = make(map[int]*extpoint.ValueHolder)
		}
		m.ConstructorArgs.Indexed[i] = vh
	}
	m.ConstructorArgs.Generic = append(m.ConstructorArgs.Generic, childArgs.Generic...)
	return m
}

// ClearMetadataCache drops merged definitions of components that have not
// been created yet.
func (f *DefaultFactory) ClearMetadataCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range f.merged {
		if _, created := f.singletons[name]; !created {
			delete(f.merged, name)
		}
	}
	clear(f.inner)
}

// ResolveInnerDefinition implements extpoint.InnerDefinitionResolver. Inner
// definitions without a name get one synthesized. An inner definition of an
// infrastructure component is itself infrastructure.
func (f *DefaultFactory) ResolveInnerDefinition(outerName string, outer *extpoint.Definition, innerName string,
	inner *extpoint.Definition, fn func(name string, merged *extpoint.Definition) error) error {
	f.mu.Lock()
	entry, ok := f.inner[inner]
	if !ok {
		name := innerName
		if name == "" {
			f.innerSeq++
			name = fmt.Sprintf("(inner definition)#%d", f.innerSeq)
		}
		merged, err := f.mergeLocked(name, inner, nil)
		if err != nil {
			f.mu.Unlock()
			return fmt.Errorf("failed to merge inner definition %q of %q: %w", name, outerName, err)
		}
		if outer != nil && outer.Role == extpoint.RoleInfrastructure {
			merged.Role = extpoint.RoleInfrastructure
		}
		entry = innerEntry{name: name, merged: merged}
		f.inner[inner] = entry
	}
	f.mu.Unlock()
	return fn(entry.name, entry.merged)
}

// TypeResolver returns the factory's type registry.
func (f *DefaultFactory) TypeResolver() extpoint.TypeResolver {
	if f.types == nil {
		return nil
	}
	return f.types
}

// DependencyComparator implements extpoint.ComparatorProvider.
func (f *DefaultFactory) DependencyComparator() extpoint.Comparator {
	return f.comparator
}

// AddInstanceProcessor implements extpoint.ProcessorSink.
func (f *DefaultFactory) AddInstanceProcessor(p extpoint.InstanceProcessor) error {
	return f.chain.Add(p)
}

// AddInstanceProcessors implements extpoint.BulkProcessorSink.
func (f *DefaultFactory) AddInstanceProcessors(ps []extpoint.InstanceProcessor) error {
	return f.chain.AddAll(ps)
}

// InstalledProcessors implements extpoint.InstalledProcessorLister.
func (f *DefaultFactory) InstalledProcessors() []extpoint.InstanceProcessor {
	return f.chain.Snapshot()
}

// InstanceProcessorCount returns the number of chain install points.
func (f *DefaultFactory) InstanceProcessorCount() int {
	return f.chain.Len()
}
