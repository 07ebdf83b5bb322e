package extpoint

// DefinitionRegistry is the mutable view of the definition store handed to
// RegistryMutator hooks.
type DefinitionRegistry interface {
	RegisterDefinition(name string, def *Definition) error
	RemoveDefinition(name string) error
	ContainsDefinition(name string) bool
	Definition(name string) (*Definition, error)
	DefinitionNames() []string
	DefinitionCount() int
}

// ListableFactory is the queryable registry the orchestrator works against.
type ListableFactory interface {
	// NamesForCapability returns, in registration order, the names of all
	// definitions whose type implements c. It must not instantiate
	// components whose type can be determined from the definition.
	NamesForCapability(c Capability) []string

	// IsTypeMatch reports whether the named component implements c.
	IsTypeMatch(name string, c Capability) (bool, error)

	// Instance returns the named singleton, creating it if needed, and
	// checks it implements c.
	Instance(name string, c Capability) (any, error)

	ContainsDefinition(name string) bool
	Definition(name string) (*Definition, error)
	DefinitionNames() []string

	// MergedDefinition returns the definition resolved against its parents.
	MergedDefinition(name string) (*Definition, error)

	IsCurrentlyInCreation(name string) bool

	// ClearMetadataCache drops cached merged definitions so they are
	// re-resolved from the raw definitions.
	ClearMetadataCache()

	// InstanceProcessorCount returns the number of installed instance
	// processor entries.
	InstanceProcessorCount() int

	TypeResolver() TypeResolver
}

// ProcessorSink appends instance processors to the container's chain.
type ProcessorSink interface {
	AddInstanceProcessor(p InstanceProcessor) error
}

// BulkProcessorSink appends many processors in one copy of the chain. The
// orchestrator prefers it over repeated AddInstanceProcessor calls.
type BulkProcessorSink interface {
	AddInstanceProcessors(ps []InstanceProcessor) error
}

// InstalledProcessorLister is implemented by factories that can list the
// install points of their processor chain.
type InstalledProcessorLister interface {
	InstalledProcessors() []InstanceProcessor
}

// InstanceProcessorFactory is a ListableFactory that also accepts instance
// processors.
type InstanceProcessorFactory interface {
	ListableFactory
	ProcessorSink
}

// InnerDefinitionResolver resolves inner definitions found in property and
// constructor argument values. fn receives the inner definition's name, which
// is synthesized when innerName is empty, and its merged form.
type InnerDefinitionResolver interface {
	ResolveInnerDefinition(outerName string, outer *Definition, innerName string, inner *Definition,
		fn func(name string, merged *Definition) error) error
}

// MergedDefinitionFactory is what the merged-definition pass needs.
type MergedDefinitionFactory interface {
	InstanceProcessorFactory
	InnerDefinitionResolver
}

// ComparatorProvider is implemented by factories that override hook ordering.
type ComparatorProvider interface {
	DependencyComparator() Comparator
}
