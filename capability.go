// Package extpoint sequences the extension points of a dependency-injection
// container: definition-phase processors that may rewrite the definition
// registry before anything is instantiated, and instance processors that
// intercept every component around its initialization.
//
// Hooks are plain Go values. Which family a hook belongs to is decided by
// the interfaces it implements (RegistryMutator, DefinitionProcessor,
// InstanceProcessor, MergedDefinitionProcessor), and its priority tier by
// PriorityOrdered or Ordered. The Orchestrator discovers hooks by querying a
// ListableFactory and invokes them in a strict tier order, re-querying the
// registry between rounds because hooks may register more hooks.
//
// Basic usage:
//
//	orch := extpoint.NewOrchestrator(extpoint.WithLogger(logger))
//	if err := orch.InvokeDefinitionProcessors(f, initial); err != nil {
//		return err
//	}
//	if err := orch.RegisterInstanceProcessors(f, detector); err != nil {
//		return err
//	}
package extpoint

import (
	"math"
	"reflect"
)

const (
	// HighestPrecedence is the smallest order value.
	HighestPrecedence = math.MinInt32
	// LowestPrecedence is the order value assigned to hooks that are not Ordered.
	LowestPrecedence = math.MaxInt32
)

// DefinitionProcessor is a definition-phase hook. It runs after all
// definitions are loaded and before any regular component is instantiated,
// and may inspect or rewrite the definitions reachable through the factory.
type DefinitionProcessor interface {
	PostProcessDefinitions(factory ListableFactory) error
}

// RegistryMutator is a DefinitionProcessor that may also add or remove
// definitions. PostProcessDefinitionRegistry runs for every mutator before
// PostProcessDefinitions runs for any processor.
type RegistryMutator interface {
	DefinitionProcessor
	PostProcessDefinitionRegistry(registry DefinitionRegistry) error
}

// InstanceProcessor intercepts every component instance the factory creates.
// Returning a nil instance keeps the current one and skips the remaining
// processors for that callback.
type InstanceProcessor interface {
	BeforeInitialization(instance any, name string) (any, error)
	AfterInitialization(instance any, name string) (any, error)
}

// MergedDefinitionProcessor is an InstanceProcessor that also sees every
// merged definition once before instances are created.
type MergedDefinitionProcessor interface {
	InstanceProcessor
	PostProcessMergedDefinition(def *Definition, typ reflect.Type, name string) error
}

// Ordered hooks are sorted by ascending Order value.
type Ordered interface {
	Order() int
}

// PriorityOrdered hooks form the highest tier. They always sort before plain
// Ordered hooks regardless of their Order value.
type PriorityOrdered interface {
	Ordered
	PriorityOrdered()
}

// Capability names an interface a registered component may implement.
// The factory answers capability queries without instantiating components
// whenever the definition's type is known.
type Capability int

const (
	// CapabilityAny matches every component.
	CapabilityAny Capability = iota
	CapabilityRegistryMutator
	CapabilityDefinitionProcessor
	CapabilityInstanceProcessor
	CapabilityMergedDefinitionProcessor
	CapabilityPriorityOrdered
	CapabilityOrdered
)

var capabilityTypes = map[Capability]reflect.Type{
	CapabilityRegistryMutator:           reflect.TypeOf((*RegistryMutator)(nil)).Elem(),
	CapabilityDefinitionProcessor:       reflect.TypeOf((*DefinitionProcessor)(nil)).Elem(),
	CapabilityInstanceProcessor:         reflect.TypeOf((*InstanceProcessor)(nil)).Elem(),
	CapabilityMergedDefinitionProcessor: reflect.TypeOf((*MergedDefinitionProcessor)(nil)).Elem(),
	CapabilityPriorityOrdered:           reflect.TypeOf((*PriorityOrdered)(nil)).Elem(),
	CapabilityOrdered:                   reflect.TypeOf((*Ordered)(nil)).Elem(),
}

// Type returns the interface type behind the capability, or nil for CapabilityAny.
func (c Capability) Type() reflect.Type {
	return capabilityTypes[c]
}

// Matches reports whether instance implements the capability.
func (c Capability) Matches(instance any) bool {
	if instance == nil {
		return false
	}
	if c == CapabilityAny {
		return true
	}
	iface := c.Type()
	if iface == nil {
		return false
	}
	return reflect.TypeOf(instance).Implements(iface)
}

// MatchesType reports whether values of typ implement the capability.
func (c Capability) MatchesType(typ reflect.Type) bool {
	if typ == nil {
		return false
	}
	if c == CapabilityAny {
		return true
	}
	iface := c.Type()
	if iface == nil {
		return false
	}
	return typ.Implements(iface)
}

func (c Capability) String() string {
	switch c {
	case CapabilityAny:
		return "any"
	case CapabilityRegistryMutator:
		return "registry-mutator"
	case CapabilityDefinitionProcessor:
		return "definition-processor"
	case CapabilityInstanceProcessor:
		return "instance-processor"
	case CapabilityMergedDefinitionProcessor:
		return "merged-definition-processor"
	case CapabilityPriorityOrdered:
		return "priority-ordered"
	case CapabilityOrdered:
		return "ordered"
	default:
		return "unknown"
	}
}

// Tier is the priority class of a hook.
type Tier int

const (
	TierPriority Tier = iota
	TierOrdered
	TierPlain
)

func (t Tier) String() string {
	switch t {
	case TierPriority:
		return "priority"
	case TierOrdered:
		return "ordered"
	default:
		return "plain"
	}
}

// ClassifyTier determines the tier of the named hook by capability queries
// against the factory. PriorityOrdered is checked before Ordered. The hook is
// not instantiated when its definition type is known.
func ClassifyTier(factory ListableFactory, name string) (Tier, error) {
	priority, err := factory.IsTypeMatch(name, CapabilityPriorityOrdered)
	if err != nil {
		return TierPlain, err
	}
	if priority {
		return TierPriority, nil
	}
	ordered, err := factory.IsTypeMatch(name, CapabilityOrdered)
	if err != nil {
		return TierPlain, err
	}
	if ordered {
		return TierOrdered, nil
	}
	return TierPlain, nil
}
