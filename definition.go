package extpoint

import (
	"fmt"
	"reflect"
	"slices"
)

// Role tags what a definition is for.
type Role int

const (
	// RoleRegular marks application components.
	RoleRegular Role = iota
	// RoleInfrastructure marks container-internal components. The
	// ineligible-component checker ignores them.
	RoleInfrastructure
)

func (r Role) String() string {
	if r == RoleInfrastructure {
		return "infrastructure"
	}
	return "regular"
}

// TypeResolver turns a symbolic type name into a reflect.Type.
type TypeResolver interface {
	ResolveType(name string) (reflect.Type, error)
}

// Definition describes how a managed component is built. Its identity is the
// name it is registered under.
type Definition struct {
	// TypeName is resolved lazily through a TypeResolver when Type is nil.
	TypeName string
	// Type is the component type, or the resolved TypeName.
	Type reflect.Type
	// ParentName names a template definition this one inherits from.
	ParentName string
	Role       Role
	// Properties are applied in order.
	Properties      []PropertyValue
	ConstructorArgs ConstructorArgs
	// Supplier builds the raw instance.
	Supplier func() (any, error)
	// FactoryName names the definition whose instance owns Supplier, if any.
	FactoryName string
	Lazy        bool
	Abstract    bool
	Description string

	postProcessed bool
}

// DefinitionFor builds a definition whose type is T and whose supplier is fn.
func DefinitionFor[T any](fn func() (T, error)) *Definition {
	return &Definition{
		Type: reflect.TypeOf((*T)(nil)).Elem(),
		Supplier: func() (any, error) {
			return fn()
		},
	}
}

// HasType reports whether the component type is already resolved.
func (d *Definition) HasType() bool {
	return d.Type != nil
}

// ResolveType resolves and caches the component type.
func (d *Definition) ResolveType(resolver TypeResolver) (reflect.Type, error) {
	if d.Type != nil {
		return d.Type, nil
	}
	if d.TypeName == "" {
		return nil, ErrTypeNameEmpty
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: %s (no resolver)", ErrTypeNotFound, d.TypeName)
	}
	typ, err := resolver.ResolveType(d.TypeName)
	if err != nil {
		return nil, err
	}
	d.Type = typ
	return typ, nil
}

// MarkPostProcessed records that merged-definition processors have run. It
// has no effect after the first call.
func (d *Definition) MarkPostProcessed() {
	d.postProcessed = true
}

// IsPostProcessed reports whether MarkPostProcessed was called.
func (d *Definition) IsPostProcessed() bool {
	return d.postProcessed
}

// AddProperty appends a property assignment and returns d.
func (d *Definition) AddProperty(name string, value any) *Definition {
	d.Properties = append(d.Properties, PropertyValue{Name: name, Value: value})
	return d
}

// Property returns the last value assigned to name.
func (d *Definition) Property(name string) (any, bool) {
	for i := len(d.Properties) - 1; i >= 0; i-- {
		if d.Properties[i].Name == name {
			return d.Properties[i].Value, true
		}
	}
	return nil, false
}

// Clone returns a copy with its own property and argument containers. Values
// themselves are shared. The post-processed flag is not copied.
func (d *Definition) Clone() *Definition {
	c := *d
	c.postProcessed = false
	c.Properties = slices.Clone(d.Properties)
	c.ConstructorArgs = d.ConstructorArgs.Clone()
	return &c
}

// PropertyValue is a single named property assignment.
type PropertyValue struct {
	Name  string
	Value any
}

// ValueHolder wraps a constructor argument value.
type ValueHolder struct {
	Value    any
	TypeName string
	Name     string
}

// ConstructorArgs holds indexed and generic constructor arguments.
type ConstructorArgs struct {
	Indexed map[int]*ValueHolder
	Generic []*ValueHolder
}

// AddIndexed sets the argument at index.
func (a *ConstructorArgs) AddIndexed(index int, value any) {
	if a.Indexed == nil {
		a.Indexed = make(map[int]*ValueHolder)
	}
	a.Indexed[index] = &ValueHolder{Value: value}
}

// AddGeneric appends an argument matched by type rather than position.
func (a *ConstructorArgs) AddGeneric(value any) {
	a.Generic = append(a.Generic, &ValueHolder{Value: value})
}

// Indexes returns the indexed argument positions in ascending order.
func (a ConstructorArgs) Indexes() []int {
	idx := make([]int, 0, len(a.Indexed))
	for i := range a.Indexed {
		idx = append(idx, i)
	}
	slices.Sort(idx)
	return idx
}

// IsEmpty reports whether there are no arguments at all.
func (a ConstructorArgs) IsEmpty() bool {
	return len(a.Indexed) == 0 && len(a.Generic) == 0
}

// Clone copies the argument containers.
func (a ConstructorArgs) Clone() ConstructorArgs {
	var c ConstructorArgs
	if a.Indexed != nil {
		c.Indexed = make(map[int]*ValueHolder, len(a.Indexed))
		for i, vh := range a.Indexed {
			cp := *vh
			c.Indexed[i] = &cp
		}
	}
	for _, vh := range a.Generic {
		cp := *vh
		c.Generic = append(c.Generic, &cp)
	}
	return c
}

// DefinitionHolder is a named inner definition used as a property or
// argument value.
type DefinitionHolder struct {
	Name       string
	Definition *Definition
}

// TypedStringValue is a string value with a target type resolved lazily.
type TypedStringValue struct {
	Value          string
	TargetTypeName string

	targetType reflect.Type
}

// TargetType returns the resolved target type or nil.
func (v *TypedStringValue) TargetType() reflect.Type {
	return v.targetType
}

// ResolveTargetType resolves and caches the target type.
func (v *TypedStringValue) ResolveTargetType(resolver TypeResolver) (reflect.Type, error) {
	if v.targetType != nil {
		return v.targetType, nil
	}
	if v.TargetTypeName == "" {
		return nil, ErrTypeNameEmpty
	}
	if resolver == nil {
		return nil, fmt.Errorf("%w: %s (no resolver)", ErrTypeNotFound, v.TargetTypeName)
	}
	typ, err := resolver.ResolveType(v.TargetTypeName)
	if err != nil {
		return nil, err
	}
	v.targetType = typ
	return typ, nil
}

// DefinitionInfo is a serializable summary of a definition.
type DefinitionInfo struct {
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Parent        string `json:"parent,omitempty"`
	Role          string `json:"role"`
	FactoryName   string `json:"factoryName,omitempty"`
	Description   string `json:"description,omitempty"`
	Lazy          bool   `json:"lazy,omitempty"`
	Abstract      bool   `json:"abstract,omitempty"`
	PostProcessed bool   `json:"postProcessed"`
	Created       bool   `json:"created"`
}

// Info summarizes d as registered under name. Created is left false.
func (d *Definition) Info(name string) DefinitionInfo {
	typeName := d.TypeName
	if d.Type != nil {
		typeName = d.Type.String()
	}
	return DefinitionInfo{
		Name:          name,
		Type:          typeName,
		Parent:        d.ParentName,
		Role:          d.Role.String(),
		FactoryName:   d.FactoryName,
		Description:   d.Description,
		Lazy:          d.Lazy,
		Abstract:      d.Abstract,
		PostProcessed: d.postProcessed,
	}
}
