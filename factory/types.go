package factory

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/GoCodeAlone/extpoint"
)

// TypeRegistry resolves symbolic type names registered ahead of time.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]reflect.Type
}

// NewTypeRegistry creates an empty type registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		types: make(map[string]reflect.Type),
	}
}

// Register maps name to typ, replacing any previous mapping.
func (r *TypeRegistry) Register(name string, typ reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[name] = typ
}

// RegisterType registers T under name, or under T's string form when name
// is empty. It returns the name used.
func RegisterType[T any](r *TypeRegistry, name string) string {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		name = typ.String()
	}
	r.Register(name, typ)
	return name
}

// ResolveType implements extpoint.TypeResolver.
func (r *TypeRegistry) ResolveType(name string) (reflect.Type, error) {
	if name == "" {
		return nil, extpoint.ErrTypeNameEmpty
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	typ, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", extpoint.ErrTypeNotFound, name)
	}
	return typ, nil
}

// Len returns the number of registered types.
func (r *TypeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.types)
}
