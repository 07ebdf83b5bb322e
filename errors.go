package extpoint

import (
	"errors"
)

// Orchestration errors
var (
	// Hook errors
	ErrHookInvocation     = errors.New("hook invocation failed")
	ErrCapabilityMismatch = errors.New("instance does not implement requested capability")

	// Definition errors
	ErrDefinitionNotFound  = errors.New("definition not found")
	ErrDefinitionExists    = errors.New("definition already registered")
	ErrDefinitionNil       = errors.New("definition is nil")
	ErrDefinitionNameEmpty = errors.New("definition name cannot be empty")
	ErrParentCycle         = errors.New("definition parent chain contains a cycle")
	ErrAbstractDefinition  = errors.New("definition is abstract")
	ErrNoSupplier          = errors.New("definition has no supplier")

	// Creation errors
	ErrCurrentlyInCreation = errors.New("component is currently in creation")

	// Type resolution errors
	ErrTypeNotFound  = errors.New("type not found")
	ErrTypeNameEmpty = errors.New("type name is empty")

	// Chain errors
	ErrChainFrozen = errors.New("processor chain is frozen")
)
