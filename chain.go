package extpoint

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// ProcessorChain is the ordered list of instance processors a container runs
// around every component it builds.
//
// Writes happen during bootstrap and publish a fresh immutable snapshot, so
// readers on concurrent construction paths never see a partially appended
// chain. AddAll copies the chain once per call.
type ProcessorChain struct {
	mu     sync.Mutex
	state  atomic.Pointer[chainState]
	frozen atomic.Bool
}

type chainState struct {
	entries   []InstanceProcessor
	effective []InstanceProcessor
}

var emptyChain = &chainState{}

// NewProcessorChain returns an empty chain.
func NewProcessorChain() *ProcessorChain {
	c := &ProcessorChain{}
	c.state.Store(emptyChain)
	return c
}

func (c *ProcessorChain) load() *chainState {
	if s := c.state.Load(); s != nil {
		return s
	}
	return emptyChain
}

// Add appends one processor.
func (c *ProcessorChain) Add(p InstanceProcessor) error {
	return c.AddAll([]InstanceProcessor{p})
}

// AddAll appends processors in order.
func (c *ProcessorChain) AddAll(ps []InstanceProcessor) error {
	if len(ps) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen.Load() {
		return ErrChainFrozen
	}
	cur := c.load().entries
	next := make([]InstanceProcessor, 0, len(cur)+len(ps))
	next = append(next, cur...)
	for _, p := range ps {
		if p == nil {
			continue
		}
		next = append(next, p)
	}
	c.state.Store(&chainState{entries: next, effective: effectiveOrder(next)})
	return nil
}

// Len returns the number of install points, counting a processor installed
// twice as two.
func (c *ProcessorChain) Len() int {
	return len(c.load().entries)
}

// Snapshot returns every install point in order.
func (c *ProcessorChain) Snapshot() []InstanceProcessor {
	entries := c.load().entries
	out := make([]InstanceProcessor, len(entries))
	copy(out, entries)
	return out
}

// Effective returns the invocation order. A processor installed more than
// once runs only at its last install point, which is how merged-definition
// processors re-installed at the tail end up running after the plain tier.
// The returned slice must not be modified.
func (c *ProcessorChain) Effective() []InstanceProcessor {
	return c.load().effective
}

// Freeze rejects all further writes.
func (c *ProcessorChain) Freeze() {
	c.frozen.Store(true)
}

// IsFrozen reports whether Freeze was called.
func (c *ProcessorChain) IsFrozen() bool {
	return c.frozen.Load()
}

// ApplyBeforeInitialization runs BeforeInitialization through the chain.
func (c *ProcessorChain) ApplyBeforeInitialization(instance any, name string) (any, error) {
	result := instance
	for _, p := range c.Effective() {
		current, err := p.BeforeInitialization(result, name)
		if err != nil {
			return nil, fmt.Errorf("%w: before-initialization of %q in %T: %w", ErrHookInvocation, name, p, err)
		}
		if current == nil {
			return result, nil
		}
		result = current
	}
	return result, nil
}

// ApplyAfterInitialization runs AfterInitialization through the chain.
func (c *ProcessorChain) ApplyAfterInitialization(instance any, name string) (any, error) {
	result := instance
	for _, p := range c.Effective() {
		current, err := p.AfterInitialization(result, name)
		if err != nil {
			return nil, fmt.Errorf("%w: after-initialization of %q in %T: %w", ErrHookInvocation, name, p, err)
		}
		if current == nil {
			return result, nil
		}
		result = current
	}
	return result, nil
}

func effectiveOrder(entries []InstanceProcessor) []InstanceProcessor {
	last := make(map[any]int, len(entries))
	for i, p := range entries {
		if reflect.ValueOf(p).Comparable() {
			last[p] = i
		}
	}
	out := make([]InstanceProcessor, 0, len(entries))
	for i, p := range entries {
		if reflect.ValueOf(p).Comparable() && last[p] != i {
			continue
		}
		out = append(out, p)
	}
	return out
}
