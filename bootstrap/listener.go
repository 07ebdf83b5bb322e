package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/GoCodeAlone/extpoint"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Listener receives application events published through the context.
// Components implementing it are registered automatically when created.
type Listener interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
}

type namedListener struct {
	name     string
	listener Listener
}

// multicaster delivers events to listeners in registration order.
type multicaster struct {
	mu        sync.RWMutex
	listeners []namedListener
	names     map[string]struct{}
}

func newMulticaster() *multicaster {
	return &multicaster{names: make(map[string]struct{})}
}

// add registers l under name. It returns false if name is already taken.
func (m *multicaster) add(name string, l Listener) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.names[name]; ok {
		return false
	}
	m.names[name] = struct{}{}
	m.listeners = append(m.listeners, namedListener{name: name, listener: l})
	return true
}

func (m *multicaster) len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listeners)
}

// multicast calls every listener and joins their errors.
func (m *multicaster) multicast(ctx context.Context, event cloudevents.Event) error {
	m.mu.RLock()
	listeners := make([]namedListener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	var errs []error
	for _, l := range listeners {
		if err := l.listener.OnEvent(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("listener %q: %w", l.name, err))
		}
	}
	return errors.Join(errs...)
}

// listenerDetector is the last instance processor. It registers created
// components that implement Listener.
type listenerDetector struct {
	multicaster *multicaster
	logger      extpoint.Logger
}

func (d *listenerDetector) BeforeInitialization(instance any, _ string) (any, error) {
	return instance, nil
}

func (d *listenerDetector) AfterInitialization(instance any, name string) (any, error) {
	if l, ok := instance.(Listener); ok && name != "" {
		if d.multicaster.add(name, l) {
			d.logger.Debug("Registered listener", "name", name)
		}
	}
	return instance, nil
}
