package extpoint

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Observer is notified of bootstrap events. Events use the CloudEvents
// specification so they can be forwarded to external systems unchanged.
type Observer interface {
	// OnEvent is called synchronously during bootstrap. A returned error is
	// logged and never aborts bootstrap.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// Event types emitted by the orchestrator, in reverse domain notation.
const (
	EventTypeHookInvoked          = "com.extpoint.hook.invoked"
	EventTypeHookFailed           = "com.extpoint.hook.failed"
	EventTypeProcessorsInstalled  = "com.extpoint.processors.installed"
	EventTypeIneligibleComponent  = "com.extpoint.component.ineligible"
	EventTypeDefinitionsProcessed = "com.extpoint.definitions.processed"
)

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer that calls handler for every event.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{
		id:      id,
		handler: handler,
	}
}

// OnEvent calls the handler.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the observer ID.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// HookEventData is the payload of hook invoked and failed events.
type HookEventData struct {
	Phase string `json:"phase"`
	Hook  string `json:"hook"`
	Round int    `json:"round"`
	Error string `json:"error,omitempty"`
}

// ProcessorsInstalledEventData is the payload of EventTypeProcessorsInstalled.
type ProcessorsInstalledEventData struct {
	Discovered int      `json:"discovered"`
	Chain      []string `json:"chain"`
}

// IneligibleComponentEventData is the payload of EventTypeIneligibleComponent.
type IneligibleComponentEventData struct {
	Component            string   `json:"component"`
	Type                 string   `json:"type"`
	ProcessorsInCreation []string `json:"processorsInCreation,omitempty"`
	Installed            int      `json:"installed"`
	Target               int      `json:"target"`
}

// DefinitionsProcessedEventData is the payload of EventTypeDefinitionsProcessed.
type DefinitionsProcessedEventData struct {
	Definitions int `json:"definitions"`
	Processors  int `json:"processors"`
}
