package bootstrap

import (
	"errors"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/config"
)

// Option configures a Context.
type Option func(*Context) error

var (
	errNilFactory = errors.New("bootstrap: nil factory supplied")
	errNilConfig  = errors.New("bootstrap: nil config supplied")
)

// WithLogger sets the logger used by the context, its factory and the
// orchestrator.
func WithLogger(logger extpoint.Logger) Option {
	return func(c *Context) error {
		c.logger = logger
		return nil
	}
}

// WithConfig sets the bootstrap settings. The default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(c *Context) error {
		if cfg == nil {
			return errNilConfig
		}
		c.cfg = cfg
		return nil
	}
}

// WithFactory replaces the default factory.
func WithFactory(f Factory) Option {
	return func(c *Context) error {
		if f == nil {
			return errNilFactory
		}
		c.factory = f
		return nil
	}
}

// WithDefinitionProcessors adds hooks that are not registered as
// definitions. They run before any discovered hook.
func WithDefinitionProcessors(ps ...extpoint.DefinitionProcessor) Option {
	return func(c *Context) error {
		c.initial = append(c.initial, ps...)
		return nil
	}
}

// WithObserver adds an observer of bootstrap events.
func WithObserver(observers ...extpoint.Observer) Option {
	return func(c *Context) error {
		c.observers = append(c.observers, observers...)
		return nil
	}
}

// WithListener registers an application event listener up front.
func WithListener(name string, l Listener) Option {
	return func(c *Context) error {
		c.multicaster.add(name, l)
		return nil
	}
}

// WithStartupRecorder sets the startup step recorder. When unset and
// metrics are enabled, a metrics.Recorder is used.
func WithStartupRecorder(recorder extpoint.StartupRecorder) Option {
	return func(c *Context) error {
		c.startup = recorder
		return nil
	}
}
