package cmd

import (
	"context"
	"reflect"
	"sync/atomic"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/bootstrap"
	"github.com/GoCodeAlone/extpoint/config"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// registrar adds the audit processor during the registry phase.
type registrar struct{}

func (registrar) PriorityOrdered() {}
func (registrar) Order() int       { return 0 }

func (registrar) PostProcessDefinitionRegistry(r extpoint.DefinitionRegistry) error {
	if r.ContainsDefinition("audit") {
		return nil
	}
	def := extpoint.DefinitionFor(func() (*auditProcessor, error) { return &auditProcessor{}, nil })
	def.Role = extpoint.RoleInfrastructure
	def.Description = "counts initialized components"
	return r.RegisterDefinition("audit", def)
}

func (registrar) PostProcessDefinitions(extpoint.ListableFactory) error { return nil }

// auditProcessor counts components passing through the chain.
type auditProcessor struct {
	seen atomic.Int64
}

func (*auditProcessor) Order() int { return 10 }

func (a *auditProcessor) BeforeInitialization(instance any, _ string) (any, error) {
	return instance, nil
}

func (a *auditProcessor) AfterInitialization(instance any, _ string) (any, error) {
	a.seen.Add(1)
	return instance, nil
}

// describer records the resolved type of every merged definition.
type describer struct {
	types map[string]string
}

func (d *describer) PostProcessMergedDefinition(_ *extpoint.Definition, typ reflect.Type, name string) error {
	if typ != nil {
		d.types[name] = typ.String()
	}
	return nil
}

func (d *describer) BeforeInitialization(instance any, _ string) (any, error) { return instance, nil }
func (d *describer) AfterInitialization(instance any, _ string) (any, error)  { return instance, nil }

// greeter is a regular component that listens to context events.
type greeter struct {
	events atomic.Int64
}

func (g *greeter) OnEvent(context.Context, cloudevents.Event) error {
	g.events.Add(1)
	return nil
}

func newDemoContext(cfg *config.Config) (*bootstrap.Context, error) {
	ctx, err := bootstrap.NewContext(
		bootstrap.WithConfig(cfg),
		bootstrap.WithDefinitionProcessors(registrar{}),
	)
	if err != nil {
		return nil, err
	}
	describerDef := extpoint.DefinitionFor(func() (*describer, error) {
		return &describer{types: make(map[string]string)}, nil
	})
	describerDef.Role = extpoint.RoleInfrastructure
	if err := ctx.RegisterDefinition("describer", describerDef); err != nil {
		return nil, err
	}
	greeterDef := extpoint.DefinitionFor(func() (*greeter, error) { return &greeter{}, nil })
	greeterDef.AddProperty("message", &extpoint.TypedStringValue{Value: "hello", TargetTypeName: "string"})
	if err := ctx.RegisterDefinition("greeter", greeterDef); err != nil {
		return nil, err
	}
	return ctx, nil
}
