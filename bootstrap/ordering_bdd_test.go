package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/GoCodeAlone/extpoint"
	"github.com/GoCodeAlone/extpoint/config"
	"github.com/cucumber/godog"
)

// Static error variables for BDD tests to comply with err113 linting rule
var (
	errContextNotCreated   = errors.New("context was not created in background")
	errRefreshShouldFail   = errors.New("expected refresh to fail")
	errUnexpectedOrder     = errors.New("unexpected hook order")
	errUnexpectedChain     = errors.New("unexpected processor chain")
	errProcessorsInstalled = errors.New("instance processors were installed")
	errDetectorNotLast     = errors.New("listener detector is not the last processor")
)

// orderingBDDContext holds the state of one scenario.
type orderingBDDContext struct {
	cfg        *config.Config
	ctx        *Context
	trace      *trace
	refreshErr error
}

func (b *orderingBDDContext) reset() {
	b.cfg = nil
	b.ctx = nil
	b.trace = &trace{}
	b.refreshErr = nil
}

func (b *orderingBDDContext) iHaveANewBootstrapContext() error {
	b.cfg = config.Default()
	return nil
}

func (b *orderingBDDContext) theMergedDefinitionPassIsDisabled() error {
	b.cfg.Merged.Enabled = false
	return nil
}

// bootstrapContext lazily creates the context so Given steps may still change config.
func (b *orderingBDDContext) bootstrapContext() (*Context, error) {
	if b.ctx != nil {
		return b.ctx, nil
	}
	if b.cfg == nil {
		return nil, errContextNotCreated
	}
	c, err := NewContext(WithConfig(b.cfg), WithLogger(extpoint.NopLogger()))
	if err != nil {
		return nil, err
	}
	b.ctx = c
	return c, nil
}

func (b *orderingBDDContext) register(name string, hook any) error {
	c, err := b.bootstrapContext()
	if err != nil {
		return err
	}
	return c.RegisterDefinition(name, hookDef(hook))
}

func (b *orderingBDDContext) aPlainRegistryMutator(name string) error {
	return b.register(name, &mutator{id: name, trace: b.trace})
}

func (b *orderingBDDContext) anOrderedRegistryMutatorWithOrder(name string, order int) error {
	return b.register(name, &orderedMutator{mutator: mutator{id: name, trace: b.trace}, order: order})
}

func (b *orderingBDDContext) aPriorityRegistryMutatorWithOrder(name string, order int) error {
	return b.register(name, &priorityMutator{mutator: mutator{id: name, trace: b.trace}, order: order})
}

func (b *orderingBDDContext) aPriorityRegistryMutatorThatRegistersPriorityMutator(name string, order int, child string, childOrder int) error {
	c := &priorityMutator{mutator: mutator{id: child, trace: b.trace}, order: childOrder}
	return b.register(name, &priorityMutator{
		mutator: mutator{id: name, trace: b.trace, adds: map[string]any{child: c}},
		order:   order,
	})
}

func (b *orderingBDDContext) aPlainRegistryMutatorThatRegistersPlainMutator(name, child string) error {
	return b.register(name, &mutator{
		id:    name,
		trace: b.trace,
		adds:  map[string]any{child: &mutator{id: child, trace: b.trace}},
	})
}

func (b *orderingBDDContext) aMergedDefinitionInstanceProcessorWithOrder(name string, order int) error {
	return b.register(name, &auditProcessor{order: order})
}

func (b *orderingBDDContext) aPlainInstanceProcessor(name string) error {
	return b.register(name, &plainProcessor{})
}

func (b *orderingBDDContext) aDefinitionProcessorThatFails(name string) error {
	return b.register(name, failingProcessor{})
}

func (b *orderingBDDContext) iRefreshTheContext() error {
	c, err := b.bootstrapContext()
	if err != nil {
		return err
	}
	b.refreshErr = c.Refresh(context.Background())
	return nil
}

func (b *orderingBDDContext) theRefreshShouldSucceed() error {
	return b.refreshErr
}

func (b *orderingBDDContext) theRefreshShouldFail() error {
	if b.refreshErr == nil {
		return errRefreshShouldFail
	}
	return nil
}

func (b *orderingBDDContext) theErrorShouldMention(text string) error {
	if b.refreshErr == nil {
		return errRefreshShouldFail
	}
	if !strings.Contains(b.refreshErr.Error(), text) {
		return fmt.Errorf("error %q does not mention %q", b.refreshErr, text)
	}
	return nil
}

func splitList(list string) []string {
	parts := strings.Split(list, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func (b *orderingBDDContext) theRegistryMutatorsShouldHaveRunInOrder(order string) error {
	if b.refreshErr != nil {
		return b.refreshErr
	}
	expected := splitList(order)
	if got := b.trace.get(); !slices.Equal(expected, got) {
		return fmt.Errorf("%w: expected %v, got %v", errUnexpectedOrder, expected, got)
	}
	return nil
}

func (b *orderingBDDContext) theInstalledChainShouldBe(chain string) error {
	if b.refreshErr != nil {
		return b.refreshErr
	}
	expected := splitList(chain)
	if got := b.ctx.Report().Chain; !slices.Equal(expected, got) {
		return fmt.Errorf("%w: expected %v, got %v", errUnexpectedChain, expected, got)
	}
	return nil
}

func (b *orderingBDDContext) noInstanceProcessorsShouldBeInstalled() error {
	if n := b.ctx.Factory().InstanceProcessorCount(); n != 0 {
		return fmt.Errorf("%w: %d", errProcessorsInstalled, n)
	}
	return nil
}

func (b *orderingBDDContext) theChainShouldHaveInstallPoints(n int) error {
	if b.refreshErr != nil {
		return b.refreshErr
	}
	if got := b.ctx.Factory().InstanceProcessorCount(); got != n {
		return fmt.Errorf("%w: expected %d install points, got %d", errUnexpectedChain, n, got)
	}
	return nil
}

func (b *orderingBDDContext) theListenerDetectorShouldRunLast() error {
	if b.refreshErr != nil {
		return b.refreshErr
	}
	processors := b.ctx.Processors()
	if len(processors) == 0 || processors[len(processors)-1] != "*bootstrap.listenerDetector" {
		return fmt.Errorf("%w: %v", errDetectorNotLast, processors)
	}
	return nil
}

// InitializeOrderingScenario registers the ordering steps.
func InitializeOrderingScenario(ctx *godog.ScenarioContext) {
	b := &orderingBDDContext{}

	ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		b.reset()
		return ctx, nil
	})

	ctx.Step(`^I have a new bootstrap context$`, b.iHaveANewBootstrapContext)
	ctx.Step(`^the merged-definition pass is disabled$`, b.theMergedDefinitionPassIsDisabled)

	ctx.Step(`^a plain registry mutator "([^"]*)"$`, b.aPlainRegistryMutator)
	ctx.Step(`^an ordered registry mutator "([^"]*)" with order (-?\d+)$`, b.anOrderedRegistryMutatorWithOrder)
	ctx.Step(`^a priority registry mutator "([^"]*)" with order (-?\d+)$`, b.aPriorityRegistryMutatorWithOrder)
	ctx.Step(`^a priority registry mutator "([^"]*)" with order (-?\d+) that registers priority mutator "([^"]*)" with order (-?\d+)$`,
		b.aPriorityRegistryMutatorThatRegistersPriorityMutator)
	ctx.Step(`^a plain registry mutator "([^"]*)" that registers plain mutator "([^"]*)"$`, b.aPlainRegistryMutatorThatRegistersPlainMutator)
	ctx.Step(`^a merged-definition instance processor "([^"]*)" with order (-?\d+)$`, b.aMergedDefinitionInstanceProcessorWithOrder)
	ctx.Step(`^a plain instance processor "([^"]*)"$`, b.aPlainInstanceProcessor)
	ctx.Step(`^a definition processor "([^"]*)" that fails$`, b.aDefinitionProcessorThatFails)

	ctx.Step(`^I refresh the context$`, b.iRefreshTheContext)
	ctx.Step(`^the refresh should succeed$`, b.theRefreshShouldSucceed)
	ctx.Step(`^the refresh should fail$`, b.theRefreshShouldFail)
	ctx.Step(`^the error should mention "([^"]*)"$`, b.theErrorShouldMention)
	ctx.Step(`^the registry mutators should have run in order "([^"]*)"$`, b.theRegistryMutatorsShouldHaveRunInOrder)
	ctx.Step(`^the installed chain should be "([^"]*)"$`, b.theInstalledChainShouldBe)
	ctx.Step(`^no instance processors should be installed$`, b.noInstanceProcessorsShouldBeInstalled)
	ctx.Step(`^the chain should have (\d+) install points$`, b.theChainShouldHaveInstallPoints)
	ctx.Step(`^the listener detector should run last$`, b.theListenerDetectorShouldRunLast)
}

// TestOrderingFeatures runs the BDD tests for hook ordering
func TestOrderingFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeOrderingScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/ordering.feature"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
