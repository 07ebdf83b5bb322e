package extpoint

// Startup step names recorded by the orchestrator.
const (
	StepRegistryPostProcess   = "extpoint.definition-registry.post-process"
	StepDefinitionPostProcess = "extpoint.definition-set.post-process"
	StepMergedPostProcess     = "extpoint.merged-definition.post-process"
)

// StartupRecorder tracks bootstrap steps, one per hook invocation.
type StartupRecorder interface {
	Start(name string) StartupStep
}

// StartupStep is a running step. End must be called exactly once.
type StartupStep interface {
	Tag(key, value string) StartupStep
	End()
}

type nopRecorder struct{}

func (nopRecorder) Start(string) StartupStep { return nopStep{} }

type nopStep struct{}

func (s nopStep) Tag(string, string) StartupStep { return s }
func (nopStep) End()                            {}

// NopStartupRecorder returns a recorder that records nothing.
func NopStartupRecorder() StartupRecorder { return nopRecorder{} }
