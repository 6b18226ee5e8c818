package tools

import (
	"fmt"
	"strings"
	"sync"

	execpkg "devteam/pkg/exec"
	"devteam/pkg/github"
)

// AgentContext contains the collaborators a tool instance is bound to.
type AgentContext struct {
	Executor  execpkg.Executor
	GitHub    *github.Client
	Workspace *Workspace
}

// ToolFactory creates a tool instance configured for a specific agent context.
type ToolFactory func(ctx AgentContext) (Tool, error)

// toolDescriptor pairs a factory with the capability group that gates it.
type toolDescriptor struct {
	factory ToolFactory
	group   CapabilityGroup
}

// immutableRegistry is the global, read-only tool registry.
type immutableRegistry struct {
	mu     sync.RWMutex
	sealed bool
	tools  map[string]toolDescriptor
}

//nolint:gochecknoglobals // Factory pattern requires global registry
var globalRegistry = &immutableRegistry{
	tools: make(map[string]toolDescriptor),
}

// Register adds a tool factory to the global registry.
// Panics if called after the registry is sealed.
func Register(name string, group CapabilityGroup, factory ToolFactory) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()

	if globalRegistry.sealed {
		panic(fmt.Sprintf("tool registry sealed - cannot register tool '%s'", name))
	}
	globalRegistry.tools[name] = toolDescriptor{factory: factory, group: group}
}

// Seal prevents further tool registrations. Called automatically when the
// first Provider is created.
func Seal() {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.sealed = true
}

// GroupFor returns the capability group gating a registered tool.
func GroupFor(name string) (CapabilityGroup, bool) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	desc, ok := globalRegistry.tools[name]
	if !ok {
		return "", false
	}
	return desc.group, true
}

// Provider creates and caches tool instances for a specific agent context.
type Provider struct {
	ctx   AgentContext
	caps  *CapabilityRegistry
	tools map[string]Tool
	mu    sync.Mutex
}

// NewProvider creates a Provider for the given agent context and capability
// registry. Seals the global registry on first use.
func NewProvider(ctx AgentContext, caps *CapabilityRegistry) *Provider {
	Seal()
	return &Provider{
		ctx:   ctx,
		caps:  caps,
		tools: make(map[string]Tool),
	}
}

// Bind resolves an ordered candidate list into concrete tool bindings,
// omitting tools whose capability group is unavailable and deduplicating by
// name while preserving first-seen order. Availability is decided here, at
// construction time, never at call time.
func (p *Provider) Bind(candidates []string) ([]Tool, error) {
	seen := make(map[string]struct{}, len(candidates))
	bound := make([]Tool, 0, len(candidates))

	for _, name := range candidates {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		group, ok := GroupFor(name)
		if !ok {
			return nil, fmt.Errorf("tool '%s' not registered", name)
		}
		if !p.caps.IsAvailable(group) {
			continue
		}

		tool, err := p.get(name)
		if err != nil {
			return nil, err
		}
		bound = append(bound, tool)
	}
	return bound, nil
}

// get retrieves a tool instance, creating it lazily.
func (p *Provider) get(name string) (Tool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tool, ok := p.tools[name]; ok {
		return tool, nil
	}

	globalRegistry.mu.RLock()
	desc, exists := globalRegistry.tools[name]
	globalRegistry.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("tool '%s' not registered", name)
	}

	tool, err := desc.factory(p.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool '%s': %w", name, err)
	}
	p.tools[name] = tool
	return tool, nil
}

// Documentation renders a markdown list of the given tools for prompts.
func Documentation(bound []Tool) string {
	if len(bound) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for _, tool := range bound {
		def := tool.Definition()
		doc.WriteString(fmt.Sprintf("- **%s** - %s\n", def.Name, def.Description))
	}
	return doc.String()
}

//nolint:gochecknoinits // Factory pattern requires init() for tool registration
func init() {
	// Filesystem tools.
	Register(ToolListDirectory, GroupFilesystem, createListDirectoryTool)
	Register(ToolReadFile, GroupFilesystem, createReadFileTool)
	Register(ToolWriteFile, GroupFilesystem, createWriteFileTool)
	Register(ToolCreateDirectory, GroupFilesystem, createCreateDirectoryTool)

	// Static-analysis tools.
	Register(ToolAnalyzeCode, GroupStaticAnalysis, createAnalyzeCodeTool)
	Register(ToolFormatCode, GroupStaticAnalysis, createFormatCodeTool)
	Register(ToolLintCode, GroupStaticAnalysis, createLintCodeTool)

	// Test-execution tools.
	Register(ToolRunTests, GroupTestExecution, createRunTestsTool)

	// Version-control tools.
	Register(ToolCreateBranch, GroupVersionControl, createCreateBranchTool)
	Register(ToolCommitChanges, GroupVersionControl, createCommitChangesTool)
	Register(ToolCreatePullRequest, GroupVersionControl, createCreatePullRequestTool)
}
