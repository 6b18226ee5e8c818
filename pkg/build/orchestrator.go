package build

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"devteam/pkg/agent"
	"devteam/pkg/config"
	execpkg "devteam/pkg/exec"
	"devteam/pkg/github"
	"devteam/pkg/logx"
	"devteam/pkg/metrics"
	"devteam/pkg/persistence"
	"devteam/pkg/tools"
	"devteam/pkg/utils"
)

// InvalidProjectPathError reports a project root that does not exist or is
// not writable. Recoverable: the caller may retry with a corrected path.
type InvalidProjectPathError struct {
	Path   string
	Reason string
}

// Error implements the error interface.
func (e *InvalidProjectPathError) Error() string {
	return fmt.Sprintf("invalid project path %s: %s", e.Path, e.Reason)
}

// Orchestrator owns the capability registry, the agent team, and the active
// project binding, and drives the pipeline. Single-threaded: every pipeline
// step blocks until its collaborators return.
type Orchestrator struct {
	cfg           *config.Config
	state         State
	caps          *tools.CapabilityRegistry
	capOverrides  map[tools.CapabilityGroup]bool
	workspace     *tools.Workspace
	provider      *tools.Provider
	agents        map[string]*agent.RoleAgent
	manager       *agent.Manager
	executor      execpkg.Executor
	runner        *execpkg.Runner
	gh            *github.Client
	project       *ProjectContext
	extractor     FeatureExtractor
	recorder      metrics.Recorder
	store         *persistence.Store
	counter       *utils.TokenCounter
	clientFactory agent.ClientFactory
	logger        *logx.Logger
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithExecutor replaces the command executor.
func WithExecutor(executor execpkg.Executor) Option {
	return func(o *Orchestrator) { o.executor = executor }
}

// WithGitHubClient injects a pre-built version-control client.
func WithGitHubClient(client *github.Client) Option {
	return func(o *Orchestrator) { o.gh = client }
}

// WithExtractor replaces the feature extractor.
func WithExtractor(extractor FeatureExtractor) Option {
	return func(o *Orchestrator) { o.extractor = extractor }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(recorder metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = recorder }
}

// WithStore attaches a build history store.
func WithStore(store *persistence.Store) Option {
	return func(o *Orchestrator) { o.store = store }
}

// WithClientFactory replaces the LLM client factory, used by tests to
// substitute mock clients.
func WithClientFactory(factory agent.ClientFactory) Option {
	return func(o *Orchestrator) { o.clientFactory = factory }
}

// WithCapability forces a capability group's availability, overriding
// detection. Used for tests and for disabling groups explicitly.
func WithCapability(group tools.CapabilityGroup, available bool) Option {
	return func(o *Orchestrator) { o.capOverrides[group] = available }
}

// New constructs the orchestrator: populates capabilities, then builds the
// four role agents and the manager. Returns a fatal error if the filesystem
// capability is unavailable or any mandatory role lacks a model id; all
// missing roles are reported together.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	o := &Orchestrator{
		cfg:          cfg,
		state:        StateUninitialized,
		caps:         tools.NewCapabilityRegistry(),
		capOverrides: make(map[tools.CapabilityGroup]bool),
		workspace:    tools.NewWorkspace(""),
		extractor:    DefaultExtractor{},
		recorder:     (*metrics.PrometheusRecorder)(nil),
		logger:       logx.NewLogger("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.executor == nil {
		o.executor = execpkg.NewLocalExec()
	}
	o.runner = execpkg.NewRunner(o.executor, cfg.Interpreter)
	if counter, err := utils.NewTokenCounter("gpt-4"); err == nil {
		o.counter = counter
	}

	if err := o.populateCapabilities(ctx); err != nil {
		o.state = StateFailed
		return nil, err
	}
	o.state = StateToolsReady

	if err := o.buildAgents(); err != nil {
		o.state = StateFailed
		return nil, err
	}
	o.state = StateAgentsReady

	return o, nil
}

// populateCapabilities computes availability for every tool group once.
// Filesystem is mandatory; its absence is fatal and never retried.
func (o *Orchestrator) populateCapabilities(ctx context.Context) error {
	execAvailable := o.executor.Available()

	available := map[tools.CapabilityGroup]bool{
		tools.GroupFilesystem:     true,
		tools.GroupStaticAnalysis: execAvailable,
		tools.GroupTestExecution:  execAvailable,
		tools.GroupVersionControl: false,
	}

	if o.cfg.VersionControlEnabled() {
		if o.gh == nil {
			client, err := github.NewClient(ctx, o.cfg.GitHub.Token, o.cfg.GitHub.Username, o.cfg.GitHub.Repository)
			if err != nil {
				o.logger.Warn("version control disabled: %v", err)
			} else {
				o.gh = client
			}
		}
		available[tools.GroupVersionControl] = o.gh != nil
	}

	for group, override := range o.capOverrides {
		available[group] = override
	}

	for _, group := range []tools.CapabilityGroup{
		tools.GroupFilesystem,
		tools.GroupStaticAnalysis,
		tools.GroupTestExecution,
		tools.GroupVersionControl,
	} {
		o.caps.Register(group, available[group])
	}

	if err := o.caps.RequireFilesystem(); err != nil {
		return fmt.Errorf("orchestrator construction failed: %w", err)
	}
	return nil
}

// buildAgents constructs the four role agents and the manager. Missing model
// configurations are aggregated so the user sees every missing role at once.
func (o *Orchestrator) buildAgents() error {
	if err := o.cfg.Validate(); err != nil {
		return err
	}

	o.provider = tools.NewProvider(tools.AgentContext{
		Executor:  o.executor,
		GitHub:    o.gh,
		Workspace: o.workspace,
	}, o.caps)

	builder := &agent.Builder{
		Config:    o.cfg,
		Provider:  o.provider,
		NewClient: o.clientFactory,
	}

	o.agents = make(map[string]*agent.RoleAgent, 4)
	var missing []string
	for _, role := range config.MandatoryRoles() {
		a, err := builder.RoleAgent(role)
		if err != nil {
			if errors.Is(err, agent.ErrMissingModelConfiguration) {
				missing = append(missing, role)
				continue
			}
			return fmt.Errorf("building %s agent: %w", role, err)
		}
		o.agents[role] = a
	}
	if len(missing) > 0 {
		return &config.ConfigError{
			Reasons: missingModelReasons(missing),
		}
	}

	manager, err := builder.Manager(o.agents)
	if err != nil {
		return fmt.Errorf("building manager: %w", err)
	}
	o.manager = manager
	return nil
}

func missingModelReasons(roles []string) []string {
	reasons := make([]string, len(roles))
	for i, role := range roles {
		reasons[i] = fmt.Sprintf("agents.%s.model_id is not set", role)
	}
	return reasons
}

// State returns the orchestrator's current pipeline state.
func (o *Orchestrator) State() State {
	return o.state
}

// Capabilities returns the capability registry.
func (o *Orchestrator) Capabilities() *tools.CapabilityRegistry {
	return o.caps
}

// Agent returns the role agent for a role, if constructed.
func (o *Orchestrator) Agent(role string) (*agent.RoleAgent, bool) {
	a, ok := o.agents[role]
	return a, ok
}

// Project returns the active project context, nil before SetProject.
func (o *Orchestrator) Project() *ProjectContext {
	return o.project
}

// SetProject binds the orchestrator to a project root. Rebinding discards
// all in-flight project state. The root must exist, be a directory, and be
// writable.
func (o *Orchestrator) SetProject(name, description, rootPath string) error {
	if o.state == StateUninitialized || o.state == StateToolsReady {
		return fmt.Errorf("agents not ready, cannot set project")
	}

	info, err := os.Stat(rootPath)
	if err != nil {
		return &InvalidProjectPathError{Path: rootPath, Reason: err.Error()}
	}
	if !info.IsDir() {
		return &InvalidProjectPathError{Path: rootPath, Reason: "not a directory"}
	}

	probe := filepath.Join(rootPath, ".devteam-probe")
	if err := os.WriteFile(probe, nil, 0o644); err != nil { //nolint:gosec // Probe file is empty and removed
		return &InvalidProjectPathError{Path: rootPath, Reason: "not writable"}
	}
	_ = os.Remove(probe)

	o.project = &ProjectContext{
		Name:        name,
		Description: description,
		RootPath:    rootPath,
	}
	o.workspace.SetRoot(rootPath)
	o.state = StateProjectSet
	o.logger.Info("project %s bound at %s", name, rootPath)
	return nil
}

// requireProject guards pipeline operations that need a bound project.
func (o *Orchestrator) requireProject() error {
	if o.project == nil {
		return fmt.Errorf("no project set")
	}
	return nil
}

// runAgent executes one agent task, recording prompt size and step metrics.
func (o *Orchestrator) runAgent(ctx context.Context, role, prompt string) (string, error) {
	a, ok := o.agents[role]
	if !ok {
		return "", fmt.Errorf("no %s agent", role)
	}

	o.recorder.ObserveTokens(role, o.counter.CountTokens(prompt))

	started := time.Now()
	result, err := a.Run(ctx, prompt)
	status := "success"
	if err != nil {
		status = "error"
	}
	o.recorder.ObserveFeature(role, status, time.Since(started))
	return result, err
}

// AnalyzeRequirements has the architect break requirements into an analysis
// and an ordered feature list. A zero-feature analysis yields one synthetic
// default feature; an empty build is never a terminal success.
func (o *Orchestrator) AnalyzeRequirements(ctx context.Context, requirements string) (string, []Feature, error) {
	if err := o.requireProject(); err != nil {
		return "", nil, err
	}
	o.state = StateAnalyzing

	analysis, err := o.runAgent(ctx, config.RoleArchitect, analyzeRequirementsPrompt(requirements))
	if err != nil {
		return "", nil, fmt.Errorf("requirements analysis failed: %w", err)
	}

	features := o.extractor.Extract(analysis)
	if len(features) == 0 {
		features = DefaultExtractor{}.Extract("")
	}
	o.logger.Info("discovered %d features", len(features))
	return analysis, features, nil
}

// DesignArchitecture has the architect design and scaffold the project
// structure for the discovered features.
func (o *Orchestrator) DesignArchitecture(ctx context.Context, requirements string, features []Feature) (string, error) {
	if err := o.requireProject(); err != nil {
		return "", err
	}
	o.state = StateDesigning

	architecture, err := o.runAgent(ctx, config.RoleArchitect, designArchitecturePrompt(requirements, features))
	if err != nil {
		return "", fmt.Errorf("architecture design failed: %w", err)
	}
	return architecture, nil
}

// ImplementFeature has the developer implement one feature. Executable
// artifacts go through the recovery loop.
func (o *Orchestrator) ImplementFeature(ctx context.Context, feature *Feature, architecture string) (string, error) {
	if err := o.requireProject(); err != nil {
		return "", err
	}
	o.state = StateImplementing

	implementation, err := o.runAgent(ctx, config.RoleDeveloper, implementFeaturePrompt(feature, architecture))
	if err != nil {
		return "", fmt.Errorf("implementing %s failed: %w", feature.Name, err)
	}

	if err := o.verifyArtifact(ctx, implementation, config.RoleDeveloper); err != nil {
		return implementation, err
	}
	return implementation, nil
}

// CreateTests has the tester cover a feature implementation.
func (o *Orchestrator) CreateTests(ctx context.Context, feature *Feature, implementation string) (string, error) {
	if err := o.requireProject(); err != nil {
		return "", err
	}
	o.state = StateTesting

	tests, err := o.runAgent(ctx, config.RoleTester, createTestsPrompt(feature, implementation))
	if err != nil {
		return "", fmt.Errorf("testing %s failed: %w", feature.Name, err)
	}

	if err := o.verifyArtifact(ctx, tests, config.RoleTester); err != nil {
		return tests, err
	}
	return tests, nil
}

// ReviewCode has the reviewer assess the final artifacts of a feature.
func (o *Orchestrator) ReviewCode(ctx context.Context, feature *Feature, implementation, tests string) (string, error) {
	if err := o.requireProject(); err != nil {
		return "", err
	}
	o.state = StateReviewing

	review, err := o.runAgent(ctx, config.RoleReviewer, reviewCodePrompt(feature, implementation, tests))
	if err != nil {
		return "", fmt.Errorf("reviewing %s failed: %w", feature.Name, err)
	}
	return review, nil
}

// verifyArtifact runs any fenced code in the agent's reply through the
// recovery loop. Non-executable replies pass through untouched.
func (o *Orchestrator) verifyArtifact(ctx context.Context, reply, role string) error {
	code, fenced := ExtractCode(reply)
	if !fenced || strings.TrimSpace(code) == "" {
		return nil
	}
	if !o.caps.IsAvailable(tools.GroupTestExecution) {
		return nil
	}

	result, _, err := RunWithRecovery(ctx, code, o.agents[role], o.runner.Execute, o.logger)
	if err != nil {
		o.recorder.IncRepair("inference_error")
		return fmt.Errorf("repair inference failed: %w", err)
	}
	if result.Status != execpkg.StatusSuccess {
		o.recorder.IncRepair("failed")
		return fmt.Errorf("artifact failed after repair attempt: %s (exit %d)\n%s", result.Status, result.ExitCode, result.Stderr)
	}
	o.recorder.IncRepair("recovered")
	return nil
}

// Delegate routes a free-form request through the manager agent.
func (o *Orchestrator) Delegate(ctx context.Context, request string) (string, error) {
	if o.manager == nil {
		return "", fmt.Errorf("manager not constructed")
	}
	return o.manager.Delegate(ctx, request)
}

// DelegateBuild hands the whole project to the manager, which plans and
// delegates the work itself instead of following the fixed pipeline.
func (o *Orchestrator) DelegateBuild(ctx context.Context, requirements string) (string, error) {
	if err := o.requireProject(); err != nil {
		return "", err
	}
	return o.Delegate(ctx, buildApplicationPrompt(o.project.Name, requirements))
}

// BuildApplication runs the full pipeline: analyze, design, then implement,
// test, and review every feature strictly in discovery order. Per-feature
// failures are recorded and do not abort the remaining features.
func (o *Orchestrator) BuildApplication(ctx context.Context, requirements string) (*BuildResult, error) {
	if err := o.requireProject(); err != nil {
		return nil, err
	}

	result := &BuildResult{
		ID:           uuid.NewString(),
		Requirements: requirements,
		StartedAt:    time.Now(),
	}

	o.ensureRepository(ctx)
	o.writeRequirementsDoc(requirements)

	analysis, features, err := o.AnalyzeRequirements(ctx, requirements)
	if err != nil {
		o.state = StateFailed
		return nil, err
	}
	result.Analysis = analysis

	// The feature list is frozen for this pass; later edits to the project
	// context have no effect on it.
	o.project.Features = append([]Feature(nil), features...)

	architecture, err := o.DesignArchitecture(ctx, requirements, features)
	if err != nil {
		o.state = StateFailed
		return nil, err
	}
	result.Architecture = architecture
	o.writeDevelopmentPlan(features, architecture)

	for i := range features {
		result.FeatureResults = append(result.FeatureResults, o.buildFeature(ctx, &features[i], architecture))
	}

	o.state = StateBuildComplete
	result.Project = *o.project
	result.FinishedAt = time.Now()

	status := "success"
	if result.Failed() {
		status = "partial"
	}
	o.recorder.ObserveBuild(status, len(result.FeatureResults), result.FinishedAt.Sub(result.StartedAt))
	o.persist(ctx, result, status)

	return result, nil
}

// buildFeature runs one feature through implement, test, and review, with
// version-control side effects around it. Every failure is captured in the
// returned FeatureResult; nothing propagates to the caller.
func (o *Orchestrator) buildFeature(ctx context.Context, feature *Feature, architecture string) FeatureResult {
	fr := FeatureResult{Feature: *feature, Status: FeatureSuccess}
	o.logger.Info("building feature %q", feature.Name)

	vcs := o.caps.IsAvailable(tools.GroupVersionControl) && o.gh != nil && o.gh.HasRepository()
	if vcs {
		branch := github.BranchNameForFeature(feature.Name)
		if res := o.gh.CreateBranch(ctx, branch, ""); res.Status == github.StatusError {
			o.logger.Warn("branch creation for %q failed: %s", feature.Name, res.Message)
			fr.VCSNote = "branch creation failed: " + res.Message
		} else {
			fr.Branch = branch
		}
	}

	implementation, err := o.ImplementFeature(ctx, feature, architecture)
	fr.Implementation = implementation
	if err != nil {
		fr.Status = FeatureError
		fr.Error = err.Error()
		return fr
	}

	tests, err := o.CreateTests(ctx, feature, implementation)
	fr.Tests = tests
	if err != nil {
		fr.Status = FeatureError
		fr.Error = err.Error()
		return fr
	}

	review, err := o.ReviewCode(ctx, feature, implementation, tests)
	fr.Review = review
	if err != nil {
		fr.Status = FeatureError
		fr.Error = err.Error()
		return fr
	}

	if vcs && fr.Branch != "" {
		o.publishFeature(ctx, feature, &fr)
	}

	return fr
}

// publishFeature commits the feature branch and opens a pull request
// carrying the implementation and test summaries. Best effort only.
func (o *Orchestrator) publishFeature(ctx context.Context, feature *Feature, fr *FeatureResult) {
	commit := o.gh.Commit(ctx, "Implement "+feature.Name, fr.Branch, o.project.RootPath)
	if commit.Status == github.StatusError {
		o.logger.Warn("commit for %q failed: %s", feature.Name, commit.Message)
		fr.VCSNote = "commit failed: " + commit.Message
		return
	}

	body := fmt.Sprintf("## Feature\n%s\n\n## Implementation\n%s\n\n## Tests\n%s\n",
		feature.Description, summarize(fr.Implementation), summarize(fr.Tests))
	pr := o.gh.CreatePullRequest(ctx, "Implement "+feature.Name, body, fr.Branch, "")
	if pr.Status == github.StatusError {
		o.logger.Warn("pull request for %q failed: %s", feature.Name, pr.Message)
		fr.VCSNote = "pull request failed: " + pr.Message
		return
	}
	fr.VCSNote = pr.Message
}

// ensureRepository creates a repository for the project when version control
// is enabled but no repository is configured. Best effort: a failure leaves
// HasRepository false and the build proceeds without VCS side effects.
func (o *Orchestrator) ensureRepository(ctx context.Context) {
	if !o.caps.IsAvailable(tools.GroupVersionControl) || o.gh == nil || o.gh.HasRepository() {
		return
	}
	res := o.gh.CreateRepository(ctx, github.RepoNameForProject(o.project.Name), o.project.Description, false)
	if res.Status == github.StatusError {
		o.logger.Warn("repository creation for %q failed: %s", o.project.Name, res.Message)
	}
}

// writeRequirementsDoc records the build requirements in the project
// directory. Best effort: failures are logged, never raised.
func (o *Orchestrator) writeRequirementsDoc(requirements string) {
	doc := fmt.Sprintf("# Project Requirements\n\n## Project Name\n%s\n\n## Description\n%s\n\n## Requirements\n%s\n",
		o.project.Name, o.project.Description, requirements)
	path := filepath.Join(o.project.RootPath, "project_requirements.md")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil { //nolint:gosec // Project docs are not sensitive
		o.logger.Warn("failed to write %s: %v", path, err)
	}
}

// developmentPlan is the build plan written next to the project sources.
type developmentPlan struct {
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Repository   string    `json:"repository,omitempty"`
	Features     []Feature `json:"features"`
	Architecture string    `json:"architecture"`
	ProjectDir   string    `json:"project_dir"`
	CreatedAt    time.Time `json:"created_at"`
}

// writeDevelopmentPlan records the discovered features and architecture in
// the project directory. Best effort: failures are logged, never raised.
func (o *Orchestrator) writeDevelopmentPlan(features []Feature, architecture string) {
	plan := developmentPlan{
		Name:         o.project.Name,
		Description:  o.project.Description,
		Features:     features,
		Architecture: architecture,
		ProjectDir:   o.project.RootPath,
		CreatedAt:    time.Now(),
	}
	if o.gh != nil && o.gh.HasRepository() {
		plan.Repository = o.gh.RepoPath()
	}

	path := filepath.Join(o.project.RootPath, "development_plan.json")
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		o.logger.Warn("failed to encode development plan: %v", err)
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // Project docs are not sensitive
		o.logger.Warn("failed to write %s: %v", path, err)
	}
}

// summarize truncates long artifact text for PR bodies.
func summarize(text string) string {
	const limit = 2000
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "\n...(truncated)"
}

// persist writes the build to the history store when one is attached.
// Persistence failures are logged, never raised.
func (o *Orchestrator) persist(ctx context.Context, result *BuildResult, status string) {
	if o.store == nil {
		return
	}

	record := &persistence.BuildRecord{
		ID:           result.ID,
		ProjectName:  result.Project.Name,
		ProjectPath:  result.Project.RootPath,
		Requirements: result.Requirements,
		Status:       status,
		StartedAt:    result.StartedAt,
		FinishedAt:   result.FinishedAt,
	}
	for i := range result.FeatureResults {
		fr := &result.FeatureResults[i]
		record.Features = append(record.Features, persistence.FeatureRecord{
			Position:       i,
			Name:           fr.Feature.Name,
			Status:         string(fr.Status),
			Implementation: fr.Implementation,
			Tests:          fr.Tests,
			Review:         fr.Review,
			Error:          fr.Error,
			Branch:         fr.Branch,
		})
	}

	if err := o.store.SaveBuild(ctx, record); err != nil {
		o.logger.Warn("failed to persist build %s: %v", result.ID, err)
	}
}
