package build

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devteam/pkg/agent"
	"devteam/pkg/config"
	execpkg "devteam/pkg/exec"
	"devteam/pkg/github"
	"devteam/pkg/llm"
	"devteam/pkg/persistence"
	"devteam/pkg/tools"
)

func pipelineConfig() *config.Config {
	mk := func(id string) config.AgentModelConfig {
		return config.AgentModelConfig{
			ModelID:     id,
			Provider:    config.ProviderAnthropic,
			Temperature: 0.2,
			MaxTokens:   1024,
		}
	}
	return &config.Config{
		Agents: map[string]config.AgentModelConfig{
			config.RoleArchitect: mk("architect-model"),
			config.RoleDeveloper: mk("developer-model"),
			config.RoleTester:    mk("tester-model"),
			config.RoleReviewer:  mk("reviewer-model"),
		},
		Interpreter: []string{"python3"},
	}
}

// factoryFor routes each role's model id to its scripted mock client.
func factoryFor(clients map[string]llm.Client) agent.ClientFactory {
	return func(ac config.AgentModelConfig) (llm.Client, error) {
		if client, ok := clients[ac.ModelID]; ok {
			return client, nil
		}
		return agent.NewMockLLMClient(nil, nil), nil
	}
}

func lastUser(in llm.CompletionRequest) string {
	return in.Messages[len(in.Messages)-1].Content
}

// plainClient always replies with the same text and no tool calls.
func plainClient(text string) *agent.MockLLMClient {
	c := agent.NewMockLLMClient(nil, nil)
	c.CompleteFunc = func(context.Context, llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: text, StopReason: "end_turn"}, nil
	}
	return c
}

// architectClient answers the analysis prompt with analysis and everything
// else with architecture.
func architectClient(analysis, architecture string) *agent.MockLLMClient {
	c := agent.NewMockLLMClient(nil, nil)
	c.CompleteFunc = func(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
		if strings.Contains(lastUser(in), "```features") {
			return llm.CompletionResponse{Content: analysis}, nil
		}
		return llm.CompletionResponse{Content: architecture}, nil
	}
	return c
}

// promptClient routes replies by prompt content.
func promptClient(replyFor func(prompt string) string) *agent.MockLLMClient {
	c := agent.NewMockLLMClient(nil, nil)
	c.CompleteFunc = func(_ context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
		return llm.CompletionResponse{Content: replyFor(lastUser(in))}, nil
	}
	return c
}

// artifactExecutor reads each artifact back and fails the ones failWhen
// selects.
type artifactExecutor struct {
	failWhen  func(code string) bool
	mu        sync.Mutex
	artifacts []string
}

func (e *artifactExecutor) Run(_ context.Context, cmd []string, _ *execpkg.Opts) (execpkg.Result, error) {
	data, err := os.ReadFile(cmd[len(cmd)-1])
	if err != nil {
		return execpkg.Result{Status: execpkg.StatusError, ExitCode: -1}, err
	}
	code := string(data)

	e.mu.Lock()
	e.artifacts = append(e.artifacts, code)
	e.mu.Unlock()

	if e.failWhen != nil && e.failWhen(code) {
		return execpkg.Result{Status: execpkg.StatusError, ExitCode: 1, Stderr: "Traceback: boom"}, nil
	}
	return execpkg.Result{Status: execpkg.StatusSuccess}, nil
}

func (e *artifactExecutor) Name() string    { return "artifact" }
func (e *artifactExecutor) Available() bool { return true }

func (e *artifactExecutor) count(code string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for _, a := range e.artifacts {
		if a == code {
			n++
		}
	}
	return n
}

func defaultClients() map[string]llm.Client {
	return map[string]llm.Client{
		"architect-model": architectClient(fencedAnalysis, "Standard three-tier layout."),
		"developer-model": plainClient("Implemented the feature in src/app.py."),
		"tester-model":    plainClient("All tests pass."),
		"reviewer-model":  plainClient("Looks good."),
	}
}

func newPipeline(t *testing.T, cfg *config.Config, clients map[string]llm.Client, executor execpkg.Executor, opts ...Option) *Orchestrator {
	t.Helper()

	all := append([]Option{
		WithClientFactory(factoryFor(clients)),
		WithExecutor(executor),
	}, opts...)

	o, err := New(context.Background(), cfg, all...)
	require.NoError(t, err)
	require.NoError(t, o.SetProject("demo", "a demo project", t.TempDir()))
	return o
}

func TestNew_FilesystemCapabilityIsMandatory(t *testing.T) {
	_, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
		WithCapability(tools.GroupFilesystem, false),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "filesystem")
}

func TestNew_AggregatesAllMissingModels(t *testing.T) {
	cfg := pipelineConfig()
	delete(cfg.Agents, config.RoleTester)
	delete(cfg.Agents, config.RoleReviewer)

	_, err := New(context.Background(), cfg,
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agents.tester.model_id is not set")
	assert.Contains(t, err.Error(), "agents.reviewer.model_id is not set")
}

func TestNew_CapabilitiesFollowExecutor(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	caps := o.Capabilities()
	assert.True(t, caps.IsAvailable(tools.GroupFilesystem))
	assert.True(t, caps.IsAvailable(tools.GroupStaticAnalysis))
	assert.True(t, caps.IsAvailable(tools.GroupTestExecution))
	assert.False(t, caps.IsAvailable(tools.GroupVersionControl), "no credentials, no version control")
	assert.Equal(t, StateAgentsReady, o.State())

	for _, role := range config.MandatoryRoles() {
		_, ok := o.Agent(role)
		assert.True(t, ok, "missing %s agent", role)
	}
}

func TestSetProject(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, o.SetProject("demo", "a demo", dir))
	assert.Equal(t, StateProjectSet, o.State())
	require.NotNil(t, o.Project())
	assert.Equal(t, "demo", o.Project().Name)
	assert.Equal(t, dir, o.Project().RootPath)
}

func TestSetProject_InvalidPath(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	var pathErr *InvalidProjectPathError
	err = o.SetProject("demo", "", "/does/not/exist")
	require.Error(t, err)
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "/does/not/exist", pathErr.Path)

	file := filepath.Join(t.TempDir(), "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err = o.SetProject("demo", "", file)
	require.Error(t, err)
	require.ErrorAs(t, err, &pathErr)
	assert.Equal(t, "not a directory", pathErr.Reason)
}

func TestSetProject_RebindDiscardsState(t *testing.T) {
	o := newPipeline(t, pipelineConfig(), defaultClients(), &artifactExecutor{})

	_, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)
	require.NotEmpty(t, o.Project().Features)

	next := t.TempDir()
	require.NoError(t, o.SetProject("other", "fresh start", next))
	assert.Equal(t, "other", o.Project().Name)
	assert.Equal(t, next, o.Project().RootPath)
	assert.Empty(t, o.Project().Features, "rebinding discards the previous feature list")
	assert.Equal(t, StateProjectSet, o.State())
}

func TestAnalyzeRequirements_EmptyAnalysisYieldsDefaultFeature(t *testing.T) {
	clients := defaultClients()
	clients["architect-model"] = plainClient("This is a trivial calculator, nothing to split up.")
	o := newPipeline(t, pipelineConfig(), clients, &artifactExecutor{})

	_, features, err := o.AnalyzeRequirements(context.Background(), "a calculator")
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, DefaultFeatureName, features[0].Name)
}

func TestAnalyzeRequirements_RequiresProject(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	_, _, err = o.AnalyzeRequirements(context.Background(), "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project set")
}

func TestBuildApplication(t *testing.T) {
	store, err := persistence.Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer store.Close()

	o := newPipeline(t, pipelineConfig(), defaultClients(), &artifactExecutor{}, WithStore(store))

	result, err := o.BuildApplication(context.Background(), "a todo app with login")
	require.NoError(t, err)

	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "a todo app with login", result.Requirements)
	assert.Contains(t, result.Analysis, "```features")
	assert.Equal(t, "Standard three-tier layout.", result.Architecture)
	assert.False(t, result.Failed())
	assert.Equal(t, StateBuildComplete, o.State())

	require.Len(t, result.FeatureResults, 2)
	assert.Equal(t, "User login", result.FeatureResults[0].Feature.Name)
	assert.Equal(t, "Task list", result.FeatureResults[1].Feature.Name)
	for _, fr := range result.FeatureResults {
		assert.Equal(t, FeatureSuccess, fr.Status)
		assert.NotEmpty(t, fr.Implementation)
		assert.NotEmpty(t, fr.Tests)
		assert.NotEmpty(t, fr.Review)
		assert.Empty(t, fr.Error)
	}

	// The discovered feature list is frozen on the project context.
	require.Len(t, o.Project().Features, 2)
	assert.Equal(t, "User login", o.Project().Features[0].Name)

	// The build was persisted with its features in order.
	record, err := store.GetBuild(context.Background(), result.ID)
	require.NoError(t, err)
	assert.Equal(t, "success", record.Status)
	require.Len(t, record.Features, 2)
	assert.Equal(t, "User login", record.Features[0].Name)
	assert.Equal(t, "Task list", record.Features[1].Name)
}

const threeFeatureAnalysis = "Breakdown below.\n" +
	"```features\n" +
	"- name: User login\n" +
	"  description: Sign in\n" +
	"  priority: high\n" +
	"  complexity: low\n" +
	"- name: Broken sync\n" +
	"  description: Sync data\n" +
	"  priority: medium\n" +
	"  complexity: high\n" +
	"- name: Reporting\n" +
	"  description: Usage reports\n" +
	"  priority: low\n" +
	"  complexity: medium\n" +
	"```\n"

func TestBuildApplication_FeatureFailureDoesNotAbortOthers(t *testing.T) {
	executor := &artifactExecutor{
		failWhen: func(code string) bool { return strings.Contains(code, "BOOM") },
	}

	clients := defaultClients()
	clients["architect-model"] = architectClient(threeFeatureAnalysis, "Standard layout.")
	clients["developer-model"] = promptClient(func(prompt string) string {
		switch {
		case strings.Contains(prompt, "failed to execute"):
			return "```python\nBOOM\n```"
		case strings.Contains(prompt, "Name: Broken sync"):
			return "```python\nBOOM\n```"
		default:
			return "Implemented the feature in src/app.py."
		}
	})

	o := newPipeline(t, pipelineConfig(), clients, executor)

	result, err := o.BuildApplication(context.Background(), "an app with three features")
	require.NoError(t, err, "per-feature failures never abort the build")

	require.Len(t, result.FeatureResults, 3)
	assert.Equal(t, "User login", result.FeatureResults[0].Feature.Name)
	assert.Equal(t, "Broken sync", result.FeatureResults[1].Feature.Name)
	assert.Equal(t, "Reporting", result.FeatureResults[2].Feature.Name)

	assert.Equal(t, FeatureSuccess, result.FeatureResults[0].Status)
	assert.Equal(t, FeatureError, result.FeatureResults[1].Status)
	assert.Equal(t, FeatureSuccess, result.FeatureResults[2].Status)

	failed := result.FeatureResults[1]
	assert.Contains(t, failed.Error, "after repair attempt")
	assert.NotEmpty(t, failed.Implementation, "the failing reply is still recorded")
	assert.Empty(t, failed.Tests, "a failed implementation skips the remaining steps")
	assert.Empty(t, failed.Review)

	assert.True(t, result.Failed())
	assert.Equal(t, 2, executor.count("BOOM"), "one original execution plus one repaired execution")
}

func TestBuildApplication_ArtifactRecovers(t *testing.T) {
	executor := &artifactExecutor{
		failWhen: func(code string) bool { return strings.Contains(code, "BOOM") },
	}

	clients := defaultClients()
	clients["developer-model"] = promptClient(func(prompt string) string {
		if strings.Contains(prompt, "failed to execute") {
			return "```python\nprint('fixed')\n```"
		}
		return "```python\nBOOM\n```"
	})

	o := newPipeline(t, pipelineConfig(), clients, executor)

	result, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)
	assert.False(t, result.Failed())
	assert.Equal(t, 2, executor.count("BOOM"), "one failing execution per feature")
	assert.Equal(t, 2, executor.count("print('fixed')"), "both features recover through repair")
}

func TestBuildApplication_NoExecutionWithoutTestExecutionCapability(t *testing.T) {
	executor := &artifactExecutor{
		failWhen: func(string) bool { return true },
	}

	clients := defaultClients()
	clients["developer-model"] = plainClient("```python\nBOOM\n```")

	o := newPipeline(t, pipelineConfig(), clients, executor,
		WithCapability(tools.GroupTestExecution, false),
	)

	result, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)
	assert.False(t, result.Failed(), "artifacts are not executed when the capability is off")
	assert.Empty(t, executor.artifacts)
}

func TestBuildApplication_VCSFailureDoesNotFailFeature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))
	defer srv.Close()

	gh, err := github.NewClient(context.Background(), "ghp_test", "owner", "repo")
	require.NoError(t, err)
	gh, err = gh.WithBaseURL(srv.URL + "/")
	require.NoError(t, err)

	cfg := pipelineConfig()
	cfg.GitHub = config.GitHubConfig{Token: "ghp_test", Username: "owner", Repository: "repo"}

	o := newPipeline(t, cfg, defaultClients(), &artifactExecutor{},
		WithGitHubClient(gh),
		WithCapability(tools.GroupVersionControl, true),
	)

	result, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)
	assert.False(t, result.Failed(), "version-control failures never fail a feature")

	for _, fr := range result.FeatureResults {
		assert.Equal(t, FeatureSuccess, fr.Status)
		assert.Empty(t, fr.Branch)
		assert.Contains(t, fr.VCSNote, "branch creation failed")
	}
}

func TestImplementFeature_RequiresProject(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	feature := Feature{Name: "User login", Description: "Sign in"}
	_, err = o.ImplementFeature(context.Background(), &feature, "layout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project set")
}

func TestBuildApplication_WritesProjectDocs(t *testing.T) {
	o := newPipeline(t, pipelineConfig(), defaultClients(), &artifactExecutor{})

	_, err := o.BuildApplication(context.Background(), "a todo app with login")
	require.NoError(t, err)
	root := o.Project().RootPath

	doc, err := os.ReadFile(filepath.Join(root, "project_requirements.md"))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "# Project Requirements")
	assert.Contains(t, string(doc), "demo")
	assert.Contains(t, string(doc), "a todo app with login")

	data, err := os.ReadFile(filepath.Join(root, "development_plan.json"))
	require.NoError(t, err)

	var plan struct {
		Name         string    `json:"name"`
		Features     []Feature `json:"features"`
		Architecture string    `json:"architecture"`
		ProjectDir   string    `json:"project_dir"`
	}
	require.NoError(t, json.Unmarshal(data, &plan))
	assert.Equal(t, "demo", plan.Name)
	assert.Equal(t, "Standard three-tier layout.", plan.Architecture)
	assert.Equal(t, root, plan.ProjectDir)
	require.Len(t, plan.Features, 2)
	assert.Equal(t, "User login", plan.Features[0].Name)
	assert.Equal(t, "Task list", plan.Features[1].Name)
}

// okExecutor reports success for every command, standing in for git.
type okExecutor struct{}

func (okExecutor) Run(context.Context, []string, *execpkg.Opts) (execpkg.Result, error) {
	return execpkg.Result{Status: execpkg.StatusSuccess}, nil
}
func (okExecutor) Name() string    { return "ok" }
func (okExecutor) Available() bool { return true }

func TestBuildApplication_CreatesRepositoryWhenNoneConfigured(t *testing.T) {
	var repoCreated atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/user/repos"):
			repoCreated.Store(true)
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"name":"demo","html_url":"https://github.example/owner/demo"}`)
		case strings.Contains(r.URL.Path, "/git/ref/"):
			fmt.Fprint(w, `{"ref":"refs/heads/main","object":{"sha":"abc123"}}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/git/refs"):
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"ref":"refs/heads/feature/user-login","object":{"sha":"abc123"}}`)
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/pulls"):
			w.WriteHeader(http.StatusCreated)
			fmt.Fprint(w, `{"number":1,"html_url":"https://github.example/owner/demo/pull/1"}`)
		default:
			fmt.Fprint(w, `{}`)
		}
	}))
	defer srv.Close()

	gh, err := github.NewClient(context.Background(), "ghp_test", "owner", "")
	require.NoError(t, err)
	gh, err = gh.WithBaseURL(srv.URL + "/")
	require.NoError(t, err)
	gh = gh.WithExecutor(okExecutor{})

	cfg := pipelineConfig()
	cfg.GitHub = config.GitHubConfig{Token: "ghp_test", Username: "owner"}

	o := newPipeline(t, cfg, defaultClients(), &artifactExecutor{},
		WithGitHubClient(gh),
		WithCapability(tools.GroupVersionControl, true),
	)

	result, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)

	assert.True(t, repoCreated.Load())
	assert.True(t, gh.HasRepository())
	assert.Equal(t, "owner/demo", gh.RepoPath())
	for _, fr := range result.FeatureResults {
		assert.Equal(t, FeatureSuccess, fr.Status)
		assert.NotEmpty(t, fr.Branch, "branch work starts once the repository exists")
	}

	data, err := os.ReadFile(filepath.Join(o.Project().RootPath, "development_plan.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"repository": "owner/demo"`)
}

func TestBuildApplication_RepositoryCreationFailureIsNotFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprint(w, `{"message":"boom"}`)
	}))
	defer srv.Close()

	gh, err := github.NewClient(context.Background(), "ghp_test", "owner", "")
	require.NoError(t, err)
	gh, err = gh.WithBaseURL(srv.URL + "/")
	require.NoError(t, err)

	cfg := pipelineConfig()
	cfg.GitHub = config.GitHubConfig{Token: "ghp_test", Username: "owner"}

	o := newPipeline(t, cfg, defaultClients(), &artifactExecutor{},
		WithGitHubClient(gh),
		WithCapability(tools.GroupVersionControl, true),
	)

	result, err := o.BuildApplication(context.Background(), "a todo app")
	require.NoError(t, err)
	assert.False(t, gh.HasRepository())
	assert.False(t, result.Failed())
	for _, fr := range result.FeatureResults {
		assert.Empty(t, fr.Branch)
	}
}

func TestDelegateBuild(t *testing.T) {
	clients := defaultClients()
	clients["architect-model"] = promptClient(func(prompt string) string {
		if strings.Contains(prompt, "Build a complete application") && strings.Contains(prompt, "demo") {
			return "FINAL\nDelivered a working todo app."
		}
		return "Standard layout."
	})

	o := newPipeline(t, pipelineConfig(), clients, &artifactExecutor{})

	summary, err := o.DelegateBuild(context.Background(), "a todo app")
	require.NoError(t, err)
	assert.Equal(t, "Delivered a working todo app.", summary)
}

func TestDelegateBuild_RequiresProject(t *testing.T) {
	o, err := New(context.Background(), pipelineConfig(),
		WithClientFactory(factoryFor(defaultClients())),
		WithExecutor(&artifactExecutor{}),
	)
	require.NoError(t, err)

	_, err = o.DelegateBuild(context.Background(), "a todo app")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no project set")
}

func TestDelegate(t *testing.T) {
	clients := defaultClients()
	// The manager shares the architect's model configuration, so its mock
	// must answer the delegation protocol as well.
	clients["architect-model"] = promptClient(func(prompt string) string {
		if strings.Contains(prompt, "summarize the project") {
			return "FINAL\nThe project has two modules."
		}
		return "Standard layout."
	})

	o := newPipeline(t, pipelineConfig(), clients, &artifactExecutor{})

	result, err := o.Delegate(context.Background(), "summarize the project")
	require.NoError(t, err)
	assert.Equal(t, "The project has two modules.", result)
}
