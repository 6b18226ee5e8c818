// Package build implements the project pipeline: requirements analysis,
// architecture design, and the per-feature implement/test/review sequence,
// driven by the role agents.
package build

import "time"

// State names the orchestrator's position in the pipeline.
type State string

// Pipeline states. Failed is terminal and reachable from any state.
const (
	StateUninitialized State = "uninitialized"
	StateToolsReady    State = "tools_ready"
	StateAgentsReady   State = "agents_ready"
	StateProjectSet    State = "project_set"
	StateAnalyzing     State = "analyzing_requirements"
	StateDesigning     State = "designing_architecture"
	StateImplementing  State = "implementing_feature"
	StateTesting       State = "testing_feature"
	StateReviewing     State = "reviewing_feature"
	StateBuildComplete State = "build_complete"
	StateFailed        State = "failed"
)

// ProjectContext binds a build to a project on disk. Feature order is
// discovery order and is preserved through the pipeline.
type ProjectContext struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	RootPath    string    `json:"root_path"`
	Features    []Feature `json:"features,omitempty"`
}

// Feature is one unit of work discovered from the architecture analysis.
type Feature struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Priority    string `json:"priority" yaml:"priority"`
	Complexity  string `json:"complexity" yaml:"complexity"`
}

// DefaultFeatureName is the synthetic feature used when analysis yields no
// features. Building nothing is never a successful outcome.
const DefaultFeatureName = "Core Functionality"

// FeatureStatus tags the outcome of one feature's pipeline pass.
type FeatureStatus string

// Feature outcomes.
const (
	FeatureSuccess FeatureStatus = "success"
	FeatureError   FeatureStatus = "error"
)

// FeatureResult carries everything the pipeline produced for one feature.
// VCSNote records side-effect outcomes without affecting Status.
type FeatureResult struct {
	Feature        Feature       `json:"feature"`
	Implementation string        `json:"implementation,omitempty"`
	Tests          string        `json:"tests,omitempty"`
	Review         string        `json:"review,omitempty"`
	Status         FeatureStatus `json:"status"`
	Error          string        `json:"error,omitempty"`
	Branch         string        `json:"branch,omitempty"`
	VCSNote        string        `json:"vcs_note,omitempty"`
}

// BuildResult is the final aggregate of a full pipeline pass. FeatureResults
// preserve feature discovery order.
type BuildResult struct {
	ID             string          `json:"id"`
	Project        ProjectContext  `json:"project"`
	Requirements   string          `json:"requirements"`
	Analysis       string          `json:"analysis,omitempty"`
	Architecture   string          `json:"architecture,omitempty"`
	FeatureResults []FeatureResult `json:"feature_results"`
	StartedAt      time.Time       `json:"started_at"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Failed reports whether any feature ended in error.
func (r *BuildResult) Failed() bool {
	for i := range r.FeatureResults {
		if r.FeatureResults[i].Status == FeatureError {
			return true
		}
	}
	return false
}
