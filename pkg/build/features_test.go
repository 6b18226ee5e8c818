package build

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fencedAnalysis = "The project needs auth and task management.\n\n" +
	"```features\n" +
	"- name: User login\n" +
	"  description: Allow users to sign in\n" +
	"  priority: high\n" +
	"  complexity: low\n" +
	"- name: Task list\n" +
	"  description: Create and complete tasks\n" +
	"  priority: medium\n" +
	"  complexity: medium\n" +
	"```\n\n" +
	"Start with login."

func TestExtract_FencedBlock(t *testing.T) {
	features := DefaultExtractor{}.Extract(fencedAnalysis)

	require.Len(t, features, 2)
	assert.Equal(t, "User login", features[0].Name)
	assert.Equal(t, "Allow users to sign in", features[0].Description)
	assert.Equal(t, "high", features[0].Priority)
	assert.Equal(t, "low", features[0].Complexity)
	assert.Equal(t, "Task list", features[1].Name)
}

func TestExtract_FencedBlockNormalizesLevels(t *testing.T) {
	analysis := "```features\n" +
		"- name: Search\n" +
		"  description: Full text search\n" +
		"  priority: CRITICAL\n" +
		"  complexity: High\n" +
		"```"

	features := DefaultExtractor{}.Extract(analysis)
	require.Len(t, features, 1)
	assert.Equal(t, "medium", features[0].Priority, "unknown levels clamp to medium")
	assert.Equal(t, "high", features[0].Complexity)
}

func TestExtract_FencedBlockSkipsNamelessEntries(t *testing.T) {
	analysis := "```features\n" +
		"- name: \"\"\n" +
		"  description: orphan\n" +
		"- name: Real feature\n" +
		"  description: Does something\n" +
		"```"

	features := DefaultExtractor{}.Extract(analysis)
	require.Len(t, features, 1)
	assert.Equal(t, "Real feature", features[0].Name)
}

func TestExtract_NumberedFallback(t *testing.T) {
	analysis := `Here is my breakdown:

1. User login - allow users to sign in
2) Task list: create and complete tasks
3. Reporting

Each feature builds on the previous one.`

	features := DefaultExtractor{}.Extract(analysis)

	require.Len(t, features, 3)
	assert.Equal(t, "User login", features[0].Name)
	assert.Equal(t, "allow users to sign in", features[0].Description)
	assert.Equal(t, "Task list", features[1].Name)
	assert.Equal(t, "create and complete tasks", features[1].Description)
	assert.Equal(t, "Reporting", features[2].Name)
	assert.Equal(t, "Implement Reporting", features[2].Description)
}

func TestExtract_MalformedFencedFallsBackToNumbered(t *testing.T) {
	analysis := "```features\n: not yaml at all [\n```\n\n1. Only feature - the whole app"

	features := DefaultExtractor{}.Extract(analysis)
	require.Len(t, features, 1)
	assert.Equal(t, "Only feature", features[0].Name)
}

func TestExtract_EmptyAnalysisYieldsDefaultFeature(t *testing.T) {
	tests := []struct {
		name     string
		analysis string
	}{
		{name: "empty string", analysis: ""},
		{name: "prose without features", analysis: "This project is a simple calculator with no structure worth splitting."},
		{name: "empty fenced block", analysis: "```features\n[]\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := DefaultExtractor{}.Extract(tt.analysis)
			require.Len(t, features, 1)
			assert.Equal(t, DefaultFeatureName, features[0].Name)
			assert.Equal(t, "high", features[0].Priority)
		})
	}
}

func TestExtract_OrderIsDiscoveryOrder(t *testing.T) {
	analysis := "1. Third named first\n2. Alpha\n3. Zeta"

	features := DefaultExtractor{}.Extract(analysis)
	require.Len(t, features, 3)
	assert.Equal(t, "Third named first", features[0].Name)
	assert.Equal(t, "Alpha", features[1].Name)
	assert.Equal(t, "Zeta", features[2].Name)
}
