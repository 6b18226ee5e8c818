package agent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"devteam/pkg/config"
	"devteam/pkg/llm"
)

func TestParseDelegation(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantRole string
		wantTask string
		wantOK   bool
	}{
		{
			name:     "simple delegation",
			content:  "DELEGATE developer\nImplement the login endpoint",
			wantRole: "developer",
			wantTask: "Implement the login endpoint",
			wantOK:   true,
		},
		{
			name:     "multi-line sub-task",
			content:  "DELEGATE tester\nWrite tests for:\n- login\n- logout",
			wantRole: "tester",
			wantTask: "Write tests for:\n- login\n- logout",
			wantOK:   true,
		},
		{
			name:     "role is lower-cased",
			content:  "DELEGATE Architect\nDesign the schema",
			wantRole: "architect",
			wantTask: "Design the schema",
			wantOK:   true,
		},
		{name: "final reply", content: "FINAL\nAll features are done.", wantOK: false},
		{name: "plain text", content: "I think we should start with the API.", wantOK: false},
		{name: "delegate without task", content: "DELEGATE developer", wantOK: false},
		{name: "delegate without role", content: "DELEGATE\nDo something", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			role, task, ok := parseDelegation(tt.content)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantRole, role)
				assert.Equal(t, tt.wantTask, task)
			}
		})
	}
}

func buildTeamMember(t *testing.T, role string, client llm.Client) *RoleAgent {
	t.Helper()
	builder, _ := testBuilder(t, testConfig(), client, nil)
	a, err := builder.RoleAgent(role)
	require.NoError(t, err)
	return a
}

func TestDelegate(t *testing.T) {
	managerMock := NewMockLLMClient([]llm.CompletionResponse{
		{Content: "DELEGATE developer\nImplement the login endpoint"},
		{Content: "FINAL\nLogin endpoint implemented and verified."},
	}, nil)
	developerMock := NewMockLLMClient([]llm.CompletionResponse{
		{Content: "Implemented login in auth.py"},
	}, nil)

	team := map[string]*RoleAgent{
		config.RoleDeveloper: buildTeamMember(t, config.RoleDeveloper, developerMock),
	}

	builder, _ := testBuilder(t, testConfig(), managerMock, nil)
	manager, err := builder.Manager(team)
	require.NoError(t, err)

	result, err := manager.Delegate(context.Background(), "build login")
	require.NoError(t, err)
	assert.Equal(t, "Login endpoint implemented and verified.", result)

	// The developer received the manager's sub-task, not the original request.
	require.NotEmpty(t, developerMock.Requests)
	assert.Equal(t, "Implement the login endpoint", developerMock.Requests[0].Messages[1].Content)

	// The developer's report was fed back to the manager.
	second := managerMock.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Contains(t, last.Content, "Report from developer")
	assert.Contains(t, last.Content, "Implemented login in auth.py")
}

func TestDelegate_UnknownRoleIsReportedBack(t *testing.T) {
	managerMock := NewMockLLMClient([]llm.CompletionResponse{
		{Content: "DELEGATE designer\nMake it pretty"},
		{Content: "FINAL\nDone without the designer."},
	}, nil)

	builder, _ := testBuilder(t, testConfig(), managerMock, nil)
	manager, err := builder.Manager(map[string]*RoleAgent{})
	require.NoError(t, err)

	result, err := manager.Delegate(context.Background(), "build something")
	require.NoError(t, err)
	assert.Equal(t, "Done without the designer.", result)

	second := managerMock.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Contains(t, last.Content, "no designer on the team")
}

func TestDelegate_MemberFailureIsReportedBack(t *testing.T) {
	managerMock := NewMockLLMClient([]llm.CompletionResponse{
		{Content: "DELEGATE developer\nImplement the login endpoint"},
		{Content: "FINAL\nCould not complete the implementation."},
	}, nil)
	developerMock := NewMockLLMClient(nil, []error{fmt.Errorf("rate limited")})

	team := map[string]*RoleAgent{
		config.RoleDeveloper: buildTeamMember(t, config.RoleDeveloper, developerMock),
	}

	builder, _ := testBuilder(t, testConfig(), managerMock, nil)
	manager, err := builder.Manager(team)
	require.NoError(t, err)

	result, err := manager.Delegate(context.Background(), "build login")
	require.NoError(t, err)
	assert.Equal(t, "Could not complete the implementation.", result)

	second := managerMock.Requests[1]
	last := second.Messages[len(second.Messages)-1]
	assert.Contains(t, last.Content, "developer agent failed")
}

func TestManager_FallsBackToArchitectModel(t *testing.T) {
	cfg := testConfig()
	var captured []config.AgentModelConfig
	builder, _ := testBuilder(t, cfg, NewMockLLMClient(nil, nil), nil)
	builder.NewClient = func(ac config.AgentModelConfig) (llm.Client, error) {
		captured = append(captured, ac)
		return NewMockLLMClient(nil, nil), nil
	}

	_, err := builder.Manager(map[string]*RoleAgent{})
	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, cfg.Agents[config.RoleArchitect].ModelID, captured[0].ModelID)
}

func TestManagerSystemPrompt(t *testing.T) {
	developerMock := NewMockLLMClient(nil, nil)
	team := map[string]*RoleAgent{
		config.RoleDeveloper: buildTeamMember(t, config.RoleDeveloper, developerMock),
		config.RoleTester:    buildTeamMember(t, config.RoleTester, developerMock),
	}

	prompt := managerSystemPrompt(team)
	assert.Contains(t, prompt, "DELEGATE <role>")
	assert.Contains(t, prompt, "FINAL")
	assert.Contains(t, prompt, "- developer:")
	assert.Contains(t, prompt, "- tester:")
}
