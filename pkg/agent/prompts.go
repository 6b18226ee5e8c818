package agent

import (
	"fmt"
	"sort"
	"strings"

	"devteam/pkg/config"
	"devteam/pkg/tools"
)

// roleDescriptions summarizes what each role specializes in. The manager
// uses these to decide which agent a sub-task belongs to.
//
//nolint:gochecknoglobals // static role metadata
var roleDescriptions = map[string]string{
	config.RoleArchitect: "Designs the overall system architecture and component relationships. " +
		"Specializes in creating efficient, maintainable software structures " +
		"and determining the best design patterns for the requirements.",
	config.RoleDeveloper: "Implements code based on requirements and architecture designs. " +
		"Specializes in writing clean, efficient, and maintainable code " +
		"with proper error handling and documentation.",
	config.RoleTester: "Creates and runs tests to validate implemented code. " +
		"Specializes in writing comprehensive test suites that cover " +
		"both normal cases and edge cases to ensure code quality.",
	config.RoleReviewer: "Reviews code quality and generates documentation. " +
		"Specializes in identifying potential issues, suggesting improvements, " +
		"and ensuring code meets best practices and standards.",
}

// RoleDescription returns the specialization summary for a role.
func RoleDescription(role string) string {
	return roleDescriptions[role]
}

// roleSystemPrompt renders the persona, tool documentation, and import
// allow-list an agent carries into every conversation.
func roleSystemPrompt(role string, bound []tools.Tool, imports []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s agent on a software development team.\n\n", role)
	if desc := roleDescriptions[role]; desc != "" {
		b.WriteString(desc)
		b.WriteString("\n\n")
	}
	b.WriteString("Work step by step. Use the available tools to inspect and change the project. ")
	b.WriteString("When the task is complete, reply with your final answer and no tool calls.\n\n")
	b.WriteString(tools.Documentation(bound))
	if len(imports) > 0 {
		b.WriteString("\nCode you write may only import these modules: ")
		b.WriteString(strings.Join(imports, ", "))
		b.WriteString(".\n")
	}
	return b.String()
}

// managerSystemPrompt renders the delegation protocol the manager follows.
// The team map is iterated in sorted order so the prompt is reproducible.
func managerSystemPrompt(team map[string]*RoleAgent) string {
	roles := make([]string, 0, len(team))
	for role := range team {
		roles = append(roles, role)
	}
	sort.Strings(roles)

	var b strings.Builder
	b.WriteString("You are the project manager responsible for coordinating a team of specialist agents.\n\n")
	b.WriteString("Your team:\n")
	for _, role := range roles {
		fmt.Fprintf(&b, "- %s: %s\n", role, roleDescriptions[role])
	}
	b.WriteString("\nTo hand a sub-task to a team member, reply with exactly:\n")
	b.WriteString("DELEGATE <role>\n<sub-task description>\n\n")
	b.WriteString("The member's report will be returned to you. When the overall task is done, reply with exactly:\n")
	b.WriteString("FINAL\n<your summary>\n")
	return b.String()
}
