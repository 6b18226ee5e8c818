package build

import (
	"fmt"
	"strings"

	execpkg "devteam/pkg/exec"
)

// analyzeRequirementsPrompt asks the architect to break requirements into
// features. The fenced features block keeps extraction deterministic while
// leaving the analysis itself free-form.
func analyzeRequirementsPrompt(requirements string) string {
	return fmt.Sprintf(`You are a senior system architect. Analyze the following project requirements and break them down into:

1. Core features (as a list of distinct features)
2. Component architecture (how the system should be structured)
3. Data structures (what data models are needed)
4. External dependencies (what libraries or services are needed)
5. Potential technical challenges

REQUIREMENTS:
%s

After your analysis, list the features in a fenced block exactly like this, one entry per feature, in the order they should be built:

`+"```features"+`
- name: <feature name>
  description: <one-line description>
  priority: high|medium|low
  complexity: high|medium|low
`+"```"+`

Be thorough in your analysis, as this will guide the entire development process. Think step by step.`, requirements)
}

// designArchitecturePrompt asks the architect to design and scaffold the
// project structure.
func designArchitecturePrompt(requirements string, features []Feature) string {
	var list strings.Builder
	for i := range features {
		f := &features[i]
		fmt.Fprintf(&list, "- %s: %s (Priority: %s, Complexity: %s)\n", f.Name, f.Description, f.Priority, f.Complexity)
	}

	return fmt.Sprintf(`You are a senior system architect. Based on the following project requirements and features, design an optimal directory structure for the project.

REQUIREMENTS:
%s

FEATURES:
%s
Please:
1. Design a complete directory structure with all necessary files
2. For each directory, explain its purpose
3. For key files, explain what they should contain
4. Create the base structure using the filesystem tools
5. Create essential files like README.md

The structure should be clean, maintainable, and scalable. After designing the structure, implement it by creating the actual directories and files.`, requirements, list.String())
}

// implementFeaturePrompt asks the developer to implement one feature.
func implementFeaturePrompt(feature *Feature, architecture string) string {
	return fmt.Sprintf(`You are a senior software developer. Implement the following feature for our project:

FEATURE:
Name: %s
Description: %s
Priority: %s
Complexity: %s

PROJECT ARCHITECTURE:
%s

Please:
1. Determine which files need to be created or modified
2. Implement the feature with high-quality code
3. Ensure proper error handling
4. Make your code testable

For each file you create or modify, read it first if it already exists. When you are done, summarize what you implemented and include the main source file content in a fenced code block.`, feature.Name, feature.Description, feature.Priority, feature.Complexity, architecture)
}

// createTestsPrompt asks the tester to cover a feature implementation.
func createTestsPrompt(feature *Feature, implementation string) string {
	return fmt.Sprintf(`You are a senior QA engineer. Create comprehensive tests for the following feature:

FEATURE:
Name: %s
Description: %s

IMPLEMENTATION:
%s

Please:
1. Examine the implementation to understand what needs to be tested
2. Create appropriate test files
3. Write tests for both normal cases and edge cases
4. Test error handling
5. Run the tests and report results

When you are done, summarize the test results and include the test file content in a fenced code block.`, feature.Name, feature.Description, implementation)
}

// reviewCodePrompt asks the reviewer to assess the final artifacts.
func reviewCodePrompt(feature *Feature, implementation, tests string) string {
	return fmt.Sprintf(`You are a senior code reviewer. Review the implementation of the following feature:

FEATURE:
Name: %s
Description: %s

IMPLEMENTATION:
%s

TEST RESULTS:
%s

Please perform a comprehensive code review:
1. Check for code quality, potential bugs, and edge cases
2. Review documentation and design
3. Suggest specific improvements
4. Highlight any security concerns
5. Review test coverage and completeness

Provide a detailed review report that summarizes your findings and recommendations.`, feature.Name, feature.Description, implementation, tests)
}

// repairPrompt feeds an execution failure back to the originating agent.
func repairPrompt(code string, result *execpkg.Result) string {
	return fmt.Sprintf(`The following code failed to execute.

CODE:
%s

EXECUTION RESULT:
Status: %s
Exit code: %d
Stdout:
%s
Stderr:
%s

Fix the code so it runs successfully. Reply with the complete corrected code in a single fenced code block and nothing else.`, code, result.Status, result.ExitCode, result.Stdout, result.Stderr)
}

// buildApplicationPrompt drives the manager's whole-project delegation mode.
func buildApplicationPrompt(projectName, requirements string) string {
	return fmt.Sprintf(`Build a complete application based on the following requirements.

Project Name: %s

REQUIREMENTS:
%s

You are the project manager responsible for coordinating all agents:
1. Use the architect agent to design the system architecture
2. Break down the requirements into individual features
3. For each feature, have the developer implement it, the tester test it, and the reviewer review it
4. Ensure all components work together cohesively

Your goal is to deliver a fully functional, well-tested application.`, projectName, requirements)
}
