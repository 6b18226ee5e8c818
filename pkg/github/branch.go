package github

import (
	"strings"
	"unicode"
)

// BranchNameForFeature derives a deterministic branch name from a feature
// name: lower-cased, whitespace replaced with '-', runes outside
// [a-z0-9._/-] stripped, and a feature/ prefix.
func BranchNameForFeature(featureName string) string {
	var b strings.Builder
	lastDash := false

	for _, r := range strings.ToLower(strings.TrimSpace(featureName)) {
		switch {
		case unicode.IsSpace(r):
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
			lastDash = r == '-'
		default:
			// Invalid ref characters are stripped.
		}
	}

	slug := strings.Trim(b.String(), "-.")
	if slug == "" {
		slug = "feature"
	}
	return "feature/" + slug
}

// RepoNameForProject derives a repository name from a project name:
// lower-cased with whitespace replaced by '-'.
func RepoNameForProject(projectName string) string {
	name := strings.Join(strings.Fields(strings.ToLower(projectName)), "-")
	if name == "" {
		return "project"
	}
	return name
}
