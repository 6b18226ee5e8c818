package build

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeatureExtractor turns free-form architecture analysis into an ordered
// feature list. Extraction is a collaborator concern; the pipeline only
// requires order preservation and the empty-list fallback.
type FeatureExtractor interface {
	Extract(analysis string) []Feature
}

// fencedFeaturesRe matches a ```features fenced block. The architect is
// prompted to emit its feature list in this form.
var fencedFeaturesRe = regexp.MustCompile("(?s)```features\\s*\\n(.*?)\\n```")

// numberedLineRe matches lines like "1. User login - allows users to sign in".
var numberedLineRe = regexp.MustCompile(`^\s*\d+[.)]\s+(.+)$`)

// DefaultExtractor parses a fenced YAML feature block first and falls back
// to numbered lines. Yields at least one feature regardless of input.
type DefaultExtractor struct{}

// Extract implements FeatureExtractor.
func (DefaultExtractor) Extract(analysis string) []Feature {
	if features := extractFenced(analysis); len(features) > 0 {
		return features
	}
	if features := extractNumbered(analysis); len(features) > 0 {
		return features
	}
	return []Feature{{
		Name:        DefaultFeatureName,
		Description: "The core functionality described by the project requirements",
		Priority:    "high",
		Complexity:  "medium",
	}}
}

// extractFenced parses the ```features YAML block.
func extractFenced(analysis string) []Feature {
	match := fencedFeaturesRe.FindStringSubmatch(analysis)
	if match == nil {
		return nil
	}

	var features []Feature
	if err := yaml.Unmarshal([]byte(match[1]), &features); err != nil {
		return nil
	}

	kept := features[:0]
	for _, f := range features {
		if strings.TrimSpace(f.Name) == "" {
			continue
		}
		f.Name = strings.TrimSpace(f.Name)
		f.Priority = normalizeLevel(f.Priority)
		f.Complexity = normalizeLevel(f.Complexity)
		kept = append(kept, f)
	}
	return kept
}

// extractNumbered parses numbered lines, splitting an optional description
// after a dash or colon.
func extractNumbered(analysis string) []Feature {
	var features []Feature
	for _, line := range strings.Split(analysis, "\n") {
		match := numberedLineRe.FindStringSubmatch(line)
		if match == nil {
			continue
		}

		name := strings.TrimSpace(match[1])
		description := ""
		for _, sep := range []string{" - ", ": "} {
			if before, after, found := strings.Cut(name, sep); found {
				name, description = strings.TrimSpace(before), strings.TrimSpace(after)
				break
			}
		}
		if name == "" {
			continue
		}
		if description == "" {
			description = fmt.Sprintf("Implement %s", name)
		}

		features = append(features, Feature{
			Name:        name,
			Description: description,
			Priority:    "medium",
			Complexity:  "medium",
		})
	}
	return features
}

// normalizeLevel clamps priority/complexity values to the known levels.
func normalizeLevel(level string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}
