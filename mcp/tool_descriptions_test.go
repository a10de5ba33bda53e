package mcp

import (
	"strings"
	"testing"
)

func TestBuildToolDescriptionsCoverage(t *testing.T) {
	t.Parallel()

	descriptions := buildToolDescriptions(Config{})

	if len(descriptions) != len(mcpToolNames) {
		t.Fatalf("expected %d tool descriptions, got %d", len(mcpToolNames), len(descriptions))
	}
	for _, name := range mcpToolNames {
		description, ok := descriptions[name]
		if !ok {
			t.Fatalf("missing description for %s", name)
		}
		if strings.TrimSpace(description) == "" {
			t.Fatalf("empty description for %s", name)
		}
	}
}

func TestBuildToolDescriptionsIncludeOperationalSections(t *testing.T) {
	t.Parallel()

	descriptions := buildToolDescriptions(Config{})
	required := []string{
		"Purpose:",
		"Use when:",
		"Requires:",
		"Effects:",
		"Retry:",
		"Next:",
	}
	for _, name := range mcpToolNames {
		description := descriptions[name]
		for _, marker := range required {
			if !strings.Contains(description, marker) {
				t.Fatalf("description for %s missing marker %q: %q", name, marker, description)
			}
		}
	}
}

func TestBuildToolDescriptionsIncludeUploadCeiling(t *testing.T) {
	t.Parallel()

	descriptions := buildToolDescriptions(Config{})
	if !strings.Contains(descriptions[toolUploadAttachment], "50 MiB") {
		t.Fatalf("upload description missing default ceiling: %q", descriptions[toolUploadAttachment])
	}

	descriptions = buildToolDescriptions(Config{UploadMaxBytes: 1 << 20})
	if !strings.Contains(descriptions[toolUploadAttachment], "1.0 MiB") {
		t.Fatalf("upload description missing configured ceiling: %q", descriptions[toolUploadAttachment])
	}
}
