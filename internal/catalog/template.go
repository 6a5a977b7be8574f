package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type templateFile struct {
	Template PromptTemplate `yaml:",inline"`
	Prompt   map[string]any `yaml:"prompt"`
}

// LoadTemplateFile reads the default interviewer template from a YAML file.
// An empty path yields the built-in default.
func LoadTemplateFile(path string) (PromptTemplate, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultTemplate(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PromptTemplate{}, fmt.Errorf("read prompt template: %w", err)
	}
	return ParseTemplate(raw)
}

func ParseTemplate(raw []byte) (PromptTemplate, error) {
	var f templateFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return PromptTemplate{}, fmt.Errorf("parse prompt template: %w", err)
	}
	t := f.Template
	if strings.TrimSpace(t.ID) == "" {
		return PromptTemplate{}, fmt.Errorf("parse prompt template: id is required")
	}
	if len(f.Prompt) > 0 {
		encoded, err := json.Marshal(f.Prompt)
		if err != nil {
			return PromptTemplate{}, fmt.Errorf("encode prompt text: %w", err)
		}
		t.PromptText = encoded
	}
	if t.DurationMinutes <= 0 {
		t.DurationMinutes = 45
	}
	return t, nil
}

// DefaultTemplate is used when neither the session nor its job names a template.
func DefaultTemplate() PromptTemplate {
	return PromptTemplate{
		ID:              "default-agent",
		Name:            "General interviewer",
		Category:        "technical",
		Level:           "mid",
		DurationMinutes: 45,
	}
}
