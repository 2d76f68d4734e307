package genai

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type promptSet struct {
	Router    string `yaml:"router"`
	Judge     string `yaml:"judge"`
	Responder string `yaml:"responder"`
	Grounded  string `yaml:"grounded"`
	Planner   string `yaml:"planner"`
}

func loadPrompts() (*promptSet, error) {
	var p promptSet
	if err := yaml.Unmarshal(promptsYAML, &p); err != nil {
		return nil, fmt.Errorf("parse embedded prompts: %w", err)
	}
	if p.Router == "" || p.Judge == "" || p.Responder == "" || p.Grounded == "" || p.Planner == "" {
		return nil, fmt.Errorf("embedded prompts incomplete")
	}
	return &p, nil
}
