package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type rawConfig struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description"`
	Inputs      map[string]*Input `yaml:"inputs"`
	Pipeline    yaml.Node         `yaml:"pipeline"`
}

// Load reads and validates a project configuration file.
func Load(filename string) (*Project, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	project, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return project, nil
}

// Parse decodes a project configuration document and validates it. Stage
// order within the pipeline is semantic, so the pipeline mapping is decoded
// through a yaml.Node to preserve declaration order.
func Parse(data []byte) (*Project, error) {
	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	project := &Project{
		Name:        raw.Name,
		Description: raw.Description,
		Inputs:      raw.Inputs,
	}
	if project.Inputs == nil {
		project.Inputs = map[string]*Input{}
	}

	stages, err := decodePipeline(&raw.Pipeline)
	if err != nil {
		return nil, err
	}
	project.Pipeline = stages

	if err := project.Validate(); err != nil {
		return nil, err
	}
	return project, nil
}

func decodePipeline(node *yaml.Node) ([]*Stage, error) {
	if node.Kind == 0 {
		return nil, configErr("project", "pipeline", "pipeline is required")
	}
	if node.Kind != yaml.MappingNode {
		return nil, configErr("project", "pipeline", "pipeline must be a mapping of stage name to actions")
	}

	var stages []*Stage
	for i := 0; i < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		var actions []*Action
		if err := valueNode.Decode(&actions); err != nil {
			return nil, configErr("stage "+keyNode.Value, "actions", "failed to decode actions: %v", err)
		}

		stages = append(stages, &Stage{Name: keyNode.Value, Actions: actions})
	}
	return stages, nil
}
