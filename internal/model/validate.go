package model

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a malformed or inconsistent project
// configuration. It identifies the offending entity and field so callers can
// surface an actionable message.
type ConfigurationError struct {
	Entity  string
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid configuration: %s: %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Entity, e.Message)
}

func configErr(entity, field, format string, args ...any) error {
	return &ConfigurationError{Entity: entity, Field: field, Message: fmt.Sprintf(format, args...)}
}

// validIdentifier reports whether name is safe for every generated naming
// scheme. Logical names join role tokens with a digit separator, so only
// letters and digits are allowed, starting with a letter.
func validIdentifier(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Validate normalizes and validates the project in place. It must succeed
// before any template is built; on failure no partial normalization is
// meaningful and the project must be discarded.
//
// Validation is a pure function of the configuration: the same input always
// yields the same normalized project or the same error.
func (p *Project) Validate() error {
	if !validIdentifier(p.Name) {
		return configErr("project", "name", "%q is not a valid identifier", p.Name)
	}

	if len(p.Pipeline) == 0 {
		return configErr("project", "pipeline", "at least one stage is required")
	}

	for name, input := range p.Inputs {
		if !validIdentifier(name) {
			return configErr("input "+name, "name", "%q is not a valid identifier", name)
		}
		input.Name = name
	}

	// Stage names feed lowercased stack names and file names, so uniqueness
	// is case-insensitive.
	seen := map[string]bool{}
	for _, stage := range p.Pipeline {
		if !validIdentifier(stage.Name) {
			return configErr("stage "+stage.Name, "name", "%q is not a valid identifier", stage.Name)
		}
		lower := strings.ToLower(stage.Name)
		if seen[lower] {
			return configErr("stage "+stage.Name, "name", "duplicate stage name")
		}
		seen[lower] = true

		for pos, action := range stage.Actions {
			if err := normalizeAction(stage.Name, pos, action); err != nil {
				return err
			}
		}
	}

	return p.validateArtifacts()
}

func normalizeAction(stageName string, pos int, action *Action) error {
	entity := fmt.Sprintf("stage %s action %d", stageName, pos)

	switch action.Provider {
	case "":
		return configErr(entity, "provider", "provider is required")
	case ProviderGitHub, ProviderCodeBuild, ProviderCloudFormation:
	default:
		return configErr(entity, "provider", "unknown provider %q, supported providers are GitHub, CodeBuild, CloudFormation", action.Provider)
	}

	if action.RunOrder == 0 {
		action.RunOrder = 1
	}
	if action.RunOrder < 1 {
		return configErr(entity, "run-order", "must be >= 1, got %d", action.RunOrder)
	}

	if !action.IsBuild() {
		return nil
	}

	if action.Image == "" {
		return configErr(entity, "image", "image is required for CodeBuild actions")
	}
	if action.Buildspec == "" {
		return configErr(entity, "buildspec", "buildspec is required for CodeBuild actions")
	}
	if action.ComputeType == "" {
		action.ComputeType = DefaultComputeType
	}
	if action.EnvironmentType == "" {
		if strings.Contains(strings.ToLower(action.Image), "windows") {
			action.EnvironmentType = EnvironmentWindows
		} else {
			action.EnvironmentType = EnvironmentLinux
		}
	}

	return nil
}

// validateArtifacts verifies that every consumed artifact name is produced by
// an earlier-or-equal-ordered action. Artifact names are scoped to the whole
// pipeline, not to a single stage.
func (p *Project) validateArtifacts() error {
	produced := map[string]bool{}

	for _, stage := range p.Pipeline {
		actions := stage.SortedActions()

		for idx, action := range actions {
			// Outputs of same-stage actions at earlier-or-equal run order are
			// visible to this action.
			available := map[string]bool{}
			for name := range produced {
				available[name] = true
			}
			for _, other := range actions[:idx] {
				for _, name := range other.Outputs {
					available[name] = true
				}
			}
			for _, other := range actions[idx:] {
				if other.RunOrder > action.RunOrder {
					break
				}
				for _, name := range other.Outputs {
					available[name] = true
				}
			}

			for _, name := range action.Inputs {
				if !available[name] {
					entity := fmt.Sprintf("stage %s action %q", stage.Name, action.Provider)
					return configErr(entity, "inputs", "artifact %q is not produced by any earlier action", name)
				}
			}
		}

		for _, action := range actions {
			for _, name := range action.Outputs {
				produced[name] = true
			}
		}
	}

	return nil
}
