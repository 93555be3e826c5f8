// Package model defines the validated project configuration consumed by the
// template builders and the deployment planner.
package model

import (
	"sort"

	"github.com/savaki/pipeformer/internal/cfn"
)

// Providers understood by the pipeline builder.
const (
	ProviderGitHub         = "GitHub"
	ProviderCodeBuild      = "CodeBuild"
	ProviderCloudFormation = "CloudFormation"
)

// CodeBuild environment defaults.
const (
	DefaultComputeType = "BUILD_GENERAL1_SMALL"
	EnvironmentLinux   = "LINUX_CONTAINER"
	EnvironmentWindows = "WINDOWS_CONTAINER"
)

// Input is a single named project input. The value is collected at deploy
// time and stored outside the generated templates.
type Input struct {
	Name        string `yaml:"-"`
	Description string `yaml:"description"`
	Secret      bool   `yaml:"secret"`

	// Value is populated by an input handler immediately before deployment.
	// It never appears in generated template text.
	Value string `yaml:"-"`
}

// ResourceType returns the CloudFormation type of the storage resource
// backing this input.
func (i *Input) ResourceType() string {
	if i.Secret {
		return "AWS::SecretsManager::Secret"
	}
	return "AWS::SSM::Parameter"
}

// ValueType returns the attribute of the storage resource that dynamic
// references need: the ARN for secrets, the name for parameters.
func (i *Input) ValueType() string {
	if i.Secret {
		return "Arn"
	}
	return "Name"
}

// ResourceName returns the logical name of the input's storage resource,
// e.g. "Secret0GitHubToken".
func (i *Input) ResourceName() string {
	return cfn.ResourceName(i.ResourceType(), i.Name)
}

// ReferenceName returns the name used to carry the input's storage reference
// through stack outputs and parameters, e.g. "Secret0GitHubToken0Arn".
func (i *Input) ReferenceName() string {
	return cfn.ReferenceName(i.ResourceName(), i.ValueType())
}

// DynamicReference returns the CloudFormation dynamic reference expression
// for this input. The expression is evaluated by CloudFormation at stack
// deploy time and resolves to the currently stored value; the value itself
// never appears in template text. SSM references omit the version segment:
// the parameter is created with a placeholder value and overwritten with the
// collected value before any referencing stack deploys, so pinning a version
// would resolve to the placeholder.
func (i *Input) DynamicReference() cfn.Value {
	ref := cfn.Ref(i.ReferenceName())
	if i.Secret {
		return cfn.SubMap("{{resolve:secretsmanager:${arn}:SecretString}}", map[string]cfn.Value{"arn": ref})
	}
	return cfn.SubMap("{{resolve:ssm:${name}}}", map[string]cfn.Value{"name": ref})
}

// Action is one pipeline step.
type Action struct {
	Provider      string            `yaml:"provider"`
	RunOrder      int               `yaml:"run-order"`
	Inputs        []string          `yaml:"inputs"`
	Outputs       []string          `yaml:"outputs"`
	Configuration map[string]string `yaml:"configuration"`

	// CodeBuild-only fields.
	Image           string            `yaml:"image"`
	EnvironmentType string            `yaml:"environment-type"`
	Buildspec       string            `yaml:"buildspec"`
	ComputeType     string            `yaml:"compute-type"`
	Env             map[string]string `yaml:"env"`
}

// IsBuild reports whether this action runs on CodeBuild.
func (a *Action) IsBuild() bool {
	return a.Provider == ProviderCodeBuild
}

// Stage is an ordered group of actions.
type Stage struct {
	Name    string
	Actions []*Action
}

// SortedActions returns the stage's actions ordered by run order, with
// declaration order as the stable tie break.
func (s *Stage) SortedActions() []*Action {
	sorted := make([]*Action, len(s.Actions))
	copy(sorted, s.Actions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RunOrder < sorted[j].RunOrder
	})
	return sorted
}

// HasBuildActions reports whether any action in the stage runs on CodeBuild.
func (s *Stage) HasBuildActions() bool {
	for _, action := range s.Actions {
		if action.IsBuild() {
			return true
		}
	}
	return false
}

// Project is the root configuration entity.
type Project struct {
	Name        string
	Description string
	Inputs      map[string]*Input
	Pipeline    []*Stage
}

// Stage returns the named stage, or nil.
func (p *Project) Stage(name string) *Stage {
	for _, stage := range p.Pipeline {
		if stage.Name == name {
			return stage
		}
	}
	return nil
}

// InputNames returns declared input names in sorted order.
func (p *Project) InputNames() []string {
	names := make([]string, 0, len(p.Inputs))
	for name := range p.Inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tags returns the default tags applied to every generated resource.
func (p *Project) Tags() []cfn.Tag {
	return []cfn.Tag{{Key: "pipeformer", Value: p.Name}}
}
