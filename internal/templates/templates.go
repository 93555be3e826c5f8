// Package templates builds the CloudFormation templates for a pipeformer
// project: core storage, IAM roles, input storage, one CodeBuild template
// per stage with build actions, and the CodePipeline itself.
//
// Builders are pure functions of the validated project model; the same
// project always produces byte-identical templates.
package templates

import (
	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/resolve"
)

// Role tokens for project resources.
const (
	RoleCloudFormation = "CloudFormation"
	RoleCodePipeline   = "CodePipeline"
	RoleCodeBuild      = "CodeBuild"
)

// ArtifactsBucket returns the logical name of the artifacts bucket.
func ArtifactsBucket() string {
	return cfn.ResourceName("AWS::S3::Bucket", "Artifacts")
}

// ProjectResourcesBucket returns the logical name of the project resources
// bucket.
func ProjectResourcesBucket() string {
	return cfn.ResourceName("AWS::S3::Bucket", "ProjectResources")
}

// ProjectKey returns the logical name of the project CMK.
func ProjectKey() string {
	return cfn.ResourceName("AWS::KMS::Key", "Stack")
}

// RoleName returns the logical name of a project role, e.g. "Role0CodeBuild".
func RoleName(role string) string {
	return cfn.ResourceName("AWS::IAM::Role", role)
}

// Set holds every template generated for a project.
type Set struct {
	Core     *cfn.Template
	Inputs   *cfn.Template
	IAM      *cfn.Template
	Pipeline *cfn.Template

	// CodeBuild holds one template per pipeline stage that contains at least
	// one build action, in declared stage order.
	CodeBuild []StageTemplate
}

// Build constructs all templates for a project. The project must already be
// validated; placeholder resolution is statically checked before any
// template is returned, so no partial or unresolved document ever escapes.
func Build(project *model.Project) (*Set, error) {
	if err := resolve.Check(project); err != nil {
		return nil, err
	}

	pipeline, err := CodePipeline(project)
	if err != nil {
		return nil, err
	}

	return &Set{
		Core:     Core(project),
		Inputs:   Inputs(project),
		IAM:      IAM(project),
		Pipeline: pipeline.Template,
		CodeBuild: pipeline.Stages,
	}, nil
}

func tagValues(project *model.Project) cfn.Value {
	return project.Tags()
}
