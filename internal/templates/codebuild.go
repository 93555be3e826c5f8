package templates

import (
	"fmt"
	"sort"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/resolve"
)

const projectLetters = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ProjectLogicalName returns the logical name of the build project for the
// action at the given position within its stage, e.g. "Project0a".
func ProjectLogicalName(pos int) string {
	return cfn.ResourceName("AWS::CodeBuild::Project", string(projectLetters[pos]))
}

// CodeBuildStage builds the stack template holding one CodeBuild project per
// build action in the stage. Build projects are never shared between
// actions: per-project resource limits and isolation make one project per
// action the safe default.
//
// Inputs referenced by build environment variables are recorded on the
// resolver and surface as template parameters.
func CodeBuildStage(project *model.Project, stage *model.Stage, resolver *resolve.Resolver) (*cfn.Template, error) {
	t := cfn.New(fmt.Sprintf("CodeBuild projects for %s stage in pipeformer-managed project: %s", stage.Name, project.Name))

	bucket := t.AddParameter(cfn.ReferenceName(ProjectResourcesBucket(), "Name"))
	role := t.AddParameter(cfn.ReferenceName(RoleName(RoleCodeBuild), "Arn"))
	tags := tagValues(project)

	for pos, action := range stage.SortedActions() {
		if !action.IsBuild() {
			continue
		}

		name := ProjectLogicalName(pos)
		resource, err := buildProject(name, action, role, bucket, tags, resolver)
		if err != nil {
			return nil, err
		}

		t.AddResource(name, resource)
		t.AddOutput(cfn.ReferenceName(name, "Name"), cfn.Ref(name))
	}

	for _, name := range resolver.RequiredInputs() {
		t.AddParameter(project.Inputs[name].ReferenceName())
	}

	return t, nil
}

func buildProject(name string, action *model.Action, role, bucket cfn.Value, tags cfn.Value, resolver *resolve.Resolver) (cfn.Resource, error) {
	envVars := []cfn.Value{
		map[string]cfn.Value{"Name": "PIPEFORMER_S3_BUCKET", "Value": bucket},
	}

	keys := make([]string, 0, len(action.Env))
	for key := range action.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value, err := resolver.Resolve(action.Env[key])
		if err != nil {
			return cfn.Resource{}, err
		}
		envVars = append(envVars, map[string]cfn.Value{"Name": key, "Value": value})
	}

	return cfn.Resource{
		Type: "AWS::CodeBuild::Project",
		Properties: map[string]cfn.Value{
			"Name":        cfn.Sub(fmt.Sprintf("${AWS::StackName}-%s", name)),
			"ServiceRole": role,
			"Artifacts":   map[string]cfn.Value{"Type": "CODEPIPELINE"},
			"Source": map[string]cfn.Value{
				"Type":      "CODEPIPELINE",
				"BuildSpec": action.Buildspec,
			},
			"Environment": map[string]cfn.Value{
				"ComputeType":          action.ComputeType,
				"Type":                 action.EnvironmentType,
				"Image":                action.Image,
				"EnvironmentVariables": envVars,
			},
			"Tags": tags,
		},
	}, nil
}
