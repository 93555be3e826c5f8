package templates

import (
	"fmt"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/resolve"
)

var actionTypes = map[string]cfn.Value{
	model.ProviderGitHub: map[string]cfn.Value{
		"Category": "Source", "Owner": "ThirdParty", "Provider": "GitHub", "Version": "1",
	},
	model.ProviderCodeBuild: map[string]cfn.Value{
		"Category": "Build", "Owner": "AWS", "Provider": "CodeBuild", "Version": "1",
	},
	model.ProviderCloudFormation: map[string]cfn.Value{
		"Category": "Deploy", "Owner": "AWS", "Provider": "CloudFormation", "Version": "1",
	},
}

// StageTemplate pairs a pipeline stage name with its CodeBuild stack
// template.
type StageTemplate struct {
	Stage    string
	Template *cfn.Template
}

// PipelineSet is the CodePipeline template together with the per-stage
// CodeBuild templates it references.
type PipelineSet struct {
	Template *cfn.Template
	Stages   []StageTemplate
}

// StageStackToken returns the role tokens identifying a stage's CodeBuild
// stack, e.g. "CodeBuild0Stage0build".
func StageStackToken(stage string) string {
	return cfn.LogicalName("CodeBuild", "Stage", stage)
}

// StageProjectParameter returns the pipeline template parameter carrying the
// physical name of a stage's build project, e.g. "Stage0build0Project0a0Name".
// The deployment planner binds it to the stage stack's corresponding output.
func StageProjectParameter(stage string, pos int) string {
	return cfn.LogicalName("Stage", stage, ProjectLogicalName(pos), "Name")
}

// CodePipeline builds the pipeline stack template and the CodeBuild stack
// template for every stage containing build actions. Stages appear in
// project-declared order; actions within a stage are ordered by run order
// with declaration order as the stable tie break.
func CodePipeline(project *model.Project) (*PipelineSet, error) {
	t := cfn.New(fmt.Sprintf("CodePipeline resources for pipeformer-managed project: %s", project.Name))

	t.AddParameter(cfn.ReferenceName(ArtifactsBucket(), "Name"))
	t.AddParameter(cfn.ReferenceName(ProjectResourcesBucket(), "Name"))
	t.AddParameter(cfn.ReferenceName(RoleName(RoleCodePipeline), "Arn"))
	t.AddParameter(cfn.ReferenceName(RoleName(RoleCodeBuild), "Arn"))
	t.AddParameter(cfn.ReferenceName(RoleName(RoleCloudFormation), "Arn"))

	requiredInputs := map[string]bool{}
	var stageTemplates []StageTemplate
	var pipelineStages []cfn.Value

	for _, stage := range project.Pipeline {
		resolver := resolve.New(project.Inputs)

		var actions []cfn.Value
		for pos, action := range stage.SortedActions() {
			built, err := stageAction(stage.Name, pos, action, resolver)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
			}
			actions = append(actions, built)
		}
		pipelineStages = append(pipelineStages, map[string]cfn.Value{
			"Name":    stage.Name,
			"Actions": actions,
		})

		if stage.HasBuildActions() {
			stageResources, err := CodeBuildStage(project, stage, resolver)
			if err != nil {
				return nil, fmt.Errorf("stage %s: %w", stage.Name, err)
			}
			stageTemplates = append(stageTemplates, StageTemplate{Stage: stage.Name, Template: stageResources})

			for pos, action := range stage.SortedActions() {
				if action.IsBuild() {
					t.AddParameter(StageProjectParameter(stage.Name, pos))
				}
			}
		}

		for _, name := range resolver.RequiredInputs() {
			requiredInputs[name] = true
		}
	}

	for _, name := range project.InputNames() {
		if requiredInputs[name] {
			t.AddParameter(project.Inputs[name].ReferenceName())
		}
	}

	pipelineName := cfn.ResourceName("AWS::CodePipeline::Pipeline", project.Name)
	t.AddResource(pipelineName, cfn.Resource{
		Type: "AWS::CodePipeline::Pipeline",
		Properties: map[string]cfn.Value{
			"ArtifactStore": map[string]cfn.Value{
				"Type":     "S3",
				"Location": cfn.Ref(cfn.ReferenceName(ArtifactsBucket(), "Name")),
			},
			"RoleArn": cfn.Ref(cfn.ReferenceName(RoleName(RoleCodePipeline), "Arn")),
			"Stages":  pipelineStages,
		},
	})

	return &PipelineSet{Template: t, Stages: stageTemplates}, nil
}

// stageAction compiles one CodePipeline action definition. Provider-specific
// defaults are applied first, then the user's configuration (with
// placeholders resolved) on top.
func stageAction(stageName string, pos int, action *model.Action, resolver *resolve.Resolver) (cfn.Value, error) {
	actionType, ok := actionTypes[action.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown action provider %q", action.Provider)
	}

	configuration := map[string]cfn.Value{}
	switch action.Provider {
	case model.ProviderGitHub:
		configuration["PollForSourceChanges"] = true
	case model.ProviderCodeBuild:
		configuration["ProjectName"] = cfn.Ref(StageProjectParameter(stageName, pos))
	case model.ProviderCloudFormation:
		configuration["RoleArn"] = cfn.Ref(cfn.ReferenceName(RoleName(RoleCloudFormation), "Arn"))
	}

	resolved, err := resolver.ResolveMap(action.Configuration)
	if err != nil {
		return nil, err
	}
	for key, value := range resolved {
		configuration[key] = value
	}

	built := map[string]cfn.Value{
		"Name":          fmt.Sprintf("%s-%d", stageName, pos),
		"RunOrder":      action.RunOrder,
		"ActionTypeId":  actionType,
		"Configuration": configuration,
	}

	if len(action.Inputs) > 0 {
		built["InputArtifacts"] = artifactList(action.Inputs)
	}
	if len(action.Outputs) > 0 {
		built["OutputArtifacts"] = artifactList(action.Outputs)
	}

	return built, nil
}

func artifactList(names []string) []cfn.Value {
	artifacts := make([]cfn.Value, 0, len(names))
	for _, name := range names {
		artifacts = append(artifacts, map[string]cfn.Value{"Name": name})
	}
	return artifacts
}
