package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/templates"
)

func testPlan(t *testing.T) *Plan {
	t.Helper()

	project := &model.Project{
		Name: "ExampleApp",
		Inputs: map[string]*model.Input{
			"GitHubToken": {Secret: true},
			"GitHubOwner": {Secret: false},
		},
		Pipeline: []*model.Stage{
			{
				Name: "source",
				Actions: []*model.Action{
					{
						Provider: model.ProviderGitHub,
						Outputs:  []string{"SourceOutput"},
						Configuration: map[string]string{
							"Owner":      "{INPUT:GitHubOwner}",
							"Repo":       "example",
							"OAuthToken": "{INPUT:GitHubToken}",
						},
					},
				},
			},
			{
				Name: "build",
				Actions: []*model.Action{
					{
						Provider:  model.ProviderCodeBuild,
						Image:     "aws/codebuild/standard:7.0",
						Buildspec: "buildspec.yaml",
						Inputs:    []string{"SourceOutput"},
					},
				},
			},
		},
	}
	require.NoError(t, project.Validate())

	set, err := templates.Build(project)
	require.NoError(t, err)

	deployPlan, err := Build(project, set)
	require.NoError(t, err)
	return deployPlan
}

func TestBuildTopology(t *testing.T) {
	deployPlan := testPlan(t)

	var names []string
	for _, node := range deployPlan.Nodes {
		names = append(names, node.Name)
	}
	assert.ElementsMatch(t, []string{
		"Stack0Core",
		"Stack0Inputs",
		"Stack0Iam",
		"Stack0CodeBuild0Stage0build",
		"Stack0Pipeline",
	}, names)

	// Topological order: every node appears after everything it requires.
	position := map[string]int{}
	for i, node := range deployPlan.Nodes {
		position[node.Name] = i
	}
	for _, node := range deployPlan.Nodes {
		for _, name := range node.Requires {
			assert.Less(t, position[name], position[node.Name],
				"%s must come after %s", node.Name, name)
		}
	}
}

func TestBuildPipelineDependencies(t *testing.T) {
	deployPlan := testPlan(t)

	pipeline := deployPlan.Node(StackNodeName(BasePipeline))
	require.NotNil(t, pipeline)

	deps := pipeline.DependsOn()
	assert.Contains(t, deps, "Stack0Core")
	assert.Contains(t, deps, "Stack0Inputs")
	assert.Contains(t, deps, "Stack0Iam")
	assert.Contains(t, deps, "Stack0CodeBuild0Stage0build")
	assert.Contains(t, deps, "WaitFor0Upload0Template0Pipeline")
	assert.Contains(t, deps, "WaitFor0Upload0Template0CodeBuild0Stage0build")
	assert.Contains(t, deps, "WaitFor0Upload0Input0Values")
}

func TestBuildStageGatedOnInputValues(t *testing.T) {
	project := &model.Project{
		Name: "ExampleApp",
		Inputs: map[string]*model.Input{
			"GitHubToken": {Secret: true},
			"GitHubOwner": {Secret: false},
		},
		Pipeline: []*model.Stage{
			{
				Name: "source",
				Actions: []*model.Action{
					{
						Provider: model.ProviderGitHub,
						Outputs:  []string{"SourceOutput"},
						Configuration: map[string]string{
							"Owner":      "{INPUT:GitHubOwner}",
							"Repo":       "example",
							"OAuthToken": "{INPUT:GitHubToken}",
						},
					},
				},
			},
			{
				Name: "build",
				Actions: []*model.Action{
					{
						Provider:  model.ProviderCodeBuild,
						Image:     "aws/codebuild/standard:7.0",
						Buildspec: "buildspec.yaml",
						Inputs:    []string{"SourceOutput"},
						Env:       map[string]string{"TOKEN": "{INPUT:GitHubToken}"},
					},
				},
			},
		},
	}
	require.NoError(t, project.Validate())

	set, err := templates.Build(project)
	require.NoError(t, err)

	deployPlan, err := Build(project, set)
	require.NoError(t, err)

	// The build env embeds a dynamic reference, so the stage stack cannot
	// be created before the input values have been saved.
	stage := deployPlan.Node(StackNodeName(templates.StageStackToken("build")))
	require.NotNil(t, stage)
	assert.Contains(t, stage.DependsOn(), InputValuesBarrierName())

	// Stacks without input references stay ungated.
	iam := deployPlan.Node(StackNodeName(BaseIam))
	require.NotNil(t, iam)
	assert.NotContains(t, iam.DependsOn(), InputValuesBarrierName())
}

func TestBuildParameterBindings(t *testing.T) {
	deployPlan := testPlan(t)

	iam := deployPlan.Node(StackNodeName(BaseIam))
	require.NotNil(t, iam)
	binding, ok := iam.Parameters["Bucket0Artifacts0Arn"]
	require.True(t, ok)
	assert.False(t, binding.IsStatic())
	assert.Equal(t, "Stack0Core", binding.Node)
	assert.Equal(t, "Bucket0Artifacts0Arn", binding.Output)

	// Stage-qualified project names bind to the stage stack's output.
	pipeline := deployPlan.Node(StackNodeName(BasePipeline))
	binding, ok = pipeline.Parameters["Stage0build0Project0a0Name"]
	require.True(t, ok)
	assert.Equal(t, "Stack0CodeBuild0Stage0build", binding.Node)
	assert.Equal(t, "Project0a0Name", binding.Output)

	// Input references bind to the inputs stack.
	binding, ok = pipeline.Parameters["Secret0GitHubToken0Arn"]
	require.True(t, ok)
	assert.Equal(t, "Stack0Inputs", binding.Node)
}

func TestBuildCoreIsInline(t *testing.T) {
	deployPlan := testPlan(t)

	core := deployPlan.Node(StackNodeName(BaseCore))
	require.NotNil(t, core)
	assert.Equal(t, SourceInline, core.Source)
	assert.Empty(t, core.Requires)

	stored := deployPlan.StoredNodes()
	assert.Len(t, stored, len(deployPlan.Nodes)-1)
	for _, node := range stored {
		assert.Equal(t, SourceStored, node.Source)
	}
}

func TestBuildUnsatisfiableParameter(t *testing.T) {
	deployPlan := testPlan(t)

	project := &model.Project{Name: "Example"}
	set := &templates.Set{
		Core:     deployPlan.Node(StackNodeName(BaseCore)).Template,
		Inputs:   deployPlan.Node(StackNodeName(BaseInputs)).Template,
		IAM:      deployPlan.Node(StackNodeName(BaseIam)).Template,
		Pipeline: deployPlan.Node(StackNodeName(BasePipeline)).Template,
	}
	// A parameter nothing produces must fail planning, not deployment.
	set.Pipeline.AddParameter("Nobody0Produces0This")

	_, err := Build(project, set)
	require.Error(t, err)

	var planErr *PlanningError
	require.True(t, errors.As(err, &planErr))
	assert.Contains(t, planErr.Error(), "Nobody0Produces0This")
}

func TestTopoSortCycle(t *testing.T) {
	a := &Node{Name: "A", Requires: []string{"B"}}
	b := &Node{Name: "B", Requires: []string{"C"}}
	c := &Node{Name: "C", Requires: []string{"A"}}

	_, err := topoSort([]*Node{a, b, c})
	require.Error(t, err)

	var planErr *PlanningError
	require.True(t, errors.As(err, &planErr))
	assert.NotEmpty(t, planErr.Cycle)

	// The witness closes on the node where the cycle was detected.
	assert.Equal(t, planErr.Cycle[0], planErr.Cycle[len(planErr.Cycle)-1])
}

func TestTopoSortUnknownDependency(t *testing.T) {
	a := &Node{Name: "A", Requires: []string{"Ghost"}}

	_, err := topoSort([]*Node{a})
	require.Error(t, err)

	var planErr *PlanningError
	require.True(t, errors.As(err, &planErr))
	assert.Contains(t, planErr.Error(), "Ghost")
}

func TestStackNodeName(t *testing.T) {
	assert.Equal(t, "Stack0Inputs", StackNodeName(BaseInputs))
	assert.Equal(t, "Stack0CodeBuild0Stage0build", StackNodeName(templates.StageStackToken("build")))
	assert.Equal(t, "WaitFor0Upload0Template0Pipeline", BarrierName(BasePipeline))
	assert.Equal(t, "WaitFor0Upload0Input0Values", InputValuesBarrierName())
}
