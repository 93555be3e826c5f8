package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/plan"
	"github.com/savaki/pipeformer/internal/templates"
)

func testDeployer(t *testing.T, prefix string) (*Deployer, *plan.Plan) {
	t.Helper()

	project := &model.Project{
		Name: "ExampleApp",
		Pipeline: []*model.Stage{
			{
				Name: "source",
				Actions: []*model.Action{
					{Provider: model.ProviderGitHub, Outputs: []string{"SourceOutput"}},
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
	deployPlan, err := plan.Build(project, set)
	require.NoError(t, err)

	return New(Options{
		Project:     project,
		Plan:        deployPlan,
		StackPrefix: prefix,
	}), deployPlan
}

func TestStackName(t *testing.T) {
	deployer, deployPlan := testDeployer(t, "")

	tests := []struct {
		node string
		want string
	}{
		{node: "Stack0Core", want: "exampleapp-core"},
		{node: "Stack0Inputs", want: "exampleapp-inputs"},
		{node: "Stack0Iam", want: "exampleapp-iam"},
		{node: "Stack0CodeBuild0Stage0build", want: "exampleapp-codebuild-stage-build"},
		{node: "Stack0Pipeline", want: "exampleapp-pipeline"},
	}

	for _, tt := range tests {
		t.Run(tt.node, func(t *testing.T) {
			node := deployPlan.Node(tt.node)
			require.NotNil(t, node)
			assert.Equal(t, tt.want, deployer.StackName(node))
		})
	}
}

func TestStackNameCustomPrefix(t *testing.T) {
	deployer, deployPlan := testDeployer(t, "staging-app")

	core := deployPlan.Node("Stack0Core")
	assert.Equal(t, "staging-app-core", deployer.StackName(core))
}

func TestBlockedError(t *testing.T) {
	cause := errors.New("upstream failed")
	err := &BlockedError{Node: "Stack0Pipeline", Cause: cause}

	assert.Contains(t, err.Error(), "Stack0Pipeline")
	assert.ErrorIs(t, err, cause)
}

func TestResolveParameters(t *testing.T) {
	deployer, deployPlan := testDeployer(t, "")

	exec := newExecution(deployPlan)
	exec.finish("Stack0Core", map[string]string{
		"Key0Stack0Arn":               "arn:aws:kms:us-west-2:123456789012:key/abc",
		"Bucket0Artifacts0Arn":        "arn:aws:s3:::artifacts",
		"Bucket0ProjectResources0Arn": "arn:aws:s3:::resources",
	}, nil)

	iam := deployPlan.Node("Stack0Iam")
	require.NotNil(t, iam)

	parameters, err := deployer.resolveParameters(exec, iam)
	require.NoError(t, err)
	assert.Equal(t, "arn:aws:s3:::artifacts", parameters["Bucket0Artifacts0Arn"])
	assert.Equal(t, "arn:aws:kms:us-west-2:123456789012:key/abc", parameters["Key0Stack0Arn"])
}

func TestResolveParametersMissingOutput(t *testing.T) {
	deployer, deployPlan := testDeployer(t, "")

	exec := newExecution(deployPlan)
	exec.finish("Stack0Core", map[string]string{}, nil)

	iam := deployPlan.Node("Stack0Iam")
	_, err := deployer.resolveParameters(exec, iam)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no output")
}

func TestExecutionWait(t *testing.T) {
	_, deployPlan := testDeployer(t, "")
	exec := newExecution(deployPlan)

	failure := errors.New("stack rolled back")
	exec.finish("Stack0Inputs", nil, failure)

	err := exec.wait(context.Background(), "Stack0Inputs")
	assert.ErrorIs(t, err, failure)

	exec.finish("Stack0Core", map[string]string{"Key0Stack0Arn": "arn"}, nil)
	require.NoError(t, exec.wait(context.Background(), "Stack0Core"))

	value, ok := exec.output("Stack0Core", "Key0Stack0Arn")
	assert.True(t, ok)
	assert.Equal(t, "arn", value)
}
