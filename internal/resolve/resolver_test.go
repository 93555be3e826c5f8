package resolve

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
)

func testInputs() map[string]*model.Input {
	return map[string]*model.Input{
		"GitHubToken": {Name: "GitHubToken", Secret: true, Value: "s3cret"},
		"GitHubOwner": {Name: "GitHubOwner", Secret: false, Value: "octocat"},
	}
}

func TestResolvePassthrough(t *testing.T) {
	resolver := New(testInputs())

	value, err := resolver.Resolve("plain literal")
	require.NoError(t, err)
	assert.Equal(t, "plain literal", value)
	assert.Empty(t, resolver.RequiredInputs())
}

func TestResolveSecret(t *testing.T) {
	resolver := New(testInputs())

	value, err := resolver.Resolve("{INPUT:GitHubToken}")
	require.NoError(t, err)

	body, err := json.Marshal(value)
	require.NoError(t, err)

	// The expression references the secret's ARN, never the stored value.
	assert.Contains(t, string(body), "resolve:secretsmanager")
	assert.Contains(t, string(body), "Secret0GitHubToken0Arn")
	assert.NotContains(t, string(body), "s3cret")

	assert.Equal(t, []string{"GitHubToken"}, resolver.RequiredInputs())
}

func TestResolveParameter(t *testing.T) {
	resolver := New(testInputs())

	value, err := resolver.Resolve("{INPUT:GitHubOwner}")
	require.NoError(t, err)

	body, err := json.Marshal(value)
	require.NoError(t, err)

	assert.Contains(t, string(body), "resolve:ssm")
	assert.Contains(t, string(body), "Parameter0GitHubOwner0Name")
	assert.NotContains(t, string(body), "octocat")
}

func TestResolveParameterUsesLatestVersion(t *testing.T) {
	resolver := New(testInputs())

	value, err := resolver.Resolve("{INPUT:GitHubOwner}")
	require.NoError(t, err)

	body, err := json.Marshal(value)
	require.NoError(t, err)

	// The parameter is seeded with a placeholder and overwritten with the
	// collected value before any referencing stack deploys. A pinned
	// version would resolve to the seed, so the reference must carry none.
	assert.Contains(t, string(body), "{{resolve:ssm:${name}}}")
	assert.NotContains(t, string(body), "{{resolve:ssm:${name}:")
}

func TestResolveMixed(t *testing.T) {
	resolver := New(testInputs())

	value, err := resolver.Resolve("https://github.com/{INPUT:GitHubOwner}/example.git")
	require.NoError(t, err)

	// Mixed literal and placeholder text becomes a Join.
	join, ok := value.(map[string]cfn.Value)
	require.True(t, ok, "Resolve() = %T, want a Join intrinsic", value)
	_, hasJoin := join["Fn::Join"]
	assert.True(t, hasJoin)

	body, err := json.Marshal(value)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://github.com/")
	assert.Contains(t, string(body), "/example.git")
	assert.Contains(t, string(body), "resolve:ssm")
}

func TestResolveMultiplePlaceholders(t *testing.T) {
	resolver := New(testInputs())

	_, err := resolver.Resolve("{INPUT:GitHubOwner}:{INPUT:GitHubToken}")
	require.NoError(t, err)
	assert.Equal(t, []string{"GitHubOwner", "GitHubToken"}, resolver.RequiredInputs())
}

func TestResolveUnknownInput(t *testing.T) {
	resolver := New(testInputs())

	_, err := resolver.Resolve("{INPUT:Missing}")
	require.Error(t, err)

	var unknown *UnknownInputError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "Missing", unknown.Name)
}

func TestResolveCaseSensitive(t *testing.T) {
	resolver := New(testInputs())

	_, err := resolver.Resolve("{INPUT:githubtoken}")
	var unknown *UnknownInputError
	require.True(t, errors.As(err, &unknown))
}

func TestContainsPlaceholder(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  bool
	}{
		{
			name:  "placeholder present",
			value: "before {INPUT:Name} after",
			want:  true,
		},
		{
			name:  "no placeholder",
			value: "plain",
			want:  false,
		},
		{
			name:  "unterminated tag is literal",
			value: "{INPUT:Name",
			want:  false,
		},
		{
			name:  "empty string",
			value: "",
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ContainsPlaceholder(tt.value))
		})
	}
}

func TestFindPlaceholders(t *testing.T) {
	doc := []byte(`{"a": "{INPUT:First}", "b": "x{INPUT:Second}y"}`)
	assert.Equal(t, []string{"First", "Second"}, FindPlaceholders(doc))
	assert.Empty(t, FindPlaceholders([]byte(`{"a": "nothing here"}`)))
}

func TestCheck(t *testing.T) {
	project := &model.Project{
		Name:   "Example",
		Inputs: testInputs(),
		Pipeline: []*model.Stage{
			{
				Name: "source",
				Actions: []*model.Action{
					{
						Provider: model.ProviderGitHub,
						Configuration: map[string]string{
							"OAuthToken": "{INPUT:GitHubToken}",
						},
					},
				},
			},
		},
	}
	assert.NoError(t, Check(project))

	project.Pipeline[0].Actions[0].Configuration["Owner"] = "{INPUT:Nope}"
	err := Check(project)
	require.Error(t, err)
	var unknown *UnknownInputError
	assert.True(t, errors.As(err, &unknown))
}
