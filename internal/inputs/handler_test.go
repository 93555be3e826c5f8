package inputs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/savaki/pipeformer/internal/model"
)

func testProject() *model.Project {
	return &model.Project{
		Name: "ExampleApp",
		Inputs: map[string]*model.Input{
			"GitHubOwner": {Name: "GitHubOwner", Description: "Owner of the source repository"},
			"GitHubToken": {Name: "GitHubToken", Secret: true},
		},
	}
}

func TestCollect(t *testing.T) {
	project := testProject()
	out := &bytes.Buffer{}
	handler := &DefaultHandler{
		in:  strings.NewReader("octocat\ns3cret\n"),
		out: out,
	}

	require.NoError(t, handler.Collect(context.Background(), project))

	// Inputs are prompted in name order.
	assert.Equal(t, "octocat", project.Inputs["GitHubOwner"].Value)
	assert.Equal(t, "s3cret", project.Inputs["GitHubToken"].Value)
	assert.Contains(t, out.String(), "Owner of the source repository")
	assert.Contains(t, out.String(), "GitHubToken: ")
}

func TestCollectTrimsLineEndings(t *testing.T) {
	project := testProject()
	handler := &DefaultHandler{
		in:  strings.NewReader("octocat\r\ns3cret"),
		out: &bytes.Buffer{},
	}

	require.NoError(t, handler.Collect(context.Background(), project))
	assert.Equal(t, "octocat", project.Inputs["GitHubOwner"].Value)

	// A final line without a trailing newline still counts.
	assert.Equal(t, "s3cret", project.Inputs["GitHubToken"].Value)
}

func TestCollectMissingInput(t *testing.T) {
	project := testProject()
	handler := &DefaultHandler{
		in:  strings.NewReader("octocat\n"),
		out: &bytes.Buffer{},
	}

	err := handler.Collect(context.Background(), project)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GitHubToken")
}

func TestSaveRejectsUnsetValue(t *testing.T) {
	project := testProject()
	handler := &DefaultHandler{}

	namer := func(ctx context.Context, logicalName string) (string, error) {
		t.Fatalf("namer must not be called for unset values, got %s", logicalName)
		return "", nil
	}

	err := handler.Save(context.Background(), project, namer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not set")
}

func TestSaveNamerError(t *testing.T) {
	project := testProject()
	for _, input := range project.Inputs {
		input.Value = "value"
	}
	handler := &DefaultHandler{}

	cause := errors.New("resource not found")
	namer := func(ctx context.Context, logicalName string) (string, error) {
		return "", cause
	}

	err := handler.Save(context.Background(), project, namer)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
}
