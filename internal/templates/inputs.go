package templates

import (
	"fmt"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
)

// placeholderValue seeds input storage resources at creation time. Real
// values are written by the input handler after the stack is created, so no
// input value ever appears in template text.
const placeholderValue = "REPLACEME"

// Inputs builds the inputs stack template: one Secrets Manager secret per
// secret input, one SSM parameter per non-secret input. Each resource's
// reference value is emitted as an output for downstream stacks.
func Inputs(project *model.Project) *cfn.Template {
	t := cfn.New(fmt.Sprintf("Input values for pipeformer-managed project: %s", project.Name))
	keyArn := t.AddParameter(cfn.ReferenceName(ProjectKey(), "Arn"))
	tags := tagValues(project)

	for _, name := range project.InputNames() {
		input := project.Inputs[name]

		var resource cfn.Resource
		if input.Secret {
			resource = cfn.Resource{
				Type: input.ResourceType(),
				Properties: map[string]cfn.Value{
					"KmsKeyId":     keyArn,
					"SecretString": placeholderValue,
					"Tags":         tags,
				},
			}
		} else {
			resource = cfn.Resource{
				Type: input.ResourceType(),
				Properties: map[string]cfn.Value{
					"Type":  "String",
					"Value": placeholderValue,
				},
			}
		}

		t.AddResource(input.ResourceName(), resource)
		t.AddOutput(input.ReferenceName(), cfn.Ref(input.ResourceName()))
	}

	return t
}
