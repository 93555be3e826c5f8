package templates

import (
	"fmt"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
)

// IAM builds the IAM stack template: execution roles for CloudFormation,
// CodePipeline, and CodeBuild. Bucket and key ARNs arrive as parameters so
// the stack is independently deployable.
func IAM(project *model.Project) *cfn.Template {
	t := cfn.New(fmt.Sprintf("IAM resources for pipeformer-managed project: %s", project.Name))

	artifactsArn := t.AddParameter(cfn.ReferenceName(ArtifactsBucket(), "Arn"))
	resourcesArn := t.AddParameter(cfn.ReferenceName(ProjectResourcesBucket(), "Arn"))
	keyArn := t.AddParameter(cfn.ReferenceName(ProjectKey(), "Arn"))

	roles := map[string]cfn.Resource{
		RoleName(RoleCloudFormation): cloudFormationRole(),
		RoleName(RoleCodePipeline):   codePipelineRole(artifactsArn, resourcesArn, keyArn),
		RoleName(RoleCodeBuild):      codeBuildRole(artifactsArn, resourcesArn, keyArn),
	}
	for name, role := range roles {
		t.AddResource(name, role)
		t.AddOutput(cfn.ReferenceName(name, "Arn"), cfn.GetAtt(name, "Arn"))
	}

	return t
}

func assumePolicy(service string) cfn.Value {
	return map[string]cfn.Value{
		"Statement": []cfn.Value{
			map[string]cfn.Value{
				"Effect":    "Allow",
				"Principal": map[string]cfn.Value{"Service": service + ".amazonaws.com"},
				"Action":    []string{"sts:AssumeRole"},
			},
		},
	}
}

func role(name, service string, policy cfn.Value) cfn.Resource {
	return cfn.Resource{
		Type: "AWS::IAM::Role",
		Properties: map[string]cfn.Value{
			"AssumeRolePolicyDocument": assumePolicy(service),
			"Policies": []cfn.Value{
				map[string]cfn.Value{
					"PolicyName":     cfn.Sub(fmt.Sprintf("${AWS::StackName}-%s", name)),
					"PolicyDocument": policy,
				},
			},
		},
	}
}

func cloudFormationRole() cfn.Resource {
	// Deploy-engine permissions cannot be scoped down further without
	// knowing what the pipeline deploys. Wildcard ARNs in scoped patterns
	// break IAM evaluation, so the resource stays open.
	policy := map[string]cfn.Value{
		"Statement": []cfn.Value{
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"*"},
				"Resource": []string{"*"},
			},
		},
	}
	return role(RoleCloudFormation, "cloudformation", policy)
}

func bucketObjects(bucketArn cfn.Value) cfn.Value {
	return cfn.Join("", bucketArn, "/*")
}

func codePipelineRole(artifactsArn, resourcesArn, keyArn cfn.Value) cfn.Resource {
	policy := map[string]cfn.Value{
		"Statement": []cfn.Value{
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"s3:GetBucketVersioning", "s3:PutBucketVersioning"},
				"Resource": []cfn.Value{artifactsArn, resourcesArn},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"s3:GetObject", "s3:PutObject"},
				"Resource": []cfn.Value{bucketObjects(artifactsArn), bucketObjects(resourcesArn)},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"kms:Encrypt", "kms:Decrypt", "kms:GenerateDataKey"},
				"Resource": []cfn.Value{keyArn},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"cloudwatch:*"},
				"Resource": []cfn.Value{cfn.AccountArn("cloudwatch", "*")},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"iam:PassRole"},
				"Resource": []cfn.Value{cfn.AccountArn("iam", "role/*")},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"lambda:InvokeFunction", "lambda:ListFunctions"},
				"Resource": []cfn.Value{cfn.AccountArn("lambda", "*")},
			},
			map[string]cfn.Value{
				"Effect": "Allow",
				"Action": []string{
					"cloudformation:CreateStack",
					"cloudformation:DeleteStack",
					"cloudformation:DescribeStacks",
					"cloudformation:UpdateStack",
					"cloudformation:CreateChangeSet",
					"cloudformation:DeleteChangeSet",
					"cloudformation:DescribeChangeSet",
					"cloudformation:ExecuteChangeSet",
					"cloudformation:SetStackPolicy",
					"cloudformation:ValidateTemplate",
				},
				"Resource": []cfn.Value{cfn.AccountArn("cloudformation", "*")},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"codebuild:BatchGetBuilds", "codebuild:StartBuild"},
				"Resource": []cfn.Value{cfn.AccountArn("codebuild", "*")},
			},
		},
	}
	return role(RoleCodePipeline, "codepipeline", policy)
}

func codeBuildRole(artifactsArn, resourcesArn, keyArn cfn.Value) cfn.Resource {
	policy := map[string]cfn.Value{
		"Statement": []cfn.Value{
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"},
				"Resource": []cfn.Value{cfn.AccountArn("logs", "*")},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"s3:GetObject", "s3:GetObjectVersion", "s3:PutObject"},
				"Resource": []cfn.Value{bucketObjects(artifactsArn), bucketObjects(resourcesArn)},
			},
			map[string]cfn.Value{
				"Effect":   "Allow",
				"Action":   []string{"kms:Encrypt", "kms:Decrypt", "kms:GenerateDataKey"},
				"Resource": []cfn.Value{keyArn},
			},
		},
	}
	return role(RoleCodeBuild, "codebuild", policy)
}
