package templates

import (
	"fmt"

	"github.com/savaki/pipeformer/internal/cfn"
	"github.com/savaki/pipeformer/internal/model"
)

// Core builds the core stack template: the project CMK and the two project
// buckets, both encrypted with the CMK. The core stack takes no parameters;
// every other stack consumes its outputs.
func Core(project *model.Project) *cfn.Template {
	t := cfn.New(fmt.Sprintf("Core resources for pipeformer-managed project: %s", project.Name))
	tags := tagValues(project)

	t.AddResource(ProjectKey(), projectKey(tags))
	t.AddResource(ArtifactsBucket(), bucket(tags))
	t.AddResource(ProjectResourcesBucket(), bucket(tags))

	t.AddOutput(cfn.ReferenceName(ProjectKey(), "Arn"), cfn.GetAtt(ProjectKey(), "Arn"))
	for _, name := range []string{ArtifactsBucket(), ProjectResourcesBucket()} {
		t.AddOutput(cfn.ReferenceName(name, "Name"), cfn.Ref(name))
		t.AddOutput(cfn.ReferenceName(name, "Arn"), cfn.GetAtt(name, "Arn"))
	}

	return t
}

// projectKey constructs the customer-managed CMK protecting all project
// resources. The account root is granted use and administration; generated
// roles are scoped to the key through IAM policies instead.
func projectKey(tags cfn.Value) cfn.Resource {
	policy := map[string]cfn.Value{
		"Version": "2012-10-17",
		"Statement": []cfn.Value{
			map[string]cfn.Value{
				"Effect":    "Allow",
				"Principal": map[string]cfn.Value{"AWS": cfn.AccountArn("iam", "root")},
				"Action": []string{
					"kms:Encrypt",
					"kms:Decrypt",
					"kms:ReEncrypt*",
					"kms:GenerateDataKey",
					"kms:GenerateDataKeyWithoutPlaintext",
					"kms:DescribeKey",
					"kms:GetKeyPolicy",
				},
				"Resource": []string{"*"},
			},
			map[string]cfn.Value{
				"Effect":    "Allow",
				"Principal": map[string]cfn.Value{"AWS": cfn.AccountArn("iam", "root")},
				"Action": []string{
					"kms:GetKeyPolicy",
					"kms:PutKeyPolicy",
					"kms:ScheduleKeyDeletion",
					"kms:CancelKeyDeletion",
					"kms:CreateAlias",
					"kms:DeleteAlias",
					"kms:UpdateAlias",
					"kms:DescribeKey",
					"kms:EnableKey",
					"kms:DisableKey",
					"kms:GetKeyRotationStatus",
					"kms:EnableKeyRotation",
					"kms:DisableKeyRotation",
					"kms:ListKeyPolicies",
					"kms:ListResourceTags",
					"kms:TagResource",
					"kms:UntagResource",
				},
				"Resource": []string{"*"},
			},
		},
	}

	return cfn.Resource{
		Type: "AWS::KMS::Key",
		Properties: map[string]cfn.Value{
			"Enabled":           true,
			"EnableKeyRotation": false,
			"KeyPolicy":         policy,
			"Tags":              tags,
		},
	}
}

// bucket constructs an S3 bucket with default SSE-KMS using the project CMK.
func bucket(tags cfn.Value) cfn.Resource {
	return cfn.Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]cfn.Value{
			"BucketEncryption": map[string]cfn.Value{
				"ServerSideEncryptionConfiguration": []cfn.Value{
					map[string]cfn.Value{
						"ServerSideEncryptionByDefault": map[string]cfn.Value{
							"SSEAlgorithm":   "aws:kms",
							"KMSMasterKeyID": cfn.GetAtt(ProjectKey(), "Arn"),
						},
					},
				},
			},
			"Tags": tags,
		},
	}
}
