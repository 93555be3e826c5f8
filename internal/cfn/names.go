package cfn

import "strings"

// ValueSeparator joins role tokens into logical identifiers. CloudFormation
// logical names must be alphanumeric, so a bare digit is used rather than a
// dash or underscore.
const ValueSeparator = "0"

// ResourceName builds the logical name for a resource of the given
// CloudFormation type, e.g. ("AWS::S3::Bucket", "Artifacts") -> "Bucket0Artifacts".
func ResourceName(resourceType, name string) string {
	parts := strings.Split(resourceType, "::")
	return strings.Join([]string{parts[len(parts)-1], name}, ValueSeparator)
}

// ReferenceName builds the name used for a resource value in stack outputs
// and parameters, e.g. ("Bucket0Artifacts", "Arn") -> "Bucket0Artifacts0Arn".
func ReferenceName(name, valueType string) string {
	return strings.Join([]string{name, valueType}, ValueSeparator)
}

// LogicalName joins arbitrary role tokens, e.g.
// ("WaitFor", "Upload", "Template", "Pipeline").
func LogicalName(tokens ...string) string {
	return strings.Join(tokens, ValueSeparator)
}

// AccountArn builds a Sub expression for an ARN pattern scoped as far down as
// the service allows. IAM and S3 ARNs carry no region; S3 ARNs carry no
// account either.
func AccountArn(servicePrefix, resource string) Value {
	region := "${AWS::Region}"
	if servicePrefix == "iam" || servicePrefix == "s3" {
		region = ""
	}

	accountID := "${AWS::AccountId}"
	if servicePrefix == "s3" {
		accountID = ""
	}

	return Sub("arn:${AWS::Partition}:" + servicePrefix + ":" + region + ":" + accountID + ":" + resource)
}
