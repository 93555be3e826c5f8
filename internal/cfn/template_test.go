package cfn

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestTemplateJSON(t *testing.T) {
	template := New("test template")
	template.AddParameter("Key0Stack0Arn")
	template.AddResource("Bucket0Artifacts", Resource{
		Type: "AWS::S3::Bucket",
		Properties: map[string]Value{
			"Tags": []Tag{{Key: "pipeformer", Value: "test"}},
		},
	})
	template.AddOutput("Bucket0Artifacts0Name", Ref("Bucket0Artifacts"))

	body, err := template.JSON()
	if err != nil {
		t.Fatalf("JSON() unexpected error: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	if got := doc["AWSTemplateFormatVersion"]; got != "2010-09-09" {
		t.Errorf("AWSTemplateFormatVersion = %v, want 2010-09-09", got)
	}
	if _, ok := doc["Parameters"].(map[string]any)["Key0Stack0Arn"]; !ok {
		t.Error("missing parameter Key0Stack0Arn")
	}
	if _, ok := doc["Resources"].(map[string]any)["Bucket0Artifacts"]; !ok {
		t.Error("missing resource Bucket0Artifacts")
	}
}

// Templates built from the same inputs must render byte-identical documents.
func TestTemplateJSONDeterministic(t *testing.T) {
	build := func() []byte {
		template := New("determinism")
		for _, name := range []string{"Zeta", "Alpha", "Mike", "Bravo"} {
			template.AddParameter(name)
			template.AddResource("Parameter0"+name, Resource{Type: "AWS::SSM::Parameter"})
			template.AddOutput(name+"0Name", Ref("Parameter0"+name))
		}
		body, err := template.JSON()
		if err != nil {
			t.Fatalf("JSON() unexpected error: %v", err)
		}
		return body
	}

	first := build()
	for i := 0; i < 5; i++ {
		if next := build(); !bytes.Equal(first, next) {
			t.Fatal("JSON() output differs between runs")
		}
	}
}

func TestAddParameterReturnsRef(t *testing.T) {
	template := New("")
	value := template.AddParameter("Role0CodeBuild0Arn")

	ref, ok := value.(map[string]Value)
	if !ok || ref["Ref"] != "Role0CodeBuild0Arn" {
		t.Errorf("AddParameter() = %v, want Ref to Role0CodeBuild0Arn", value)
	}
	if !template.HasParameter("Role0CodeBuild0Arn") {
		t.Error("HasParameter() = false after AddParameter")
	}
}

func TestHasOutput(t *testing.T) {
	template := New("")
	if template.HasOutput("Bucket0Artifacts0Arn") {
		t.Error("HasOutput() = true on empty template")
	}
	template.AddOutput("Bucket0Artifacts0Arn", GetAtt("Bucket0Artifacts", "Arn"))
	if !template.HasOutput("Bucket0Artifacts0Arn") {
		t.Error("HasOutput() = false after AddOutput")
	}
}
