package deploydao

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPK(t *testing.T) {
	tests := []struct {
		name    string
		project string
		env     string
		want    PK
	}{
		{
			name:    "valid project and env",
			project: "ExampleApp",
			env:     "dev",
			want:    PK("ExampleApp/dev"),
		},
		{
			name:    "prod environment",
			project: "MyService",
			env:     "prd",
			want:    PK("MyService/prd"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPK(tt.project, tt.env)
			if got != tt.want {
				t.Errorf("NewPK() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParsePK(t *testing.T) {
	tests := []struct {
		name        string
		pk          PK
		wantProject string
		wantEnv     string
		wantErr     bool
	}{
		{
			name:        "valid PK",
			pk:          PK("ExampleApp/dev"),
			wantProject: "ExampleApp",
			wantEnv:     "dev",
		},
		{
			name:    "no separator",
			pk:      PK("ExampleApp"),
			wantErr: true,
		},
		{
			name:    "empty",
			pk:      PK(""),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project, env, err := ParsePK(tt.pk)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProject, project)
			assert.Equal(t, tt.wantEnv, env)
		})
	}
}

func TestTableName(t *testing.T) {
	assert.Equal(t, "dev-pipeformer-deployments", TableName("dev"))
	assert.Equal(t, "prd-pipeformer-deployments", TableName("prd"))
}

func TestStackNames(t *testing.T) {
	records := []Record{
		{SK: "a", Stacks: []string{"exampleapp-core", "exampleapp-inputs"}},
		{SK: "b", Stacks: []string{"exampleapp-pipeline"}},
	}

	names := StackNames(records)
	assert.Equal(t, []string{"exampleapp-core", "exampleapp-inputs", "exampleapp-pipeline"}, names)
}
