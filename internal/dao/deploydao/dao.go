// Package deploydao records pipeformer deployment history in DynamoDB.
package deploydao

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
)

// PK represents a DynamoDB partition key in format {project}/{env}
// Example: myproject/dev
type PK string

// NewPK creates a new partition key from project and env
func NewPK(project, env string) PK {
	return PK(fmt.Sprintf("%s/%s", project, env))
}

// ParsePK parses a partition key into its project and env components
func ParsePK(pk PK) (project, env string, err error) {
	parts := strings.Split(string(pk), "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {project}/{env}", pk)
	}
	return parts[0], parts[1], nil
}

// String returns the string representation of the partition key
func (pk PK) String() string {
	return string(pk)
}

// Status represents the state of a deployment
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
)

// Record represents one deployment of a project
type Record struct {
	PK         PK       `ddb:"hash" dynamodbav:"pk"`  // {project}/{env}
	SK         string   `ddb:"range" dynamodbav:"sk"` // KSUID - DynamoDB sort key
	Project    string   `dynamodbav:"project,omitempty"`
	Env        string   `dynamodbav:"env,omitempty"`
	Status     Status   `dynamodbav:"status,omitempty"`
	Stacks     []string `dynamodbav:"stacks,omitempty"` // stack names in deploy order
	ErrorMsg   *string  `dynamodbav:"error_msg,omitempty"`
	CreatedAt  int64    `dynamodbav:"created_at,omitempty"`
	UpdatedAt  int64    `dynamodbav:"updated_at,omitempty"`
	FinishedAt *int64   `dynamodbav:"finished_at,omitempty"`
}

// TableName returns the deployments table name for an environment
func TableName(env string) string {
	return fmt.Sprintf("%s-pipeformer-deployments", env)
}

// CreateInput contains the fields needed to create a deployment record
type CreateInput struct {
	Project string
	Env     string
	SK      string   // KSUID sort key
	Stacks  []string // planned stack names in deploy order
}

// UpdateInput contains the fields that can be updated on a deployment record
type UpdateInput struct {
	PK       PK
	SK       string
	Status   Status
	ErrorMsg *string
}

// DAO provides data access operations for deployment records
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create creates a new deployment record with initial status PENDING
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	now := time.Now().Unix()
	record := Record{
		PK:        NewPK(input.Project, input.Env),
		SK:        input.SK,
		Project:   input.Project,
		Env:       input.Env,
		Status:    StatusPending,
		Stacks:    input.Stacks,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to create deployment record: %w", err)
	}
	return record, nil
}

// UpdateStatus updates the status of a deployment record, stamping
// FinishedAt for terminal states
func (d *DAO) UpdateStatus(ctx context.Context, input UpdateInput) error {
	now := time.Now().Unix()

	update := d.table.Update(input.PK.String()).
		Range(input.SK).
		Set("#Status = ?", string(input.Status)).
		Set("#UpdatedAt = ?", now)

	if input.Status == StatusSuccess || input.Status == StatusFailed {
		update = update.Set("#FinishedAt = ?", now)
	}
	if input.ErrorMsg != nil {
		update = update.Set("#ErrorMsg = ?", *input.ErrorMsg)
	}

	if err := update.RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to update deployment record: %w", err)
	}
	return nil
}

// Find retrieves a deployment record
func (d *DAO) Find(ctx context.Context, pk PK, sk string) (Record, error) {
	var record Record
	err := d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		return Record{}, fmt.Errorf("failed to find deployment record: %w", err)
	}
	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("deployment record not found: %s:%s", pk, sk)
	}
	return record, nil
}

// Query returns all deployments for a project/env partition
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record
	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	return records, nil
}

// StackNames returns the stack names recorded across the given deployments,
// deduplicated, preserving first appearance order
func StackNames(records []Record) []string {
	seen := map[string]bool{}
	var names []string
	for _, stacks := range slicex.Map(records, func(r Record) []string { return r.Stacks }) {
		for _, name := range stacks {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
