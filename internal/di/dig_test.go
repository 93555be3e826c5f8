package di

import (
	"errors"
	"testing"
)

// Test types for dependency injection
type Database struct {
	Name string
}

type Logger struct {
	Level string
}

type Service struct {
	DB     *Database
	Logger *Logger
	Env    string
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		opts    []Option
		wantErr bool
	}{
		{
			name:    "creates container with no providers",
			env:     "dev",
			opts:    nil,
			wantErr: false,
		},
		{
			name: "creates container with single provider",
			env:  "stg",
			opts: []Option{
				WithProviders(func() *Database {
					return &Database{Name: "test-db"}
				}),
			},
			wantErr: false,
		},
		{
			name: "creates container with multiple providers",
			env:  "prd",
			opts: []Option{
				WithProviders(
					func() *Database {
						return &Database{Name: "prd-db"}
					},
					func() *Logger {
						return &Logger{Level: "info"}
					},
				),
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			container, err := New(tt.env, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if container == nil && !tt.wantErr {
				t.Error("New() returned nil container without error")
			}
		})
	}
}

func TestNew_InvalidProvider(t *testing.T) {
	// Attempting to provide the same type twice should fail
	_, err := New("dev",
		WithProviders(
			func() *Database {
				return &Database{Name: "db1"}
			},
			func() *Database {
				return &Database{Name: "db2"}
			},
		),
	)

	if err == nil {
		t.Error("New() should return error when providing duplicate types")
	}
}

func TestNew_ProvidesEnvironment(t *testing.T) {
	expectedEnv := "test-env"
	container, err := New(expectedEnv)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var actualEnv string
	err = container.Invoke(func(env string) {
		actualEnv = env
	})
	if err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
	if actualEnv != expectedEnv {
		t.Errorf("env = %v, want %v", actualEnv, expectedEnv)
	}
}

func TestNew_DependencyChain(t *testing.T) {
	container, err := New("dev",
		WithProviders(
			func() *Database { return &Database{Name: "chain-db"} },
			func() *Logger { return &Logger{Level: "debug"} },
			func(db *Database, logger *Logger, env string) *Service {
				return &Service{DB: db, Logger: logger, Env: env}
			},
		),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	var service *Service
	if err := container.Invoke(func(s *Service) { service = s }); err != nil {
		t.Fatalf("Invoke() unexpected error: %v", err)
	}
	if service.DB.Name != "chain-db" || service.Logger.Level != "debug" || service.Env != "dev" {
		t.Errorf("Service = %+v, dependencies not wired", service)
	}
}

func TestMustGet(t *testing.T) {
	container, err := New("dev",
		WithProviders(func() *Database { return &Database{Name: "must-db"} }),
	)
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	db := MustGet[*Database](container)
	if db.Name != "must-db" {
		t.Errorf("MustGet() = %v, want must-db", db.Name)
	}
}

func TestMustGet_PanicsOnMissing(t *testing.T) {
	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet() should panic for an unregistered type")
		}
	}()
	MustGet[*Logger](container)
}

func TestContainerInvokeError(t *testing.T) {
	container, err := New("dev")
	if err != nil {
		t.Fatalf("New() unexpected error: %v", err)
	}

	wantErr := errors.New("callback failed")
	got := container.Invoke(func(env string) error { return wantErr })
	if !errors.Is(got, wantErr) {
		t.Errorf("Invoke() error = %v, want %v", got, wantErr)
	}
}
