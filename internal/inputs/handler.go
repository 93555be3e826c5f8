// Package inputs collects project input values and saves them to their
// storage resources once the inputs stack exists.
package inputs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/savaki/pipeformer/internal/model"
	"github.com/savaki/pipeformer/internal/services"
	"golang.org/x/term"
)

// ResourceNamer maps an input's logical resource name to the physical name
// of the deployed resource.
type ResourceNamer func(ctx context.Context, logicalName string) (string, error)

// Handler collects and persists input values. Secrets never pass through
// generated templates; they are written directly to their storage resources.
type Handler interface {
	// Collect gathers a value for every declared input.
	Collect(ctx context.Context, project *model.Project) error

	// Save writes collected values to their storage resources, resolving
	// physical resource names through namer.
	Save(ctx context.Context, project *model.Project, namer ResourceNamer) error
}

// DefaultHandler prompts for values on the terminal, saves secrets to
// Secrets Manager, and saves parameters to Parameter Store.
type DefaultHandler struct {
	secrets *services.SecretsService
	params  *services.ParameterService
	in      io.Reader
	out     io.Writer
}

// NewDefaultHandler creates a handler reading from stdin and writing prompts
// to stderr.
func NewDefaultHandler(secrets *services.SecretsService, params *services.ParameterService) *DefaultHandler {
	return &DefaultHandler{
		secrets: secrets,
		params:  params,
		in:      os.Stdin,
		out:     os.Stderr,
	}
}

func prompt(input *model.Input) string {
	if input.Description == "" {
		return fmt.Sprintf("%s: ", input.Name)
	}
	return fmt.Sprintf("%s\n%s: ", input.Description, input.Name)
}

// Collect prompts for every declared input in name order. Secret values are
// read without echo when stdin is a terminal.
func (h *DefaultHandler) Collect(ctx context.Context, project *model.Project) error {
	reader := bufio.NewReader(h.in)

	for _, name := range project.InputNames() {
		input := project.Inputs[name]
		fmt.Fprint(h.out, prompt(input))

		if input.Secret {
			if file, ok := h.in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
				value, err := term.ReadPassword(int(file.Fd()))
				if err != nil {
					return fmt.Errorf("failed to read secret input %s: %w", name, err)
				}
				fmt.Fprintln(h.out)
				input.Value = string(value)
				continue
			}
		}

		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return fmt.Errorf("failed to read input %s: %w", name, err)
		}
		input.Value = strings.TrimRight(line, "\r\n")
	}
	return nil
}

// Save writes every collected value to its storage resource.
func (h *DefaultHandler) Save(ctx context.Context, project *model.Project, namer ResourceNamer) error {
	logger := zerolog.Ctx(ctx)

	for _, name := range project.InputNames() {
		input := project.Inputs[name]
		if input.Value == "" {
			return fmt.Errorf("value for input %q is not set", name)
		}

		physicalName, err := namer(ctx, input.ResourceName())
		if err != nil {
			return fmt.Errorf("failed to resolve resource for input %s: %w", name, err)
		}

		if input.Secret {
			logger.Debug().Str("input", name).Msg("Saving secret value")
			if err := h.secrets.UpdateSecret(ctx, physicalName, input.Value); err != nil {
				return err
			}
			continue
		}

		version, err := h.params.PutParameter(ctx, physicalName, input.Value)
		if err != nil {
			return err
		}
		logger.Debug().Str("input", name).Int64("version", version).Msg("Saved parameter value")
	}
	return nil
}
